package notify

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Car status changes
// --------------------------------------------------------------------------

type statusTemplate struct {
	Icon  string
	Title string
	Body  string
}

// statusTemplates maps each workshop state to its push message. Unknown
// status strings fall back to statusFallback so an unexpected value degrades
// to generic text instead of dropping the notification.
var statusTemplates = map[CarStatus]statusTemplate{
	StatusWaiting:    {"⏳", "Car is waiting", "Your car is waiting to be serviced"},
	StatusInProgress: {"🔧", "Service has started", "We are working on your car"},
	StatusDone:       {"✅", "Service completed", "Your car is ready for pickup!"},
	StatusDelivered:  {"🎉", "Car delivered", "Thank you for choosing us!"},
}

func statusFallback(status CarStatus) statusTemplate {
	return statusTemplate{"📝", "Car status updated", fmt.Sprintf("Status changed to: %s", status)}
}

// ClassifyStatusChange builds the message for a car status transition.
// Returns ok=false when the watched field did not actually change, so no-op
// updates never notify.
func ClassifyStatusChange(before, after Car) (Message, bool) {
	if before.Status == after.Status {
		return Message{}, false
	}

	tmpl, known := statusTemplates[after.Status]
	if !known {
		tmpl = statusFallback(after.Status)
	}

	return Message{
		Kind:  KindCarStatusChange,
		Title: fmt.Sprintf("%s %s", tmpl.Icon, tmpl.Title),
		Body:  fmt.Sprintf("%s - %s", after.Info(), tmpl.Body),
		Data: map[string]string{
			"car_id":     after.ID,
			"old_status": string(before.Status),
			"new_status": string(after.Status),
		},
	}, true
}

// --------------------------------------------------------------------------
// Subscription expiry bands
// --------------------------------------------------------------------------

// ClassifyBand selects the expiry reminder band for a subscription end date.
// Bands are evaluated in strict descending order of urgency; once days-left
// stops matching any band, BandNone is returned and nothing is sent.
// Days-left is ceil(hours/24), matching the original millisecond arithmetic.
func ClassifyBand(endAt, now time.Time) (Band, int) {
	daysLeft := int(math.Ceil(endAt.Sub(now).Hours() / 24))

	switch {
	case daysLeft <= 0:
		return BandExpired, daysLeft
	case daysLeft <= 1:
		return Band1Day, daysLeft
	case daysLeft <= 3:
		return Band3Days, daysLeft
	case daysLeft <= 7:
		return Band7Days, daysLeft
	default:
		return BandNone, daysLeft
	}
}

// SubscriptionExpiryMessage builds the reminder for a band. Returns ok=false
// for BandNone.
func SubscriptionExpiryMessage(band Band, daysLeft int) (Message, bool) {
	var title, body string
	switch band {
	case BandExpired:
		title = "❌ Subscription expired"
		body = "Your subscription has expired. Renew it to keep using the system"
	case Band1Day:
		title = "⚠️ Subscription ends tomorrow!"
		body = "Your subscription ends tomorrow. Renew it now"
	case Band3Days:
		title = "⚠️ Subscription ends in 3 days"
		body = fmt.Sprintf("Your subscription ends in %d days. Renew it to continue", daysLeft)
	case Band7Days:
		title = "⏰ Subscription ends in a week"
		body = fmt.Sprintf("Your subscription ends in %d days. Don't forget to renew", daysLeft)
	default:
		return Message{}, false
	}

	return Message{
		Kind:  KindSubscriptionExpiry,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"days_left":     strconv.Itoa(daysLeft),
			"reminder_type": string(band),
		},
	}, true
}

// --------------------------------------------------------------------------
// Sweep and trigger messages
// --------------------------------------------------------------------------

// AppointmentReminderMessage builds the one-hour-before reminder.
func AppointmentReminderMessage(ac AppointmentCar) Message {
	return Message{
		Kind:  KindAppointmentReminder,
		Title: "⏰ Reminder: appointment in one hour",
		Body:  fmt.Sprintf("Appointment for %s at %s", ac.Car.Info(), ac.Appointment.StartsAt.Format("15:04")),
		Data: map[string]string{
			"appointment_id": ac.Appointment.ID,
			"car_id":         ac.Car.ID,
		},
	}
}

// AppointmentCancelledMessage builds the cancellation notice.
func AppointmentCancelledMessage(car Car) Message {
	return Message{
		Kind:  KindAppointmentCancelled,
		Title: "❌ Appointment cancelled",
		Body:  fmt.Sprintf("The appointment for %s was cancelled", car.ShortInfo()),
		Data:  map[string]string{"car_id": car.ID},
	}
}

// UnpaidInvoiceMessage builds the daily unpaid-invoice reminder.
func UnpaidInvoiceMessage(car Car) Message {
	return Message{
		Kind:  KindUnpaidInvoice,
		Title: "💰 Reminder: invoice pending",
		Body:  fmt.Sprintf("The invoice for %s is awaiting payment", car.Info()),
		Data: map[string]string{
			"car_id": car.ID,
			"amount": strconv.FormatFloat(car.TotalCost, 'f', 2, 64),
		},
	}
}

// MaintenanceReminderMessage builds the periodic maintenance reminder.
func MaintenanceReminderMessage(car Car) Message {
	return Message{
		Kind:  KindMaintenanceReminder,
		Title: "🔧 Time for periodic maintenance",
		Body:  fmt.Sprintf("%s - no service for over a month. We recommend booking an appointment", car.Info()),
		Data:  map[string]string{"car_id": car.ID},
	}
}

// WelcomeMessage builds the signup greeting.
func WelcomeMessage() Message {
	return Message{
		Kind:  KindWelcome,
		Title: "👋 Welcome to DRVN!",
		Body:  "Thanks for joining. We are here to help you run your garage professionally and efficiently",
		Data:  map[string]string{},
	}
}

// NewCarMessage confirms a car was added to the system.
func NewCarMessage(car Car) Message {
	return Message{
		Kind:  KindNewCar,
		Title: "✅ Car added successfully",
		Body:  fmt.Sprintf("%s was added to your system", car.Info()),
		Data:  map[string]string{"car_id": car.ID},
	}
}

// ManualMessage builds an admin-initiated message. Extra data entries are
// carried through; sent_by records the authenticated caller.
func ManualMessage(title, body, sentBy string, extra map[string]string) Message {
	data := map[string]string{"sent_by": sentBy}
	for k, v := range extra {
		data[k] = v
	}
	return Message{Kind: KindManual, Title: title, Body: body, Data: data}
}
