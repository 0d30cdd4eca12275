package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatusChange_NoOpUpdate(t *testing.T) {
	car := Car{ID: "c1", Status: StatusInProgress}

	_, ok := ClassifyStatusChange(car, car)
	assert.False(t, ok, "identical statuses must not produce a message")
}

func TestClassifyStatusChange_KnownStatus(t *testing.T) {
	before := Car{ID: "c1", Manufacturer: "Toyota", Model: "Corolla", LicensePlate: "12-345-67", Status: StatusWaiting}
	after := before
	after.Status = StatusDone

	msg, ok := ClassifyStatusChange(before, after)
	require.True(t, ok)

	assert.Equal(t, KindCarStatusChange, msg.Kind)
	assert.Equal(t, "✅ Service completed", msg.Title)
	assert.Equal(t, "Toyota Corolla (12-345-67) - Your car is ready for pickup!", msg.Body)
	assert.Equal(t, "waiting", msg.Data["old_status"])
	assert.Equal(t, "done", msg.Data["new_status"])
	assert.Equal(t, "c1", msg.Data["car_id"])
}

func TestClassifyStatusChange_UnknownStatusFallsBack(t *testing.T) {
	before := Car{ID: "c1", Manufacturer: "Mazda", Model: "3", LicensePlate: "11-222-33", Status: StatusWaiting}
	after := before
	after.Status = CarStatus("repainting")

	msg, ok := ClassifyStatusChange(before, after)
	require.True(t, ok)

	assert.Equal(t, "📝 Car status updated", msg.Title)
	assert.Contains(t, msg.Body, "Status changed to: repainting")
}

func TestClassifyBand(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		endAt    time.Time
		want     Band
		wantDays int
	}{
		{"already expired", now.Add(-48 * time.Hour), BandExpired, -2},
		{"expires this instant", now, BandExpired, 0},
		{"under a day", now.Add(20 * time.Hour), Band1Day, 1},
		{"two and a half days rounds up", now.Add(60 * time.Hour), Band3Days, 3},
		{"five days", now.Add(5 * 24 * time.Hour), Band7Days, 5},
		{"exactly a week", now.Add(7 * 24 * time.Hour), Band7Days, 7},
		{"beyond the horizon", now.Add(8 * 24 * time.Hour), BandNone, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, daysLeft := ClassifyBand(tt.endAt, now)
			assert.Equal(t, tt.want, band)
			assert.Equal(t, tt.wantDays, daysLeft)
		})
	}
}

func TestSubscriptionExpiryMessage(t *testing.T) {
	msg, ok := SubscriptionExpiryMessage(Band3Days, 2)
	require.True(t, ok)
	assert.Equal(t, KindSubscriptionExpiry, msg.Kind)
	assert.Equal(t, "Your subscription ends in 2 days. Renew it to continue", msg.Body)
	assert.Equal(t, "2", msg.Data["days_left"])
	assert.Equal(t, "3_days", msg.Data["reminder_type"])

	_, ok = SubscriptionExpiryMessage(BandNone, 12)
	assert.False(t, ok)
}

func TestAppointmentReminderMessage(t *testing.T) {
	ac := AppointmentCar{
		Appointment: Appointment{
			ID:       "a1",
			StartsAt: time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC),
		},
		Car: Car{ID: "c1", Manufacturer: "Honda", Model: "Civic", LicensePlate: "98-765-43"},
	}

	msg := AppointmentReminderMessage(ac)
	assert.Equal(t, KindAppointmentReminder, msg.Kind)
	assert.Equal(t, "Appointment for Honda Civic (98-765-43) at 14:30", msg.Body)
	assert.Equal(t, "a1", msg.Data["appointment_id"])
	assert.Equal(t, "c1", msg.Data["car_id"])
}

func TestUnpaidInvoiceMessage_FormatsAmount(t *testing.T) {
	car := Car{ID: "c1", Manufacturer: "Kia", Model: "Rio", LicensePlate: "55-555-55", TotalCost: 1249.5}

	msg := UnpaidInvoiceMessage(car)
	assert.Equal(t, KindUnpaidInvoice, msg.Kind)
	assert.Equal(t, "1249.50", msg.Data["amount"])
}

func TestManualMessage_CarriesCallerAndExtras(t *testing.T) {
	msg := ManualMessage("Title", "Body", "admin-panel", map[string]string{"order_id": "42"})
	assert.Equal(t, KindManual, msg.Kind)
	assert.Equal(t, "admin-panel", msg.Data["sent_by"])
	assert.Equal(t, "42", msg.Data["order_id"])
}

func TestAppointmentCancelledMessage_OmitsPlate(t *testing.T) {
	car := Car{ID: "c1", Manufacturer: "Ford", Model: "Focus", LicensePlate: "77-777-77"}

	msg := AppointmentCancelledMessage(car)
	assert.Equal(t, "The appointment for Ford Focus was cancelled", msg.Body)
}
