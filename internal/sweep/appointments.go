package sweep

import (
	"context"
	"fmt"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// runAppointments reminds owners about appointments starting within the next
// hour. The once-only notification_sent flag is set after a dispatch that
// did not error, so a transient delivery failure leaves the appointment
// eligible for the next tick.
func (r *Runner) runAppointments(ctx context.Context) Result {
	var res Result

	now := r.now()
	items, err := r.store.UpcomingAppointments(ctx, now, now.Add(appointmentWindow))
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	r.fanOut(len(items), &res, func(i int) (itemOutcome, error) {
		ac := items[i]

		// The query filters on the flag already; the gate re-checks the
		// snapshot it returned.
		if !notify.AllowOnce(ac.Appointment.NotificationSent) {
			return outcomeSkipped, nil
		}

		out, err := r.dispatcher.Dispatch(ctx, ac.RecipientID(), notify.AppointmentReminderMessage(ac))
		if err != nil {
			return outcomeSkipped, fmt.Errorf("appointment %s: %w", ac.Appointment.ID, err)
		}

		if err := r.store.MarkAppointmentNotified(ctx, ac.Appointment.ID, r.now()); err != nil {
			return outcomeSkipped, fmt.Errorf("appointment %s: %w", ac.Appointment.ID, err)
		}

		if out.Delivered {
			return outcomeNotified, nil
		}
		return outcomeSkipped, nil
	})
	return res
}
