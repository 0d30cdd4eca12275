package sweep

import (
	"context"
	"fmt"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// runMaintenance reminds owners of cars with no service for a month,
// suppressing repeats inside the seven-day reminder window. The window
// marker is stamped after a dispatch that did not error, so running the
// sweep twice within the window notifies at most once per car.
func (r *Runner) runMaintenance(ctx context.Context) Result {
	var res Result

	now := r.now()
	cars, err := r.store.MaintenanceDueCars(ctx, now.Add(-notify.MaintenanceDueAge))
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	r.fanOut(len(cars), &res, func(i int) (itemOutcome, error) {
		car := cars[i]

		if !notify.AllowWindow(car.LastMaintenanceReminderAt, now, notify.MaintenanceReminderWindow) {
			return outcomeSkipped, nil
		}

		out, err := r.dispatcher.Dispatch(ctx, car.UserID, notify.MaintenanceReminderMessage(car))
		if err != nil {
			return outcomeSkipped, fmt.Errorf("car %s: %w", car.ID, err)
		}

		if err := r.store.StampMaintenanceReminder(ctx, car.ID, r.now()); err != nil {
			return outcomeSkipped, fmt.Errorf("car %s: %w", car.ID, err)
		}

		if out.Delivered {
			return outcomeNotified, nil
		}
		return outcomeSkipped, nil
	})
	return res
}
