package sweep

import (
	"context"
	"fmt"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// runInvoices reminds owners about invoices unpaid for three days or more.
// The cutoff is inclusive: an invoice exactly three days old is selected.
func (r *Runner) runInvoices(ctx context.Context) Result {
	var res Result

	cutoff := r.now().Add(-notify.UnpaidInvoiceAge)
	cars, err := r.store.UnpaidCars(ctx, cutoff)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	r.fanOut(len(cars), &res, func(i int) (itemOutcome, error) {
		car := cars[i]
		out, err := r.dispatcher.Dispatch(ctx, car.UserID, notify.UnpaidInvoiceMessage(car))
		if err != nil {
			return outcomeSkipped, fmt.Errorf("car %s: %w", car.ID, err)
		}
		if out.Delivered {
			return outcomeNotified, nil
		}
		return outcomeSkipped, nil
	})
	return res
}
