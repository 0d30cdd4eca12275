package sweep

import (
	"context"
	"fmt"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// runSubscriptions reminds users whose subscription ends within a week,
// bucketed into urgency bands. Each band carries its own marker, so a user
// receives one notification per band as days-left decreases.
func (r *Runner) runSubscriptions(ctx context.Context) Result {
	var res Result

	now := r.now()
	users, err := r.store.ExpiringUsers(ctx, now.Add(subscriptionHorizon))
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	r.fanOut(len(users), &res, func(i int) (itemOutcome, error) {
		user := users[i]
		if user.SubscriptionEndAt == nil {
			return outcomeSkipped, nil
		}

		band, daysLeft := notify.ClassifyBand(*user.SubscriptionEndAt, now)
		if !notify.AllowBand(user.SubscriptionReminders, band) {
			return outcomeSkipped, nil
		}

		msg, ok := notify.SubscriptionExpiryMessage(band, daysLeft)
		if !ok {
			return outcomeSkipped, nil
		}

		out, err := r.dispatcher.Dispatch(ctx, user.ID, msg)
		if err != nil {
			return outcomeSkipped, fmt.Errorf("user %s: %w", user.ID, err)
		}

		if err := r.store.StampSubscriptionReminder(ctx, user.ID, band, r.now()); err != nil {
			return outcomeSkipped, fmt.Errorf("user %s: %w", user.ID, err)
		}

		if out.Delivered {
			return outcomeNotified, nil
		}
		return outcomeSkipped, nil
	})
	return res
}
