// Package sweep runs the periodic notification scans: upcoming appointments,
// unpaid invoices, maintenance due, and subscription expiry. Each sweep is a
// read-then-fan-out — query matching entities, then push each one through
// gate and dispatcher with bounded concurrency. One entity's failure never
// aborts the sweep for the others; failures are collected into the Result.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// Kind identifies a scheduled sweep.
type Kind string

const (
	Appointments  Kind = "appointments"
	Invoices      Kind = "invoices"
	Maintenance   Kind = "maintenance"
	Subscriptions Kind = "subscriptions"
)

// appointmentWindow is how far ahead the appointment sweep looks.
const appointmentWindow = time.Hour

// subscriptionHorizon is how far ahead the expiry sweep selects users.
const subscriptionHorizon = 7 * 24 * time.Hour

// Dispatcher sends one composed message to one recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, msg notify.Message) (notify.Outcome, error)
}

// Store is the read/write surface the sweeps need.
type Store interface {
	UpcomingAppointments(ctx context.Context, from, to time.Time) ([]notify.AppointmentCar, error)
	MarkAppointmentNotified(ctx context.Context, id string, at time.Time) error
	UnpaidCars(ctx context.Context, cutoff time.Time) ([]notify.Car, error)
	MaintenanceDueCars(ctx context.Context, cutoff time.Time) ([]notify.Car, error)
	StampMaintenanceReminder(ctx context.Context, carID string, at time.Time) error
	ExpiringUsers(ctx context.Context, cutoff time.Time) ([]notify.User, error)
	StampSubscriptionReminder(ctx context.Context, userID string, band notify.Band, at time.Time) error
}

// Result aggregates one sweep run. Individual entity failures land in Errors
// for logging; the sweep itself always completes.
type Result struct {
	Kind     Kind
	Found    int
	Notified int
	Skipped  int
	Failed   int
	Errors   []string
	Duration time.Duration
}

// Runner executes sweeps against injected collaborators.
type Runner struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
	workers    int
	now        func() time.Time
}

// NewRunner wires a sweep runner. workers bounds per-sweep concurrency.
func NewRunner(store Store, dispatcher Dispatcher, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		workers:    workers,
		now:        time.Now,
	}
}

// Run executes one sweep of the given kind and returns its aggregate result.
func (r *Runner) Run(ctx context.Context, kind Kind) Result {
	start := time.Now()
	var res Result
	switch kind {
	case Appointments:
		res = r.runAppointments(ctx)
	case Invoices:
		res = r.runInvoices(ctx)
	case Maintenance:
		res = r.runMaintenance(ctx)
	case Subscriptions:
		res = r.runSubscriptions(ctx)
	default:
		res = Result{Errors: []string{fmt.Sprintf("unknown sweep kind %q", kind)}}
	}
	res.Kind = kind
	res.Duration = time.Since(start)

	r.logger.Info("sweep finished",
		"kind", kind, "found", res.Found, "notified", res.Notified,
		"skipped", res.Skipped, "failed", res.Failed,
		"duration", res.Duration.Round(time.Millisecond))
	for _, e := range res.Errors {
		r.logger.Warn("sweep entity failure", "kind", kind, "error", e)
	}
	return res
}

// itemOutcome classifies what fanOut's work function did with one entity.
type itemOutcome int

const (
	outcomeNotified itemOutcome = iota
	outcomeSkipped
)

// fanOut runs do for n items with bounded concurrency, isolating failures
// per item and aggregating counts into res.
func (r *Runner) fanOut(n int, res *Result, do func(i int) (itemOutcome, error)) {
	res.Found = n

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := do(i)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				res.Errors = append(res.Errors, err.Error())
			case outcome == outcomeNotified:
				res.Notified++
			default:
				res.Skipped++
			}
		}(i)
	}
	wg.Wait()
}
