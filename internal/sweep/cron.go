package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/76ahmad/garage-management-system/internal/config"
)

// Schedule starts the cron engine driving all four sweeps on the configured
// wall-clock schedules, evaluated in the configured timezone. The engine
// stops when ctx is cancelled.
func Schedule(ctx context.Context, runner *Runner, cfg *config.Config, logger *slog.Logger) (*cron.Cron, error) {
	engine := cron.New(cron.WithLocation(cfg.Location))

	specs := map[Kind]string{
		Appointments:  cfg.SweepAppointments,
		Invoices:      cfg.SweepInvoices,
		Maintenance:   cfg.SweepMaintenance,
		Subscriptions: cfg.SweepSubscriptions,
	}

	for kind, spec := range specs {
		kind := kind
		if _, err := engine.AddFunc(spec, func() {
			runner.Run(ctx, kind)
		}); err != nil {
			return nil, err
		}
		logger.Info("sweep scheduled", "kind", kind, "cron", spec, "tz", cfg.Timezone)
	}

	engine.Start()
	go func() {
		<-ctx.Done()
		stopCtx := engine.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(10 * time.Second):
			logger.Warn("cron stop timed out")
		}
	}()
	return engine, nil
}
