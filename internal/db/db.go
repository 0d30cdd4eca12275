// Package db provides a pgxpool-based connection pool with prepared statement
// registration, health checking, and embedded schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/76ahmad/garage-management-system/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the point reads and marker writes the
// dispatch path issues on every notification. Prepared statements eliminate
// parse overhead on the hot path; sweep range queries stay inline in the
// store since they run a handful of times per day.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Recipient resolution
		"get_user": `SELECT id, COALESCE(email, ''), COALESCE(full_name, ''),
			COALESCE(fcm_token, ''), fcm_token_invalidated_at,
			notifications_disabled, subscription_end_at, subscription_reminders
			FROM users WHERE id = $1`,

		// Car lookups for message composition
		"get_car": `SELECT id, user_id, manufacturer, model, license_plate,
			status, payment_status, total_cost, last_maintenance_at,
			last_maintenance_reminder_at, updated_at
			FROM cars WHERE id = $1`,

		// Token invalidation after a permanent delivery failure
		"invalidate_token": `UPDATE users
			SET fcm_token = NULL, fcm_token_invalidated_at = $2, updated_at = $2
			WHERE id = $1`,

		// Deduplication markers
		"mark_appointment_notified": `UPDATE appointments
			SET notification_sent = TRUE, notification_sent_at = $2
			WHERE id = $1`,
		"stamp_maintenance_reminder": `UPDATE cars
			SET last_maintenance_reminder_at = $2 WHERE id = $1`,
		"stamp_subscription_reminder": `UPDATE users
			SET subscription_reminders = subscription_reminders || jsonb_build_object($2::text, $3::timestamptz),
			    updated_at = $3
			WHERE id = $1`,

		// Notification log
		"mark_notification_read": `UPDATE notifications
			SET read = TRUE, read_at = $2 WHERE id = $1
			RETURNING user_id`,
		"recent_notifications": `SELECT id, user_id, kind, title, body, data,
			sent_at, read, read_at
			FROM notifications WHERE user_id = $1
			ORDER BY sent_at DESC LIMIT $2`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
