// Package listener provides a Postgres LISTEN/NOTIFY consumer for real-time
// notification triggers. It holds a dedicated pgx connection (not from the
// pool) listening on the `garage_events` channel.
//
// SQL triggers installed by the migrations emit an event whenever a car is
// created or updated, a user signs up, or an appointment is deleted. The
// consumer classifies each event and hands the resulting message to the
// dispatcher.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

const (
	channel          = "garage_events"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// welcomeDelay gives the client time to store its FCM token after signup
// before the greeting is dispatched.
var welcomeDelay = 3 * time.Second

// Event is the JSON payload from pg_notify('garage_events', ...).
type Event struct {
	Entity    string `json:"entity"` // "car" | "user" | "appointment"
	Op        string `json:"op"`     // "created" | "updated" | "deleted"
	ID        string `json:"id"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	CarID     string `json:"car_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// Dispatcher sends one composed message to one recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, msg notify.Message) (notify.Outcome, error)
}

// Store resolves event payloads into entity snapshots.
type Store interface {
	GetCar(ctx context.Context, id string) (notify.Car, bool, error)
}

// Start opens a dedicated connection and listens on the garage_events
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, store Store, dispatcher Dispatcher, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, store, dispatcher, logger)
		if ctx.Err() != nil {
			logger.Info("Garage event listener stopped (context cancelled)")
			return
		}

		logger.Error("Garage event listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, store Store, dispatcher Dispatcher, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Garage event listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event Event
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			logger.Warn("Failed to parse garage event",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("Garage event received",
			"entity", event.Entity, "op", event.Op, "id", event.ID)

		// Process asynchronously to avoid blocking the listener
		go HandleEvent(ctx, store, dispatcher, event, logger)
	}
}

// HandleEvent classifies one event and dispatches the resulting message, if
// any. A no-op update (status unchanged) produces nothing.
func HandleEvent(ctx context.Context, store Store, dispatcher Dispatcher, event Event, logger *slog.Logger) {
	switch {
	case event.Entity == "car" && event.Op == "created":
		car, found, err := store.GetCar(ctx, event.ID)
		if err != nil || !found {
			logWarnLookup(logger, event, err)
			return
		}
		dispatch(ctx, dispatcher, car.UserID, notify.NewCarMessage(car), logger, event)

	case event.Entity == "car" && event.Op == "updated":
		car, found, err := store.GetCar(ctx, event.ID)
		if err != nil || !found {
			logWarnLookup(logger, event, err)
			return
		}
		// The payload carries the watched field's before-state; the row is
		// the after-state.
		before := car
		before.Status = notify.CarStatus(event.OldStatus)
		car.Status = notify.CarStatus(event.NewStatus)

		msg, changed := notify.ClassifyStatusChange(before, car)
		if !changed {
			return
		}
		dispatch(ctx, dispatcher, car.UserID, msg, logger, event)

	case event.Entity == "user" && event.Op == "created":
		select {
		case <-time.After(welcomeDelay):
		case <-ctx.Done():
			return
		}
		dispatch(ctx, dispatcher, event.ID, notify.WelcomeMessage(), logger, event)

	case event.Entity == "appointment" && event.Op == "deleted":
		car, found, err := store.GetCar(ctx, event.CarID)
		if err != nil || !found {
			logWarnLookup(logger, event, err)
			return
		}
		recipient := event.UserID
		if recipient == "" {
			recipient = car.UserID
		}
		dispatch(ctx, dispatcher, recipient, notify.AppointmentCancelledMessage(car), logger, event)

	default:
		logger.Warn("Unhandled garage event", "entity", event.Entity, "op", event.Op)
	}
}

func dispatch(ctx context.Context, dispatcher Dispatcher, userID string, msg notify.Message, logger *slog.Logger, event Event) {
	if _, err := dispatcher.Dispatch(ctx, userID, msg); err != nil {
		logger.Warn("Event dispatch failed",
			"entity", event.Entity, "op", event.Op, "id", event.ID, "error", err)
	}
}

func logWarnLookup(logger *slog.Logger, event Event, err error) {
	logger.Warn("Event entity lookup failed",
		"entity", event.Entity, "op", event.Op, "id", event.ID, "error", err)
}
