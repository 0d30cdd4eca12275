package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrTokenNotRegistered marks a delivery failure whose token is permanently
// invalid. The dispatcher reacts by clearing the stored token; every other
// delivery error propagates to the caller untouched.
var ErrTokenNotRegistered = errors.New("fcm token not registered")

// Sender is the external push-delivery collaborator.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) (string, error)
}

// Store is the persistence surface the dispatcher needs.
type Store interface {
	UserGetter
	InvalidateToken(ctx context.Context, userID string, at time.Time) error
	AppendNotification(ctx context.Context, n Notification) error
}

// Outcome reports what a dispatch attempt did. A skipped dispatch is a
// normal result, not an error.
type Outcome struct {
	Delivered      bool
	Skipped        bool
	SkipReason     string
	MessageID      string
	NotificationID uuid.UUID
}

// Dispatcher composes push messages, hands them to the delivery collaborator,
// and appends successful sends to the notification log.
type Dispatcher struct {
	store  Store
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher wires a dispatcher. All collaborators are injected; the
// dispatcher owns no connections of its own.
func NewDispatcher(store Store, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch resolves the recipient, sends the message, and records the
// outcome. Ineligible recipients and permanently invalid tokens are handled
// outcomes: they return a skipped Outcome and a nil error. The log entry is
// appended only after confirmed delivery, never before.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, msg Message) (Outcome, error) {
	recipient, err := Resolve(ctx, d.store, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve recipient %s: %w", userID, err)
	}
	if recipient.Eligibility != Eligible {
		d.logger.Info("dispatch skipped",
			"user_id", userID, "kind", msg.Kind, "reason", recipient.Eligibility.String())
		return Outcome{Skipped: true, SkipReason: recipient.Eligibility.String()}, nil
	}

	now := d.now().UTC()
	composed := d.compose(msg, now)

	messageID, err := d.sender.Send(ctx, recipient.Token, composed)
	if err != nil {
		if errors.Is(err, ErrTokenNotRegistered) {
			// Clear the dead token so future dispatches short-circuit at
			// resolution. Handled outcome, no log entry.
			if clearErr := d.store.InvalidateToken(ctx, userID, now); clearErr != nil {
				return Outcome{}, fmt.Errorf("invalidate token for %s: %w", userID, clearErr)
			}
			d.logger.Warn("fcm token invalidated", "user_id", userID, "kind", msg.Kind)
			return Outcome{Skipped: true, SkipReason: "token_invalidated"}, nil
		}
		return Outcome{}, fmt.Errorf("send to %s: %w", userID, err)
	}

	entry := Notification{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   composed.Kind,
		Title:  composed.Title,
		Body:   composed.Body,
		Data:   composed.Data,
		SentAt: now,
	}
	if err := d.store.AppendNotification(ctx, entry); err != nil {
		return Outcome{Delivered: true, MessageID: messageID},
			fmt.Errorf("append notification log for %s: %w", userID, err)
	}

	d.logger.Info("notification sent",
		"user_id", userID, "kind", entry.Kind, "message_id", messageID)
	return Outcome{Delivered: true, MessageID: messageID, NotificationID: entry.ID}, nil
}

// compose fills the structured metadata bag every push carries.
func (d *Dispatcher) compose(msg Message, now time.Time) Message {
	if msg.Kind == "" {
		msg.Kind = KindGeneral
	}

	data := map[string]string{
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
		"url":          "/",
		"timestamp":    now.Format(time.RFC3339),
		"type":         string(msg.Kind),
	}
	for k, v := range msg.Data {
		data[k] = v
	}
	msg.Data = data
	return msg
}
