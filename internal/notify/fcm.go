package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender delivers push notifications via Firebase Cloud Messaging.
// Nil-safe: when not configured, Send logs the attempt and reports success
// so the rest of the pipeline can run in development without credentials.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender creates a sender from a service account credentials file.
// Returns nil (disabled mode) when credentialsFile is empty.
func NewFCMSender(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	if credentialsFile == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	return &FCMSender{client: client, logger: logger}, nil
}

// Send delivers one message to one device token and returns the FCM message
// ID. A dead token surfaces as ErrTokenNotRegistered so the dispatcher can
// clear it.
func (s *FCMSender) Send(ctx context.Context, token string, msg Message) (string, error) {
	if s == nil {
		slog.Info("FCM disabled, send skipped", "title", msg.Title)
		return "", nil
	}

	requireInteraction := true
	out := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "default",
				Sound:     "default",
				Icon:      "notification_icon",
				Color:     "#f59e0b",
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Icon:               "/icon-192.png",
				Badge:              "/icon-72.png",
				Tag:                string(msg.Kind),
				RequireInteraction: requireInteraction,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: "/"},
		},
	}

	id, err := s.client.Send(ctx, out)
	if err != nil {
		if messaging.IsUnregistered(err) {
			return "", fmt.Errorf("%w: %v", ErrTokenNotRegistered, err)
		}
		return "", fmt.Errorf("fcm send: %w", err)
	}
	return id, nil
}
