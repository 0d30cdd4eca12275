// Command garagectl is the DRVN notification operations CLI.
//
// Usage:
//
//	garagectl migrate
//	garagectl send --user u123 --title "Hello" --body "Your car is ready"
//	garagectl sweep appointments
//	garagectl sweep subscriptions
//	garagectl stats --user u123
//	garagectl mark-read --id 9e1c...
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/76ahmad/garage-management-system/internal/config"
	"github.com/76ahmad/garage-management-system/internal/db"
	"github.com/76ahmad/garage-management-system/internal/notify"
	"github.com/76ahmad/garage-management-system/internal/sweep"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "garagectl",
		Short: "DRVN notification operations CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(markReadCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.DatabaseURL, logger)
		},
	}
}

// --------------------------------------------------------------------------
// send command
// --------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var userID, title, body string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a push notification to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || title == "" || body == "" {
				return fmt.Errorf("--user, --title, and --body are required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				dispatcher, _, err := buildDispatcher(ctx, cfg, pool)
				if err != nil {
					return err
				}

				msg := notify.ManualMessage(title, body, "garagectl", nil)
				out, err := dispatcher.Dispatch(ctx, userID, msg)
				if err != nil {
					return fmt.Errorf("dispatch: %w", err)
				}
				if !out.Delivered {
					logger.Info("Notification skipped", "user_id", userID, "reason", out.SkipReason)
					return nil
				}
				logger.Info("Notification delivered",
					"user_id", userID,
					"message_id", out.MessageID,
					"notification_id", out.NotificationID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Recipient user ID")
	cmd.Flags().StringVar(&title, "title", "", "Notification title")
	cmd.Flags().StringVar(&body, "body", "", "Notification body")
	return cmd
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:       "sweep {appointments|invoices|maintenance|subscriptions}",
		Short:     "Run a scheduled sweep once",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"appointments", "invoices", "maintenance", "subscriptions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := sweep.Kind(args[0])
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				dispatcher, store, err := buildDispatcher(ctx, cfg, pool)
				if err != nil {
					return err
				}

				runner := sweep.NewRunner(store, dispatcher, workers, logger)
				start := time.Now()
				res := runner.Run(ctx, kind)
				logger.Info("Sweep finished",
					"kind", res.Kind,
					"found", res.Found,
					"notified", res.Notified,
					"skipped", res.Skipped,
					"failed", res.Failed,
					"duration", time.Since(start).Round(time.Millisecond))
				for _, e := range res.Errors {
					logger.Error("sweep error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 8, "Concurrent worker count")
	return cmd
}

// --------------------------------------------------------------------------
// stats command
// --------------------------------------------------------------------------

func statsCmd() *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show notification statistics for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notify.NewPGStore(pool.Pool)
				notifications, err := store.RecentNotifications(ctx, userID, limit)
				if err != nil {
					return fmt.Errorf("fetch notifications: %w", err)
				}
				stats := notify.Summarize(notifications)

				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum notifications to summarize")
	return cmd
}

// --------------------------------------------------------------------------
// mark-read command
// --------------------------------------------------------------------------

func markReadCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "mark-read",
		Short: "Mark a notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			nid, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--id must be a valid UUID: %w", err)
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notify.NewPGStore(pool.Pool)
				userID, found, err := store.MarkNotificationRead(ctx, nid, time.Now())
				if err != nil {
					return fmt.Errorf("mark read: %w", err)
				}
				if !found {
					return fmt.Errorf("notification %s not found", nid)
				}
				logger.Info("Notification marked as read", "id", nid, "user_id", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Notification ID")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// buildDispatcher wires the store and push sender for commands that deliver.
func buildDispatcher(ctx context.Context, cfg *config.Config, pool *db.Pool) (*notify.Dispatcher, *notify.PGStore, error) {
	sender, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize FCM: %w", err)
	}
	if sender == nil {
		logger.Info("Push delivery disabled (no FIREBASE_CREDENTIALS_FILE)")
	}
	store := notify.NewPGStore(pool.Pool)
	return notify.NewDispatcher(store, sender, logger), store, nil
}

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
