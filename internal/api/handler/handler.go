// Package handler provides HTTP handlers for the caller-facing notification
// operations: manual send, stats, and mark-as-read. Validation happens
// before any side effect; auth is enforced by middleware upstream.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/76ahmad/garage-management-system/internal/api/respond"
	"github.com/76ahmad/garage-management-system/internal/cache"
	"github.com/76ahmad/garage-management-system/internal/config"
	"github.com/76ahmad/garage-management-system/internal/notify"
)

// statsLimit caps how much of the log the stats endpoint examines.
const statsLimit = 50

// Dispatcher sends one composed message to one recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, msg notify.Message) (notify.Outcome, error)
}

// Store is the notification-log surface the handlers read and write.
type Store interface {
	RecentNotifications(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) (string, bool, error)
}

// HealthChecker verifies the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	dispatcher Dispatcher
	store      Store
	health     HealthChecker
	cache      *cache.Cache
	cfg        *config.Config
}

// New creates a Handler with shared dependencies.
func New(dispatcher Dispatcher, store Store, health HealthChecker, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		store:      store,
		health:     health,
		cache:      c,
		cfg:        cfg,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "DRVN Notification API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.health.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
