package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/76ahmad/garage-management-system/internal/api/auth"
	"github.com/76ahmad/garage-management-system/internal/api/respond"
	"github.com/76ahmad/garage-management-system/internal/cache"
	"github.com/76ahmad/garage-management-system/internal/notify"
)

// sendRequest is the manual-send body from the admin panel.
type sendRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// SendNotification handles POST /api/v1/notifications/send. Validation runs
// before any side effect; the authenticated caller is recorded as sent_by.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Malformed JSON body")
		return
	}
	if req.UserID == "" || req.Title == "" || req.Body == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
			"Missing required fields: user_id, title, body")
		return
	}

	msg := notify.ManualMessage(req.Title, req.Body, auth.CallerFrom(r.Context()), req.Data)
	out, err := h.dispatcher.Dispatch(r.Context(), req.UserID, msg)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to send notification", err.Error())
		return
	}
	if !out.Delivered {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to send notification", out.SkipReason)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"message_id":      out.MessageID,
		"notification_id": out.NotificationID.String(),
	})
}

// notificationJSON is the wire shape of a log entry.
type notificationJSON struct {
	ID     string            `json:"id"`
	UserID string            `json:"user_id"`
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt string            `json:"sent_at"`
	Read   bool              `json:"read"`
	ReadAt string            `json:"read_at,omitempty"`
}

// GetStats handles GET /api/v1/notifications/stats. Returns the latest log
// entries for a user plus aggregate counts, served through the TTL cache.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "user_id query parameter is required")
		return
	}

	cacheKey := fmt.Sprintf("stats:%s", userID)
	ttl := cache.TTLStats

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	notifications, err := h.store.RecentNotifications(r.Context(), userID, statsLimit)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to load notifications", err.Error())
		return
	}

	items := make([]notificationJSON, 0, len(notifications))
	for _, n := range notifications {
		item := notificationJSON{
			ID:     n.ID.String(),
			UserID: n.UserID,
			Type:   string(n.Kind),
			Title:  n.Title,
			Body:   n.Body,
			Data:   n.Data,
			SentAt: n.SentAt.UTC().Format(time.RFC3339),
			Read:   n.Read,
		}
		if n.ReadAt != nil {
			item.ReadAt = n.ReadAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"notifications": items,
		"stats":         notify.Summarize(notifications),
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode stats")
		return
	}

	etag := h.cache.Set(cacheKey, payload, ttl)
	respond.WriteJSON(w, payload, etag, ttl, false)
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Missing or invalid notification id")
		return
	}

	userID, found, err := h.store.MarkNotificationRead(r.Context(), id, time.Now().UTC())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to mark notification as read", err.Error())
		return
	}
	if !found {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
		return
	}

	// Stats for this user changed; drop the cached copy.
	h.cache.Invalidate(fmt.Sprintf("stats:%s", userID))

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"success": true})
}
