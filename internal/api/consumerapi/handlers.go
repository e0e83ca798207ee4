package consumerapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/notification"
)

// NotificationReader is the store surface the read API needs.
type NotificationReader interface {
	ListForUser(ctx context.Context, userID string, limit, skip int64) []notification.Notification
	MarkRead(ctx context.Context, eventID, userID string) bool
}

type Handlers struct {
	store NotificationReader
	log   *slog.Logger
}

func NewHandlers(store NotificationReader, log *slog.Logger) *Handlers {
	return &Handlers{store: store, log: log}
}

// GetNotifications lists a user's notifications newest first. The window is
// bounded at the boundary: 1 <= limit <= 50, skip >= 0.
func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit < 1 || limit > 50 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be between 1 and 50"})
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "skip must be >= 0"})
		return
	}

	notifications := h.store.ListForUser(r.Context(), userID, limit, skip)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"count":         len(notifications),
		"notifications": notifications,
	})
}

// MarkAsRead flips the read flag for one notification. The user_id query
// parameter must match the owning user; anything else is a 404.
func (h *Handlers) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id query parameter is required"})
		return
	}

	if !h.store.MarkRead(r.Context(), eventID, userID) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "notification not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "marked as read",
		"event_id": eventID,
	})
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
