package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/gadget-cartel/internal/domain/notification"
)

type notificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationListResponse struct {
	Results     []notificationResponse `json:"results"`
	UnreadCount int                    `json:"unread_count"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, unread, err := h.notifications.List(r.Context(), id.UserID, unreadOnly)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := notificationListResponse{
		Results:     make([]notificationResponse, 0, len(items)),
		UnreadCount: unread,
	}
	for _, n := range items {
		resp.Results = append(resp.Results, toNotificationResponse(n))
	}
	respond(w, http.StatusOK, resp)
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func (h *Handler) readNotification(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := h.notifications.MarkAllRead(r.Context(), id.UserID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := h.notifications.Remove(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
