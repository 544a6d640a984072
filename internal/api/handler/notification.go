package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/api/response"
	"github.com/dosepoint/dosepoint/internal/notification"
)

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	notifications *notification.Service
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications handles GET /v1/me/notifications - filtered page, newest first.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	filter := notification.Filter{}
	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		nt := notification.Type(t)
		filter.Type = &nt
	}
	if read := q.Get("isRead"); read != "" {
		b, err := strconv.ParseBool(read)
		if err != nil {
			response.BadRequest(w, r, "isRead must be a boolean", nil)
			return
		}
		filter.IsRead = &b
	}
	if deviceID := q.Get("deviceId"); deviceID != "" {
		filter.DeviceID = &deviceID
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			response.BadRequest(w, r, "offset must be a non-negative integer", nil)
			return
		}
		filter.Offset = n
	}

	result, err := h.notifications.List(r.Context(), ownerID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.PagedNotifications{
		Items: models.NotificationsFromDomain(result.Items),
		Meta: models.OffsetPageMeta{
			Total:  result.Total,
			Limit:  result.Limit,
			Offset: result.Offset,
		},
	})
}

// GetNotification handles GET /v1/me/notifications/{notificationId}.
func (h *NotificationHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	n, err := h.notifications.Get(r.Context(), ownerID, chi.URLParam(r, "notificationId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NotificationFromDomain(n))
}

// MarkRead handles POST /v1/me/notifications/{notificationId}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), ownerID, chi.URLParam(r, "notificationId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NotificationFromDomain(n))
}

// MarkAllRead handles POST /v1/me/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	updated, err := h.notifications.MarkAllRead(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.MarkAllReadResult{Updated: updated})
}

// UnreadCount handles GET /v1/me/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	unread, err := h.notifications.UnreadCount(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.UnreadCount{Unread: unread})
}

// GetSettings handles GET /v1/me/notification-settings.
func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	settings, err := h.notifications.GetSettings(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.SettingsFromDomain(settings))
}

// UpdateSettings handles PATCH /v1/me/notification-settings - partial update.
func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	var input models.NotificationSettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	settings, err := h.notifications.UpdateSettings(r.Context(), ownerID, notification.SettingsUpdate{
		ReminderEnabled:      input.ReminderEnabled,
		ReminderTime:         input.ReminderTime,
		LowBatteryEnabled:    input.LowBatteryEnabled,
		LowSupplementEnabled: input.LowSupplementEnabled,
		AchievementEnabled:   input.AchievementEnabled,
		PushToken:            input.PushToken,
		PushPlatform:         input.PushPlatform,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.SettingsFromDomain(settings))
}
