package handler

import (
	"context"
	"net/http"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// Devices registers push targets.
type Devices interface {
	RegisterDevice(ctx context.Context, userID string, req model.RegisterTokenRequest) error
	UnregisterDevice(ctx context.Context, userID, token string) error
}

type NotificationHandler struct {
	devices Devices
}

func NewNotificationHandler(devices Devices) *NotificationHandler {
	return &NotificationHandler{devices: devices}
}

// RegisterToken handles POST /devices
// Registers a device token for push notifications.
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req model.RegisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.devices.RegisterDevice(r.Context(), userID, req); err != nil {
		writeServiceError(w, "NotificationHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device token registered",
	})
}

// RemoveToken handles DELETE /devices
// Removes a device token (e.g., on logout).
func (h *NotificationHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req model.UnregisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.devices.UnregisterDevice(r.Context(), userID, req.Token); err != nil {
		writeServiceError(w, "NotificationHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device token removed",
	})
}
