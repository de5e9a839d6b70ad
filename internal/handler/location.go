package handler

import (
	"context"
	"net/http"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// Locations runs live location sharing inside rooms.
type Locations interface {
	Start(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error)
	Update(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error)
	Stop(ctx context.Context, roomID, userID string) (*model.LocationSession, error)
	Members(ctx context.Context, roomID, userID string) (*model.LocationMembersResponse, error)
}

type LocationHandler struct {
	locations Locations
}

func NewLocationHandler(locations Locations) *LocationHandler {
	return &LocationHandler{locations: locations}
}

// Members handles GET /rooms/{id}/location
func (h *LocationHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.locations.Members(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "LocationHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Start handles POST /rooms/{id}/location/start
func (h *LocationHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.locations.Start)
}

// Update handles PUT /rooms/{id}/location
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.locations.Update)
}

func (h *LocationHandler) write(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.LocationUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := fn(r.Context(), id, userID, req)
	if err != nil {
		writeServiceError(w, "LocationHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// Stop handles POST /rooms/{id}/location/stop
func (h *LocationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	session, err := h.locations.Stop(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "LocationHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}
