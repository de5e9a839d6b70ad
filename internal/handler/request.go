package handler

import (
	"context"
	"net/http"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// Requests is the request ledger.
type Requests interface {
	Create(ctx context.Context, postID, fromUserID string) (*model.Request, error)
	Accept(ctx context.Context, requestID, actorID string) (*model.Request, error)
	Reject(ctx context.Context, requestID, actorID string) (*model.Request, error)
	Cancel(ctx context.Context, requestID, actorID string) error
	ListReceived(ctx context.Context, userID string) (*model.RequestListResponse, error)
	ListSent(ctx context.Context, userID string) (*model.RequestListResponse, error)
	StartChat(ctx context.Context, requestID, actorID string) (*model.StartChatResponse, error)
}

type RequestHandler struct {
	requests Requests
}

func NewRequestHandler(requests Requests) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create handles POST /posts/{id}/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.requests.Create(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

// ListReceived handles GET /requests/received
func (h *RequestHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := h.requests.ListReceived(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ListSent handles GET /requests/sent
func (h *RequestHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := h.requests.ListSent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Accept handles POST /requests/{id}/accept
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.requests.Accept)
}

// Reject handles POST /requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.requests.Reject)
}

func (h *RequestHandler) answer(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, requestID, actorID string) (*model.Request, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := fn(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// Cancel handles DELETE /requests/{id}
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.requests.Cancel(r.Context(), id, userID); err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartChat handles POST /requests/{id}/chat
func (h *RequestHandler) StartChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.requests.StartChat(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "RequestHandler", err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, resp)
}
