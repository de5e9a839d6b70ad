package handler

import (
	"context"
	"net/http"
	"time"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
	"bapmate/internal/transport/http/middleware"
)

// Profiles is the part of the user service behind /me and /users.
type Profiles interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error)
	ChangePassword(ctx context.Context, id string, req model.ChangePasswordRequest) error
}

// AccountDeleter removes an account and everything it owns.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID string, tokenIssuedAt time.Time) error
}

type UserHandler struct {
	profiles Profiles
	accounts AccountDeleter
}

func NewUserHandler(profiles Profiles, accounts AccountDeleter) *UserHandler {
	return &UserHandler{profiles: profiles, accounts: accounts}
}

// Me returns the currently authenticated user
// GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "UserHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe edits the caller's profile
// PATCH /me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req model.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.profiles.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, "UserHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the password and clears any temporary one
// POST /me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req model.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.profiles.ChangePassword(r.Context(), userID, req); err != nil {
		writeServiceError(w, "UserHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// DeleteMe deletes the caller's account. The access token must be recent.
// DELETE /me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	issuedAt := middleware.GetIssuedAtFromContext(r.Context())
	if err := h.accounts.DeleteAccount(r.Context(), userID, issuedAt); err != nil {
		writeServiceError(w, "UserHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile returns another member's public profile
// GET /users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.profiles.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, "UserHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.Public())
}
