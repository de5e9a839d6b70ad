package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
	"bapmate/internal/transport/http/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeServiceError maps a service error to the error envelope by kind.
// Anything without a kind is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, component string, err error) {
	var kindErr *model.KindError
	message := "Internal server error"
	if errors.As(err, &kindErr) {
		message = kindErr.Message
	}

	switch {
	case errors.Is(err, model.ErrDuplicateRequest), errors.Is(err, model.ErrEmailExists):
		httputil.WriteConflict(w, message)
	case errors.Is(err, model.ErrCapacity):
		httputil.WriteCapacityExceeded(w, message)
	case errors.Is(err, model.ErrReauthenticationRequired):
		httputil.WriteUnauthorizedWithCode(w, model.CodeReauthRequired, message)
	case errors.Is(err, model.ErrTransientBackend):
		log.Printf("[%s] Backend failure: %v", component, err)
		httputil.WriteInternalError(w, "Temporary backend failure, please retry")
	case errors.Is(err, model.ErrValidation):
		httputil.WriteBadRequest(w, message)
	case errors.Is(err, model.ErrAuthorization):
		httputil.WriteForbidden(w, message)
	case errors.Is(err, model.ErrNotFound):
		httputil.WriteNotFound(w, message)
	default:
		log.Printf("[%s] Unhandled error: %v", component, err)
		httputil.WriteInternalError(w, message)
	}
}

// decodeJSON reads a bounded JSON body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// pathID returns the {id} URL parameter in canonical form, or writes a 400
// when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid id")
		return "", false
	}
	return id.String(), true
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
	}
	return userID, ok
}
