package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
	"bapmate/internal/transport/http/middleware"
)

// Recovery is the part of the user service behind the account recovery routes.
type Recovery interface {
	FindID(ctx context.Context, name string) (string, error)
	SecurityQuestion(ctx context.Context, email string) (string, error)
	VerifySecurityAnswer(ctx context.Context, email, answer string) (string, error)
}

// ResetTickets mints and checks password reset tickets.
type ResetTickets interface {
	GenerateResetToken(userID string) (string, error)
	ParseResetToken(raw string) (string, error)
}

// PasswordResetter applies temporary passwords.
type PasswordResetter interface {
	ResetWithTicket(ctx context.Context, uid, tempPassword string) error
	ResetByEmail(ctx context.Context, email string) error
}

type AccountHandler struct {
	recovery  Recovery
	tickets   ResetTickets
	passwords PasswordResetter
}

func NewAccountHandler(recovery Recovery, tickets ResetTickets, passwords PasswordResetter) *AccountHandler {
	return &AccountHandler{recovery: recovery, tickets: tickets, passwords: passwords}
}

// FindID handles POST /account/find-id
func (h *AccountHandler) FindID(w http.ResponseWriter, r *http.Request) {
	var req model.FindIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := h.recovery.FindID(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, "AccountHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.FindIDResponse{Email: email})
}

// SecurityQuestion handles POST /account/security-question
func (h *AccountHandler) SecurityQuestion(w http.ResponseWriter, r *http.Request) {
	var req model.SecurityQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	question, err := h.recovery.SecurityQuestion(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, "AccountHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.SecurityQuestionResponse{Question: question})
}

// VerifyAnswer checks the security answer and hands out a reset ticket.
// POST /account/verify-answer
func (h *AccountHandler) VerifyAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Answer) == "" {
		httputil.WriteBadRequest(w, "email and answer are required")
		return
	}

	uid, err := h.recovery.VerifySecurityAnswer(r.Context(), req.Email, req.Answer)
	if err != nil {
		if errors.Is(err, model.ErrSecurityAnswerMismatch) {
			httputil.WriteUnauthorized(w, "Security answer does not match")
			return
		}
		writeServiceError(w, "AccountHandler", err)
		return
	}

	ticket, err := h.tickets.GenerateResetToken(uid)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to issue reset ticket")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.VerifyAnswerResponse{UID: uid, ResetToken: ticket})
}

// SendTempPassword handles POST /api/sendTempPassword. Its responses are
// {success: true} or a bare {error: "..."}, not the usual envelope.
func (h *AccountHandler) SendTempPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResetError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req model.SendTempPasswordRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResetError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch {
	case req.UID != "" || req.TempPassword != "":
		if req.UID == "" || req.TempPassword == "" {
			writeResetError(w, http.StatusBadRequest, model.ErrTempPasswordFields.Error())
			return
		}
		ticketUID, terr := h.tickets.ParseResetToken(middleware.BearerToken(r))
		if terr != nil || ticketUID != req.UID {
			writeResetError(w, http.StatusUnauthorized, model.ErrInvalidResetToken.Error())
			return
		}
		err = h.passwords.ResetWithTicket(r.Context(), req.UID, req.TempPassword)
	case req.Email != "":
		err = h.passwords.ResetByEmail(r.Context(), req.Email)
	default:
		writeResetError(w, http.StatusBadRequest, model.ErrTempPasswordFields.Error())
		return
	}

	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, model.ErrValidation):
		writeResetError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeResetError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("[AccountHandler] Temp password failed: %v", err)
		writeResetError(w, http.StatusInternalServerError, "failed to reset password")
	}
}

func writeResetError(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, map[string]string{"error": message})
}
