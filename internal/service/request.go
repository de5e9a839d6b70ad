package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bapmate/internal/metrics"
	"bapmate/internal/model"
	"bapmate/internal/queue"
	"bapmate/internal/repository"
)

// RoomOpener opens or joins the chat room of a post.
type RoomOpener interface {
	JoinOrCreate(ctx context.Context, postID, userA, userB string) (roomID string, created bool, err error)
}

// RequestService is the request ledger: pending -> {rejected, matched}.
type RequestService struct {
	requestRepo repository.RequestRepository
	postRepo    repository.PostRepository
	rooms       RoomOpener
	publisher   queue.Publisher
	db          *sqlx.DB
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	postRepo repository.PostRepository,
	rooms RoomOpener,
	publisher queue.Publisher,
	db *sqlx.DB,
) *RequestService {
	return &RequestService{
		requestRepo: requestRepo,
		postRepo:    postRepo,
		rooms:       rooms,
		publisher:   publisher,
		db:          db,
	}
}

// Create sends a join request for postID to the post's author.
func (s *RequestService) Create(ctx context.Context, postID, fromUserID string) (*model.Request, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID == fromUserID {
		return nil, model.ErrCannotRequestOwnPost
	}
	if post.Status == model.PostStatusClosed {
		return nil, model.ErrPostClosed
	}
	if post.IsFull() {
		return nil, model.ErrPostFull
	}

	req := &model.Request{
		ID:         uuid.NewString(),
		PostID:     postID,
		FromUserID: fromUserID,
		ToUserID:   post.AuthorID,
		Status:     model.RequestStatusPending,
		PostTitle:  post.Title,
	}
	err = s.requestRepo.Create(ctx, req)
	metrics.RequestTransitions.WithLabelValues("create", outcomeLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.publisher, "RequestService", queue.NewRequestEvent(
		queue.EventRequestCreated, req.ID, postID, post.Title, fromUserID, post.AuthorID))
	return req, nil
}

// Accept matches a request. The capacity check, the participant insert, the
// count bump and the status change commit or roll back together. Accepting a
// matched request again changes nothing.
func (s *RequestService) Accept(ctx context.Context, requestID, actorID string) (*model.Request, error) {
	req, transitioned, err := s.accept(ctx, requestID, actorID)
	metrics.RequestTransitions.WithLabelValues("accept", outcomeLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	if transitioned {
		log.Printf("[RequestService] Matched request=%s post=%s", req.ID, req.PostID)
		publishEvent(ctx, s.publisher, "RequestService", queue.NewRequestEvent(
			queue.EventRequestMatched, req.ID, req.PostID, req.PostTitle, req.FromUserID, req.ToUserID))
	}
	return req, nil
}

func (s *RequestService) accept(ctx context.Context, requestID, actorID string) (*model.Request, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	req, err := s.requestRepo.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, false, err
	}
	if req.ToUserID != actorID {
		return nil, false, model.ErrNotRequestRecipient
	}
	if req.Status == model.RequestStatusRejected {
		return nil, false, model.ErrInvalidTransition
	}
	alreadyMatched := req.Status == model.RequestStatusMatched

	post, err := s.postRepo.GetForUpdate(ctx, tx, req.PostID)
	if err != nil {
		return nil, false, err
	}
	req.PostTitle = post.Title

	// a re-accept never consumes capacity, so a post it filled stays acceptable
	if !alreadyMatched {
		if post.Status == model.PostStatusClosed {
			return nil, false, model.ErrPostClosed
		}
		if post.IsFull() {
			return nil, false, model.ErrPostFull
		}
	}

	inserted, err := s.postRepo.AddParticipant(ctx, tx, post.ID, req.FromUserID)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		if err := s.postRepo.IncrementParticipants(ctx, tx, post.ID); err != nil {
			return nil, false, err
		}
	}

	if !alreadyMatched {
		if err := s.requestRepo.UpdateStatus(ctx, tx, req.ID, model.RequestStatusMatched); err != nil {
			return nil, false, err
		}
		req.Status = model.RequestStatusMatched
	}

	if err := tx.Commit(); err != nil {
		return nil, false, model.Transient(fmt.Errorf("commit transaction: %w", err))
	}
	return req, !alreadyMatched, nil
}

// Reject declines a request. Rejecting twice is a no-op; a matched request
// cannot be rejected.
func (s *RequestService) Reject(ctx context.Context, requestID, actorID string) (*model.Request, error) {
	req, transitioned, err := s.reject(ctx, requestID, actorID)
	metrics.RequestTransitions.WithLabelValues("reject", outcomeLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	if transitioned {
		publishEvent(ctx, s.publisher, "RequestService", queue.NewRequestEvent(
			queue.EventRequestRejected, req.ID, req.PostID, req.PostTitle, req.FromUserID, req.ToUserID))
	}
	return req, nil
}

func (s *RequestService) reject(ctx context.Context, requestID, actorID string) (*model.Request, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	req, err := s.requestRepo.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, false, err
	}
	if req.ToUserID != actorID {
		return nil, false, model.ErrNotRequestRecipient
	}
	if req.Status == model.RequestStatusMatched {
		return nil, false, model.ErrInvalidTransition
	}
	wasPending := req.Status == model.RequestStatusPending

	if err := s.requestRepo.UpdateStatus(ctx, tx, req.ID, model.RequestStatusRejected); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, model.Transient(fmt.Errorf("commit transaction: %w", err))
	}
	req.Status = model.RequestStatusRejected
	return req, wasPending, nil
}

// Cancel withdraws a pending request. Only its sender may cancel it.
func (s *RequestService) Cancel(ctx context.Context, requestID, actorID string) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FromUserID != actorID {
		return model.ErrNotRequestSender
	}
	if req.Status != model.RequestStatusPending {
		return model.ErrInvalidTransition
	}

	deleted, err := s.requestRepo.DeletePending(ctx, requestID)
	if err != nil {
		metrics.RequestTransitions.WithLabelValues("cancel", "error").Inc()
		return err
	}
	if !deleted {
		// answered between the read and the delete
		metrics.RequestTransitions.WithLabelValues("cancel", "invalid").Inc()
		return model.ErrInvalidTransition
	}
	metrics.RequestTransitions.WithLabelValues("cancel", "ok").Inc()

	publishEvent(ctx, s.publisher, "RequestService", queue.NewRequestEvent(
		queue.EventRequestCancelled, req.ID, req.PostID, req.PostTitle, req.FromUserID, req.ToUserID))
	return nil
}

// ListReceived returns every request addressed to userID, newest first.
func (s *RequestService) ListReceived(ctx context.Context, userID string) (*model.RequestListResponse, error) {
	requests, err := s.requestRepo.ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.RequestListResponse{Requests: requests}, nil
}

// ListSent returns every request sent by userID, newest first.
func (s *RequestService) ListSent(ctx context.Context, userID string) (*model.RequestListResponse, error) {
	requests, err := s.requestRepo.ListSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.RequestListResponse{Requests: requests}, nil
}

// StartChat opens the room of a matched request for either of its parties.
func (s *RequestService) StartChat(ctx context.Context, requestID, actorID string) (*model.StartChatResponse, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actorID != req.FromUserID && actorID != req.ToUserID {
		return nil, model.ErrNotRequestParty
	}
	if req.Status != model.RequestStatusMatched {
		return nil, model.ErrRequestNotMatched
	}

	roomID, created, err := s.rooms.JoinOrCreate(ctx, req.PostID, req.ToUserID, req.FromUserID)
	if err != nil {
		return nil, err
	}
	return &model.StartChatResponse{RoomID: roomID, Created: created}, nil
}

// outcomeLabel buckets an error by kind for metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCapacity):
		return "capacity"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrAuthorization):
		return "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
