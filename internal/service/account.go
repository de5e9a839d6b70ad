package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"bapmate/internal/cache"
	"bapmate/internal/model"
	"bapmate/internal/repository"
)

// deleteChunkSize bounds the post ids passed to one request delete.
const deleteChunkSize = 10

// DefaultRecentLoginWindow is how old an access token may be for account deletion.
const DefaultRecentLoginWindow = 5 * time.Minute

// RoomLeaver removes a user from chat rooms.
type RoomLeaver interface {
	RoomIDsForUser(ctx context.Context, userID string) ([]string, error)
	LeaveSelf(ctx context.Context, roomID, userID string) error
}

// AccountService deletes an account and everything it owns.
type AccountService struct {
	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	requestRepo      repository.RequestRepository
	refreshTokenRepo repository.RefreshTokenRepository
	deviceTokenRepo  repository.DeviceTokenRepository
	rooms            RoomLeaver
	nameCache        cache.NameCache // optional
	db               *sqlx.DB
	window           time.Duration
	now              func() time.Time
}

func NewAccountService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	requestRepo repository.RequestRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	deviceTokenRepo repository.DeviceTokenRepository,
	rooms RoomLeaver,
	nameCache cache.NameCache,
	db *sqlx.DB,
	window time.Duration,
) *AccountService {
	if window <= 0 {
		window = DefaultRecentLoginWindow
	}
	return &AccountService{
		userRepo:         userRepo,
		postRepo:         postRepo,
		requestRepo:      requestRepo,
		refreshTokenRepo: refreshTokenRepo,
		deviceTokenRepo:  deviceTokenRepo,
		rooms:            rooms,
		nameCache:        nameCache,
		db:               db,
		window:           window,
		now:              time.Now,
	}
}

// DeleteAccount removes the user, their requests, posts and tokens in one
// transaction, then leaves every chat room. tokenIssuedAt is the iat of the
// caller's access token; an old token is refused before anything changes.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string, tokenIssuedAt time.Time) error {
	if tokenIssuedAt.IsZero() || s.now().Sub(tokenIssuedAt) > s.window {
		return model.ErrRecentLoginRequired
	}

	roomIDs, err := s.rooms.RoomIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.deleteOwnedRows(ctx, userID); err != nil {
		return err
	}
	log.Printf("[AccountService] Deleted account rows: user=%s", userID)

	for _, roomID := range roomIDs {
		if err := s.rooms.LeaveSelf(ctx, roomID, userID); err != nil && !errors.Is(err, model.ErrNotRoomParticipant) {
			log.Printf("[AccountService] Failed to leave room=%s user=%s err=%v", roomID, userID, err)
		}
	}

	if s.nameCache != nil {
		if err := s.nameCache.Invalidate(ctx, userID); err != nil {
			log.Printf("[AccountService] Failed to invalidate cached name: user=%s err=%v", userID, err)
		}
	}
	return nil
}

func (s *AccountService) deleteOwnedRows(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := s.requestRepo.DeleteBySender(ctx, tx, userID); err != nil {
		return err
	}

	postIDs, err := s.postRepo.IDsByAuthor(ctx, tx, userID)
	if err != nil {
		return err
	}
	for start := 0; start < len(postIDs); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(postIDs))
		if _, err := s.requestRepo.DeleteByPosts(ctx, tx, postIDs[start:end]); err != nil {
			return err
		}
	}
	if _, err := s.postRepo.DeleteByAuthor(ctx, tx, userID); err != nil {
		return err
	}

	if err := s.deviceTokenRepo.DeleteAllForUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := s.refreshTokenRepo.DeleteAllForUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, tx, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return model.Transient(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
