package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"bapmate/internal/model"
)

// Methods taking a *sqlx.Tx run inside a transaction owned by the service.
// Methods taking sqlx.ExtContext accept either the pool or a transaction.

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetFirstByName(ctx context.Context, name string) (*model.User, error)
	GetSummaries(ctx context.Context, ids []string) ([]model.UserSummary, error)
	UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error)
	// SetPassword replaces the password hash and sets or clears the temp password hash.
	SetPassword(ctx context.Context, id, passwordHash string, tempPasswordHash *string) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID string) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type DeviceTokenRepository interface {
	// Upsert registers a token, moving it to userID if another user owned it.
	Upsert(ctx context.Context, userID, token, platform string) error
	GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, userID, token string) error
	// DeleteToken drops a token regardless of owner; used when FCM reports it unregistered.
	DeleteToken(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID string) error
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// GetForUpdate locks the post row until the transaction ends.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Post, error)
	List(ctx context.Context, before *time.Time, limit int) ([]model.Post, error)
	// ListForHotspots returns posts created at or after since plus posts without created_at.
	ListForHotspots(ctx context.Context, since time.Time) ([]model.Post, error)
	// AddParticipant reports whether a new participant row was inserted.
	AddParticipant(ctx context.Context, tx *sqlx.Tx, postID, userID string) (bool, error)
	// IncrementParticipants bumps the count and closes the post when it reaches its max.
	IncrementParticipants(ctx context.Context, tx *sqlx.Tx, postID string) error
	ParticipantIDs(ctx context.Context, postID string) ([]string, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
	IDsByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) ([]string, error)
	DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) (int64, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id string) (*model.Request, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Request, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id, status string) error
	// DeletePending removes the request only while it is still pending.
	DeletePending(ctx context.Context, id string) (bool, error)
	ListReceived(ctx context.Context, userID string) ([]model.Request, error)
	ListSent(ctx context.Context, userID string) ([]model.Request, error)
	DeleteByPost(ctx context.Context, tx *sqlx.Tx, postID string) error
	DeleteBySender(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error)
	DeleteByPosts(ctx context.Context, tx *sqlx.Tx, postIDs []string) (int64, error)
}

type ChatRepository interface {
	GetRoom(ctx context.Context, id string) (*model.ChatRoom, error)
	// LockRoom selects the room FOR UPDATE.
	LockRoom(ctx context.Context, tx *sqlx.Tx, id string) (*model.ChatRoom, error)
	// CreateRoom inserts the room unless one exists for the post; it reports whether it did.
	CreateRoom(ctx context.Context, tx *sqlx.Tx, room *model.ChatRoom) (bool, error)
	RoomIDByPost(ctx context.Context, q sqlx.ExtContext, postID string) (string, error)
	AddParticipant(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	Participants(ctx context.Context, q sqlx.ExtContext, roomID string) ([]model.RoomParticipant, error)
	ParticipantsForRooms(ctx context.Context, roomIDs []string) (map[string][]string, error)
	CountParticipants(ctx context.Context, roomID string) (int, error)
	RoomIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListRooms(ctx context.Context, userID string, since *time.Time) ([]model.RoomSummary, error)

	InsertMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error
	UpdateLastMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error
	IncrementUnread(ctx context.Context, tx *sqlx.Tx, roomID, exceptUserID string) error
	// ResetUnread reports false when userID is not a participant.
	ResetUnread(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error)
	MarkAllRead(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (int64, error)
	Messages(ctx context.Context, roomID string) ([]model.Message, error)

	// DeleteRoom removes the room's messages and then the room; both are idempotent.
	DeleteRoom(ctx context.Context, roomID string) error
	SetMeeting(ctx context.Context, roomID string, point model.MeetingPoint) error
}
