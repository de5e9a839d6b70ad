package model

import "time"

// Request statuses. rejected and matched are terminal.
const (
	RequestStatusPending  = "pending"
	RequestStatusRejected = "rejected"
	RequestStatusMatched  = "matched"
)

// Request is a directed proposal from one user to join another user's post.
type Request struct {
	ID         string    `db:"id" json:"id"`
	PostID     string    `db:"post_id" json:"post_id"`
	FromUserID string    `db:"from_user_id" json:"from_user_id"`
	ToUserID   string    `db:"to_user_id" json:"to_user_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// Joined fields for list views
	PostTitle string `db:"post_title" json:"post_title,omitempty"`
	FromName  string `db:"from_name" json:"from_name,omitempty"`
	ToName    string `db:"to_name" json:"to_name,omitempty"`
}

type RequestListResponse struct {
	Requests []Request `json:"requests"`
}

// StartChatResponse is returned when a matched request opens its room.
type StartChatResponse struct {
	RoomID  string `json:"room_id"`
	Created bool   `json:"created"`
}

// Request errors
var (
	ErrRequestNotFound     = newError(ErrNotFound, "request not found")
	ErrNotRequestRecipient = newError(ErrAuthorization, "only the recipient can answer this request")
	ErrNotRequestSender    = newError(ErrAuthorization, "only the sender can cancel this request")
	ErrNotRequestParty     = newError(ErrAuthorization, "not a party of this request")
	ErrInvalidTransition   = newError(ErrValidation, "request cannot move to that status")
	ErrDuplicateRequest    = newError(ErrValidation, "a request for this post is already pending or matched")
	ErrRequestNotMatched   = newError(ErrValidation, "request is not matched")
)
