package model

import (
	"time"
)

// RefreshToken is a stored refresh token. Only the SHA-256 hash of the
// opaque token is persisted; rotation links the old row to its successor.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	ReplacedBy *string    `db:"replaced_by" json:"replaced_by,omitempty"`
	DeviceInfo *string    `db:"device_info" json:"device_info,omitempty"`
	IPAddress  *string    `db:"ip_address" json:"ip_address,omitempty"`
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Refresh token errors
var (
	ErrRefreshTokenNotFound = newError(ErrAuthorization, "refresh token not found")
	ErrRefreshTokenExpired  = newError(ErrAuthorization, "refresh token expired")
	ErrRefreshTokenRevoked  = newError(ErrAuthorization, "refresh token revoked")
	ErrRefreshTokenReused   = newError(ErrAuthorization, "refresh token reuse detected")
)

// Token API error codes used in HTTP responses
const (
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeTokenInvalid   = "TOKEN_INVALID"
	CodeTokenReused    = "TOKEN_REUSED"
	CodeReauthRequired = "REAUTHENTICATION_REQUIRED"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// LoginResponse is returned after a successful login or registration.
type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
