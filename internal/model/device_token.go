package model

import (
	"time"
)

// DeviceToken represents a user's registered device for push notifications.
// A user may have several devices.
type DeviceToken struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"-"`
	Token     string    `db:"token" json:"-"`           // FCM token, hidden from JSON
	Platform  string    `db:"platform" json:"platform"` // "ios", "android", "web"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// UnregisterTokenRequest is the request body for DELETE /devices.
type UnregisterTokenRequest struct {
	Token string `json:"token"`
}

// Platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// ValidPlatform reports whether p is a known device platform.
func ValidPlatform(p string) bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

var (
	ErrTokenRequired   = newError(ErrValidation, "token is required")
	ErrInvalidPlatform = newError(ErrValidation, "platform must be ios, android or web")
)
