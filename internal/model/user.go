package model

import (
	"time"
)

// User represents a member profile together with its credentials.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	Name               string    `db:"name" json:"name"`
	Region             *string   `db:"region" json:"region"`
	MBTI               *string   `db:"mbti" json:"mbti"`
	Bio                *string   `db:"bio" json:"bio"`
	Color              *string   `db:"color" json:"color"`
	SecurityQuestion   *string   `db:"security_question" json:"-"`
	SecurityAnswerHash *string   `db:"security_answer_hash" json:"-"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	TempPasswordHash   *string   `db:"temp_password_hash" json:"-"` // set by a password reset, cleared on change
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// UserSummary is the public slice of a profile shown next to requests and rooms.
type UserSummary struct {
	ID    string  `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Color *string `db:"color" json:"color,omitempty"`
}

// RegisterRequest represents the data needed to sign up
type RegisterRequest struct {
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Name             string  `json:"name"`
	Region           *string `json:"region"`
	MBTI             *string `json:"mbti"`
	Bio              *string `json:"bio"`
	Color            *string `json:"color"`
	SecurityQuestion string  `json:"security_question"`
	SecurityAnswer   string  `json:"security_answer"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Region *string `json:"region"`
	MBTI   *string `json:"mbti"`
	Bio    *string `json:"bio"`
	Color  *string `json:"color"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type FindIDRequest struct {
	Name string `json:"name"`
}

type FindIDResponse struct {
	Email string `json:"email"`
}

type SecurityQuestionRequest struct {
	Email string `json:"email"`
}

type SecurityQuestionResponse struct {
	Question string `json:"question"`
}

type VerifyAnswerRequest struct {
	Email  string `json:"email"`
	Answer string `json:"answer"`
}

// VerifyAnswerResponse hands back a short-lived reset ticket for POST /api/sendTempPassword.
type VerifyAnswerResponse struct {
	UID        string `json:"uid"`
	ResetToken string `json:"reset_token"`
}

// SendTempPasswordRequest accepts both body variants of the reset endpoint:
// {uid, tempPassword} or {email}.
type SendTempPasswordRequest struct {
	UID          string `json:"uid"`
	TempPassword string `json:"tempPassword"`
	Email        string `json:"email"`
}

// Credential constraints
const (
	MinPasswordLength   = 6
	MaxNameLength       = 40
	TempPasswordLength  = 10
	TempPasswordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = newError(ErrNotFound, "user not found")

	// ErrEmailExists is returned when signing up with a taken email
	ErrEmailExists = newError(ErrValidation, "email already exists")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = newError(ErrAuthorization, "invalid credentials")

	ErrEmailRequired          = newError(ErrValidation, "email is required")
	ErrNameRequired           = newError(ErrValidation, "name is required")
	ErrNameTooLong            = newError(ErrValidation, "name too long")
	ErrPasswordTooShort       = newError(ErrValidation, "password too short")
	ErrAnswerRequired         = newError(ErrValidation, "security answer is required")
	ErrSecurityAnswerMismatch = newError(ErrAuthorization, "security answer does not match")
	ErrNoSecurityQuestion     = newError(ErrNotFound, "no security question registered")
	ErrInvalidResetToken      = newError(ErrAuthorization, "invalid reset token")
	ErrTempPasswordFields     = newError(ErrValidation, "uid and tempPassword, or email, are required")
)

// ErrRecentLoginRequired is returned by sensitive operations when the access
// token was issued outside the recent-login window.
var ErrRecentLoginRequired = newError(ErrReauthenticationRequired, "please log in again to continue")

// PublicProfile is what other members see on GET /users/{id}.
type PublicProfile struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Region *string `json:"region"`
	MBTI   *string `json:"mbti"`
	Bio    *string `json:"bio"`
	Color  *string `json:"color"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Name: u.Name, Region: u.Region, MBTI: u.MBTI, Bio: u.Bio, Color: u.Color}
}
