package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bapmate/internal/model"
	"bapmate/internal/queue"
	"bapmate/internal/repository"
)

// PasswordService issues temporary passwords for account recovery.
type PasswordService struct {
	userRepo  repository.UserRepository
	publisher queue.Publisher
}

func NewPasswordService(userRepo repository.UserRepository, publisher queue.Publisher) *PasswordService {
	return &PasswordService{userRepo: userRepo, publisher: publisher}
}

// GenerateTempPassword returns a random password drawn from TempPasswordCharset.
func GenerateTempPassword() (string, error) {
	charset := model.TempPasswordCharset
	limit := big.NewInt(int64(len(charset)))

	var b strings.Builder
	b.Grow(model.TempPasswordLength)
	for i := 0; i < model.TempPasswordLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate temp password: %w", err)
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String(), nil
}

// ResetWithTicket applies a client-chosen temporary password. The caller has
// already verified the reset ticket for uid.
func (s *PasswordService) ResetWithTicket(ctx context.Context, uid, tempPassword string) error {
	if strings.TrimSpace(uid) == "" || tempPassword == "" {
		return model.ErrTempPasswordFields
	}
	return s.apply(ctx, uid, tempPassword)
}

// ResetByEmail generates a temporary password and delivers it to the user's
// devices through the events stream.
func (s *PasswordService) ResetByEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return model.ErrTempPasswordFields
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	tempPassword, err := GenerateTempPassword()
	if err != nil {
		return err
	}
	if err := s.apply(ctx, user.ID, tempPassword); err != nil {
		return err
	}

	if _, err := s.publisher.Publish(ctx, queue.StreamEvents, queue.NewTempPasswordIssuedEvent(user.ID, tempPassword)); err != nil {
		return fmt.Errorf("deliver temp password: %w", err)
	}
	log.Printf("[PasswordService] Temp password issued: user=%s", user.ID)
	return nil
}

func (s *PasswordService) apply(ctx context.Context, uid, tempPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	h := string(hashed)
	return s.userRepo.SetPassword(ctx, uid, h, &h)
}
