package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bapmate/internal/cache"
	"bapmate/internal/model"
	"bapmate/internal/repository"
)

// UserService is the identity directory: profiles, credentials and the
// security question used for account recovery.
type UserService struct {
	repo      repository.UserRepository
	nameCache cache.NameCache // optional
}

func NewUserService(repo repository.UserRepository, nameCache cache.NameCache) *UserService {
	return &UserService{
		repo:      repo,
		nameCache: nameCache,
	}
}

// Register creates a new account. The security answer is stored normalised
// and hashed like a password.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, model.ErrEmailRequired
	}
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < model.MinPasswordLength {
		return nil, model.ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Region:       req.Region,
		MBTI:         req.MBTI,
		Bio:          req.Bio,
		Color:        req.Color,
		PasswordHash: string(hashedPassword),
	}

	if q := strings.TrimSpace(req.SecurityQuestion); q != "" {
		answer := normalizeAnswer(req.SecurityAnswer)
		if answer == "" {
			return nil, model.ErrAnswerRequired
		}
		answerHash, err := bcrypt.GenerateFromPassword([]byte(answer), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash security answer: %w", err)
		}
		h := string(answerHash)
		user.SecurityQuestion = &q
		user.SecurityAnswerHash = &h
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user with email and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		// Don't reveal whether the email exists or not
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies the non-nil fields of req.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error) {
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		req.Name = &name
	}

	user, err := s.repo.UpdateProfile(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && s.nameCache != nil {
		if err := s.nameCache.Invalidate(ctx, id); err != nil {
			log.Printf("[UserService] Failed to invalidate cached name: user=%s err=%v", id, err)
		}
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one and
// clears any outstanding temporary password.
func (s *UserService) ChangePassword(ctx context.Context, id string, req model.ChangePasswordRequest) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return model.ErrInvalidCredentials
	}
	if len(req.NewPassword) < model.MinPasswordLength {
		return model.ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.SetPassword(ctx, id, string(hashed), nil)
}

// FindID returns the email of the first account registered under name.
func (s *UserService) FindID(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.ErrNameRequired
	}
	user, err := s.repo.GetFirstByName(ctx, name)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *UserService) SecurityQuestion(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", model.ErrEmailRequired
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.SecurityQuestion == nil || *user.SecurityQuestion == "" {
		return "", model.ErrNoSecurityQuestion
	}
	return *user.SecurityQuestion, nil
}

// VerifySecurityAnswer compares the trimmed, lower-cased answer and returns the
// user id on a match.
func (s *UserService) VerifySecurityAnswer(ctx context.Context, email, answer string) (string, error) {
	email = normalizeEmail(email)
	answer = normalizeAnswer(answer)
	if email == "" {
		return "", model.ErrEmailRequired
	}
	if answer == "" {
		return "", model.ErrAnswerRequired
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.SecurityAnswerHash == nil {
		return "", model.ErrNoSecurityQuestion
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.SecurityAnswerHash), []byte(answer)); err != nil {
		return "", model.ErrSecurityAnswerMismatch
	}
	return user.ID, nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", model.ErrNameRequired
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return "", model.ErrNameTooLong
	}
	return name, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
