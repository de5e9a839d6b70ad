package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bapmate/internal/metrics"
	"bapmate/internal/model"
	"bapmate/internal/repository"
)

// NotificationService owns device registration and push delivery.
type NotificationService struct {
	tokenRepo repository.DeviceTokenRepository
	sender    PushSender // nil when push is not configured
}

func NewNotificationService(tokenRepo repository.DeviceTokenRepository, sender PushSender) *NotificationService {
	return &NotificationService{
		tokenRepo: tokenRepo,
		sender:    sender,
	}
}

// RegisterDevice stores a device token. A token already registered to another
// user moves to this one.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req model.RegisterTokenRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return model.ErrTokenRequired
	}
	if !model.ValidPlatform(req.Platform) {
		return model.ErrInvalidPlatform
	}
	if err := s.tokenRepo.Upsert(ctx, userID, token, req.Platform); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.ErrTokenRequired
	}
	return s.tokenRepo.Delete(ctx, userID, token)
}

// PushToUser sends msg to every device of msg.UserID. Tokens FCM reports as
// unregistered are removed.
func (s *NotificationService) PushToUser(ctx context.Context, msg model.PushMessage) error {
	pushType := msg.Data["type"]
	if s.sender == nil {
		metrics.PushResults.WithLabelValues(pushType, "disabled").Inc()
		return nil
	}

	tokens, err := s.tokenRepo.GetByUserID(ctx, msg.UserID)
	if err != nil {
		metrics.PushResults.WithLabelValues(pushType, "error").Inc()
		return fmt.Errorf("get device tokens: %w", err)
	}
	if len(tokens) == 0 {
		metrics.PushResults.WithLabelValues(pushType, "no_device").Inc()
		return nil
	}

	raw := make([]string, len(tokens))
	for i, t := range tokens {
		raw[i] = t.Token
	}

	stale, err := s.sender.SendToTokens(ctx, raw, msg.Title, msg.Body, msg.Data)
	for _, token := range stale {
		if derr := s.tokenRepo.DeleteToken(ctx, token); derr != nil {
			log.Printf("[NotificationService] Failed to drop stale token: user=%s err=%v", msg.UserID, derr)
		}
	}
	if err != nil {
		metrics.PushResults.WithLabelValues(pushType, "error").Inc()
		return fmt.Errorf("push to user %s: %w", msg.UserID, err)
	}

	metrics.PushResults.WithLabelValues(pushType, "ok").Inc()
	return nil
}
