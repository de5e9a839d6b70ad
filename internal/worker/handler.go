package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"bapmate/internal/metrics"
	"bapmate/internal/model"
	"bapmate/internal/queue"
)

// Pusher delivers a push notification to every device of a user.
type Pusher interface {
	PushToUser(ctx context.Context, msg model.PushMessage) error
}

// UserSignaler tells a user's live sessions that one of their views changed.
type UserSignaler interface {
	SignalUser(ctx context.Context, userID, topic string) error
}

// Live topics signalled to users
const (
	TopicRequests = "requests"
)

// Handler turns committed events into push notifications and live signals.
type Handler struct {
	pusher   Pusher       // nil when push is disabled
	signaler UserSignaler // nil when live views are disabled
}

func NewHandler(pusher Pusher, signaler UserSignaler) *Handler {
	return &Handler{pusher: pusher, signaler: signaler}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventRequestCreated:
		err = h.handleRequestCreated(ctx, event)
	case queue.EventRequestMatched:
		err = h.handleRequestMatched(ctx, event)
	case queue.EventRequestRejected, queue.EventRequestCancelled:
		err = h.signalRequestParties(ctx, event)
	case queue.EventMessageSent:
		err = h.handleMessageSent(ctx, event)
	case queue.EventTempPasswordIssued:
		err = h.handleTempPassword(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		err = fmt.Errorf("unknown event type: %s", event.Type)
	}

	metrics.ObserveEvent(event.Type, startTime, err)
	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}
	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

func (h *Handler) handleRequestCreated(ctx context.Context, event queue.Event) error {
	h.push(ctx, model.PushMessage{
		UserID: event.ToUserID,
		Title:  "새 신청이 도착했어요",
		Body:   event.PostTitle,
		Data: map[string]string{
			"type":       model.NotificationTypeNewRequest,
			"request_id": event.RequestID,
			"post_id":    event.PostID,
		},
	})
	return h.signalRequestParties(ctx, event)
}

func (h *Handler) handleRequestMatched(ctx context.Context, event queue.Event) error {
	h.push(ctx, model.PushMessage{
		UserID: event.FromUserID,
		Title:  "매칭되었어요",
		Body:   event.PostTitle,
		Data: map[string]string{
			"type":       model.NotificationTypeMatched,
			"request_id": event.RequestID,
			"post_id":    event.PostID,
		},
	})
	return h.signalRequestParties(ctx, event)
}

// signalRequestParties makes both sides' watchers reload. A failure here is
// returned so the event shows up as failed, but pushes already went out.
func (h *Handler) signalRequestParties(ctx context.Context, event queue.Event) error {
	if h.signaler == nil {
		return nil
	}
	var firstErr error
	for _, userID := range []string{event.FromUserID, event.ToUserID} {
		if userID == "" {
			continue
		}
		if err := h.signaler.SignalUser(ctx, userID, TopicRequests); err != nil {
			log.Printf("[Worker] SignalUser failed: user=%s err=%v", userID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("signal user %s: %w", userID, err)
			}
		}
	}
	return firstErr
}

func (h *Handler) handleMessageSent(ctx context.Context, event queue.Event) error {
	for _, userID := range event.Recipients {
		h.push(ctx, model.PushMessage{
			UserID: userID,
			Title:  event.SenderName,
			Body:   event.Preview,
			Data: map[string]string{
				"type":       model.NotificationTypeMessage,
				"room_id":    event.RoomID,
				"message_id": event.MessageID,
			},
		})
	}
	return nil
}

func (h *Handler) handleTempPassword(ctx context.Context, event queue.Event) error {
	if h.pusher == nil {
		return fmt.Errorf("temp password for user=%s not delivered: push disabled", event.UserID)
	}
	return h.pusher.PushToUser(ctx, model.PushMessage{
		UserID: event.UserID,
		Title:  "임시 비밀번호",
		Body:   "임시 비밀번호: " + event.TempPassword,
		Data:   map[string]string{"type": model.NotificationTypeTempPassword},
	})
}

// push is best-effort: failures are logged and counted, never retried.
func (h *Handler) push(ctx context.Context, msg model.PushMessage) {
	if h.pusher == nil || msg.UserID == "" {
		return
	}
	if err := h.pusher.PushToUser(ctx, msg); err != nil {
		log.Printf("[Worker] Push failed: user=%s type=%s err=%v", msg.UserID, msg.Data["type"], err)
	}
}
