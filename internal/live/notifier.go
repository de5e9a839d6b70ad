package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// Channel prefixes. Every instance subscribes to both patterns, so a signal
// published by one instance reaches sockets served by any other.
const (
	UserChannelPrefix = "live:user:"
	RoomChannelPrefix = "live:room:"
)

// Topics carried by a Signal.
const (
	TopicRequests = "requests"
	TopicMessages = "messages"
	TopicRead     = "read"
	TopicMembers  = "members"
	TopicLocation = "location"
	TopicMeeting  = "meeting"
)

// Signal tells a live session that one of its views changed and must be
// reloaded. It never carries the data itself.
type Signal struct {
	Topic  string `json:"topic"`
	RoomID string `json:"room_id,omitempty"`
}

// Notifier publishes change signals into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func UserChannel(userID string) string { return UserChannelPrefix + userID }

func RoomChannel(roomID string) string { return RoomChannelPrefix + roomID }

// SignalUser tells every session of a user that topic changed.
func (n *Notifier) SignalUser(ctx context.Context, userID, topic string) error {
	return n.publish(ctx, UserChannel(userID), Signal{Topic: topic})
}

// SignalRoom tells every session watching a room that topic changed.
func (n *Notifier) SignalRoom(ctx context.Context, roomID, topic string) error {
	return n.publish(ctx, RoomChannel(roomID), Signal{Topic: topic, RoomID: roomID})
}

func (n *Notifier) publish(ctx context.Context, channel string, sig Signal) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Start subscribes to every user and room channel and hands each message to
// dispatch until ctx is cancelled. It returns once the subscription is active.
func (n *Notifier) Start(ctx context.Context, dispatch func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, UserChannelPrefix+"*", RoomChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe live channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("[Live] PANIC in subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					dispatch(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	log.Println("[Live] Subscriber started")
	return nil
}
