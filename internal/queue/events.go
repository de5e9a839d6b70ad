package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the events stream
const (
	EventRequestCreated     = "request_created"
	EventRequestMatched     = "request_matched"
	EventRequestRejected    = "request_rejected"
	EventRequestCancelled   = "request_cancelled"
	EventMessageSent        = "message_sent"
	EventTempPasswordIssued = "temp_password_issued"
)

// Stream names
const (
	StreamEvents = "stream:events"
)

// Consumer group name for notification workers
const (
	ConsumerGroupNotify = "notify_workers"
)

// Event is one committed domain change. Fields are populated per type.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix seconds

	// Request events
	RequestID  string `json:"request_id,omitempty"`
	PostID     string `json:"post_id,omitempty"`
	PostTitle  string `json:"post_title,omitempty"`
	FromUserID string `json:"from_user_id,omitempty"`
	ToUserID   string `json:"to_user_id,omitempty"`

	// MessageSent
	RoomID     string   `json:"room_id,omitempty"`
	MessageID  string   `json:"message_id,omitempty"`
	SenderID   string   `json:"sender_id,omitempty"`
	SenderName string   `json:"sender_name,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	Preview    string   `json:"preview,omitempty"`

	// TempPasswordIssued
	UserID       string `json:"user_id,omitempty"`
	TempPassword string `json:"temp_password,omitempty"`
}

// NewRequestEvent builds one of the four request lifecycle events.
func NewRequestEvent(eventType, requestID, postID, postTitle, fromUserID, toUserID string) Event {
	return Event{
		Type:       eventType,
		Timestamp:  time.Now().Unix(),
		RequestID:  requestID,
		PostID:     postID,
		PostTitle:  postTitle,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
	}
}

// NewMessageSentEvent is consumed by the push worker; recipients exclude the sender.
func NewMessageSentEvent(roomID, messageID, senderID, senderName, preview string, recipients []string) Event {
	return Event{
		Type:       EventMessageSent,
		Timestamp:  time.Now().Unix(),
		RoomID:     roomID,
		MessageID:  messageID,
		SenderID:   senderID,
		SenderName: senderName,
		Recipients: recipients,
		Preview:    preview,
	}
}

func NewTempPasswordIssuedEvent(userID, tempPassword string) Event {
	return Event{
		Type:         EventTempPasswordIssued,
		Timestamp:    time.Now().Unix(),
		UserID:       userID,
		TempPassword: tempPassword,
	}
}

// ToMap serializes the event into the single "data" field stored by XADD.
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseEvent parses an Event from Redis stream message values.
func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
