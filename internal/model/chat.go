package model

import (
	"time"
)

// ChatRoom is a conversation attached to a post. UnreadCount has exactly one
// key per current participant.
type ChatRoom struct {
	ID           string         `db:"id" json:"id"`
	PostID       string         `db:"post_id" json:"post_id"`
	Title        string         `db:"title" json:"title"`
	LastMessage  string         `db:"last_message" json:"last_message"`
	LastSenderID *string        `db:"last_sender_id" json:"last_sender_id,omitempty"`
	LastUpdated  time.Time      `db:"last_updated" json:"last_updated"`
	LastSeq      int64          `db:"last_seq" json:"-"`
	MeetingLat   *float64       `db:"meeting_lat" json:"-"`
	MeetingLng   *float64       `db:"meeting_lng" json:"-"`
	MeetingName  *string        `db:"meeting_name" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	Participants []string       `db:"-" json:"participants"` // join order
	UnreadCount  map[string]int `db:"-" json:"unread_count"`
}

// RoomParticipant is one row of chat_room_participants.
type RoomParticipant struct {
	RoomID      string    `db:"room_id" json:"room_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	UnreadCount int       `db:"unread_count" json:"unread_count"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

// Meeting returns the stored meeting point, or the default when none is set.
func (r *ChatRoom) Meeting() MeetingPoint {
	if r.MeetingLat == nil || r.MeetingLng == nil {
		return DefaultMeetingPoint
	}
	m := MeetingPoint{Lat: *r.MeetingLat, Lng: *r.MeetingLng}
	if r.MeetingName != nil {
		m.Name = *r.MeetingName
	}
	return m
}

// Message is one chat message. Seq is strictly increasing within a room.
type Message struct {
	ID          string    `db:"id" json:"id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	Text        string    `db:"text" json:"text"`
	Seq         int64     `db:"seq" json:"seq"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ReadBy      []string  `db:"-" json:"read_by"`
	UnreadCount int       `db:"-" json:"unread_count"`
}

// ReadByUser reports whether userID is in the message's read set.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// RoomSummary is one entry of a user's room list.
type RoomSummary struct {
	ID           string        `db:"id" json:"id"`
	PostID       string        `db:"post_id" json:"post_id"`
	Title        string        `db:"title" json:"title"`
	LastMessage  string        `db:"last_message" json:"last_message"`
	LastUpdated  time.Time     `db:"last_updated" json:"last_updated"`
	UnreadCount  int           `db:"unread_count" json:"unread_count"` // the caller's own counter
	Participants []UserSummary `db:"-" json:"participants"`
}

// RoomFilter narrows a room list. Zero values disable each filter.
type RoomFilter struct {
	HideOlderThanDays int
	Query             string
}

type RoomListResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

type MessageListResponse struct {
	Messages      []Message `json:"messages"`
	ReadLineIndex int       `json:"read_line_index"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

// MeetingPoint is where room members are heading.
type MeetingPoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// DefaultMeetingPoint is used by rooms that never set one.
var DefaultMeetingPoint = MeetingPoint{Lat: 37.5665, Lng: 126.9780, Name: "을지로"}

// ReadLineIndex returns the index of the first message created before
// enteredAt that userID has not read, or -1.
func ReadLineIndex(messages []Message, userID string, enteredAt time.Time) int {
	for i := range messages {
		if messages[i].CreatedAt.Before(enteredAt) && !messages[i].ReadByUser(userID) {
			return i
		}
	}
	return -1
}

const (
	MaxMessageLength = 2000
	MaxMeetingName   = 100
)

// Chat errors
var (
	ErrRoomNotFound       = newError(ErrNotFound, "room not found")
	ErrNotRoomParticipant = newError(ErrAuthorization, "not a participant of this room")
	ErrEmptyMessage       = newError(ErrValidation, "message text is required")
	ErrMessageTooLong     = newError(ErrValidation, "message too long")
	ErrRoomNotEmpty       = newError(ErrValidation, "room still has other participants")
	ErrInvalidMeeting     = newError(ErrValidation, "invalid meeting point")
)
