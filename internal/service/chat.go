package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bapmate/internal/cache"
	"bapmate/internal/geo"
	"bapmate/internal/live"
	"bapmate/internal/metrics"
	"bapmate/internal/model"
	"bapmate/internal/queue"
	"bapmate/internal/repository"
)

const previewLength = 80

// ChatService is the chat room store.
type ChatService struct {
	chatRepo  repository.ChatRepository
	postRepo  repository.PostRepository
	names     nameResolver
	locations cache.LocationStore // optional
	publisher queue.Publisher
	signaler  RoomSignaler // optional
	db        *sqlx.DB
	now       func() time.Time
}

func NewChatService(
	chatRepo repository.ChatRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	nameCache cache.NameCache,
	locations cache.LocationStore,
	publisher queue.Publisher,
	signaler RoomSignaler,
	db *sqlx.DB,
) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		postRepo:  postRepo,
		names:     nameResolver{userRepo: userRepo, cache: nameCache},
		locations: locations,
		publisher: publisher,
		signaler:  signaler,
		db:        db,
		now:       time.Now,
	}
}

// JoinOrCreate returns the room of postID with both users in it, creating the
// room on first use.
func (s *ChatService) JoinOrCreate(ctx context.Context, postID, userA, userB string) (string, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	created := false
	roomID, err := s.chatRepo.RoomIDByPost(ctx, tx, postID)
	if errors.Is(err, model.ErrRoomNotFound) {
		post, perr := s.postRepo.GetByID(ctx, postID)
		if perr != nil {
			return "", false, perr
		}
		room := &model.ChatRoom{ID: uuid.NewString(), PostID: postID, Title: post.Title}
		created, err = s.chatRepo.CreateRoom(ctx, tx, room)
		if err != nil {
			return "", false, err
		}
		roomID = room.ID
		if !created {
			// lost the race to another creator; join theirs
			roomID, err = s.chatRepo.RoomIDByPost(ctx, tx, postID)
		}
	}
	if err != nil {
		return "", false, err
	}

	joined := false
	for _, userID := range []string{userA, userB} {
		added, err := s.chatRepo.AddParticipant(ctx, tx, roomID, userID)
		if err != nil {
			return "", false, err
		}
		joined = joined || added
	}

	if err := tx.Commit(); err != nil {
		return "", false, model.Transient(fmt.Errorf("commit transaction: %w", err))
	}

	if created {
		log.Printf("[ChatService] Created room=%s post=%s", roomID, postID)
	}
	if joined && !created {
		signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicMembers)
	}
	return roomID, created, nil
}

// GetRoom returns a room to one of its participants.
func (s *ChatService) GetRoom(ctx context.Context, roomID, userID string) (*model.ChatRoom, error) {
	room, err := s.chatRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(room.Participants, userID) {
		return nil, model.ErrNotRoomParticipant
	}
	return room, nil
}

// Send appends a message. seq comes from the locked room row so it is
// strictly increasing per room.
func (s *ChatService) Send(ctx context.Context, roomID, senderID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		return nil, model.ErrMessageTooLong
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	room, err := s.chatRepo.LockRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(room.Participants, senderID) {
		return nil, model.ErrNotRoomParticipant
	}

	msg := &model.Message{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		SenderID: senderID,
		Text:     text,
		Seq:      room.LastSeq + 1,
	}
	if err := s.chatRepo.InsertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	if err := s.chatRepo.UpdateLastMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	if err := s.chatRepo.IncrementUnread(ctx, tx, roomID, senderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, model.Transient(fmt.Errorf("commit transaction: %w", err))
	}
	metrics.MessagesSent.Inc()

	recipients := make([]string, 0, len(room.Participants))
	for _, id := range room.Participants {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	msg.UnreadCount = len(recipients)

	signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicMessages)

	senderName, err := s.names.name(ctx, senderID)
	if err != nil {
		log.Printf("[ChatService] Failed to resolve sender name: user=%s err=%v", senderID, err)
	}
	publishEvent(ctx, s.publisher, "ChatService", queue.NewMessageSentEvent(
		roomID, msg.ID, senderID, senderName, preview(text), recipients))
	return msg, nil
}

// MarkRead zeroes the caller's unread counter and adds the caller to read_by
// of every message that existed when the statement ran.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Transient(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	ok, err := s.chatRepo.ResetUnread(ctx, tx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotRoomParticipant
	}
	marked, err := s.chatRepo.MarkAllRead(ctx, tx, roomID, userID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.Transient(fmt.Errorf("commit transaction: %w", err))
	}

	if marked > 0 {
		signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicRead)
	}
	return nil
}

// LeaveSelf removes the caller from the room. The last one out deletes the
// room and its messages.
func (s *ChatService) LeaveSelf(ctx context.Context, roomID, userID string) error {
	removed, err := s.chatRepo.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return model.ErrNotRoomParticipant
	}
	s.dropLocation(ctx, roomID, userID)

	remaining, err := s.chatRepo.CountParticipants(ctx, roomID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicMembers)
		return nil
	}
	return s.collect(ctx, roomID)
}

// DeleteRoom removes a room outright. Only a participant may delete it, and
// only once everyone else has left.
func (s *ChatService) DeleteRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.GetRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if len(room.Participants) > 1 {
		return model.ErrRoomNotEmpty
	}
	return s.collect(ctx, roomID)
}

func (s *ChatService) collect(ctx context.Context, roomID string) error {
	if err := s.chatRepo.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	metrics.RoomsCollected.Inc()
	log.Printf("[ChatService] Deleted room=%s", roomID)

	if s.locations != nil {
		if err := s.locations.Clear(ctx, roomID); err != nil {
			log.Printf("[ChatService] Failed to clear locations: room=%s err=%v", roomID, err)
		}
	}
	signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicMembers)
	return nil
}

func (s *ChatService) dropLocation(ctx context.Context, roomID, userID string) {
	if s.locations == nil {
		return
	}
	if err := s.locations.Remove(ctx, roomID, userID); err != nil {
		log.Printf("[ChatService] Failed to drop location: room=%s user=%s err=%v", roomID, userID, err)
	}
}

// ListRooms returns the caller's rooms, most recent first, with the other
// participants' names. The query matches title, names and last message.
func (s *ChatService) ListRooms(ctx context.Context, userID string, filter model.RoomFilter) (*model.RoomListResponse, error) {
	var since *time.Time
	if filter.HideOlderThanDays > 0 {
		t := s.now().AddDate(0, 0, -filter.HideOlderThanDays)
		since = &t
	}

	rooms, err := s.chatRepo.ListRooms(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	roomIDs := make([]string, len(rooms))
	for i, r := range rooms {
		roomIDs[i] = r.ID
	}
	members, err := s.chatRepo.ParticipantsForRooms(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	var others []string
	for _, ids := range members {
		for _, id := range ids {
			if id != userID {
				others = append(others, id)
			}
		}
	}
	names, err := s.names.names(ctx, others)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]model.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.Participants = []model.UserSummary{}
		for _, id := range members[room.ID] {
			if id != userID {
				room.Participants = append(room.Participants, model.UserSummary{ID: id, Name: names[id]})
			}
		}
		if query != "" && !roomMatches(room, query) {
			continue
		}
		result = append(result, room)
	}
	return &model.RoomListResponse{Rooms: result}, nil
}

func roomMatches(room model.RoomSummary, query string) bool {
	if strings.Contains(strings.ToLower(room.Title), query) ||
		strings.Contains(strings.ToLower(room.LastMessage), query) {
		return true
	}
	for _, p := range room.Participants {
		if strings.Contains(strings.ToLower(p.Name), query) {
			return true
		}
	}
	return false
}

// Messages returns the room history with per-message unread counts and the
// index of the first unread message older than enteredAt.
func (s *ChatService) Messages(ctx context.Context, roomID, userID string, enteredAt time.Time) (*model.MessageListResponse, error) {
	room, err := s.GetRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.chatRepo.Messages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}

	for i := range messages {
		unread := 0
		for _, p := range room.Participants {
			if !messages[i].ReadByUser(p) {
				unread++
			}
		}
		messages[i].UnreadCount = unread
	}

	return &model.MessageListResponse{
		Messages:      messages,
		ReadLineIndex: model.ReadLineIndex(messages, userID, enteredAt),
	}, nil
}

func (s *ChatService) GetMeeting(ctx context.Context, roomID, userID string) (model.MeetingPoint, error) {
	room, err := s.GetRoom(ctx, roomID, userID)
	if err != nil {
		return model.MeetingPoint{}, err
	}
	return room.Meeting(), nil
}

func (s *ChatService) SetMeeting(ctx context.Context, roomID, userID string, point model.MeetingPoint) (model.MeetingPoint, error) {
	point.Name = strings.TrimSpace(point.Name)
	if !geo.ValidCoordinates(point.Lat, point.Lng) || utf8.RuneCountInString(point.Name) > model.MaxMeetingName {
		return model.MeetingPoint{}, model.ErrInvalidMeeting
	}
	if _, err := s.GetRoom(ctx, roomID, userID); err != nil {
		return model.MeetingPoint{}, err
	}
	if err := s.chatRepo.SetMeeting(ctx, roomID, point); err != nil {
		return model.MeetingPoint{}, err
	}
	signalRoom(ctx, s.signaler, "ChatService", roomID, live.TopicMeeting)
	return point, nil
}

// RoomIDsForUser lists the rooms userID currently belongs to.
func (s *ChatService) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.chatRepo.RoomIDsForUser(ctx, userID)
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "…"
}
