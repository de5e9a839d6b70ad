package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bapmate/internal/cache"
	"bapmate/internal/live"
	"bapmate/internal/model"
	"bapmate/internal/queue"
)

func newLocationStore(t *testing.T) (*miniredis.Miniredis, cache.LocationStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, cache.NewLocationStore(client, time.Hour)
}

type chatFixture struct {
	repo    *mockChatRepository
	posts   *mockPostRepository
	pub     *mockPublisher
	signals *mockSignaler
	svc     *ChatService
	mock    sqlmock.Sqlmock
}

func newChatFixture(t *testing.T, locations cache.LocationStore) *chatFixture {
	f := &chatFixture{
		repo:    newMockChatRepository(),
		posts:   &mockPostRepository{},
		pub:     &mockPublisher{},
		signals: &mockSignaler{},
	}
	users := namesRepo(map[string]string{"host": "Hana", "guest": "Gil", "third": "Taeo"})
	db, mock := newMockDB(t)
	f.mock = mock
	f.svc = NewChatService(f.repo, f.posts, users, nil, locations, f.pub, f.signals, db)
	return f
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestChatService_Send(t *testing.T) {
	// ARRANGE
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host", "guest", "third")
	mock := f.mock
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// ACT
	first, err := f.svc.Send(context.Background(), "c1", "host", "  hello  ")
	require.NoError(t, err)
	second, err := f.svc.Send(context.Background(), "c1", "guest", strings.Repeat("가", 100))
	require.NoError(t, err)

	// ASSERT
	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, 2, first.UnreadCount)

	room := f.repo.rooms["c1"]
	assert.Equal(t, map[string]int{"host": 1, "guest": 1, "third": 2}, room.UnreadCount)
	assert.Equal(t, int64(2), room.LastSeq)

	require.Equal(t, []string{queue.EventMessageSent, queue.EventMessageSent}, f.pub.types())
	ev := f.pub.events[0]
	assert.Equal(t, "Hana", ev.SenderName)
	assert.Equal(t, []string{"guest", "third"}, ev.Recipients)
	assert.Equal(t, strings.Repeat("가", 80)+"…", f.pub.events[1].Preview)

	assert.Equal(t, []string{"c1:" + live.TopicMessages, "c1:" + live.TopicMessages}, f.signals.signals)
}

func TestChatService_Send_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		text    string
		wantErr error
		tx      bool
	}{
		{name: "blank", sender: "host", text: "   ", wantErr: model.ErrEmptyMessage},
		{name: "too long", sender: "host", text: strings.Repeat("a", model.MaxMessageLength+1), wantErr: model.ErrMessageTooLong},
		{name: "outsider", sender: "stranger", text: "hi", wantErr: model.ErrNotRoomParticipant, tx: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)
			f.repo.addRoom("c1", "p1", "host", "guest")
			if tt.tx {
				mock := f.mock
				mock.ExpectBegin()
				mock.ExpectRollback()
			}

			_, err := f.svc.Send(context.Background(), "c1", tt.sender, tt.text)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.repo.messages["c1"])
			assert.Empty(t, f.pub.events)
		})
	}
}

// =============================================================================
// READ TESTS
// =============================================================================

func TestChatService_MarkReadAndMessages(t *testing.T) {
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host", "guest")
	mock := f.mock
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "c1", "host", "one")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, "c1", "host", "two")
	require.NoError(t, err)

	before, err := f.svc.Messages(ctx, "c1", "guest", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, before.Messages, 2)
	assert.Equal(t, 1, before.Messages[0].UnreadCount)
	assert.Equal(t, 0, before.ReadLineIndex)

	require.NoError(t, f.svc.MarkRead(ctx, "c1", "guest"))

	after, err := f.svc.Messages(ctx, "c1", "guest", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, after.Messages[1].UnreadCount)
	assert.Equal(t, -1, after.ReadLineIndex)
	assert.Equal(t, 0, f.repo.rooms["c1"].UnreadCount["guest"])
	assert.Contains(t, f.signals.signals, "c1:"+live.TopicRead)
}

func TestChatService_MarkRead_Outsider(t *testing.T) {
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host")
	mock := f.mock
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := f.svc.MarkRead(context.Background(), "c1", "stranger")

	assert.ErrorIs(t, err, model.ErrNotRoomParticipant)
}

func TestChatService_Messages_EnteredAtBoundsReadLine(t *testing.T) {
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host", "guest")
	f.repo.messages["c1"] = []model.Message{
		{ID: "m1", RoomID: "c1", SenderID: "host", Seq: 1, CreatedAt: time.Unix(100, 0), ReadBy: []string{"host"}},
	}

	resp, err := f.svc.Messages(context.Background(), "c1", "guest", time.Unix(50, 0))

	require.NoError(t, err)
	assert.Equal(t, -1, resp.ReadLineIndex)
}

// =============================================================================
// MEMBERSHIP TESTS
// =============================================================================

func TestChatService_LeaveSelf(t *testing.T) {
	mr, locations := newLocationStore(t)
	f := newChatFixture(t, locations)
	f.repo.addRoom("c1", "p1", "host", "guest")
	ctx := context.Background()
	require.NoError(t, locations.Put(ctx, model.LocationSession{RoomID: "c1", UserID: "guest", IsSharing: true}))
	require.NoError(t, locations.Put(ctx, model.LocationSession{RoomID: "c1", UserID: "host", IsSharing: true}))

	// first one out leaves the room behind
	require.NoError(t, f.svc.LeaveSelf(ctx, "c1", "guest"))
	assert.Equal(t, []string{"host"}, f.repo.rooms["c1"].Participants)
	assert.NotContains(t, f.repo.rooms["c1"].UnreadCount, "guest")
	_, found, err := locations.Get(ctx, "c1", "guest")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, f.repo.deleteRoomCalls)

	// leaving twice is an error
	assert.ErrorIs(t, f.svc.LeaveSelf(ctx, "c1", "guest"), model.ErrNotRoomParticipant)

	// last one out deletes the room and its sessions
	require.NoError(t, f.svc.LeaveSelf(ctx, "c1", "host"))
	assert.Equal(t, []string{"c1"}, f.repo.deleteRoomCalls)
	assert.False(t, mr.Exists(cache.LocationKeyPrefix+"c1"))
}

func TestChatService_DeleteRoom(t *testing.T) {
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host", "guest")
	f.repo.addRoom("c2", "p2", "host")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, "c1", "host"), model.ErrRoomNotEmpty)
	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, "c2", "guest"), model.ErrNotRoomParticipant)
	require.NoError(t, f.svc.DeleteRoom(ctx, "c2", "host"))
	assert.Equal(t, []string{"c2"}, f.repo.deleteRoomCalls)
}

func TestChatService_JoinOrCreate(t *testing.T) {
	f := newChatFixture(t, nil)
	f.posts.getByIDFn = func(ctx context.Context, id string) (*model.Post, error) {
		return &model.Post{ID: id, Title: "Dinner"}, nil
	}
	mock := f.mock
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	ctx := context.Background()

	roomID, created, err := f.svc.JoinOrCreate(ctx, "p1", "host", "guest")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Dinner", f.repo.rooms[roomID].Title)
	assert.Equal(t, []string{"host", "guest"}, f.repo.rooms[roomID].Participants)

	again, created, err := f.svc.JoinOrCreate(ctx, "p1", "host", "third")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, roomID, again)
	assert.Equal(t, []string{"host", "guest", "third"}, f.repo.rooms[roomID].Participants)
	assert.Equal(t, []string{roomID + ":" + live.TopicMembers}, f.signals.signals)
}

func TestChatService_JoinOrCreate_LostRace(t *testing.T) {
	f := newChatFixture(t, nil)
	f.posts.getByIDFn = func(ctx context.Context, id string) (*model.Post, error) {
		return &model.Post{ID: id, Title: "Dinner"}, nil
	}
	// another instance inserted the room between lookup and insert
	f.repo.createRoomFn = func(ctx context.Context, room *model.ChatRoom) (bool, error) {
		f.repo.addRoom("winner", room.PostID)
		return false, nil
	}
	mock := f.mock
	mock.ExpectBegin()
	mock.ExpectCommit()

	roomID, created, err := f.svc.JoinOrCreate(context.Background(), "p1", "host", "guest")

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", roomID)
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestChatService_ListRooms(t *testing.T) {
	f := newChatFixture(t, nil)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	f.repo.addRoom("c1", "p1", "host", "guest")
	f.repo.addRoom("c2", "p2", "host", "third")
	f.repo.summary["host"] = []model.RoomSummary{
		{ID: "c1", Title: "Ramen", LastMessage: "see you", LastUpdated: now.Add(-time.Hour)},
		{ID: "c2", Title: "Pizza", LastMessage: "old", LastUpdated: now.AddDate(0, 0, -10)},
	}
	ctx := context.Background()

	all, err := f.svc.ListRooms(ctx, "host", model.RoomFilter{})
	require.NoError(t, err)
	require.Len(t, all.Rooms, 2)
	assert.Equal(t, []model.UserSummary{{ID: "guest", Name: "Gil"}}, all.Rooms[0].Participants)

	recent, err := f.svc.ListRooms(ctx, "host", model.RoomFilter{HideOlderThanDays: 7})
	require.NoError(t, err)
	require.Len(t, recent.Rooms, 1)
	assert.Equal(t, "c1", recent.Rooms[0].ID)

	byName, err := f.svc.ListRooms(ctx, "host", model.RoomFilter{Query: "TAE"})
	require.NoError(t, err)
	require.Len(t, byName.Rooms, 1)
	assert.Equal(t, "c2", byName.Rooms[0].ID)

	byMessage, err := f.svc.ListRooms(ctx, "host", model.RoomFilter{Query: "see"})
	require.NoError(t, err)
	require.Len(t, byMessage.Rooms, 1)
	assert.Equal(t, "c1", byMessage.Rooms[0].ID)
}

// =============================================================================
// MEETING TESTS
// =============================================================================

func TestChatService_Meeting(t *testing.T) {
	f := newChatFixture(t, nil)
	f.repo.addRoom("c1", "p1", "host", "guest")
	ctx := context.Background()

	point, err := f.svc.GetMeeting(ctx, "c1", "guest")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMeetingPoint, point)

	_, err = f.svc.SetMeeting(ctx, "c1", "guest", model.MeetingPoint{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, model.ErrInvalidMeeting)

	set, err := f.svc.SetMeeting(ctx, "c1", "guest", model.MeetingPoint{Lat: 37.5, Lng: 127.0, Name: " 강남역 "})
	require.NoError(t, err)
	assert.Equal(t, "강남역", set.Name)

	point, err = f.svc.GetMeeting(ctx, "c1", "host")
	require.NoError(t, err)
	assert.Equal(t, set, point)
	assert.Equal(t, []string{"c1:" + live.TopicMeeting}, f.signals.signals)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	assert.Equal(t, strings.Repeat("x", 80), preview(strings.Repeat("x", 80)))
	assert.Equal(t, strings.Repeat("x", 80)+"…", preview(strings.Repeat("x", 81)))
}
