package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"bapmate/internal/model"
	"bapmate/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock implements the full repository interface. Tests set only the
// func fields they care about; unset fields return zero values or the
// repository's not-found error.

type mockUserRepository struct {
	createFn         func(ctx context.Context, user *model.User) error
	getByIDFn        func(ctx context.Context, id string) (*model.User, error)
	getByEmailFn     func(ctx context.Context, email string) (*model.User, error)
	getFirstByNameFn func(ctx context.Context, name string) (*model.User, error)
	getSummariesFn   func(ctx context.Context, ids []string) ([]model.UserSummary, error)
	updateProfileFn  func(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error)
	setPasswordFn    func(ctx context.Context, id, hash string, tempHash *string) error
	deleteFn         func(ctx context.Context, tx *sqlx.Tx, id string) error

	createCalls      []*model.User
	setPasswordCalls []setPasswordCall
	summaryCalls     [][]string
}

type setPasswordCall struct {
	ID       string
	Hash     string
	TempHash *string
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetFirstByName(ctx context.Context, name string) (*model.User, error) {
	if m.getFirstByNameFn != nil {
		return m.getFirstByNameFn(ctx, name)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	m.summaryCalls = append(m.summaryCalls, ids)
	if m.getSummariesFn != nil {
		return m.getSummariesFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, req)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserRepository) SetPassword(ctx context.Context, id, hash string, tempHash *string) error {
	m.setPasswordCalls = append(m.setPasswordCalls, setPasswordCall{ID: id, Hash: hash, TempHash: tempHash})
	if m.setPasswordFn != nil {
		return m.setPasswordFn(ctx, id, hash, tempHash)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tx, id)
	}
	return nil
}

// namesRepo returns a user repository that resolves summaries from a fixed map.
func namesRepo(names map[string]string) *mockUserRepository {
	return &mockUserRepository{
		getSummariesFn: func(ctx context.Context, ids []string) ([]model.UserSummary, error) {
			var out []model.UserSummary
			for _, id := range ids {
				if n, ok := names[id]; ok {
					out = append(out, model.UserSummary{ID: id, Name: n})
				}
			}
			return out, nil
		},
	}
}

type mockRefreshTokenRepository struct {
	createFn           func(ctx context.Context, token *model.RefreshToken) error
	findByTokenHashFn  func(ctx context.Context, hash string) (*model.RefreshToken, error)
	revokeFn           func(ctx context.Context, id string, replacedBy *string) error
	revokeAllForUserFn func(ctx context.Context, userID string) error

	revokeAllCalls []string
	deleteAllCalls []string
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepository) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	if m.findByTokenHashFn != nil {
		return m.findByTokenHashFn(ctx, hash)
	}
	return nil, model.ErrRefreshTokenNotFound
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, id string, replacedBy *string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id, replacedBy)
	}
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	m.revokeAllCalls = append(m.revokeAllCalls, userID)
	if m.revokeAllForUserFn != nil {
		return m.revokeAllForUserFn(ctx, userID)
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID string) error {
	m.deleteAllCalls = append(m.deleteAllCalls, userID)
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type mockDeviceTokenRepository struct {
	getByUserIDFn func(ctx context.Context, userID string) ([]model.DeviceToken, error)

	upsertCalls      []string
	deleteCalls      []string
	deleteTokenCalls []string
	deleteAllCalls   []string
}

func (m *mockDeviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	m.upsertCalls = append(m.upsertCalls, userID+"|"+token+"|"+platform)
	return nil
}

func (m *mockDeviceTokenRepository) GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	if m.getByUserIDFn != nil {
		return m.getByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeviceTokenRepository) Delete(ctx context.Context, userID, token string) error {
	m.deleteCalls = append(m.deleteCalls, userID+"|"+token)
	return nil
}

func (m *mockDeviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	m.deleteTokenCalls = append(m.deleteTokenCalls, token)
	return nil
}

func (m *mockDeviceTokenRepository) DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID string) error {
	m.deleteAllCalls = append(m.deleteAllCalls, userID)
	return nil
}

type mockPostRepository struct {
	createFn          func(ctx context.Context, post *model.Post) error
	getByIDFn         func(ctx context.Context, id string) (*model.Post, error)
	getForUpdateFn    func(ctx context.Context, id string) (*model.Post, error)
	listFn            func(ctx context.Context, before *time.Time, limit int) ([]model.Post, error)
	listForHotspotsFn func(ctx context.Context, since time.Time) ([]model.Post, error)
	addParticipantFn  func(ctx context.Context, postID, userID string) (bool, error)
	idsByAuthorFn     func(ctx context.Context, authorID string) ([]string, error)

	incrementCalls      []string
	deleteCalls         []string
	deleteByAuthorCalls []string
	hotspotSince        time.Time
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Post, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, id)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) List(ctx context.Context, before *time.Time, limit int) ([]model.Post, error) {
	if m.listFn != nil {
		return m.listFn(ctx, before, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) ListForHotspots(ctx context.Context, since time.Time) ([]model.Post, error) {
	m.hotspotSince = since
	if m.listForHotspotsFn != nil {
		return m.listForHotspotsFn(ctx, since)
	}
	return nil, nil
}

func (m *mockPostRepository) AddParticipant(ctx context.Context, tx *sqlx.Tx, postID, userID string) (bool, error) {
	if m.addParticipantFn != nil {
		return m.addParticipantFn(ctx, postID, userID)
	}
	return true, nil
}

func (m *mockPostRepository) IncrementParticipants(ctx context.Context, tx *sqlx.Tx, postID string) error {
	m.incrementCalls = append(m.incrementCalls, postID)
	return nil
}

func (m *mockPostRepository) ParticipantIDs(ctx context.Context, postID string) ([]string, error) {
	return nil, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	m.deleteCalls = append(m.deleteCalls, id)
	return nil
}

func (m *mockPostRepository) IDsByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) ([]string, error) {
	if m.idsByAuthorFn != nil {
		return m.idsByAuthorFn(ctx, authorID)
	}
	return nil, nil
}

func (m *mockPostRepository) DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) (int64, error) {
	m.deleteByAuthorCalls = append(m.deleteByAuthorCalls, authorID)
	return 0, nil
}

type mockRequestRepository struct {
	createFn        func(ctx context.Context, req *model.Request) error
	getByIDFn       func(ctx context.Context, id string) (*model.Request, error)
	getForUpdateFn  func(ctx context.Context, id string) (*model.Request, error)
	deletePendingFn func(ctx context.Context, id string) (bool, error)

	updateStatusCalls   []string
	deleteByPostCalls   []string
	deleteBySenderCalls []string
	deleteByPostsCalls  [][]string
}

func (m *mockRequestRepository) Create(ctx context.Context, req *model.Request) error {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil
}

func (m *mockRequestRepository) GetByID(ctx context.Context, id string) (*model.Request, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrRequestNotFound
}

func (m *mockRequestRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Request, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, id)
	}
	return nil, model.ErrRequestNotFound
}

func (m *mockRequestRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	m.updateStatusCalls = append(m.updateStatusCalls, id+"="+status)
	return nil
}

func (m *mockRequestRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	if m.deletePendingFn != nil {
		return m.deletePendingFn(ctx, id)
	}
	return true, nil
}

func (m *mockRequestRepository) ListReceived(ctx context.Context, userID string) ([]model.Request, error) {
	return []model.Request{}, nil
}

func (m *mockRequestRepository) ListSent(ctx context.Context, userID string) ([]model.Request, error) {
	return []model.Request{}, nil
}

func (m *mockRequestRepository) DeleteByPost(ctx context.Context, tx *sqlx.Tx, postID string) error {
	m.deleteByPostCalls = append(m.deleteByPostCalls, postID)
	return nil
}

func (m *mockRequestRepository) DeleteBySender(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	m.deleteBySenderCalls = append(m.deleteBySenderCalls, userID)
	return 0, nil
}

func (m *mockRequestRepository) DeleteByPosts(ctx context.Context, tx *sqlx.Tx, postIDs []string) (int64, error) {
	m.deleteByPostsCalls = append(m.deleteByPostsCalls, postIDs)
	return int64(len(postIDs)), nil
}

// mockChatRepository keeps rooms in memory so chat flows can be exercised
// end to end without SQL.
type mockChatRepository struct {
	rooms    map[string]*model.ChatRoom
	byPost   map[string]string
	messages map[string][]model.Message
	summary  map[string][]model.RoomSummary

	createRoomFn func(ctx context.Context, room *model.ChatRoom) (bool, error)

	deleteRoomCalls []string
	meetingCalls    []model.MeetingPoint
}

func newMockChatRepository() *mockChatRepository {
	return &mockChatRepository{
		rooms:    map[string]*model.ChatRoom{},
		byPost:   map[string]string{},
		messages: map[string][]model.Message{},
		summary:  map[string][]model.RoomSummary{},
	}
}

// addRoom seeds a room with participants in join order and zero unread.
func (m *mockChatRepository) addRoom(id, postID string, participants ...string) *model.ChatRoom {
	room := &model.ChatRoom{ID: id, PostID: postID, Title: "title " + id, UnreadCount: map[string]int{}}
	for _, p := range participants {
		room.Participants = append(room.Participants, p)
		room.UnreadCount[p] = 0
	}
	m.rooms[id] = room
	m.byPost[postID] = id
	return room
}

func (m *mockChatRepository) clone(room *model.ChatRoom) *model.ChatRoom {
	c := *room
	c.Participants = append([]string(nil), room.Participants...)
	c.UnreadCount = make(map[string]int, len(room.UnreadCount))
	for k, v := range room.UnreadCount {
		c.UnreadCount[k] = v
	}
	return &c
}

func (m *mockChatRepository) GetRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return m.clone(room), nil
}

func (m *mockChatRepository) LockRoom(ctx context.Context, tx *sqlx.Tx, id string) (*model.ChatRoom, error) {
	return m.GetRoom(ctx, id)
}

func (m *mockChatRepository) CreateRoom(ctx context.Context, tx *sqlx.Tx, room *model.ChatRoom) (bool, error) {
	if m.createRoomFn != nil {
		return m.createRoomFn(ctx, room)
	}
	if _, exists := m.byPost[room.PostID]; exists {
		return false, nil
	}
	m.addRoom(room.ID, room.PostID)
	m.rooms[room.ID].Title = room.Title
	return true, nil
}

func (m *mockChatRepository) RoomIDByPost(ctx context.Context, q sqlx.ExtContext, postID string) (string, error) {
	id, ok := m.byPost[postID]
	if !ok {
		return "", model.ErrRoomNotFound
	}
	return id, nil
}

func (m *mockChatRepository) AddParticipant(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error) {
	room := m.rooms[roomID]
	if _, ok := room.UnreadCount[userID]; ok {
		return false, nil
	}
	room.Participants = append(room.Participants, userID)
	room.UnreadCount[userID] = 0
	return true, nil
}

func (m *mockChatRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return false, nil
	}
	if _, ok := room.UnreadCount[userID]; !ok {
		return false, nil
	}
	delete(room.UnreadCount, userID)
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p != userID {
			kept = append(kept, p)
		}
	}
	room.Participants = kept
	return true, nil
}

func (m *mockChatRepository) Participants(ctx context.Context, q sqlx.ExtContext, roomID string) ([]model.RoomParticipant, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	var out []model.RoomParticipant
	for _, p := range room.Participants {
		out = append(out, model.RoomParticipant{RoomID: roomID, UserID: p, UnreadCount: room.UnreadCount[p]})
	}
	return out, nil
}

func (m *mockChatRepository) ParticipantsForRooms(ctx context.Context, roomIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, id := range roomIDs {
		if room, ok := m.rooms[id]; ok {
			out[id] = append([]string(nil), room.Participants...)
		}
	}
	return out, nil
}

func (m *mockChatRepository) CountParticipants(ctx context.Context, roomID string) (int, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return 0, nil
	}
	return len(room.Participants), nil
}

func (m *mockChatRepository) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id, room := range m.rooms {
		if _, ok := room.UnreadCount[userID]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockChatRepository) ListRooms(ctx context.Context, userID string, since *time.Time) ([]model.RoomSummary, error) {
	var out []model.RoomSummary
	for _, s := range m.summary[userID] {
		if since != nil && s.LastUpdated.Before(*since) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockChatRepository) InsertMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	msg.CreatedAt = time.Now()
	msg.ReadBy = []string{msg.SenderID}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], *msg)
	return nil
}

func (m *mockChatRepository) UpdateLastMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	room := m.rooms[msg.RoomID]
	room.LastMessage = msg.Text
	room.LastSenderID = &msg.SenderID
	room.LastSeq = msg.Seq
	room.LastUpdated = msg.CreatedAt
	return nil
}

func (m *mockChatRepository) IncrementUnread(ctx context.Context, tx *sqlx.Tx, roomID, exceptUserID string) error {
	room := m.rooms[roomID]
	for p := range room.UnreadCount {
		if p != exceptUserID {
			room.UnreadCount[p]++
		}
	}
	return nil
}

func (m *mockChatRepository) ResetUnread(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return false, nil
	}
	if _, ok := room.UnreadCount[userID]; !ok {
		return false, nil
	}
	room.UnreadCount[userID] = 0
	return true, nil
}

func (m *mockChatRepository) MarkAllRead(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (int64, error) {
	var n int64
	msgs := m.messages[roomID]
	for i := range msgs {
		if !msgs[i].ReadByUser(userID) {
			msgs[i].ReadBy = append(msgs[i].ReadBy, userID)
			n++
		}
	}
	return n, nil
}

func (m *mockChatRepository) Messages(ctx context.Context, roomID string) ([]model.Message, error) {
	out := make([]model.Message, len(m.messages[roomID]))
	copy(out, m.messages[roomID])
	return out, nil
}

func (m *mockChatRepository) DeleteRoom(ctx context.Context, roomID string) error {
	m.deleteRoomCalls = append(m.deleteRoomCalls, roomID)
	if room, ok := m.rooms[roomID]; ok {
		delete(m.byPost, room.PostID)
	}
	delete(m.rooms, roomID)
	delete(m.messages, roomID)
	return nil
}

func (m *mockChatRepository) SetMeeting(ctx context.Context, roomID string, point model.MeetingPoint) error {
	room, ok := m.rooms[roomID]
	if !ok {
		return model.ErrRoomNotFound
	}
	m.meetingCalls = append(m.meetingCalls, point)
	room.MeetingLat, room.MeetingLng, room.MeetingName = &point.Lat, &point.Lng, &point.Name
	return nil
}

// ledgerPostRepository keeps one post's count and status in memory so accepts
// can be replayed against evolving state. GetForUpdate takes the row lock;
// the caller releases it with unlock once its transaction has ended.
type ledgerPostRepository struct {
	*mockPostRepository

	rowLock      chan struct{}
	mu           sync.Mutex
	post         model.Post
	participants map[string]bool
}

func newLedgerPostRepository(post model.Post) *ledgerPostRepository {
	return &ledgerPostRepository{
		mockPostRepository: &mockPostRepository{},
		rowLock:            make(chan struct{}, 1),
		post:               post,
		participants:       map[string]bool{},
	}
}

func (m *ledgerPostRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Post, error) {
	m.rowLock <- struct{}{}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.post.ID {
		return nil, model.ErrPostNotFound
	}
	p := m.post
	return &p, nil
}

func (m *ledgerPostRepository) unlock() {
	select {
	case <-m.rowLock:
	default:
	}
}

func (m *ledgerPostRepository) AddParticipant(ctx context.Context, tx *sqlx.Tx, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[userID] {
		return false, nil
	}
	m.participants[userID] = true
	return true, nil
}

// IncrementParticipants mirrors the UPDATE: the post closes in the same write
// that brings the count to max.
func (m *ledgerPostRepository) IncrementParticipants(ctx context.Context, tx *sqlx.Tx, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.post.ParticipantsCount++
	if m.post.MaxParticipants > 0 && m.post.ParticipantsCount >= m.post.MaxParticipants {
		m.post.Status = model.PostStatusClosed
	}
	return nil
}

func (m *ledgerPostRepository) snapshot() model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.post
}

// ledgerRequestRepository serves pending requests by id and records status
// changes. Safe for concurrent accepts.
type ledgerRequestRepository struct {
	*mockRequestRepository

	mu       sync.Mutex
	requests map[string]*model.Request
}

func newLedgerRequestRepository(reqs ...*model.Request) *ledgerRequestRepository {
	m := &ledgerRequestRepository{mockRequestRepository: &mockRequestRepository{}, requests: map[string]*model.Request{}}
	for _, r := range reqs {
		m.requests[r.ID] = r
	}
	return m
}

func (m *ledgerRequestRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, model.ErrRequestNotFound
	}
	c := *r
	return &c, nil
}

func (m *ledgerRequestRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[id].Status = status
	return nil
}

func (m *ledgerRequestRepository) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id].Status
}

// =============================================================================
// MOCK COLLABORATORS
// =============================================================================

type mockPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type mockSignaler struct {
	mu      sync.Mutex
	signals []string
}

func (m *mockSignaler) SignalRoom(ctx context.Context, roomID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, roomID+":"+topic)
	return nil
}

// =============================================================================
// SQL TRANSACTIONS
// =============================================================================

// newMockDB returns a sqlx handle whose transactions are scripted with mock.
// Repositories are mocked separately, so only BEGIN/COMMIT/ROLLBACK show up.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
