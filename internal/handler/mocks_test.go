package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"bapmate/internal/model"
	"bapmate/internal/transport/http/middleware"
)

// Path ids are UUIDs; the handlers reject anything else before calling a service.
const (
	testRoomID    = "6f1c2b7e-3d4a-4c5b-8e9f-0a1b2c3d4e5f"
	testPostID    = "0d7e5a2c-8b1f-4e6d-9a3c-5b2e7f1d4c8a"
	testRequestID = "a3b9c1d2-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	testUserID    = "c8d7e6f5-a4b3-4c2d-9e1f-0a9b8c7d6e5f"
)

// =============================================================================
// MOCK SERVICES
// =============================================================================
//
// Unset func fields return zero values.

type mockRequests struct {
	createFn       func(ctx context.Context, postID, fromUserID string) (*model.Request, error)
	acceptFn       func(ctx context.Context, requestID, actorID string) (*model.Request, error)
	rejectFn       func(ctx context.Context, requestID, actorID string) (*model.Request, error)
	cancelFn       func(ctx context.Context, requestID, actorID string) error
	listReceivedFn func(ctx context.Context, userID string) (*model.RequestListResponse, error)
	listSentFn     func(ctx context.Context, userID string) (*model.RequestListResponse, error)
	startChatFn    func(ctx context.Context, requestID, actorID string) (*model.StartChatResponse, error)
}

func (m *mockRequests) Create(ctx context.Context, postID, fromUserID string) (*model.Request, error) {
	if m.createFn != nil {
		return m.createFn(ctx, postID, fromUserID)
	}
	return &model.Request{}, nil
}

func (m *mockRequests) Accept(ctx context.Context, requestID, actorID string) (*model.Request, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, requestID, actorID)
	}
	return &model.Request{}, nil
}

func (m *mockRequests) Reject(ctx context.Context, requestID, actorID string) (*model.Request, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, requestID, actorID)
	}
	return &model.Request{}, nil
}

func (m *mockRequests) Cancel(ctx context.Context, requestID, actorID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, requestID, actorID)
	}
	return nil
}

func (m *mockRequests) ListReceived(ctx context.Context, userID string) (*model.RequestListResponse, error) {
	if m.listReceivedFn != nil {
		return m.listReceivedFn(ctx, userID)
	}
	return &model.RequestListResponse{Requests: []model.Request{}}, nil
}

func (m *mockRequests) ListSent(ctx context.Context, userID string) (*model.RequestListResponse, error) {
	if m.listSentFn != nil {
		return m.listSentFn(ctx, userID)
	}
	return &model.RequestListResponse{Requests: []model.Request{}}, nil
}

func (m *mockRequests) StartChat(ctx context.Context, requestID, actorID string) (*model.StartChatResponse, error) {
	if m.startChatFn != nil {
		return m.startChatFn(ctx, requestID, actorID)
	}
	return &model.StartChatResponse{}, nil
}

type mockRooms struct {
	getRoomFn    func(ctx context.Context, roomID, userID string) (*model.ChatRoom, error)
	listRoomsFn  func(ctx context.Context, userID string, filter model.RoomFilter) (*model.RoomListResponse, error)
	messagesFn   func(ctx context.Context, roomID, userID string, enteredAt time.Time) (*model.MessageListResponse, error)
	sendFn       func(ctx context.Context, roomID, senderID, text string) (*model.Message, error)
	markReadFn   func(ctx context.Context, roomID, userID string) error
	leaveFn      func(ctx context.Context, roomID, userID string) error
	deleteFn     func(ctx context.Context, roomID, userID string) error
	getMeetingFn func(ctx context.Context, roomID, userID string) (model.MeetingPoint, error)
	setMeetingFn func(ctx context.Context, roomID, userID string, point model.MeetingPoint) (model.MeetingPoint, error)
}

func (m *mockRooms) GetRoom(ctx context.Context, roomID, userID string) (*model.ChatRoom, error) {
	if m.getRoomFn != nil {
		return m.getRoomFn(ctx, roomID, userID)
	}
	return &model.ChatRoom{ID: roomID}, nil
}

func (m *mockRooms) ListRooms(ctx context.Context, userID string, filter model.RoomFilter) (*model.RoomListResponse, error) {
	if m.listRoomsFn != nil {
		return m.listRoomsFn(ctx, userID, filter)
	}
	return &model.RoomListResponse{Rooms: []model.RoomSummary{}}, nil
}

func (m *mockRooms) Messages(ctx context.Context, roomID, userID string, enteredAt time.Time) (*model.MessageListResponse, error) {
	if m.messagesFn != nil {
		return m.messagesFn(ctx, roomID, userID, enteredAt)
	}
	return &model.MessageListResponse{Messages: []model.Message{}, ReadLineIndex: -1}, nil
}

func (m *mockRooms) Send(ctx context.Context, roomID, senderID, text string) (*model.Message, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, roomID, senderID, text)
	}
	return &model.Message{}, nil
}

func (m *mockRooms) MarkRead(ctx context.Context, roomID, userID string) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, roomID, userID)
	}
	return nil
}

func (m *mockRooms) LeaveSelf(ctx context.Context, roomID, userID string) error {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, roomID, userID)
	}
	return nil
}

func (m *mockRooms) DeleteRoom(ctx context.Context, roomID, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, roomID, userID)
	}
	return nil
}

func (m *mockRooms) GetMeeting(ctx context.Context, roomID, userID string) (model.MeetingPoint, error) {
	if m.getMeetingFn != nil {
		return m.getMeetingFn(ctx, roomID, userID)
	}
	return model.DefaultMeetingPoint, nil
}

func (m *mockRooms) SetMeeting(ctx context.Context, roomID, userID string, point model.MeetingPoint) (model.MeetingPoint, error) {
	if m.setMeetingFn != nil {
		return m.setMeetingFn(ctx, roomID, userID, point)
	}
	return point, nil
}

type mockLocations struct {
	membersFn func(ctx context.Context, roomID, userID string) (*model.LocationMembersResponse, error)
	startFn   func(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error)
}

func (m *mockLocations) Start(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error) {
	if m.startFn != nil {
		return m.startFn(ctx, roomID, userID, req)
	}
	return &model.LocationSession{RoomID: roomID, UserID: userID, IsSharing: true}, nil
}

func (m *mockLocations) Update(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error) {
	return m.Start(ctx, roomID, userID, req)
}

func (m *mockLocations) Stop(ctx context.Context, roomID, userID string) (*model.LocationSession, error) {
	return &model.LocationSession{RoomID: roomID, UserID: userID}, nil
}

func (m *mockLocations) Members(ctx context.Context, roomID, userID string) (*model.LocationMembersResponse, error) {
	if m.membersFn != nil {
		return m.membersFn(ctx, roomID, userID)
	}
	return &model.LocationMembersResponse{Meeting: model.DefaultMeetingPoint, Members: []model.LocationSession{}}, nil
}

type mockPosts struct {
	createFn func(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error)
	listFn   func(ctx context.Context, before *time.Time, limit int) (*model.PostListResponse, error)
}

func (m *mockPosts) Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, authorID, req)
	}
	return &model.Post{}, nil
}

func (m *mockPosts) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	return nil, model.ErrPostNotFound
}

func (m *mockPosts) List(ctx context.Context, before *time.Time, limit int) (*model.PostListResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, before, limit)
	}
	return &model.PostListResponse{Posts: []model.Post{}}, nil
}

func (m *mockPosts) Delete(ctx context.Context, postID, userID string) error {
	return nil
}

type mockHotspots struct {
	hotspotsFn func(ctx context.Context, days, topN int) (*model.HotspotListResponse, error)
}

func (m *mockHotspots) Hotspots(ctx context.Context, days, topN int) (*model.HotspotListResponse, error) {
	if m.hotspotsFn != nil {
		return m.hotspotsFn(ctx, days, topN)
	}
	return &model.HotspotListResponse{}, nil
}

type mockRecovery struct {
	verifyFn func(ctx context.Context, email, answer string) (string, error)
}

func (m *mockRecovery) FindID(ctx context.Context, name string) (string, error) {
	return "", model.ErrUserNotFound
}

func (m *mockRecovery) SecurityQuestion(ctx context.Context, email string) (string, error) {
	return "", model.ErrUserNotFound
}

func (m *mockRecovery) VerifySecurityAnswer(ctx context.Context, email, answer string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, email, answer)
	}
	return "", model.ErrUserNotFound
}

// mockTickets treats "ticket-<uid>" as a valid reset ticket for uid.
type mockTickets struct{}

func (mockTickets) GenerateResetToken(userID string) (string, error) {
	return "ticket-" + userID, nil
}

func (mockTickets) ParseResetToken(raw string) (string, error) {
	uid, ok := strings.CutPrefix(raw, "ticket-")
	if !ok || uid == "" {
		return "", model.ErrInvalidResetToken
	}
	return uid, nil
}

type mockPasswords struct {
	withTicketFn func(ctx context.Context, uid, tempPassword string) error
	byEmailFn    func(ctx context.Context, email string) error

	calls []string
}

func (m *mockPasswords) ResetWithTicket(ctx context.Context, uid, tempPassword string) error {
	m.calls = append(m.calls, "ticket:"+uid+":"+tempPassword)
	if m.withTicketFn != nil {
		return m.withTicketFn(ctx, uid, tempPassword)
	}
	return nil
}

func (m *mockPasswords) ResetByEmail(ctx context.Context, email string) error {
	m.calls = append(m.calls, "email:"+email)
	if m.byEmailFn != nil {
		return m.byEmailFn(ctx, email)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// serve routes one request through a chi router so URL params resolve. A
// non-empty userID is placed in the context the way AuthMiddleware does.
func serve(t *testing.T, method, pattern, target, userID, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.MethodFunc(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// errorCode extracts error.code from the envelope.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rec.Body.String())
	}
	return body.Error.Code
}
