package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// Rooms is the chat room store.
type Rooms interface {
	GetRoom(ctx context.Context, roomID, userID string) (*model.ChatRoom, error)
	ListRooms(ctx context.Context, userID string, filter model.RoomFilter) (*model.RoomListResponse, error)
	Messages(ctx context.Context, roomID, userID string, enteredAt time.Time) (*model.MessageListResponse, error)
	Send(ctx context.Context, roomID, senderID, text string) (*model.Message, error)
	MarkRead(ctx context.Context, roomID, userID string) error
	LeaveSelf(ctx context.Context, roomID, userID string) error
	DeleteRoom(ctx context.Context, roomID, userID string) error
	GetMeeting(ctx context.Context, roomID, userID string) (model.MeetingPoint, error)
	SetMeeting(ctx context.Context, roomID, userID string, point model.MeetingPoint) (model.MeetingPoint, error)
}

type ChatHandler struct {
	rooms Rooms
}

func NewChatHandler(rooms Rooms) *ChatHandler {
	return &ChatHandler{rooms: rooms}
}

// ListRooms handles GET /rooms?days=<n>&q=<text>
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}

	resp, err := h.rooms.ListRooms(r.Context(), userID, model.RoomFilter{
		HideOlderThanDays: days,
		Query:             r.URL.Query().Get("q"),
	})
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetRoom handles GET /rooms/{id}
func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	room, err := h.rooms.GetRoom(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /rooms/{id}
func (h *ChatHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.rooms.DeleteRoom, http.StatusNoContent)
}

// Leave handles POST /rooms/{id}/leave
func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.rooms.LeaveSelf, http.StatusNoContent)
}

// MarkRead handles POST /rooms/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.rooms.MarkRead, http.StatusNoContent)
}

func (h *ChatHandler) roomAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, roomID, userID string) error, status int) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id, userID); err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	w.WriteHeader(status)
}

// Messages handles GET /rooms/{id}/messages?entered_at=<unix ms>
// entered_at is when the client opened the room; it bounds the read line.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	enteredAt := time.Now()
	if raw := r.URL.Query().Get("entered_at"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteBadRequest(w, "entered_at must be unix milliseconds")
			return
		}
		enteredAt = time.UnixMilli(ms)
	}

	resp, err := h.rooms.Messages(r.Context(), id, userID, enteredAt)
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Send handles POST /rooms/{id}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.rooms.Send(r.Context(), id, userID, req.Text)
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// GetMeeting handles GET /rooms/{id}/meeting
func (h *ChatHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	point, err := h.rooms.GetMeeting(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, point)
}

// SetMeeting handles PUT /rooms/{id}/meeting
func (h *ChatHandler) SetMeeting(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.MeetingPoint
	if !decodeJSON(w, r, &req) {
		return
	}

	point, err := h.rooms.SetMeeting(r.Context(), id, userID, req)
	if err != nil {
		writeServiceError(w, "ChatHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, point)
}
