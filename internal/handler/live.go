package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"bapmate/internal/live"
	"bapmate/internal/metrics"
	"bapmate/internal/model"
	"bapmate/internal/watcher"
)

const (
	defaultPingInterval = 25 * time.Second
	writeTimeout        = 10 * time.Second
)

// Frame types written to live sockets.
const (
	FrameSnapshot     = "snapshot"
	FrameNotification = "notification"
	FrameMessages     = "messages"
	FrameRoom         = "room"
	FrameLocation     = "location"
)

// Frame is one JSON message on a live socket.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RequestSnapshot is the payload of a snapshot frame.
type RequestSnapshot struct {
	View     watcher.View    `json:"view"`
	Requests []model.Request `json:"requests"`
}

// LiveHandler serves the websocket views. Change signals arrive through the
// hub; every signal triggers a reload, never a patch.
type LiveHandler struct {
	requests  Requests
	rooms     Rooms
	locations Locations
	hub       *live.Hub

	insecureSkipVerify bool
	pingInterval       time.Duration
	now                func() time.Time
}

func NewLiveHandler(requests Requests, rooms Rooms, locations Locations, hub *live.Hub, insecureSkipVerify bool) *LiveHandler {
	return &LiveHandler{
		requests:           requests,
		rooms:              rooms,
		locations:          locations,
		hub:                hub,
		insecureSkipVerify: insecureSkipVerify,
		pingInterval:       defaultPingInterval,
		now:                time.Now,
	}
}

func (h *LiveHandler) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.insecureSkipVerify,
	})
}

// Requests handles GET /ws
// Streams both request views of the user and the notifications their watchers raise.
func (h *LiveHandler) Requests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	metrics.WebSocketConnections.WithLabelValues("requests").Inc()
	defer metrics.WebSocketConnections.WithLabelValues("requests").Dec()

	// push-only: CloseRead keeps control frames flowing and cancels ctx on close
	ctx := conn.CloseRead(r.Context())

	sub := h.hub.Subscribe(live.UserChannel(userID))
	defer sub.Close()

	mountedAt := h.now()
	watchers := []*watcher.Watcher{
		watcher.New(watcher.ViewReceived, mountedAt),
		watcher.New(watcher.ViewSent, mountedAt),
	}

	reload := func() error {
		for _, wt := range watchers {
			if err := h.pushView(ctx, conn, userID, wt); err != nil {
				return err
			}
		}
		return nil
	}

	h.serve(ctx, conn, sub, "requests:"+userID, reload, func(sig live.Signal) error {
		if sig.Topic != live.TopicRequests {
			return nil
		}
		return reload()
	})
}

func (h *LiveHandler) pushView(ctx context.Context, conn *websocket.Conn, userID string, wt *watcher.Watcher) error {
	load := h.requests.ListReceived
	if wt.View() == watcher.ViewSent {
		load = h.requests.ListSent
	}
	resp, err := load(ctx, userID)
	if err != nil {
		return err
	}

	if err := writeFrame(ctx, conn, FrameSnapshot, RequestSnapshot{View: wt.View(), Requests: resp.Requests}); err != nil {
		return err
	}
	for _, ev := range wt.Apply(resp.Requests) {
		if err := writeFrame(ctx, conn, FrameNotification, ev); err != nil {
			return err
		}
		metrics.WatcherNotifications.WithLabelValues(ev.Kind).Inc()
	}
	return nil
}

// Room handles GET /ws/rooms/{id}
// Streams messages, membership and location members of one room to a participant.
func (h *LiveHandler) Room(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r)
	if !ok {
		return
	}

	// reject outsiders with a plain HTTP error before upgrading
	if _, err := h.rooms.GetRoom(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, "LiveHandler", err)
		return
	}

	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	metrics.WebSocketConnections.WithLabelValues("room").Inc()
	defer metrics.WebSocketConnections.WithLabelValues("room").Dec()

	ctx := conn.CloseRead(r.Context())

	sub := h.hub.Subscribe(live.RoomChannel(roomID))
	defer sub.Close()

	enteredAt := h.now()
	pushMessages := func() error {
		resp, err := h.rooms.Messages(ctx, roomID, userID, enteredAt)
		if err != nil {
			return err
		}
		return writeFrame(ctx, conn, FrameMessages, resp)
	}
	pushRoom := func() error {
		room, err := h.rooms.GetRoom(ctx, roomID, userID)
		if err != nil {
			return err
		}
		return writeFrame(ctx, conn, FrameRoom, room)
	}
	pushLocation := func() error {
		resp, err := h.locations.Members(ctx, roomID, userID)
		if err != nil {
			return err
		}
		return writeFrame(ctx, conn, FrameLocation, resp)
	}

	initial := func() error {
		if err := pushRoom(); err != nil {
			return err
		}
		if err := pushMessages(); err != nil {
			return err
		}
		return pushLocation()
	}

	h.serve(ctx, conn, sub, "room:"+roomID+":"+userID, initial, func(sig live.Signal) error {
		switch sig.Topic {
		case live.TopicMessages, live.TopicRead:
			return pushMessages()
		case live.TopicMembers:
			if err := pushRoom(); err != nil {
				return err
			}
			return pushMessages()
		case live.TopicLocation, live.TopicMeeting:
			return pushLocation()
		}
		return nil
	})
}

// serve runs the session loop until the socket closes, the subscription ends
// or a reload fails.
func (h *LiveHandler) serve(ctx context.Context, conn *websocket.Conn, sub *live.Subscription, name string, initial func() error, onSignal func(live.Signal) error) {
	if err := initial(); err != nil {
		h.closeWith(conn, name, err)
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if err := onSignal(sig); err != nil {
				h.closeWith(conn, name, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) closeWith(conn *websocket.Conn, name string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, model.ErrAuthorization), errors.Is(err, model.ErrNotFound):
		// the user left the room or it was collected
		conn.Close(websocket.StatusPolicyViolation, err.Error())
	default:
		log.Printf("[LiveHandler] Session %s failed: %v", name, err)
		conn.Close(websocket.StatusInternalError, "reload failed")
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frameType string, data any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, Frame{Type: frameType, Data: data})
}
