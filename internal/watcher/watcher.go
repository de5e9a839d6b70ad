// Package watcher diffs successive snapshots of a user's request lists and
// raises each user-facing notification at most once per subscription.
package watcher

import (
	"time"

	"bapmate/internal/model"
)

// View selects which side of the request ledger a watcher observes.
type View string

const (
	ViewReceived View = "received"
	ViewSent     View = "sent"
)

// Event kinds
const (
	KindNewRequest = "new_request"
	KindMatched    = "matched"
)

// Event is one notification raised by a watcher.
type Event struct {
	Kind      string `json:"kind"`
	View      View   `json:"view"`
	RequestID string `json:"request_id"`
	PostID    string `json:"post_id"`
	PostTitle string `json:"post_title,omitempty"`

	// Counterpart is the other user: the sender on the received view, the recipient on the sent view.
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name,omitempty"`
	At              time.Time `json:"at"`
}

// Watcher holds the diff state of one view for one live subscription.
// It is not safe for concurrent use; each session owns its watchers.
type Watcher struct {
	view      View
	mountedAt time.Time
	seeded    bool

	prevIDs     map[string]struct{}
	prevStatus  map[string]string
	seenNew     map[string]struct{}
	seenMatched map[string]struct{}
}

// New creates a watcher for view. Pending requests created before mountedAt
// never raise new_request.
func New(view View, mountedAt time.Time) *Watcher {
	return &Watcher{
		view:        view,
		mountedAt:   mountedAt,
		prevIDs:     make(map[string]struct{}),
		prevStatus:  make(map[string]string),
		seenNew:     make(map[string]struct{}),
		seenMatched: make(map[string]struct{}),
	}
}

func (w *Watcher) View() View { return w.view }

// Apply diffs snapshot, the full current result set of the view, against the
// previous one and returns the events to raise. The first snapshot only seeds
// state.
func (w *Watcher) Apply(snapshot []model.Request) []Event {
	var events []Event

	if w.seeded {
		if w.view == ViewReceived {
			events = append(events, w.newRequests(snapshot)...)
		}
		events = append(events, w.matches(snapshot)...)
	}

	w.prevIDs = make(map[string]struct{}, len(snapshot))
	w.prevStatus = make(map[string]string, len(snapshot))
	for i := range snapshot {
		w.prevIDs[snapshot[i].ID] = struct{}{}
		w.prevStatus[snapshot[i].ID] = snapshot[i].Status
	}
	w.seeded = true
	return events
}

func (w *Watcher) newRequests(snapshot []model.Request) []Event {
	var events []Event
	for i := range snapshot {
		req := &snapshot[i]
		if _, existed := w.prevIDs[req.ID]; existed {
			continue
		}
		if req.Status != model.RequestStatusPending {
			continue
		}
		if _, seen := w.seenNew[req.ID]; seen {
			continue
		}
		// marked seen before the age check so a stale request never fires later
		w.seenNew[req.ID] = struct{}{}
		if req.CreatedAt.Before(w.mountedAt) {
			continue
		}
		events = append(events, w.event(KindNewRequest, req))
	}
	return events
}

func (w *Watcher) matches(snapshot []model.Request) []Event {
	var events []Event
	for i := range snapshot {
		req := &snapshot[i]
		prev, ok := w.prevStatus[req.ID]
		if !ok || prev == model.RequestStatusMatched || req.Status != model.RequestStatusMatched {
			continue
		}
		if _, seen := w.seenMatched[req.ID]; seen {
			continue
		}
		w.seenMatched[req.ID] = struct{}{}
		events = append(events, w.event(KindMatched, req))
	}
	return events
}

func (w *Watcher) event(kind string, req *model.Request) Event {
	e := Event{
		Kind:      kind,
		View:      w.view,
		RequestID: req.ID,
		PostID:    req.PostID,
		PostTitle: req.PostTitle,
		At:        req.UpdatedAt,
	}
	if w.view == ViewReceived {
		e.CounterpartID, e.CounterpartName = req.FromUserID, req.FromName
	} else {
		e.CounterpartID, e.CounterpartName = req.ToUserID, req.ToName
	}
	if kind == KindNewRequest {
		e.At = req.CreatedAt
	}
	return e
}
