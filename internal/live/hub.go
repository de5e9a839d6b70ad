package live

import (
	"encoding/json"
	"log"
	"sync"

	"bapmate/internal/metrics"
)

// SubscriptionBuffer is the number of pending signals a slow session may hold
// before further signals are dropped.
const SubscriptionBuffer = 64

// Hub fans signals from the Redis subscriber out to the sessions of this
// instance, keyed by channel name.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives the signals of one channel on C until Close.
type Subscription struct {
	C <-chan Signal

	ch      chan Signal
	channel string
	hub     *Hub
	once    sync.Once
}

func (h *Hub) Subscribe(channel string) *Subscription {
	ch := make(chan Signal, SubscriptionBuffer)
	s := &Subscription{C: ch, ch: ch, channel: channel, hub: h}

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Subscription]struct{})
	}
	h.subs[channel][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.channel)
			}
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Dispatch delivers a raw pub/sub payload to every subscriber of channel. A
// subscriber whose buffer is full misses the signal.
func (h *Hub) Dispatch(channel, payload string) {
	var sig Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		log.Printf("[Live] Dropping malformed signal: channel=%s err=%v", channel, err)
		return
	}
	h.Publish(channel, sig)
}

// Publish delivers sig to local subscribers without going through Redis.
func (h *Hub) Publish(channel string, sig Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[channel] {
		select {
		case s.ch <- sig:
		default:
			metrics.LiveDrops.Inc()
		}
	}
}

// Subscribers returns the number of local subscribers of channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
