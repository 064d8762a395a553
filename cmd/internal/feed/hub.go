package feed

import (
	"log/slog"
	"sync"
	"time"

	"seva/cmd/internal/civic"

	"github.com/oklog/ulid/v2"
)

const (
	// TypeGrievanceCreated is the envelope type for freshly filed grievances.
	TypeGrievanceCreated = "grievance.created"

	defaultQueueSize = 64
)

// Envelope is the JSON frame written to feed listeners.
type Envelope struct {
	Type      string           `json:"type"`
	Ts        time.Time        `json:"ts"`
	Grievance *civic.Grievance `json:"grievance,omitempty"`
}

// Hub fans envelopes out to the current set of listeners.
//
// Design notes:
// - Each listener gets a bounded queue; a slow listener drops frames
//   instead of blocking the broadcaster.
// - Listener channels are closed only by Unsubscribe, never by Broadcast.
type Hub struct {
	log       *slog.Logger
	queueSize int

	mu        sync.RWMutex
	listeners map[string]chan Envelope
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:       log,
		queueSize: defaultQueueSize,
		listeners: make(map[string]chan Envelope),
	}
}

// Subscribe registers a new listener and returns its id and queue.
func (h *Hub) Subscribe() (string, <-chan Envelope) {
	id := ulid.Make().String()
	ch := make(chan Envelope, h.queueSize)

	h.mu.Lock()
	h.listeners[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a listener and closes its queue. Idempotent.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.listeners[id]
	if ok {
		delete(h.listeners, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Len returns the current listener count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Broadcast delivers env to every listener, dropping frames for any
// listener whose queue is full.
func (h *Hub) Broadcast(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.listeners {
		select {
		case ch <- env:
		default:
			h.log.Info("feed.drop", "listener_id", id, "type", env.Type)
		}
	}
}

// BroadcastGrievance wraps g in an envelope and broadcasts it. The
// signature matches the civic handler's notifier hook.
func (h *Hub) BroadcastGrievance(g civic.Grievance) {
	h.Broadcast(Envelope{
		Type:      TypeGrievanceCreated,
		Ts:        time.Now().UTC(),
		Grievance: &g,
	})
}
