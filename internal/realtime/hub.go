package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/educatorstribe/tribenews/internal/auth"
)

// Event types published by the ingester.
const (
	EventIngestStarted  = "ingest.started"
	EventIngestFinished = "ingest.finished"
)

// Event is one message fanned out to every connected session.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Session is one live subscriber connection.
type Session struct {
	ID          string    `json:"id"`
	Role        auth.Role `json:"-"`
	RoleName    string    `json:"role"`
	ConnectedAt time.Time `json:"connected_at"`

	lastSeen atomic.Int64
	dropped  atomic.Int64
	events   chan Event
	done     chan struct{}
	once     sync.Once
}

// Events is the session's delivery channel. It is closed when the session
// is disconnected.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session leaves the registry.
func (s *Session) Done() <-chan struct{} { return s.done }

// Touch records activity on the session.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen returns the last recorded activity.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Dropped counts events discarded because the session was not reading.
func (s *Session) Dropped() int64 { return s.dropped.Load() }

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.events)
	})
}

// Hub owns the session registry, keyed by connection ID.
type Hub struct {
	sessions map[string]*Session
	buffer   int
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewHub creates a hub whose sessions buffer up to buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		sessions: make(map[string]*Session),
		buffer:   buffer,
		logger:   logger.With("component", "realtime_hub"),
	}
}

// Connect registers a new session for a caller with the given role.
func (h *Hub) Connect(role auth.Role) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Role:        role,
		RoleName:    role.String(),
		ConnectedAt: time.Now(),
		events:      make(chan Event, h.buffer),
		done:        make(chan struct{}),
	}
	s.Touch()

	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()

	h.logger.Info("session connected", "id", s.ID, "role", s.RoleName, "sessions", n)
	return s
}

// Disconnect removes a session and closes its channels. Unknown IDs are
// ignored.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.close()
	h.logger.Info("session disconnected", "id", id, "sessions", n, "dropped", s.Dropped())
}

// Publish delivers an event to every session without blocking. A session
// whose buffer is full misses the event.
func (h *Hub) Publish(eventType string, data any) Event {
	ev := Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		select {
		case s.events <- ev:
		default:
			s.dropped.Add(1)
			h.logger.Warn("session buffer full, event dropped", "id", s.ID, "event", eventType)
		}
	}
	h.logger.Debug("event published", "type", eventType, "sessions", len(h.sessions))
	return ev
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Sessions returns a snapshot of the registry.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Monitor disconnects sessions idle for longer than timeout until ctx ends.
func (h *Hub) Monitor(ctx context.Context, timeout time.Duration) {
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reap(timeout)
		}
	}
}

func (h *Hub) reap(timeout time.Duration) {
	var stale []string
	h.mu.RLock()
	for id, s := range h.sessions {
		if time.Since(s.LastSeen()) > timeout {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.Warn("session idle, disconnecting", "id", id)
		h.Disconnect(id)
	}
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
