// Package notify fans user-facing notifications out to per-session
// subscribers without ever blocking the publisher.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// Publisher is what the session controller needs from the hub
type Publisher interface {
	Publish(n models.Notification) models.Notification
}

// Subscription receives notifications for one session
type Subscription struct {
	C         <-chan models.Notification
	ch        chan models.Notification
	sessionID string
	hub       *Hub
	once      sync.Once
}

// Close detaches the subscription from the hub
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub keeps subscribers per session
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewHub creates a hub; each subscriber buffers up to buffer notifications
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for a session
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan models.Notification, h.buffer)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

// Publish delivers to every subscriber of the session. Full subscribers
// miss the notification. ID and CreatedAt are filled in when empty.
func (h *Hub) Publish(n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[n.SessionID] {
		select {
		case sub.ch <- n:
		default:
			slog.Warn("notification dropped, subscriber buffer full",
				"session_id", n.SessionID,
				"kind", n.Kind,
			)
		}
	}
	return n
}

// CloseSession detaches every subscriber of a session and closes their channels
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[sessionID] {
		close(sub.ch)
	}
	delete(h.subs, sessionID)
}

// Subscribers returns the subscriber count for a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Sessions lists sessions that currently have subscribers
func (h *Hub) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[sub.sessionID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
}
