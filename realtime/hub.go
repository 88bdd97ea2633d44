package realtime

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// sessionBuffer bounds the per-session delivery queue. A session that cannot
// drain fast enough loses events rather than blocking the fan-out; the client
// recovers the same way a reconnecting one does, by re-fetching the board.
const sessionBuffer = 16

// Session is one connected client attachment. Its channel carries serialized
// board events until Detach closes it.
type Session struct {
	ID string

	ch    chan []byte
	rooms map[string]struct{}
}

// C returns the session's delivery channel. Closed on detach.
func (s *Session) C() <-chan []byte { return s.ch }

// Hub maps project ids to the sessions currently subscribed to that project's
// events. All mutations take the write lock, so join/leave/disconnect are
// atomic with respect to concurrent broadcasts. The table is in-process
// state: with multiple instances each hub only reaches its own sessions,
// which is why broadcasts travel through the shared pub/sub channel first.
type Hub struct {
	log *log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		log:      logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// Attach registers a new session and returns it. The caller owns the
// session's lifetime and must Detach it when the connection ends.
func (h *Hub) Attach() *Session {
	s := &Session{
		ID:    uuid.NewString(),
		ch:    make(chan []byte, sessionBuffer),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.log.WithField("session", s.ID).Debug("session attached")
	return s
}

// Detach removes the session from every room it joined and closes its
// channel. Safe to call for unknown ids.
func (h *Hub) Detach(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
		for projectID := range s.rooms {
			h.removeFromRoom(projectID, sessionID)
		}
		close(s.ch)
	}
	h.mu.Unlock()
	if ok {
		h.log.WithField("session", sessionID).Debug("session detached")
	}
}

// Join adds the session to the project's room. Idempotent; joining twice has
// no additional effect. Returns false when the session is unknown (already
// detached or never attached).
func (h *Hub) Join(sessionID, projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	if _, joined := s.rooms[projectID]; joined {
		return true
	}
	s.rooms[projectID] = struct{}{}
	room := h.rooms[projectID]
	if room == nil {
		room = make(map[string]*Session)
		h.rooms[projectID] = room
	}
	room[sessionID] = s
	return true
}

// Leave removes the session from the project's room. Idempotent.
func (h *Hub) Leave(sessionID, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.rooms, projectID)
	h.removeFromRoom(projectID, sessionID)
}

// removeFromRoom requires h.mu held for writing.
func (h *Hub) removeFromRoom(projectID, sessionID string) {
	room := h.rooms[projectID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, projectID)
	}
}

// Broadcast delivers the payload to every session currently in the project's
// room. Delivery is at-most-once per session and best-effort: a full session
// buffer drops the event for that session only.
func (h *Hub) Broadcast(projectID string, payload []byte) {
	// Sends happen under the read lock so Detach (which closes channels under
	// the write lock) can never race a send on a closed channel.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.rooms[projectID] {
		select {
		case s.ch <- payload:
		default:
			h.log.WithFields(log.Fields{"session": s.ID, "project": projectID}).
				Warn("session buffer full, event dropped")
		}
	}
}

// RoomSize reports how many sessions are in the project's room.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}
