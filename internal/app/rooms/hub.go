/*
Package rooms contains the core logic for co-working rooms.

This file defines the Hub, the registry of live websocket sessions. It enforces
the one-connection-per-user-per-room rule: a second connection for the same
user replaces the first, and the first is kicked with a dedicated close code.
*/
package rooms

import (
	"sync"

	"bizhub/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// Hub tracks the live websocket sessions per room.
type Hub struct {
	// mu protects the sessions map.
	mu sync.RWMutex

	// sessions maps roomID -> userID -> active session.
	sessions map[string]map[string]*Session

	logger zerolog.Logger
}

// NewHub creates an empty session registry.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*Session),
		logger:   logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Register records the session as the user's live connection in the room.
// An existing session for the same (room, user) pair is kicked first.
func (h *Hub) Register(session *Session) {
	h.mu.Lock()

	roomSessions, ok := h.sessions[session.roomID]
	if !ok {
		roomSessions = make(map[string]*Session)
		h.sessions[session.roomID] = roomSessions
	}

	previous := roomSessions[session.user.ID]
	roomSessions[session.user.ID] = session

	h.mu.Unlock()

	if previous != nil {
		h.logger.Warn().
			Str("room_id", session.roomID).
			Str("user_id", session.user.ID).
			Msg("User already connected. Kicking old session for replacement.")

		previous.Kick("Session replaced by new connection. Check other tabs.")
	}
}

// Unregister removes the session from the registry, but only if it is still
// the user's current one; a session replaced by a newer connection must not
// tear down its successor's registration.
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roomSessions, ok := h.sessions[session.roomID]
	if !ok {
		return
	}

	if current, ok := roomSessions[session.user.ID]; ok && current == session {
		delete(roomSessions, session.user.ID)
		if len(roomSessions) == 0 {
			delete(h.sessions, session.roomID)
		}
	}
}

// SessionCount returns the number of live connections in a room.
func (h *Hub) SessionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions[roomID])
}
