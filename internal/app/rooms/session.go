/*
Package rooms contains the core logic for co-working rooms.

This file defines the Session struct, representing an active WebSocket
connection into a room. It manages the connection lifecycle, the message
communication loops (ReadPump and WritePump), and the bridge that forwards
realtime-store snapshots of the room to the client.
*/
package rooms

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bizhub/internal/app/identity"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// Inbound frame types accepted from the client.
const (
	frameMessage = "message"
	frameLeave   = "leave"
)

// Outbound frame types sent to the client.
const (
	frameSnapshot = "snapshot"
	frameError    = "error"
)

// Session represents an active WebSocket connection of one user in one room.
type Session struct {
	// the registry of live sessions.
	hub *Hub

	// room state transitions go through the service, never the store directly.
	svc *Service

	// the realtime store, used for the snapshot subscription and disconnect cleanup.
	store *rtstore.Store

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// the connected user.
	user identity.Identity

	// the room this session is attached to.
	roomID string

	// connToken keys the disconnect cleanup armed for this connection.
	connToken string

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// cancelSub tears down the store subscription.
	cancelSub func()

	// sendMu guards sendClosed so no frame is queued after the channel closes.
	sendMu     sync.Mutex
	sendClosed bool

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession constructs a Session for an already-joined participant.
func NewSession(hub *Hub, svc *Service, store *rtstore.Store, conn *websocket.Conn, user identity.Identity, roomID, connToken string) *Session {
	sessionLogger := logx.Logger().With().
		Str("user_id", user.ID).
		Str("room_id", roomID).
		Logger()

	return &Session{
		hub:       hub,
		svc:       svc,
		store:     store,
		conn:      conn,
		user:      user,
		roomID:    roomID,
		connToken: connToken,
		send:      make(chan []byte, 256),
		logger:    sessionLogger,
	}
}

// Start subscribes the session to the room's snapshot stream, registers it in
// the hub, and launches the pump goroutines. It returns once the pumps run;
// the session then lives until the connection drops or the room disappears.
func (s *Session) Start() error {
	events, cancel, err := s.store.Subscribe(RoomPath(s.roomID))
	if err != nil {
		return err
	}
	s.cancelSub = cancel

	s.hub.Register(s)

	go s.forwardSnapshots(events)
	go s.WritePump()
	go s.ReadPump()

	return nil
}

// forwardSnapshots relays store snapshots of the room into the send queue.
// A non-existent snapshot means the room was deleted: the client gets the
// final frame and the connection closes.
func (s *Session) forwardSnapshots(events <-chan rtstore.Event) {
	for event := range events {
		frame := struct {
			Type   string          `json:"type"`
			Room   json.RawMessage `json:"room,omitempty"`
			Exists bool            `json:"exists"`
		}{
			Type:   frameSnapshot,
			Room:   event.Value,
			Exists: event.Exists,
		}

		frameBytes, err := json.Marshal(frame)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error marshaling snapshot frame")
			continue
		}

		s.queue(frameBytes)

		if !event.Exists {
			s.logger.Info().Msg("Room deleted. Closing session.")
			s.closeSend()
			return
		}
	}
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame parsing, and performs cleanup upon
// connection closure.
func (s *Session) ReadPump() {
	defer s.cleanupOnDisconnect()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		if !s.processInboundFrame(frameBytes) {
			break
		}
	}
}

// processInboundFrame handles raw byte frames received from the client.
// Returns false when the session should terminate.
func (s *Session) processInboundFrame(frameBytes []byte) bool {
	var inbound struct {
		Type    string `json:"type"`
		Content string `json:"content,omitempty"`
	}

	if err := json.Unmarshal(frameBytes, &inbound); err != nil {
		s.logger.Warn().Err(err).
			Bytes("frame_bytes", frameBytes).
			Msg("Client sent invalid JSON")
		return true
	}

	switch inbound.Type {
	case frameMessage:
		if err := s.svc.AppendMessage(s.roomID, s.user, inbound.Content); err != nil {
			s.sendError(err)
		}
		return true

	case frameLeave:
		if err := s.svc.Leave(s.roomID, s.user.ID); err != nil {
			s.sendError(err)
		}
		// An explicit leave already removed presence; disarm the dead-man's switch.
		s.store.DisarmDisconnectCleanup(s.connToken, ParticipantPath(s.roomID, s.user.ID))
		return false

	default:
		s.logger.Warn().Str("frame_type", inbound.Type).Msg("Client sent unsupported frame type")
		return true
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the session's
// ReadPump terminates: the disconnect cleanup fires, removing the participant's
// presence without any client involvement.
func (s *Session) cleanupOnDisconnect() {
	s.logger.Info().Msg("Session cleanup starting.")

	if s.cancelSub != nil {
		s.cancelSub()
	}

	s.hub.Unregister(s)
	s.store.FireDisconnect(s.connToken)
	s.closeSend()

	if err := s.conn.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Session connection close error")
	}
}

// WritePump handles writing frames from the send channel to the WebSocket
// connection and keeps the heartbeat alive.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := s.conn.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Session connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !s.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel.
// Returns true if the WritePump loop should continue.
func (s *Session) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			s.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the
// connection heartbeat. Returns false on write failure.
func (s *Session) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// queue enqueues a frame without blocking the producer; when the client is too
// slow the frame is dropped, since the next snapshot supersedes it anyway.
func (s *Session) queue(frame []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.sendClosed {
		return
	}

	select {
	case s.send <- frame:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send channel full, dropping frame")
	}
}

// sendError sends an error frame to the client.
func (s *Session) sendError(customErr *errs.CustomError) {
	frame := struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{
		Type:    frameError,
		Code:    customErr.Code,
		Message: customErr.Message,
	}

	frameBytes, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error marshaling error frame")
		return
	}

	s.queue(frameBytes)
}

// Kick gracefully closes the session by sending a custom WebSocket Close Frame
// (Code 4001) indicating that the session was replaced.
func (s *Session) Kick(reason string) {
	s.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message.")
	}

	s.closeSend()
}

// closeSend closes the send channel exactly once, terminating the WritePump.
func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.sendClosed {
		s.sendClosed = true
		close(s.send)
	}
}
