/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate
limiting, authenticating the connecting user, joining them into the room, and
initiating the session lifecycle with its disconnect cleanup armed.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"bizhub/internal/app/rooms"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/limiter"
	"bizhub/internal/pkg/logx"
	"bizhub/internal/pkg/randx"
	"bizhub/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			logx.Warn("WebSocket request rejected: Missing room id")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		// Browsers cannot set Authorization headers on WebSocket requests,
		// so the token arrives as a query parameter.
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: invalid token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		user := identityFromPayload(payload)

		// Join before upgrading: a full or missing room is reported as a
		// regular HTTP error the client can render.
		if _, customErr := deps.Rooms.Join(roomID, user); customErr != nil {
			logx.Info("WebSocket connection rejected at join.",
				"room_id", roomID, "user_id", user.ID, "code", customErr.Code)
			resp.RespondError(w, r, customErr)
			return
		}

		// Arm before the upgrade so this connection owns the presence entry
		// for the whole handshake; a superseded connection's teardown can
		// then never delete it.
		connToken := randx.RecordID()
		if err := deps.Store.ArmDisconnectCleanup(connToken, rooms.ParticipantPath(roomID, user.ID)); err != nil {
			logx.Error(err, "Failed to arm disconnect cleanup", "room_id", roomID, "user_id", user.ID)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			deps.Store.FireDisconnect(connToken)
			return
		}

		session := rooms.NewSession(deps.Hub, deps.Rooms, deps.Store, conn, user, roomID, connToken)
		if err := session.Start(); err != nil {
			logx.Error(err, "Failed to start session", "room_id", roomID, "user_id", user.ID)
			deps.Store.FireDisconnect(connToken)
			_ = conn.Close()
			return
		}

		logx.Info("WebSocket connection established and session registered",
			"user_id", user.ID, "room_id", roomID)
	}
}
