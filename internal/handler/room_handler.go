/*
Package handler provides HTTP handler functions for room lifecycle management.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizhub/internal/app/credits"
	"bizhub/internal/app/rooms"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"
)

type CreateRoomInput struct {
	Name        string `json:"name"`
	CompanyName string `json:"companyName"`
	MaxMembers  int    `json:"maxMembers"`
}

// HandleCreateRoom charges the room-creation cost and creates the room with
// the caller as host and first participant.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// Validate before debiting so a rejected request never costs credits.
		if customErr := rooms.ValidateCreate(input.Name, input.CompanyName, input.MaxMembers); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureCoWorkingRoom)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		room, customErr := deps.Rooms.Create(identityFromPayload(payload), input.Name, input.CompanyName, input.MaxMembers)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room":        room,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}

// HandleGetRoom returns the room metadata and its current participants.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		room, customErr := deps.Rooms.Get(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		participants, customErr := deps.Rooms.Participants(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room":         room,
			"participants": participants,
		})
	}
}

// HandleDeleteRoom removes a room; only its host may do so.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := chi.URLParam(r, "roomID")

		if customErr := deps.Rooms.Delete(roomID, payload.ID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"deleted": true})
	}
}
