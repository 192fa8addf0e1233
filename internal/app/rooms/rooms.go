/*
Package rooms contains the core logic for co-working rooms: room lifecycle,
participant presence, and message history.

This file defines the room data model and the Service, which owns all room
state transitions. Rooms, participants and messages are documents in the
realtime store, so every mutation here is observable by the websocket layer
through path subscriptions.
*/
package rooms

import (
	"encoding/json"
	"errors"
	"fmt"

	"bizhub/internal/app/identity"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"
	"bizhub/internal/pkg/randx"

	"github.com/rs/zerolog"
)

const (
	// MinMembers is the smallest allowed room capacity.
	MinMembers = 2

	// MaxMembersLimit is the largest allowed room capacity.
	MaxMembersLimit = 50

	// MaxContentBytes is the maximum allowed size (in bytes) for message content.
	MaxContentBytes = 5000

	// MaxNameLength bounds room and company names.
	MaxNameLength = 100

	// roomIDAttempts bounds the retries on a generated-id collision.
	roomIDAttempts = 5
)

// MessageTypeText is the only message kind rooms carry.
const MessageTypeText = "text"

// Room is the metadata document stored at rooms/{id}.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CompanyName string `json:"companyName,omitempty"`
	Creator     string `json:"creator"`
	MaxMembers  int    `json:"maxMembers"`
	CreatedAt   int64  `json:"createdAt"`
}

// Participant is a presence document stored at rooms/{id}/participants/{uid}.
type Participant struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Message is a chat document stored at rooms/{id}/messages/{key}.
type Message struct {
	Content     string `json:"content"`
	Sender      string `json:"sender"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Type        string `json:"type"`
}

// Service owns all room state transitions against the realtime store.
type Service struct {
	store  *rtstore.Store
	logger zerolog.Logger
}

// NewService constructs a room Service over the given store.
func NewService(store *rtstore.Store) *Service {
	return &Service{
		store:  store,
		logger: logx.Logger().With().Str("component", "RoomService").Logger(),
	}
}

// RoomPath returns the store path of the room metadata document.
func RoomPath(roomID string) string {
	return "rooms/" + roomID
}

// ParticipantPath returns the store path of one participant's presence document.
func ParticipantPath(roomID, uid string) string {
	return RoomPath(roomID) + "/participants/" + uid
}

func messagesPath(roomID string) string {
	return RoomPath(roomID) + "/messages"
}

// ValidateCreate checks the room creation parameters. It touches no state, so
// callers can run it before charging the creation cost.
func ValidateCreate(name, companyName string, maxMembers int) *errs.CustomError {
	if name == "" || len(name) > MaxNameLength {
		return errs.NewError(errs.ErrRoomNameRequired)
	}
	if len(companyName) > MaxNameLength {
		return errs.NewError(errs.ErrInvalidParams, "companyName too long")
	}
	if maxMembers < MinMembers || maxMembers > MaxMembersLimit {
		return errs.NewError(errs.ErrInvalidParams,
			fmt.Sprintf("maxMembers must be between %d and %d", MinMembers, MaxMembersLimit))
	}

	return nil
}

// Create validates the request, generates a room id, and writes the room with
// its creator as the first participant. The caller is responsible for having
// debited the room-creation cost beforehand.
func (s *Service) Create(host identity.Identity, name, companyName string, maxMembers int) (Room, *errs.CustomError) {
	if customErr := ValidateCreate(name, companyName, maxMembers); customErr != nil {
		return Room{}, customErr
	}

	room := Room{
		Name:        name,
		CompanyName: companyName,
		Creator:     host.ID,
		MaxMembers:  maxMembers,
	}

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		for attempt := 0; ; attempt++ {
			id, err := randx.RoomID()
			if err != nil {
				return err
			}
			room.ID = id

			if _, exists, err := tx.Read(RoomPath(room.ID)); err != nil {
				return err
			} else if !exists {
				break
			}
			if attempt == roomIDAttempts-1 {
				return fmt.Errorf("exhausted room id attempts")
			}
		}

		if err := tx.Write(RoomPath(room.ID), map[string]any{
			"id":          room.ID,
			"name":        room.Name,
			"companyName": room.CompanyName,
			"creator":     room.Creator,
			"maxMembers":  room.MaxMembers,
			"createdAt":   rtstore.ServerTimestamp,
		}); err != nil {
			return err
		}

		if err := tx.Write(ParticipantPath(room.ID, host.ID), Participant{
			UID:         host.ID,
			DisplayName: host.DisplayName,
			AvatarURL:   host.AvatarURL,
		}); err != nil {
			return err
		}

		// Read back so the returned room carries the resolved creation time.
		_, err := tx.ReadInto(RoomPath(room.ID), &room)
		return err
	})
	if err != nil {
		logx.Error(err, "Failed to create room", "host_id", host.ID)
		return Room{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	s.logger.Info().
		Str("room_id", room.ID).
		Str("host_id", host.ID).
		Int("max_members", maxMembers).
		Msg("Room created.")

	return room, nil
}

// Get returns the room metadata document.
func (s *Service) Get(roomID string) (Room, *errs.CustomError) {
	if !randx.IsValidRoomID(roomID) {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	var room Room
	raw, exists, err := s.store.Read(RoomPath(roomID))
	if err != nil {
		logx.Error(err, "Failed to read room", "room_id", roomID)
		return Room{}, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}
	if err := json.Unmarshal(raw, &room); err != nil {
		logx.Error(err, "Corrupt room document", "room_id", roomID)
		return Room{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	return room, nil
}

// Join adds the user to the room's participants. The existence check, capacity
// check and presence write happen in one atomic update, so the room can never
// exceed maxMembers no matter how many joins race. Rejoining is idempotent:
// a user already present refreshes their presence document and never counts
// against capacity twice.
func (s *Service) Join(roomID string, id identity.Identity) (Room, *errs.CustomError) {
	if !randx.IsValidRoomID(roomID) {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}

	var room Room

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		exists, err := tx.ReadInto(RoomPath(roomID), &room)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrRoomNotFound)
		}

		_, present, err := tx.Read(ParticipantPath(roomID, id.ID))
		if err != nil {
			return err
		}

		if !present {
			count, err := tx.CountChildren(RoomPath(roomID) + "/participants")
			if err != nil {
				return err
			}
			if count >= room.MaxMembers {
				return errs.NewError(errs.ErrRoomIsFull)
			}
		}

		return tx.Write(ParticipantPath(roomID, id.ID), Participant{
			UID:         id.ID,
			DisplayName: id.DisplayName,
			AvatarURL:   id.AvatarURL,
		})
	})
	if customErr := asCustomError(err); customErr != nil {
		return Room{}, customErr
	}
	if err != nil {
		logx.Error(err, "Failed to join room", "room_id", roomID, "user_id", id.ID)
		return Room{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	s.logger.Info().
		Str("room_id", roomID).
		Str("user_id", id.ID).
		Msg("Participant joined room.")

	return room, nil
}

// Leave removes the user's presence document. Leaving a room the user is not
// in is a no-op.
func (s *Service) Leave(roomID, uid string) *errs.CustomError {
	if !randx.IsValidRoomID(roomID) {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	if err := s.store.Delete(ParticipantPath(roomID, uid)); err != nil {
		logx.Error(err, "Failed to leave room", "room_id", roomID, "user_id", uid)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	s.logger.Info().
		Str("room_id", roomID).
		Str("user_id", uid).
		Msg("Participant left room.")

	return nil
}

// Delete removes the room and its entire subtree. Only the room's creator may
// delete it; every subscriber observes the deletion as a non-existent snapshot.
func (s *Service) Delete(roomID, uid string) *errs.CustomError {
	if !randx.IsValidRoomID(roomID) {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		var room Room
		exists, err := tx.ReadInto(RoomPath(roomID), &room)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrRoomNotFound)
		}
		if room.Creator != uid {
			return errs.NewError(errs.ErrNotRoomHost)
		}

		return tx.Delete(RoomPath(roomID))
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to delete room", "room_id", roomID, "user_id", uid)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	s.logger.Info().
		Str("room_id", roomID).
		Str("user_id", uid).
		Msg("Room deleted by host.")

	return nil
}

// AppendMessage validates and appends a text message to the room's history.
// The sender must currently be a participant. The timestamp is assigned by the
// store at commit time, so history order matches commit order.
func (s *Service) AppendMessage(roomID string, sender identity.Identity, content string) *errs.CustomError {
	if !randx.IsValidRoomID(roomID) {
		return errs.NewError(errs.ErrRoomNotFound)
	}
	if content == "" || len(content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentInvalid)
	}

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		_, exists, err := tx.Read(RoomPath(roomID))
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrRoomNotFound)
		}

		_, present, err := tx.Read(ParticipantPath(roomID, sender.ID))
		if err != nil {
			return err
		}
		if !present {
			return errs.NewError(errs.ErrUnauthorized)
		}

		_, err = tx.Append(messagesPath(roomID), map[string]any{
			"content":     content,
			"sender":      sender.ID,
			"displayName": sender.DisplayName,
			"avatarUrl":   sender.AvatarURL,
			"timestamp":   rtstore.ServerTimestamp,
			"type":        MessageTypeText,
		})
		return err
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to append message", "room_id", roomID, "user_id", sender.ID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}

// Participants returns the room's current presence documents.
func (s *Service) Participants(roomID string) ([]Participant, *errs.CustomError) {
	if !randx.IsValidRoomID(roomID) {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	var byUID map[string]Participant
	exists, err := s.store.ReadInto(RoomPath(roomID)+"/participants", &byUID)
	if err != nil {
		logx.Error(err, "Failed to read participants", "room_id", roomID)
		return nil, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return []Participant{}, nil
	}

	participants := make([]Participant, 0, len(byUID))
	for _, participant := range byUID {
		participants = append(participants, participant)
	}
	return participants, nil
}

// asCustomError unwraps a domain error carried out of a store transaction.
func asCustomError(err error) *errs.CustomError {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return nil
}
