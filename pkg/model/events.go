package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a command on the ordered room log.
type EventType string

const (
	EventRoomCreate         EventType = "ROOM_CREATE"
	EventRoomJoin           EventType = "ROOM_JOIN"
	EventPlayerReady        EventType = "PLAYER_READY"
	EventPlayerKick         EventType = "PLAYER_KICK"
	EventMiniGameSelect     EventType = "MINIGAME_SELECT"
	EventGameStart          EventType = "GAME_START"
	EventGameResult         EventType = "GAME_RESULT"
	EventRouletteShow       EventType = "ROULETTE_SHOW"
	EventRouletteSpin       EventType = "ROULETTE_SPIN"
	EventSessionRegistered  EventType = "SESSION_REGISTERED"
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventQrCodeStatus       EventType = "QR_CODE_STATUS"
)

// Event is the envelope written to the ordered log. Entries are immutable
// once enqueued; consumers dispatch on Type and must tolerate replays.
type Event struct {
	ID         string          `json:"eventId"`
	Type       EventType       `json:"type"`
	JoinCode   string          `json:"joinCode"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt int64           `json:"enqueuedAt"`
}

// NewEvent builds an event with a fresh id and the payload serialized in place
func NewEvent(eventType EventType, joinCode string, payload interface{}) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		raw = data
	}

	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		JoinCode:   joinCode,
		Payload:    raw,
		EnqueuedAt: time.Now().UnixMilli(),
	}, nil
}

// DecodePayload unmarshals the event payload into dest
func (e Event) DecodePayload(dest interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Command payloads carried on the ordered log.

type RoomCreatePayload struct {
	HostName string `json:"hostName"`
}

type RoomJoinPayload struct {
	GuestName string `json:"guestName"`
}

type PlayerReadyPayload struct {
	PlayerName string `json:"playerName"`
	Ready      bool   `json:"ready"`
}

type PlayerKickPayload struct {
	HostName   string `json:"hostName"`
	TargetName string `json:"targetName"`
}

type MiniGameSelectPayload struct {
	HostName  string   `json:"hostName"`
	MiniGames []string `json:"miniGames"`
}

type GameStartPayload struct {
	HostName string `json:"hostName"`
}

type GameResultPayload struct {
	MiniGame string   `json:"miniGame"`
	Ranking  []string `json:"ranking"` // player names, best first
}

type RouletteShowPayload struct {
	HostName string `json:"hostName"`
}

type RouletteSpinPayload struct {
	HostName string `json:"hostName"`
}

type SessionRegisteredPayload struct {
	PlayerKey    string `json:"playerKey"`
	ConnectionID string `json:"connectionId"`
}

type PlayerDisconnectedPayload struct {
	PlayerKey    string `json:"playerKey"`
	ConnectionID string `json:"connectionId"`
	Reason       string `json:"reason"`
}

// QR code generation status values
const (
	QrCodeStatusPending = "PENDING"
	QrCodeStatusSuccess = "SUCCESS"
	QrCodeStatusError   = "ERROR"
)

type QrCodeStatusPayload struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// BroadcastFrame is the unit published on the fan-out channel: a destination
// plus the envelope to deliver to every local subscriber of that destination.
type BroadcastFrame struct {
	Destination string   `json:"destination"`
	Response    Envelope `json:"response"`
}
