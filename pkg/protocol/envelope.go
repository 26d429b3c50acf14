// Package protocol defines the wire format spoken on the /battle websocket:
// JSON control envelopes in both directions, plus raw simulator protocol
// lines (always starting with '|') flowing server to client.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Side identifies a viewpoint inside a match. It is never a ConnectionID:
// the socket bound to a Side may be replaced many times over a match's life.
type Side string

const (
	SideP1 Side = "p1"
	SideP2 Side = "p2"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideP1 {
		return SideP2
	}
	return SideP1
}

func (s Side) Valid() bool {
	return s == SideP1 || s == SideP2
}

// EnvelopeType enumerates the client<->server JSON envelope "type" field.
type EnvelopeType string

const (
	// Client -> Server
	EnvCreateRoom EnvelopeType = "create-room"
	EnvJoinRoom   EnvelopeType = "join-room"
	EnvStart      EnvelopeType = "start"
	EnvChoose     EnvelopeType = "choose"

	// Server -> Client
	EnvRoomCreated         EnvelopeType = "room-created"
	EnvRoomUpdate          EnvelopeType = "room-update"
	EnvBattleStarted       EnvelopeType = "battle-started"
	EnvBattleReconnected   EnvelopeType = "battle-reconnected"
	EnvOpponentDisconnect  EnvelopeType = "opponent-disconnected"
	EnvError               EnvelopeType = "error"
)

// Mode selects AI or PvP matchmaking for a "start" envelope.
type Mode string

const (
	ModeAI  Mode = "ai"
	ModePvP Mode = "pvp"
)

// Envelope is the generic client<->server JSON frame. ID is optional and
// client-assigned; when present it lets ConnectionController recognize a
// retried envelope (a client that resent "choose" because it never saw
// an ack) as the duplicate it is rather than applying it twice.
type Envelope struct {
	Type    EnvelopeType    `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateRoomPayload is the body of a "create-room" envelope.
type CreateRoomPayload struct {
	FormatID string `json:"formatID"`
}

// StartPayload is the body of a "start" envelope.
type StartPayload struct {
	Mode       Mode          `json:"mode"`
	FormatID   string        `json:"formatID"`
	Team       []PokemonSpec `json:"team,omitempty"`
	RoomID     string        `json:"roomID,omitempty"`
	Side       Side          `json:"side,omitempty"`
	Seed       *int64        `json:"seed,omitempty"`
	Difficulty string        `json:"difficulty,omitempty"`
}

// JoinRoomPayload is the body of a "join-room" envelope. Side is only
// meaningful on a reconnect to a room already battling; it is the
// client's memory of which side it was, one of the three sources
// DetermineReconnectSide consults.
type JoinRoomPayload struct {
	RoomID string `json:"roomID"`
	Side   Side   `json:"side,omitempty"`
}

// ChoosePayload is the body of a "choose" envelope.
type ChoosePayload struct {
	Command string `json:"command"`
}

// RoomCreatedPayload is sent after create-room.
type RoomCreatedPayload struct {
	RoomID string `json:"roomID"`
}

// RoomUpdatePayload mirrors a Room's externally visible state.
type RoomUpdatePayload struct {
	RoomID   string `json:"roomID"`
	Status   string `json:"status"`
	P1Ready  bool   `json:"p1Ready"`
	P2Ready  bool   `json:"p2Ready"`
}

// BattleStartedPayload announces a PvP match beginning.
type BattleStartedPayload struct {
	RoomID string `json:"roomID"`
}

// BattleReconnectedPayload announces a completed replay.
type BattleReconnectedPayload struct {
	Side    Side   `json:"side"`
	Message string `json:"message"`
}

// OpponentDisconnectedPayload is sent to whichever side remains in a room
// when the other side's socket drops before (or between) battles.
type OpponentDisconnectedPayload struct {
	Side Side `json:"side"`
}

// ErrorPayload carries a user-facing error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload and wraps it with a type tag.
func NewEnvelope(t EnvelopeType, payload interface{}) *Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		// payload types here are always static structs; a marshal failure
		// means a programming error, not a runtime condition to recover from.
		panic(fmt.Sprintf("protocol: cannot marshal %s payload: %v", t, err))
	}
	return &Envelope{Type: t, Payload: raw}
}

// ErrorEnvelope is a convenience constructor for the common error case.
func ErrorEnvelope(message string) *Envelope {
	return NewEnvelope(EnvError, ErrorPayload{Message: message})
}

// Decode unmarshals the envelope payload into dst.
func (e *Envelope) Decode(dst interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

// IsProtocolLine reports whether a raw server->client frame carries
// simulator protocol rather than a JSON envelope: clients distinguish by
// first byte, '{' for JSON, '|' for protocol.
func IsProtocolLine(frame []byte) bool {
	return len(frame) > 0 && frame[0] == '|'
}
