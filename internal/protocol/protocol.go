// internal/protocol/protocol.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cardtable/uno/internal/cards"
	"github.com/cardtable/uno/internal/game"
)

// Every wire message is one self-contained JSON object of the form
// {"type": "...", "data": {...}}, one message per websocket text frame.

// Client-to-server message types.
const (
	TypeJoinGame              = "JoinGame"
	TypeStartGame             = "StartGame"
	TypePlayCard              = "PlayCard"
	TypeDrawCard              = "DrawCard"
	TypePassTurn              = "PassTurn"
	TypeChallengeWildDrawFour = "ChallengeWildDrawFour"
	TypeLeaveGame             = "LeaveGame"
)

// Server-to-client message types.
const (
	TypeWelcome     = "Welcome"
	TypeEvents      = "Events"
	TypeSharedState = "SharedState"
	TypePlayerState = "PlayerState"
	TypeServerError = "ServerError"
)

// Envelope is the tagged wrapper around every message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses one wire frame into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("bad json: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("message missing type")
	}
	return env, nil
}

// DecodeData parses an envelope's payload into the message struct for its
// type. Pass a pointer to the matching payload type.
func (e Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: missing data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: bad data: %w", e.Type, err)
	}
	return nil
}

// Encode builds one wire frame from a message type tag and its payload.
func Encode(typ string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Data: data})
}

// --- Client-to-server payloads ---

// JoinGame must be the first message on every connection. Session is
// optional: a client rejoining after a drop may present the token from its
// last Welcome, and the server checks it was issued for the same room.
type JoinGame struct {
	RoomID  string `json:"room_id"`
	Name    string `json:"name"`
	Session string `json:"session,omitempty"`
}

type StartGame struct {
	PlayerID int `json:"player_id"`
}

type PlayCard struct {
	PlayerID  int         `json:"player_id"`
	CardIndex int         `json:"card_index"`
	Color     cards.Color `json:"color"`
	CallUno   bool        `json:"call_uno"`
}

type DrawCard struct {
	PlayerID int `json:"player_id"`
	Count    int `json:"count"`
}

type PassTurn struct {
	PlayerID int `json:"player_id"`
}

// ChallengeWildDrawFour is accepted on the wire but always rejected; the
// challenge rule is an unimplemented stub.
type ChallengeWildDrawFour struct {
	ChallengerID int `json:"challenger_id"`
	ChallengedID int `json:"challenged_id"`
}

type LeaveGame struct {
	PlayerID int `json:"player_id"`
}

// --- Server-to-client payloads ---

type Welcome struct {
	PlayerID  int    `json:"player_id"`
	SessionID string `json:"session_id"`
}

// SharedState is the public snapshot broadcast after every mutating command.
type SharedState struct {
	Players       []game.HandCount `json:"players_cards_count"`
	TopCard       *cards.Card      `json:"top_card"`
	CurrentPlayer int              `json:"current_player"`
	Clockwise     bool             `json:"clockwise"`
}

// PlayerState is the private snapshot of one player's own hand.
type PlayerState struct {
	PlayerID int          `json:"player_id"`
	Hand     []cards.Card `json:"hand"`
}

type ServerError struct {
	Message string `json:"message"`
}

// EncodeServerError is a convenience for the error reply path. It never
// fails for a plain message; an encoding error falls back to a fixed frame.
func EncodeServerError(message string) []byte {
	raw, err := Encode(TypeServerError, ServerError{Message: message})
	if err != nil {
		return []byte(`{"type":"ServerError","data":{"message":"internal error"}}`)
	}
	return raw
}
