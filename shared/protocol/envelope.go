// Package protocol defines the JSON wire contract between client and server.
// Every frame is an Envelope; payloads are decoded into typed structs at the
// transport boundary so malformed frames never reach game logic.
package protocol

import "encoding/json"

// Message types, client -> server.
const (
	TypeJoin        = "join"
	TypePlayerState = "player_state"
	TypeHeartbeat   = "heartbeat" // both directions
)

// Message types, server -> client.
const (
	TypeWelcome         = "welcome"
	TypePlayerUpdate    = "player_update"
	TypePositionUpdate  = "position_update" // legacy alias of player_update
	TypePlayerJoined    = "player_joined"
	TypePlayerLeft      = "player_left"
	TypeExistingPlayers = "existing_players"
	TypeWorldState      = "world_state"
	TypeError           = "error"
)

// TypeBatch wraps several envelopes coalesced into one transport frame.
const TypeBatch = "batch"

// Envelope is the outer frame shared by every message.
type Envelope struct {
	Type       string          `json:"type"`
	SquirrelID string          `json:"squirrelId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  int64           `json:"timestamp"` // unix ms
	Sequence   uint64          `json:"sequenceNumber,omitempty"`
}

// Vec is a wire-format vector. Fields are rounded by the batching layer
// before serialization.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
