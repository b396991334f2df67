package protocol

// JoinPayload is sent by a client after connecting to request a squirrel.
// PlayerID is the persisted identity from a previous session, if any.
type JoinPayload struct {
	Name     string `json:"name"`
	PlayerID string `json:"playerId,omitempty"`
	Version  string `json:"version,omitempty"`
}

// WelcomePayload is the server's reply to an accepted join.
type WelcomePayload struct {
	SquirrelID       string  `json:"squirrelId"`
	TickRate         int     `json:"tickRate"`
	HeartbeatSeconds int     `json:"heartbeatSeconds"`
	WorldExtent      float64 `json:"worldExtent"`
	MinHeight        float64 `json:"minHeight"`
	TerrainSeed      int64   `json:"terrainSeed"`
}

// PlayerStatePayload carries one predicted state sample. The sequence number
// rides in the envelope. Velocity is omitted when below the noise floor.
type PlayerStatePayload struct {
	Position Vec     `json:"position"`
	Rotation float64 `json:"rotation"`
	Velocity *Vec    `json:"velocity,omitempty"`
}

// PlayerUpdatePayload is the authoritative state for one squirrel. When
// addressed to its own squirrel it doubles as the acknowledgement for the
// envelope's sequence number.
type PlayerUpdatePayload struct {
	Position Vec     `json:"position"`
	Rotation float64 `json:"rotation"`
	Velocity *Vec    `json:"velocity,omitempty"`
}

// PlayerInfo describes one squirrel in a roster message.
type PlayerInfo struct {
	SquirrelID string  `json:"squirrelId"`
	Name       string  `json:"name"`
	Position   Vec     `json:"position"`
	Rotation   float64 `json:"rotation"`
}

// PlayerJoinedPayload announces a new squirrel.
type PlayerJoinedPayload struct {
	PlayerInfo
}

// PlayerLeftPayload announces a departed squirrel. The id rides in the
// envelope's squirrelId field; the payload is empty but kept for symmetry.
type PlayerLeftPayload struct{}

// ExistingPlayersPayload lists every squirrel already in the world, sent
// once after welcome.
type ExistingPlayersPayload struct {
	Players []PlayerInfo `json:"players"`
}

// WorldStatePayload is the full world snapshot. When Encoding is set, Blob
// holds the compressed serialization of this same payload and the inline
// fields are empty.
type WorldStatePayload struct {
	Players     []PlayerInfo `json:"players,omitempty"`
	TerrainSeed int64        `json:"terrainSeed,omitempty"`

	Encoding string `json:"encoding,omitempty"` // "flate"
	Blob     string `json:"blob,omitempty"`     // base64
}

// HeartbeatPayload is empty; liveness is the envelope timestamp.
type HeartbeatPayload struct{}

// ErrorPayload carries a human-readable rejection reason.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// BatchPayload wraps coalesced envelopes. When Encoding is set, Blob holds
// the run-length-encoded serialization of Messages and Messages is empty.
type BatchPayload struct {
	Messages []Envelope `json:"messages,omitempty"`

	Encoding string `json:"encoding,omitempty"` // "rle"
	Blob     string `json:"blob,omitempty"`     // base64
}
