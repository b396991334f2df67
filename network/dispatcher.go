package network

import "github.com/oakgrove/scamper-mp/shared/protocol"

// Dispatcher routes decoded server messages as typed calls. Replaces a
// stringly-typed event bus: payload shapes are checked at compile time and
// malformed frames never reach these handlers.
type Dispatcher interface {
	HandleWelcome(p protocol.WelcomePayload)
	HandlePlayerUpdate(squirrelID string, seq uint64, p protocol.PlayerUpdatePayload)
	HandlePlayerJoined(p protocol.PlayerJoinedPayload)
	HandlePlayerLeft(squirrelID string)
	HandleExistingPlayers(p protocol.ExistingPlayersPayload)
	HandleWorldState(p protocol.WorldStatePayload)
	HandleHeartbeat(timestamp int64)
	HandleServerError(reason string)
}
