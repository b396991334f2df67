package core

import (
	"encoding/json"
	"log"

	"github.com/oakgrove/scamper-mp/shared/encoding"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/protocol"
	"github.com/yohamta/donburi"
)

// BuildWorldState assembles the full world snapshot envelope sent on join.
// Snapshots dwarf regular updates, so payloads above the compression
// threshold go out deflated.
func BuildWorldState(world *World) (protocol.Envelope, bool) {
	payload := protocol.WorldStatePayload{
		TerrainSeed: world.Terrain().Seed(),
	}
	world.ForEach(func(id string, entry *donburi.Entry) {
		tf := netcomponents.Transform.Get(entry)
		ident := netcomponents.NetIdentity.Get(entry)
		payload.Players = append(payload.Players, protocol.PlayerInfo{
			SquirrelID: id,
			Name:       ident.Name,
			Position:   protocol.FromVec3(tf.Position),
			Rotation:   tf.Rotation,
		})
	})

	inline, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[server] world_state marshal: %v", err)
		return protocol.Envelope{}, false
	}

	if len(inline) > netconfig.CompressThreshold {
		blob, err := encoding.CompressFlate(inline)
		if err != nil {
			log.Printf("[server] world_state compress: %v", err)
		} else {
			payload = protocol.WorldStatePayload{Encoding: "flate", Blob: blob}
		}
	}

	env, err := protocol.NewEnvelope(protocol.TypeWorldState, "", 0, payload)
	if err != nil {
		log.Printf("[server] world_state envelope: %v", err)
		return protocol.Envelope{}, false
	}
	return env, true
}
