package core

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/oakgrove/scamper-mp/shared/encoding"
	"github.com/oakgrove/scamper-mp/shared/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallSnapshotStaysInline(t *testing.T) {
	world := NewWorld(7)
	world.Spawn("sq-1", "hazel")

	env, ok := BuildWorldState(world)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeWorldState, env.Type)

	var payload protocol.WorldStatePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Empty(t, payload.Encoding)
	require.Len(t, payload.Players, 1)
	assert.Equal(t, "sq-1", payload.Players[0].SquirrelID)
	assert.Equal(t, int64(7), payload.TerrainSeed)
}

func TestLargeSnapshotIsCompressed(t *testing.T) {
	world := NewWorld(7)
	for i := 0; i < 40; i++ {
		world.Spawn(fmt.Sprintf("sq-%d", i), fmt.Sprintf("squirrel-%d", i))
	}

	env, ok := BuildWorldState(world)
	require.True(t, ok)

	var payload protocol.WorldStatePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "flate", payload.Encoding)
	assert.Empty(t, payload.Players)

	// The blob round-trips to the full roster.
	raw, err := encoding.DecompressFlate(payload.Blob)
	require.NoError(t, err)

	var inner protocol.WorldStatePayload
	require.NoError(t, json.Unmarshal(raw, &inner))
	assert.Len(t, inner.Players, 40)
	assert.Equal(t, int64(7), inner.TerrainSeed)
}
