package network

import (
	"context"
	"testing"

	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/protocol"
	"github.com/oakgrove/scamper-mp/shared/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remotePose reads a mirror's current interpolated transform.
func remotePose(t *testing.T, s *ClientSession, id string) netcomponents.TransformData {
	t.Helper()
	s.mu.Lock()
	entry, ok := s.remotes[id]
	s.mu.Unlock()
	require.True(t, ok)
	return *netcomponents.Transform.Get(entry)
}

func TestWelcomeAdoptsIdentityAndTerrain(t *testing.T) {
	s := NewClientSession("localhost:0")

	s.HandleWelcome(protocol.WelcomePayload{
		SquirrelID:  "sq-local",
		TickRate:    20,
		TerrainSeed: 77,
	})

	h, err := s.HeightAt(context.Background(), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, terrain.NewField(77).Sample(3, 4), h)
}

func TestHeightBeforeWelcomeFails(t *testing.T) {
	s := NewClientSession("localhost:0")
	_, err := s.HeightAt(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestRemoteUpdateFeedsVisibility(t *testing.T) {
	s := NewClientSession("localhost:0")
	s.HandleWelcome(protocol.WelcomePayload{SquirrelID: "sq-local", TerrainSeed: 1})

	s.HandlePlayerJoined(protocol.PlayerJoinedPayload{
		PlayerInfo: protocol.PlayerInfo{
			SquirrelID: "sq-remote",
			Name:       "nutkin",
			Position:   protocol.Vec{X: 5, Y: 2, Z: 0},
		},
	})

	// The local squirrel starts near the origin, so 5 units away is well
	// inside interest range.
	s.HandlePlayerUpdate("sq-remote", 0, protocol.PlayerUpdatePayload{
		Position: protocol.Vec{X: 5, Y: 2, Z: 0},
	})

	state, ok := s.Visibility.State("sq-remote")
	require.True(t, ok)
	assert.Equal(t, StateEntering, state)

	// Step past the fade-in via the frame hook.
	s.Frame(0.35)
	state, _ = s.Visibility.State("sq-remote")
	assert.Equal(t, StateVisible, state)
}

func TestJoinSnapsMirrorPose(t *testing.T) {
	s := NewClientSession("localhost:0")

	s.HandlePlayerJoined(protocol.PlayerJoinedPayload{
		PlayerInfo: protocol.PlayerInfo{
			SquirrelID: "sq-remote",
			Position:   protocol.Vec{X: 30, Y: 2, Z: -4},
			Rotation:   1.2,
		},
	})

	tf := remotePose(t, s, "sq-remote")
	assert.Equal(t, 30.0, tf.Position.X)
	assert.Equal(t, -4.0, tf.Position.Z)
	assert.Equal(t, 1.2, tf.Rotation)
}

func TestRemoteUpdateEasesTowardPose(t *testing.T) {
	s := NewClientSession("localhost:0")
	s.HandleWelcome(protocol.WelcomePayload{SquirrelID: "sq-local", TerrainSeed: 1})

	s.HandlePlayerJoined(protocol.PlayerJoinedPayload{
		PlayerInfo: protocol.PlayerInfo{
			SquirrelID: "sq-remote",
			Position:   protocol.Vec{X: 5, Y: 2, Z: 0},
		},
	})

	s.HandlePlayerUpdate("sq-remote", 0, protocol.PlayerUpdatePayload{
		Position: protocol.Vec{X: 8, Y: 2, Z: 0},
	})

	// The authoritative pose becomes a target; one 60 Hz frame moves the
	// mirror partway there, not all the way.
	s.Frame(1.0 / 60)
	tf := remotePose(t, s, "sq-remote")
	assert.Greater(t, tf.Position.X, 5.0)
	assert.Less(t, tf.Position.X, 8.0)

	// A second's worth of frames converges on the target.
	for i := 0; i < 60; i++ {
		s.Frame(1.0 / 60)
	}
	tf = remotePose(t, s, "sq-remote")
	assert.InDelta(t, 8.0, tf.Position.X, 0.01)
}

func TestExistingPlayersSeedMirrors(t *testing.T) {
	s := NewClientSession("localhost:0")

	s.HandleExistingPlayers(protocol.ExistingPlayersPayload{
		Players: []protocol.PlayerInfo{
			{SquirrelID: "sq-a", Position: protocol.Vec{X: 1, Y: 1, Z: 1}},
			{SquirrelID: "sq-b", Position: protocol.Vec{X: 2, Y: 1, Z: 2}},
		},
	})

	_, hasA := s.Visibility.State("sq-a")
	_, hasB := s.Visibility.State("sq-b")
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestPlayerLeftDropsMirror(t *testing.T) {
	s := NewClientSession("localhost:0")
	s.HandlePlayerJoined(protocol.PlayerJoinedPayload{
		PlayerInfo: protocol.PlayerInfo{SquirrelID: "sq-remote"},
	})

	s.HandlePlayerLeft("sq-remote")
	_, ok := s.Visibility.State("sq-remote")
	assert.False(t, ok)
}

func TestWorldStateSeedsMirrors(t *testing.T) {
	s := NewClientSession("localhost:0")

	s.HandleWorldState(protocol.WorldStatePayload{
		TerrainSeed: 5,
		Players: []protocol.PlayerInfo{
			{SquirrelID: "sq-x", Position: protocol.Vec{X: 3, Y: 1, Z: 3}},
		},
	})

	_, ok := s.Visibility.State("sq-x")
	assert.True(t, ok)

	h, err := s.HeightAt(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, terrain.NewField(5).Sample(0, 0), h)
}
