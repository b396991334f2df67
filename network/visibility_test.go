package network

import (
	"testing"

	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterFadeInBecomesVisible(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")

	m.UpdateDistance("a", 10)
	state, _ := m.State("a")
	assert.Equal(t, StateEntering, state)

	snap := m.Snapshot("a")
	assert.Less(t, snap.Opacity, 1.0)

	m.Step(0.35) // past the 300 ms fade-in
	state, _ = m.State("a")
	assert.Equal(t, StateVisible, state)
	assert.Equal(t, 1.0, m.Snapshot("a").Opacity)
}

func TestAllTransitionsStayLegal(t *testing.T) {
	m := NewVisibilityManager()
	m.OnTransition = func(id string, from, to VisState) {
		assert.True(t, CanTransition(from, to), "illegal transition %s -> %s", from, to)
	}
	m.Track("a")

	// Walk a full lifecycle: approach, appear, retreat, cull, return.
	m.UpdateDistance("a", 10)
	m.Step(0.35)
	m.UpdateDistance("a", 60)
	m.Step(0.25)
	m.UpdateDistance("a", 150)
	m.UpdateDistance("a", 80)
	m.UpdateDistance("a", 5)
	m.Step(0.35)

	state, _ := m.State("a")
	assert.Equal(t, StateVisible, state)
}

func TestSpawnInFadeBandStaysInvisible(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")

	// First sighting at 60 units: between interest and culling radius. The
	// entity has never been visible, so there is nothing to fade out.
	m.UpdateDistance("a", 60)
	m.Step(1)

	state, _ := m.State("a")
	assert.Equal(t, StateInvisible, state)
}

func TestVisibleEntityLeavingFadesOut(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")
	m.UpdateDistance("a", 10)
	m.Step(0.35)

	m.UpdateDistance("a", 60)
	state, _ := m.State("a")
	assert.Equal(t, StateLeaving, state)

	m.Step(0.25) // past the 200 ms fade-out
	state, _ = m.State("a")
	assert.Equal(t, StateInvisible, state)
	assert.False(t, m.Snapshot("a").Visible)
}

func TestLeavingBeyondCullingRadiusCulls(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")
	m.UpdateDistance("a", 10)
	m.Step(0.35)

	m.UpdateDistance("a", 150)
	state, _ := m.State("a")
	assert.Equal(t, StateLeaving, state, "fade-out runs before the cull")

	m.Step(0.25)
	state, _ = m.State("a")
	assert.Equal(t, StateCulled, state)
	assert.False(t, m.Snapshot("a").Visible)
}

func TestReturnMidFadeReenters(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")
	m.UpdateDistance("a", 10)
	m.Step(0.35)

	m.UpdateDistance("a", 60)
	// Comes back before the fade-out finishes.
	m.UpdateDistance("a", 10)

	state, _ := m.State("a")
	assert.Equal(t, StateEntering, state)

	m.Step(0.35)
	state, _ = m.State("a")
	assert.Equal(t, StateVisible, state)
}

func TestCulledReturnsWithoutFlash(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")
	m.UpdateDistance("a", 10)
	m.Step(0.35)
	m.UpdateDistance("a", 150)
	m.Step(0.25)

	state, _ := m.State("a")
	require.Equal(t, StateCulled, state)

	// Back into the fade band first: eligible again but not yet showing.
	m.UpdateDistance("a", 80)
	state, _ = m.State("a")
	assert.Equal(t, StateInvisible, state)

	// Then into interest range: normal fade-in.
	m.UpdateDistance("a", 20)
	state, _ = m.State("a")
	assert.Equal(t, StateEntering, state)
}

func TestRateHints(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")

	m.UpdateDistance("a", 5)
	assert.Equal(t, 20, m.RateHint("a"))
	m.UpdateDistance("a", 20)
	assert.Equal(t, 10, m.RateHint("a"))
	m.UpdateDistance("a", 30)
	assert.Equal(t, 5, m.RateHint("a"))
	m.UpdateDistance("a", 45)
	assert.Equal(t, 2, m.RateHint("a"))

	// Culled entities get nothing.
	m.UpdateDistance("a", 10)
	m.Step(0.35)
	m.UpdateDistance("a", 150)
	m.Step(0.25)
	assert.Equal(t, 0, m.RateHint("a"))

	assert.Equal(t, 0, m.RateHint("unknown"))
}

func TestRateForDistanceBands(t *testing.T) {
	assert.Equal(t, 20, netconfig.RateForDistance(0))
	assert.Equal(t, 20, netconfig.RateForDistance(10))
	assert.Equal(t, 10, netconfig.RateForDistance(25))
	assert.Equal(t, 5, netconfig.RateForDistance(40))
	assert.Equal(t, 2, netconfig.RateForDistance(41))
	assert.Equal(t, 2, netconfig.RateForDistance(500))
}

func TestRemoveForgetsEntity(t *testing.T) {
	m := NewVisibilityManager()
	m.Track("a")
	m.UpdateDistance("a", 10)
	m.Remove("a")

	_, ok := m.State("a")
	assert.False(t, ok)
}
