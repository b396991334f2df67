package network

import (
	"testing"
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
)

// newTestPredictor builds a predictor over a fresh entity with no terrain
// sampler, so height always resolves to the fallback and tests stay
// deterministic.
func newTestPredictor() (*PredictionBuffer, *Predictor) {
	world := donburi.NewWorld()
	entity := world.Create(
		netcomponents.Transform,
		netcomponents.Velocity,
		netcomponents.NetIdentity,
	)
	entry := world.Entry(entity)

	bounds := gamemath.Bounds{
		MinX: -netconfig.WorldExtent, MaxX: netconfig.WorldExtent,
		MinZ: -netconfig.WorldExtent, MaxZ: netconfig.WorldExtent,
		MinY: netconfig.WorldMinHeight,
	}
	buffer := NewPredictionBuffer()
	return buffer, NewPredictor(entry, buffer, bounds, nil)
}

func TestThresholdScaling(t *testing.T) {
	tp := DefaultThresholdParams()

	// Moving: 1 cm base widened by 1.5.
	assert.InDelta(t, 0.015, tp.DynamicThreshold(3.0, 0.02), 1e-9)

	// Stationary: tightened to 5 mm, which is also the clamp floor.
	assert.InDelta(t, 0.005, tp.DynamicThreshold(0.0, 0.002), 1e-9)
	assert.InDelta(t, 0.005, tp.DynamicThreshold(0.009, 0.002), 1e-9)

	// A large gap doubles the moving threshold: 1.5 * 2 * 1cm = 3 cm.
	assert.InDelta(t, 0.03, tp.DynamicThreshold(3.0, 0.8), 1e-9)

	// The ceiling clamps runaway combinations.
	wide := tp
	wide.Base = 0.2
	assert.InDelta(t, tp.Max, wide.DynamicThreshold(3.0, 0.8), 1e-9)
}

func TestSetParamsChangesCorrectionBehavior(t *testing.T) {
	buffer, predictor := newTestPredictor()
	rec := NewReconciler(buffer, predictor)

	loose := DefaultThresholdParams()
	loose.Base = 1.0
	loose.Min = 0.5
	loose.Max = 2.0
	rec.SetParams(loose)

	predictor.SetPose(gamemath.Vec3{X: 10, Y: 2, Z: 5}, 0)
	seq := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence:  seq,
		Timestamp: time.Now(),
		Position:  gamemath.Vec3{X: 10, Y: 2, Z: 5},
	})

	// A 10 cm gap would trip the stock 5 mm stationary threshold, but the
	// widened tunables let it ride.
	result := rec.OnAck(seq, gamemath.Vec3{X: 10.1, Y: 2, Z: 5}, 0)
	assert.False(t, result.Corrected)
	assert.Greater(t, result.Threshold, 0.09)
}

func TestAckWithinThresholdLeavesPoseAlone(t *testing.T) {
	buffer, predictor := newTestPredictor()
	rec := NewReconciler(buffer, predictor)

	predictor.SetPose(gamemath.Vec3{X: 10, Y: 2, Z: 5}, 0)
	seq := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence:  seq,
		Timestamp: time.Now(),
		Position:  gamemath.Vec3{X: 10, Y: 2, Z: 5},
	})

	// Stationary, 1 mm divergence: under the tightened 5 mm threshold.
	result := rec.OnAck(seq, gamemath.Vec3{X: 10.001, Y: 2, Z: 5}, 0)
	assert.False(t, result.Corrected)
	assert.InDelta(t, 0.001, result.PositionDiff, 1e-9)

	pos, _ := predictor.Pose()
	assert.Equal(t, 10.0, pos.X)
}

func TestDivergentAckCorrectsAndReplays(t *testing.T) {
	buffer, predictor := newTestPredictor()
	rec := NewReconciler(buffer, predictor)

	now := time.Now()
	predicted := gamemath.Vec3{X: 10, Y: 2, Z: 5}
	predictor.SetPose(predicted, 0)

	// The acknowledged sample plus two still-pending ones.
	ackSeq := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence: ackSeq, Timestamp: now,
		Position: predicted,
		Velocity: gamemath.Vec3{X: 3},
	})
	for i := 0; i < 2; i++ {
		seq := buffer.Allocate()
		buffer.Store(PendingUpdate{
			Sequence: seq, Timestamp: now,
			Position: gamemath.Vec3{X: 10 + float64(i+1), Y: 2, Z: 5},
			Velocity: gamemath.Vec3{X: 3},
		})
	}

	// Server disagrees by ~5.4 cm while moving: threshold is 1.5 cm, so
	// this corrects.
	server := gamemath.Vec3{X: 10.05, Y: 2, Z: 5.02}
	result := rec.OnAck(ackSeq, server, 0)

	assert.True(t, result.Corrected)
	assert.InDelta(t, 0.0539, result.PositionDiff, 0.0005)
	assert.InDelta(t, 0.015, result.Threshold, 1e-9)
	assert.Equal(t, 2, result.Replayed)
	assert.Equal(t, 0, result.Skipped)

	// The replayed tail integrates forward from the smoothed correction,
	// one fixed timestep per pending update.
	pos, _ := predictor.Pose()
	base := gamemath.LerpVec3(predicted, server, netconfig.CorrectionSmoothing)
	dt := netconfig.ReplayTimestep.Seconds()
	assert.InDelta(t, base.X+2*3*dt, pos.X, 1e-9)

	// The stored predictions now reflect the replayed poses, so the next
	// ack compares against them.
	second, ok := buffer.Get(ackSeq + 1)
	require.True(t, ok)
	assert.InDelta(t, base.X+3*dt, second.Position.X, 1e-9)
}

func TestDuplicateAckIsNoOp(t *testing.T) {
	buffer, predictor := newTestPredictor()
	rec := NewReconciler(buffer, predictor)

	predictor.SetPose(gamemath.Vec3{X: 1, Y: 2, Z: 3}, 0)
	seq := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence: seq, Timestamp: time.Now(),
		Position: gamemath.Vec3{X: 1, Y: 2, Z: 3},
		Velocity: gamemath.Vec3{X: 3},
	})

	first := rec.OnAck(seq, gamemath.Vec3{X: 2, Y: 2, Z: 3}, 0)
	assert.True(t, first.Corrected)
	posAfterFirst, _ := predictor.Pose()

	// Same ack again: the update is evicted, so nothing moves.
	second := rec.OnAck(seq, gamemath.Vec3{X: 99, Y: 2, Z: 3}, 0)
	assert.False(t, second.Corrected)
	assert.Zero(t, second.PositionDiff)

	pos, _ := predictor.Pose()
	assert.Equal(t, posAfterFirst, pos)
}

func TestReplaySkipsInvalidPending(t *testing.T) {
	buffer, predictor := newTestPredictor()
	rec := NewReconciler(buffer, predictor)

	now := time.Now()
	predictor.SetPose(gamemath.Vec3{X: 10, Y: 2, Z: 5}, 0)

	ackSeq := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence: ackSeq, Timestamp: now,
		Position: gamemath.Vec3{X: 10, Y: 2, Z: 5},
		Velocity: gamemath.Vec3{X: 3},
	})

	// Implausibly fast pending update: must be skipped, not replayed.
	bad := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence: bad, Timestamp: now,
		Position: gamemath.Vec3{X: 11, Y: 2, Z: 5},
		Velocity: gamemath.Vec3{X: 500},
	})
	good := buffer.Allocate()
	buffer.Store(PendingUpdate{
		Sequence: good, Timestamp: now,
		Position: gamemath.Vec3{X: 12, Y: 2, Z: 5},
		Velocity: gamemath.Vec3{X: 3},
	})

	result := rec.OnAck(ackSeq, gamemath.Vec3{X: 11, Y: 2, Z: 5}, 0)
	assert.True(t, result.Corrected)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, 1, result.Skipped)
}
