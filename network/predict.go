package network

import (
	"fmt"
	"math"
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/terrain"
	"github.com/yohamta/donburi"
)

// Movement tuning. Must match the server/core movement application exactly.
const (
	moveSpeed   = 6.0 // world units per second
	sprintScale = 1.6
	turnSpeed   = 2.5 // radians per second
	inputLogCap = 512
)

// Predictor applies input to the local squirrel immediately, before any
// server round trip. It owns the input snapshot log and writes through the
// entity store, so the local pose is updated synchronously on every call.
type Predictor struct {
	entry  *donburi.Entry
	buffer *PredictionBuffer
	bounds gamemath.Bounds
	height *heightCache

	inputs []InputSnapshot
	now    func() time.Time
}

// NewPredictor wires a predictor to the local player's entity record.
func NewPredictor(entry *donburi.Entry, buffer *PredictionBuffer, bounds gamemath.Bounds, sampler terrain.HeightSampler) *Predictor {
	return &Predictor{
		entry:  entry,
		buffer: buffer,
		bounds: bounds,
		height: newHeightCache(sampler, netconfig.TerrainQueryTimeout, netconfig.WorldMinHeight),
		now:    time.Now,
	}
}

// ApplyInput integrates one frame of input into the local entity and records
// an input snapshot. The returned bool reports whether the pose changed.
// Invalid input (non-positive or non-finite dt) is rejected without mutating
// the entity.
func (p *Predictor) ApplyInput(input InputState, dt float64) (bool, error) {
	if !gamemath.IsFinite(dt) || dt <= 0 {
		return false, fmt.Errorf("predict: invalid dt %v", dt)
	}

	tf := netcomponents.Transform.Get(p.entry)
	vel := netcomponents.Velocity.Get(p.entry)

	rotation := tf.Rotation
	if input.TurnLeft {
		rotation += turnSpeed * dt
	}
	if input.TurnRight {
		rotation -= turnSpeed * dt
	}
	rotation = gamemath.WrapAngle(rotation)

	speed := 0.0
	if input.Forward {
		speed = moveSpeed
	} else if input.Backward {
		speed = -moveSpeed * 0.5
	}
	if input.Sprint {
		speed *= sprintScale
	}

	linear := gamemath.Vec3{
		X: -math.Sin(rotation) * speed,
		Z: -math.Cos(rotation) * speed,
	}

	pos := tf.Position.Add(linear.Scale(dt))
	pos = p.bounds.Clamp(pos)
	pos.Y = p.height.lookup(pos.X, pos.Z)

	moved := pos != tf.Position || rotation != tf.Rotation

	tf.Position = pos
	tf.Rotation = rotation
	vel.Linear = linear

	p.recordInput(input)
	return moved, nil
}

// ApplyPending re-applies a retained pending update over a fixed timestep.
// Used by the reconciliation replay after a correction.
func (p *Predictor) ApplyPending(u PendingUpdate, dt float64) {
	tf := netcomponents.Transform.Get(p.entry)
	vel := netcomponents.Velocity.Get(p.entry)

	pos := tf.Position.Add(u.Velocity.Scale(dt))
	pos = p.bounds.Clamp(pos)
	pos.Y = p.height.lookup(pos.X, pos.Z)

	tf.Position = pos
	tf.Rotation = u.Rotation
	vel.Linear = u.Velocity
}

// SetPose overwrites the local pose. Used by reconciliation corrections.
func (p *Predictor) SetPose(pos gamemath.Vec3, rotation float64) {
	tf := netcomponents.Transform.Get(p.entry)
	tf.Position = p.bounds.Clamp(pos)
	tf.Rotation = gamemath.WrapAngle(rotation)
}

// Pose returns the current predicted position and rotation.
func (p *Predictor) Pose() (gamemath.Vec3, float64) {
	tf := netcomponents.Transform.Get(p.entry)
	return tf.Position, tf.Rotation
}

// VelocityNow returns the current predicted velocity.
func (p *Predictor) VelocityNow() gamemath.Vec3 {
	return netcomponents.Velocity.Get(p.entry).Linear
}

// Bounds returns the world bounds the predictor clamps to.
func (p *Predictor) Bounds() gamemath.Bounds {
	return p.bounds
}

func (p *Predictor) recordInput(input InputState) {
	p.inputs = append(p.inputs, InputSnapshot{
		Sequence:  p.buffer.NextSeq(),
		Timestamp: p.now(),
		Input:     input,
	})
	if len(p.inputs) > inputLogCap {
		p.inputs = p.inputs[len(p.inputs)-inputLogCap:]
	}
}

// PruneInputs drops input snapshots at or below the acknowledgement
// watermark or older than the prediction window.
func (p *Predictor) PruneInputs(horizon time.Duration) {
	now := p.now()
	acked := p.buffer.LastAcked()
	kept := p.inputs[:0]
	for _, in := range p.inputs {
		if in.Sequence <= acked || now.Sub(in.Timestamp) > horizon {
			continue
		}
		kept = append(kept, in)
	}
	p.inputs = kept
}

// InputLog returns the retained input snapshots, oldest first.
func (p *Predictor) InputLog() []InputSnapshot {
	return p.inputs
}
