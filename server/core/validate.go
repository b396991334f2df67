package core

import (
	"fmt"
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/protocol"
)

// speedSlack tolerates burst movement from batched samples arriving
// together; the envelope is still far below anything a cheat would need.
const speedSlack = 1.5

// MovementValidator gates client state samples before they touch canonical
// state. Violations leave the previous valid state intact.
type MovementValidator struct {
	bounds   gamemath.Bounds
	maxSpeed float64
}

// NewMovementValidator builds a validator for the world's bounds.
func NewMovementValidator(bounds gamemath.Bounds) *MovementValidator {
	return &MovementValidator{
		bounds:   bounds,
		maxSpeed: netconfig.MaxPlausibleSpeed,
	}
}

// Validate checks one player_state sample against the entity's previous
// pose. On success it returns the sanitized position (clamped into world
// bounds). The sequence must advance monotonically; duplicates and stale
// replays are protocol violations and are filtered here.
func (v *MovementValidator) Validate(
	prev gamemath.Vec3, prevAt time.Time,
	seq, lastSeq uint64, at time.Time,
	p protocol.PlayerStatePayload,
) (gamemath.Vec3, error) {
	if seq <= lastSeq {
		return prev, fmt.Errorf("stale sequence %d (last processed %d)", seq, lastSeq)
	}

	pos := p.Position.ToVec3()
	if !pos.IsFinite() || !gamemath.IsFinite(p.Rotation) {
		return prev, fmt.Errorf("non-finite pose")
	}

	if p.Velocity != nil {
		if speed := p.Velocity.ToVec3().Length(); speed > v.maxSpeed {
			return prev, fmt.Errorf("implausible velocity %.1f u/s", speed)
		}
	}

	// Displacement envelope: a client can't have moved farther than its
	// top speed allows since the last accepted sample.
	if !prevAt.IsZero() {
		dt := at.Sub(prevAt).Seconds()
		if dt < netconfig.NetSendInterval.Seconds() {
			dt = netconfig.NetSendInterval.Seconds()
		}
		if moved := prev.HorizontalDistanceTo(pos); moved > v.maxSpeed*dt*speedSlack {
			return prev, fmt.Errorf("teleport: %.1f units in %.2fs", moved, dt)
		}
	}

	return v.bounds.Clamp(pos), nil
}
