package netcomponents

import (
	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/yohamta/donburi"
)

// VelocityData is the networked velocity of an entity.
type VelocityData struct {
	Linear gamemath.Vec3
}

var Velocity = donburi.NewComponentType[VelocityData]()

// LerpVelocity interpolates between two velocities.
func LerpVelocity(from, to VelocityData, t float64) *VelocityData {
	return &VelocityData{
		Linear: gamemath.LerpVec3(from.Linear, to.Linear, t),
	}
}
