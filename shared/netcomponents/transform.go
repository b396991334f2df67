package netcomponents

import (
	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/yohamta/donburi"
)

// TransformData is the networked pose of an entity: world position plus yaw
// rotation around the vertical axis.
type TransformData struct {
	Position gamemath.Vec3
	Rotation float64 // radians
}

var Transform = donburi.NewComponentType[TransformData]()

// LerpTransform interpolates between two poses.
func LerpTransform(from, to TransformData, t float64) *TransformData {
	return &TransformData{
		Position: gamemath.LerpVec3(from.Position, to.Position, t),
		Rotation: from.Rotation + gamemath.WrapAngle(to.Rotation-from.Rotation)*t,
	}
}
