package gamemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: -2, Z: 1}

	assert.Equal(t, Vec3{X: 5, Y: 0, Z: 4}, a.Add(b))
	assert.Equal(t, Vec3{X: -3, Y: 4, Z: 2}, a.Sub(b))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, a.Scale(2))
}

func TestDistance(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 0}
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-9)

	// Vertical offset is invisible to the horizontal distance.
	c := Vec3{X: 3, Y: 100, Z: 4}
	assert.InDelta(t, 5.0, a.HorizontalDistanceTo(c), 1e-9)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, Vec3{X: 1, Y: 2, Z: 3}.IsFinite())
	assert.False(t, Vec3{X: math.NaN()}.IsFinite())
	assert.False(t, Vec3{Z: math.Inf(1)}.IsFinite())
	assert.False(t, IsFinite(math.Inf(-1)))
}

func TestLerp(t *testing.T) {
	assert.InDelta(t, 5.0, Lerp(0, 10, 0.5), 1e-9)

	mid := LerpVec3(Vec3{}, Vec3{X: 10, Y: 20, Z: 30}, 0.25)
	assert.InDelta(t, 2.5, mid.X, 1e-9)
	assert.InDelta(t, 5.0, mid.Y, 1e-9)
	assert.InDelta(t, 7.5, mid.Z, 1e-9)
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, Smoothstep(-1))
	assert.Equal(t, 0.0, Smoothstep(0))
	assert.Equal(t, 1.0, Smoothstep(1))
	assert.Equal(t, 1.0, Smoothstep(2))
	assert.InDelta(t, 0.5, Smoothstep(0.5), 1e-9)
	// Eased curve lags linear in the first half.
	assert.Less(t, Smoothstep(0.25), 0.25)
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0.0, WrapAngle(2*math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, WrapAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi, WrapAngle(math.Pi), 1e-9)
	assert.InDelta(t, 1.0, WrapAngle(1.0+4*math.Pi), 1e-9)
}

func TestBoundsClamp(t *testing.T) {
	b := Bounds{MinX: -10, MaxX: 10, MinZ: -10, MaxZ: 10, MinY: 0.5}

	inside := Vec3{X: 3, Y: 2, Z: -4}
	assert.Equal(t, inside, b.Clamp(inside))

	clamped := b.Clamp(Vec3{X: 50, Y: -1, Z: -50})
	assert.Equal(t, Vec3{X: 10, Y: 0.5, Z: -10}, clamped)
	assert.True(t, b.Contains(clamped))
	assert.False(t, b.Contains(Vec3{X: 11}))
	assert.False(t, b.Contains(Vec3{Y: 0.1}))
}

func TestClampFloat(t *testing.T) {
	assert.Equal(t, 5.0, ClampFloat(7, 0, 5))
	assert.Equal(t, 0.0, ClampFloat(-7, 0, 5))
	assert.Equal(t, 3.0, ClampFloat(3, 0, 5))
}
