package gamemath

// ClampFloat clamps v to [min, max].
func ClampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Bounds is an axis-aligned region of the world on the X/Z plane plus a
// minimum height.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
	MinY       float64
}

// Clamp returns pos constrained to the bounds.
func (b Bounds) Clamp(pos Vec3) Vec3 {
	pos.X = ClampFloat(pos.X, b.MinX, b.MaxX)
	pos.Z = ClampFloat(pos.Z, b.MinZ, b.MaxZ)
	if pos.Y < b.MinY {
		pos.Y = b.MinY
	}
	return pos
}

// Contains reports whether pos lies inside the bounds.
func (b Bounds) Contains(pos Vec3) bool {
	return pos.X >= b.MinX && pos.X <= b.MaxX &&
		pos.Z >= b.MinZ && pos.Z <= b.MaxZ &&
		pos.Y >= b.MinY
}
