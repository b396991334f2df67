// Package terrain provides the deterministic height field both sides sample
// for vertical placement. The field is closed-form so the server and any
// client with the same seed agree without exchanging geometry.
package terrain

import (
	"context"
	"math"
)

// HeightSampler resolves the terrain height under a ground coordinate. The
// server samples synchronously; clients may sit behind an async adapter and
// must apply a timeout fallback.
type HeightSampler interface {
	HeightAt(ctx context.Context, x, z float64) (float64, error)
}

// Field is a procedural height field derived from a seed.
type Field struct {
	seed int64
}

// NewField creates a height field for the given world seed.
func NewField(seed int64) *Field {
	return &Field{seed: seed}
}

// Seed returns the world seed the field was built from.
func (f *Field) Seed() int64 {
	return f.seed
}

// HeightAt returns the surface height at (x, z). Always succeeds; the error
// is part of the HeightSampler contract for remote implementations.
func (f *Field) HeightAt(_ context.Context, x, z float64) (float64, error) {
	return f.Sample(x, z), nil
}

// Sample is the synchronous form of HeightAt.
func (f *Field) Sample(x, z float64) float64 {
	s := float64(f.seed%997) * 0.013
	h := 2.0 +
		1.2*math.Sin(x*0.05+s) +
		1.2*math.Cos(z*0.05-s) +
		0.4*math.Sin(x*0.21+z*0.17+s)
	if h < 0.5 {
		h = 0.5
	}
	return h
}
