package core

import (
	"math/rand"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/terrain"
	"github.com/yohamta/donburi"
)

// World is the canonical entity store. Only the hub goroutine touches it,
// so there is no locking here by construction.
type World struct {
	ecs     donburi.World
	entries map[string]*donburi.Entry
	bounds  gamemath.Bounds
	field   *terrain.Field
}

// NewWorld creates the store with the given terrain seed.
func NewWorld(seed int64) *World {
	return &World{
		ecs:     donburi.NewWorld(),
		entries: make(map[string]*donburi.Entry),
		bounds: gamemath.Bounds{
			MinX: -netconfig.WorldExtent, MaxX: netconfig.WorldExtent,
			MinZ: -netconfig.WorldExtent, MaxZ: netconfig.WorldExtent,
			MinY: netconfig.WorldMinHeight,
		},
		field: terrain.NewField(seed),
	}
}

// Bounds returns the world's legal region.
func (w *World) Bounds() gamemath.Bounds {
	return w.bounds
}

// Terrain returns the height field.
func (w *World) Terrain() *terrain.Field {
	return w.field
}

// Spawn creates an entity for a squirrel at a spawn point near the origin.
func (w *World) Spawn(squirrelID, name string) *donburi.Entry {
	entity := w.ecs.Create(
		netcomponents.Transform,
		netcomponents.Velocity,
		netcomponents.NetIdentity,
	)
	entry := w.ecs.Entry(entity)

	x := rand.Float64()*20 - 10
	z := rand.Float64()*20 - 10
	pos := gamemath.Vec3{X: x, Y: w.field.Sample(x, z), Z: z}

	netcomponents.Transform.Set(entry, &netcomponents.TransformData{Position: pos})
	netcomponents.Velocity.Set(entry, &netcomponents.VelocityData{})
	netcomponents.NetIdentity.Set(entry, &netcomponents.NetIdentityData{
		SquirrelID: squirrelID,
		Name:       name,
	})

	w.entries[squirrelID] = entry
	return entry
}

// Remove destroys an entity record.
func (w *World) Remove(squirrelID string) {
	entry, ok := w.entries[squirrelID]
	if !ok {
		return
	}
	delete(w.entries, squirrelID)
	if w.ecs.Valid(entry.Entity()) {
		w.ecs.Remove(entry.Entity())
	}
}

// Get returns the entity record for a squirrel.
func (w *World) Get(squirrelID string) (*donburi.Entry, bool) {
	entry, ok := w.entries[squirrelID]
	return entry, ok
}

// Count returns the number of live entities.
func (w *World) Count() int {
	return len(w.entries)
}

// ForEach visits every entity record.
func (w *World) ForEach(fn func(squirrelID string, entry *donburi.Entry)) {
	for id, entry := range w.entries {
		fn(id, entry)
	}
}
