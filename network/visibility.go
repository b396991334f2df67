package network

import (
	"log"
	"sync"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/tanema/gween"
)

// VisState is the visibility state of one remote entity.
type VisState int

const (
	StateInvisible VisState = iota
	StateEntering
	StateVisible
	StateLeaving
	StateCulled
)

func (s VisState) String() string {
	switch s {
	case StateInvisible:
		return "invisible"
	case StateEntering:
		return "entering"
	case StateVisible:
		return "visible"
	case StateLeaving:
		return "leaving"
	case StateCulled:
		return "culled"
	}
	return "unknown"
}

// legalTransitions is the only mutation path for visibility state. Anything
// not listed here is a protocol bug and is refused.
var legalTransitions = map[VisState][]VisState{
	StateInvisible: {StateEntering, StateVisible, StateCulled},
	StateEntering:  {StateVisible, StateLeaving, StateInvisible},
	StateVisible:   {StateLeaving, StateInvisible, StateCulled},
	StateLeaving:   {StateInvisible, StateCulled, StateEntering},
	StateCulled:    {StateEntering, StateVisible, StateInvisible},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to VisState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// smoothstepEase is a gween easing with zero slope at both ends, matching
// the opacity ramp the render side expects.
func smoothstepEase(t, b, c, d float32) float32 {
	x := gamemath.Smoothstep(float64(t / d))
	return float32(gamemath.Lerp(float64(b), float64(b+c), x))
}

// entityVis tracks one remote entity's visibility.
type entityVis struct {
	state    VisState
	opacity  float32
	tween    *gween.Tween
	distance float64
}

// RemoteVisibility is the render-facing output for one entity.
type RemoteVisibility struct {
	State   VisState
	Visible bool
	Opacity float64
}

// VisibilityManager derives a visibility state per remote entity from its
// distance to the local viewpoint and drives fade transitions. It owns the
// state machine; all transitions go through it.
type VisibilityManager struct {
	mu       sync.Mutex
	entities map[string]*entityVis

	interestRadius float64
	cullingRadius  float64
	fadeIn         float32 // seconds
	fadeOut        float32

	// OnTransition, when set, observes every applied transition. Used by
	// tests and diagnostics.
	OnTransition func(id string, from, to VisState)
}

// NewVisibilityManager builds a manager with netconfig radii and fades.
func NewVisibilityManager() *VisibilityManager {
	return &VisibilityManager{
		entities:       make(map[string]*entityVis),
		interestRadius: netconfig.InterestRadius,
		cullingRadius:  netconfig.CullingRadius,
		fadeIn:         float32(netconfig.FadeInDuration.Seconds()),
		fadeOut:        float32(netconfig.FadeOutDuration.Seconds()),
	}
}

// Track registers an entity, starting invisible.
func (m *VisibilityManager) Track(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		m.entities[id] = &entityVis{state: StateInvisible}
	}
}

// Remove forgets an entity entirely (disconnect or permanent cull).
func (m *VisibilityManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
}

// UpdateDistance feeds a new distance for an entity and walks the state
// machine one legal step toward the distance's target state.
func (m *VisibilityManager) UpdateDistance(id string, distance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.entities[id]
	if !ok {
		ev = &entityVis{state: StateInvisible}
		m.entities[id] = ev
	}
	ev.distance = distance

	target := m.targetFor(distance)
	if ev.state == target {
		return
	}
	m.stepToward(id, ev, target)
}

// targetFor maps distance to the state the entity should settle in.
func (m *VisibilityManager) targetFor(distance float64) VisState {
	switch {
	case distance <= m.interestRadius:
		return StateVisible
	case distance <= m.cullingRadius:
		return StateLeaving
	default:
		return StateCulled
	}
}

// stepToward advances one legal edge toward target. Fading states bridge
// the gap: an invisible entity entering range goes through ENTERING, a
// visible one leaving range through LEAVING.
func (m *VisibilityManager) stepToward(id string, ev *entityVis, target VisState) {
	var next VisState
	switch target {
	case StateVisible:
		if ev.state == StateEntering {
			return // already fading in
		}
		next = StateEntering
	case StateLeaving:
		switch ev.state {
		case StateVisible, StateEntering:
			next = StateLeaving
		case StateCulled:
			// Back inside the culling radius but not near enough to
			// appear; eligible for updates again without a fade.
			next = StateInvisible
		default:
			// Invisible entities in the fade band have nothing to fade.
			return
		}
	case StateCulled:
		switch ev.state {
		case StateLeaving:
			return // fade-out completion culls
		case StateEntering:
			next = StateLeaving
		default:
			next = StateCulled
		}
	default:
		next = target
	}

	if ev.state == next {
		return
	}
	m.transition(id, ev, next)
}

// transition applies one edge, refusing illegal jumps.
func (m *VisibilityManager) transition(id string, ev *entityVis, to VisState) {
	if !CanTransition(ev.state, to) {
		log.Printf("[visibility] refusing illegal transition %s -> %s for %s", ev.state, to, id)
		return
	}
	from := ev.state
	ev.state = to

	switch to {
	case StateEntering, StateVisible:
		ev.tween = gween.New(ev.opacity, 1, m.fadeIn, smoothstepEase)
	case StateLeaving, StateInvisible, StateCulled:
		ev.tween = gween.New(ev.opacity, 0, m.fadeOut, smoothstepEase)
	}

	if m.OnTransition != nil {
		m.OnTransition(id, from, to)
	}
}

// Step advances all fade tweens by dt seconds. Called every render frame
// until transitions complete.
func (m *VisibilityManager) Step(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ev := range m.entities {
		if ev.tween == nil {
			continue
		}
		value, finished := ev.tween.Update(float32(dt))
		ev.opacity = value
		if !finished {
			continue
		}
		ev.tween = nil
		m.settle(id, ev)
	}
}

// settle resolves the post-fade state once a tween completes.
func (m *VisibilityManager) settle(id string, ev *entityVis) {
	switch ev.state {
	case StateEntering:
		m.transition(id, ev, StateVisible)
		// Fade-in finished at full opacity; no new tween needed.
		ev.tween = nil
		ev.opacity = 1
	case StateLeaving:
		if ev.distance > m.cullingRadius {
			m.transition(id, ev, StateCulled)
			ev.tween = nil
		} else if ev.distance > m.interestRadius {
			// Still in the fade band: faded out but may re-enter.
			m.transition(id, ev, StateInvisible)
			ev.tween = nil
		} else {
			// Came back into interest range mid-fade; the transition's
			// fade-in tween takes over.
			m.transition(id, ev, StateEntering)
		}
	}
}

// State returns the current visibility state for an entity.
func (m *VisibilityManager) State(id string) (VisState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.entities[id]
	if !ok {
		return StateInvisible, false
	}
	return ev.state, true
}

// Snapshot returns the render-facing visibility output for an entity.
func (m *VisibilityManager) Snapshot(id string) RemoteVisibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.entities[id]
	if !ok {
		return RemoteVisibility{State: StateInvisible}
	}
	return RemoteVisibility{
		State:   ev.state,
		Visible: ev.state != StateCulled && ev.opacity > 0,
		Opacity: float64(ev.opacity),
	}
}

// RateHint returns the advisory update cadence for an entity based on its
// last known distance. Culled entities get no updates at all.
func (m *VisibilityManager) RateHint(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.entities[id]
	if !ok || ev.state == StateCulled {
		return 0
	}
	return netconfig.RateForDistance(ev.distance)
}
