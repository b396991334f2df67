package network

import (
	"context"
	"log"
	"sync"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/protocol"
	"github.com/oakgrove/scamper-mp/shared/terrain"
	"github.com/yohamta/donburi"
)

// ClientSession owns every client-side piece of the sync protocol and the
// entity store backing it: prediction, ticking, batching, reconciliation
// and visibility, all keyed off one local squirrel. It implements
// Dispatcher, so the transport client feeds it directly.
// remoteLerpRate controls how fast a mirror converges on its latest
// authoritative pose. At 12/s a 60 Hz frame closes ~20% of the remaining
// gap, smooth enough to hide the banded server cadence without visible lag.
const remoteLerpRate = 12.0

// remoteTarget is the latest authoritative pose for a mirror. Frame eases
// the mirror's entity toward it rather than snapping on every update.
type remoteTarget struct {
	transform netcomponents.TransformData
	velocity  netcomponents.VelocityData
}

type ClientSession struct {
	mu sync.Mutex

	world   donburi.World
	local   *donburi.Entry
	remotes map[string]*donburi.Entry
	targets map[string]remoteTarget

	Buffer     *PredictionBuffer
	Predictor  *Predictor
	Reconciler *Reconciler
	Visibility *VisibilityManager
	History    *TickHistory
	Ticker     *NetTicker
	Batcher    *Batcher
	Client     *Client

	field *terrain.Field
}

// NewClientSession assembles a session against the given server address.
func NewClientSession(address string) *ClientSession {
	s := &ClientSession{
		world:   donburi.NewWorld(),
		remotes: make(map[string]*donburi.Entry),
		targets: make(map[string]remoteTarget),
	}

	entity := s.world.Create(
		netcomponents.Transform,
		netcomponents.Velocity,
		netcomponents.NetIdentity,
	)
	s.local = s.world.Entry(entity)
	netcomponents.NetIdentity.Get(s.local).IsLocal = true
	netcomponents.Transform.Get(s.local).Position = gamemath.Vec3{Y: netconfig.WorldMinHeight}

	bounds := gamemath.Bounds{
		MinX: -netconfig.WorldExtent, MaxX: netconfig.WorldExtent,
		MinZ: -netconfig.WorldExtent, MaxZ: netconfig.WorldExtent,
		MinY: netconfig.WorldMinHeight,
	}

	s.Buffer = NewPredictionBuffer()
	s.Predictor = NewPredictor(s.local, s.Buffer, bounds, s)
	s.Reconciler = NewReconciler(s.Buffer, s.Predictor)
	s.Visibility = NewVisibilityManager()
	s.History = NewTickHistory()

	s.Client = NewClient(address, s, func(open bool) {
		if s.Ticker != nil {
			s.Ticker.SetTransportOpen(open)
		}
	})
	s.Batcher = NewBatcher(s.Client.SendFrame)
	s.Ticker = NewNetTicker(s.Predictor, s.Buffer, s.Batcher, s.History, s.globalSnapshot)

	return s
}

// Start connects and begins network ticking.
func (s *ClientSession) Start(playerName, playerID string) {
	s.Client.Connect(playerName, playerID)
	go s.Ticker.Run()
}

// Stop halts ticking and closes the transport. Reconciliation state dies
// with the session; nothing is left dangling.
func (s *ClientSession) Stop() {
	s.Ticker.Stop()
	s.Batcher.Flush()
	s.Client.Close()
}

// Frame advances the per-render-frame work: visibility fades, distance
// refresh, and the cleanup cadence that is deliberately decoupled from the
// network timer.
func (s *ClientSession) Frame(dt float64) {
	s.Ticker.OnFrame()
	s.advanceRemotes(dt)
	s.refreshDistances()
	s.Visibility.Step(dt)
}

// HeightAt implements terrain.HeightSampler by delegating to the field
// announced in the welcome message. Before the seed arrives the lookup
// fails and the predictor's fallback height applies.
func (s *ClientSession) HeightAt(ctx context.Context, x, z float64) (float64, error) {
	s.mu.Lock()
	field := s.field
	s.mu.Unlock()
	if field == nil {
		return 0, context.DeadlineExceeded
	}
	return field.HeightAt(ctx, x, z)
}

// --- Dispatcher ---

// HandleWelcome adopts the assigned identity and terrain seed.
func (s *ClientSession) HandleWelcome(p protocol.WelcomePayload) {
	s.mu.Lock()
	s.field = terrain.NewField(p.TerrainSeed)
	s.mu.Unlock()

	s.Batcher.SetSquirrelID(p.SquirrelID)
	id := netcomponents.NetIdentity.Get(s.local)
	id.SquirrelID = p.SquirrelID
}

// HandlePlayerUpdate routes authoritative state: acknowledgements for the
// local squirrel go to reconciliation, everything else updates the remote
// mirror.
func (s *ClientSession) HandlePlayerUpdate(squirrelID string, seq uint64, p protocol.PlayerUpdatePayload) {
	if squirrelID == s.Client.SquirrelID() {
		s.Reconciler.OnAck(seq, p.Position.ToVec3(), p.Rotation)
		return
	}

	entry := s.ensureRemote(squirrelID, "")
	target := remoteTarget{
		transform: netcomponents.TransformData{
			Position: p.Position.ToVec3(),
			Rotation: p.Rotation,
		},
		velocity: *netcomponents.Velocity.Get(entry),
	}
	if p.Velocity != nil {
		target.velocity.Linear = p.Velocity.ToVec3()
	}
	s.mu.Lock()
	s.targets[squirrelID] = target
	s.mu.Unlock()

	local, _ := s.Predictor.Pose()
	s.Visibility.UpdateDistance(squirrelID, local.HorizontalDistanceTo(target.transform.Position))
}

// HandlePlayerJoined spawns a remote mirror entity.
func (s *ClientSession) HandlePlayerJoined(p protocol.PlayerJoinedPayload) {
	s.snapRemote(p.SquirrelID, p.Name, p.Position.ToVec3(), p.Rotation)
	log.Printf("[client] %s joined", p.Name)
}

// HandlePlayerLeft destroys the mirror and its visibility state.
func (s *ClientSession) HandlePlayerLeft(squirrelID string) {
	s.mu.Lock()
	entry, ok := s.remotes[squirrelID]
	if ok {
		delete(s.remotes, squirrelID)
	}
	delete(s.targets, squirrelID)
	s.mu.Unlock()

	if ok && s.world.Valid(entry.Entity()) {
		s.world.Remove(entry.Entity())
	}
	s.Visibility.Remove(squirrelID)
}

// HandleExistingPlayers seeds mirrors for everyone already in the world.
func (s *ClientSession) HandleExistingPlayers(p protocol.ExistingPlayersPayload) {
	for _, info := range p.Players {
		if info.SquirrelID == s.Client.SquirrelID() {
			continue
		}
		s.snapRemote(info.SquirrelID, info.Name, info.Position.ToVec3(), info.Rotation)
	}
}

// HandleWorldState applies a full snapshot: roster plus terrain seed.
func (s *ClientSession) HandleWorldState(p protocol.WorldStatePayload) {
	if p.TerrainSeed != 0 {
		s.mu.Lock()
		s.field = terrain.NewField(p.TerrainSeed)
		s.mu.Unlock()
	}
	s.HandleExistingPlayers(protocol.ExistingPlayersPayload{Players: p.Players})
}

// HandleHeartbeat is a no-op beyond the client's liveness bookkeeping.
func (s *ClientSession) HandleHeartbeat(int64) {}

// HandleServerError is informational; transient faults recover via
// reconnect and reconciliation.
func (s *ClientSession) HandleServerError(reason string) {
	log.Printf("[client] server rejected: %s", reason)
}

// --- internals ---

func (s *ClientSession) ensureRemote(squirrelID, name string) *donburi.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.remotes[squirrelID]; ok {
		return entry
	}
	entity := s.world.Create(
		netcomponents.Transform,
		netcomponents.Velocity,
		netcomponents.NetIdentity,
	)
	entry := s.world.Entry(entity)
	id := netcomponents.NetIdentity.Get(entry)
	id.SquirrelID = squirrelID
	id.Name = name
	s.remotes[squirrelID] = entry
	s.Visibility.Track(squirrelID)
	return entry
}

// snapRemote places a mirror directly at a pose, used on join and roster
// seed so new mirrors do not swoop in from wherever the entity spawned.
func (s *ClientSession) snapRemote(squirrelID, name string, pos gamemath.Vec3, rot float64) {
	entry := s.ensureRemote(squirrelID, name)
	tf := netcomponents.Transform.Get(entry)
	tf.Position = pos
	tf.Rotation = rot

	s.mu.Lock()
	s.targets[squirrelID] = remoteTarget{
		transform: *tf,
		velocity:  *netcomponents.Velocity.Get(entry),
	}
	s.mu.Unlock()
}

// advanceRemotes eases each mirror toward its latest authoritative pose.
// Updates arrive at 2 to 20 Hz depending on distance; interpolating per
// render frame hides the gaps between them.
func (s *ClientSession) advanceRemotes(dt float64) {
	alpha := gamemath.ClampFloat(dt*remoteLerpRate, 0, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.remotes {
		target, ok := s.targets[id]
		if !ok {
			continue
		}
		tf := netcomponents.Transform.Get(entry)
		vel := netcomponents.Velocity.Get(entry)
		*tf = *netcomponents.LerpTransform(*tf, target.transform, alpha)
		*vel = *netcomponents.LerpVelocity(*vel, target.velocity, alpha)
	}
}

func (s *ClientSession) refreshDistances() {
	local, _ := s.Predictor.Pose()

	s.mu.Lock()
	ids := make([]string, 0, len(s.remotes))
	entries := make([]*donburi.Entry, 0, len(s.remotes))
	for id, entry := range s.remotes {
		ids = append(ids, id)
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	for i, id := range ids {
		tf := netcomponents.Transform.Get(entries[i])
		s.Visibility.UpdateDistance(id, local.HorizontalDistanceTo(tf.Position))
	}
}

// globalSnapshot records the local and mirrored poses for the tick history.
func (s *ClientSession) globalSnapshot() map[string]PlayerSnapshot {
	out := make(map[string]PlayerSnapshot)

	pos, rot := s.Predictor.Pose()
	localID := s.Client.SquirrelID()
	if localID == "" {
		localID = "local"
	}
	out[localID] = PlayerSnapshot{Position: pos, Rotation: rot, Velocity: s.Predictor.VelocityNow()}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.remotes {
		tf := netcomponents.Transform.Get(entry)
		vel := netcomponents.Velocity.Get(entry)
		out[id] = PlayerSnapshot{Position: tf.Position, Rotation: tf.Rotation, Velocity: vel.Linear}
	}
	return out
}
