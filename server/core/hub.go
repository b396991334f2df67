package core

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/netcomponents"
	"github.com/oakgrove/scamper-mp/shared/protocol"
)

// command is a unit of work queued onto the hub goroutine. All world
// mutation happens there; connections only enqueue.
type command interface{}

type joinCmd struct {
	client  *remoteClient
	payload protocol.JoinPayload
}

type stateCmd struct {
	client *remoteClient
	seq    uint64
	at     time.Time
	state  protocol.PlayerStatePayload
}

type heartbeatCmd struct {
	client *remoteClient
}

type leaveCmd struct {
	client *remoteClient
	reason string
}

// playerSession is the hub's per-client bookkeeping.
type playerSession struct {
	client     *remoteClient
	squirrelID string
	name       string

	lastSeq  uint64
	lastSeen time.Time
	prevAt   time.Time

	// lastSent tracks when each other squirrel's state last went to this
	// observer, implementing the distance-banded cadence.
	lastSent map[string]time.Time
}

// Hub is the single writer for one game session: it owns the world, drains
// the command queue, validates inbound state, and broadcasts authoritative
// updates. Serializing everything here removes cross-entity write races by
// construction.
type Hub struct {
	world     *World
	validator *MovementValidator
	commands  chan command
	sessions  map[*remoteClient]*playerSession
	byID      map[string]*playerSession

	tickRate   int
	maxPlayers int
	stopCh     chan struct{}
	now        func() time.Time
	count      atomic.Int64
}

// NewHub creates the session actor.
func NewHub(world *World, tickRate int) *Hub {
	return &Hub{
		world:     world,
		validator: NewMovementValidator(world.Bounds()),
		commands:  make(chan command, 256),
		sessions:  make(map[*remoteClient]*playerSession),
		byID:      make(map[string]*playerSession),
		tickRate:  tickRate,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// SetMaxPlayers caps concurrent squirrels; zero means unlimited. Call
// before Run.
func (h *Hub) SetMaxPlayers(n int) {
	h.maxPlayers = n
}

// Enqueue hands a command to the hub goroutine. Never blocks the caller
// for long; the queue is sized for bursts.
func (h *Hub) Enqueue(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.stopCh:
	}
}

// Run drives the hub until Stop. Runs in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(h.tickRate))
	defer ticker.Stop()

	log.Printf("[server] hub started at %d ticks/second", h.tickRate)
	for {
		select {
		case <-h.stopCh:
			log.Println("[server] hub stopped")
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		case <-ticker.C:
			h.tick()
		}
	}
}

// Stop shuts the hub down.
func (h *Hub) Stop() {
	close(h.stopCh)
}

func (h *Hub) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		h.onJoin(c)
	case stateCmd:
		h.onState(c)
	case heartbeatCmd:
		if s, ok := h.sessions[c.client]; ok {
			s.lastSeen = h.now()
			s.client.sendEnvelope(protocol.TypeHeartbeat, "", 0, nil)
		}
	case leaveCmd:
		h.onLeave(c.client, c.reason)
	}
}

func (h *Hub) onJoin(c joinCmd) {
	if _, ok := h.sessions[c.client]; ok {
		// Idempotent per connection: a second join re-sends nothing new.
		return
	}

	if h.maxPlayers > 0 && len(h.byID) >= h.maxPlayers {
		log.Printf("[server] rejecting join: server full (%d players)", len(h.byID))
		c.client.sendEnvelope(protocol.TypeError, "", 0, protocol.ErrorPayload{Reason: "server full"})
		return
	}

	name := c.payload.Name
	if name == "" {
		name = "squirrel"
	}
	squirrelID := c.payload.PlayerID
	if squirrelID == "" || h.byID[squirrelID] != nil {
		squirrelID = uuid.NewString()
	}

	h.world.Spawn(squirrelID, name)
	session := &playerSession{
		client:     c.client,
		squirrelID: squirrelID,
		name:       name,
		lastSeen:   h.now(),
		lastSent:   make(map[string]time.Time),
	}
	h.sessions[c.client] = session
	h.byID[squirrelID] = session
	h.count.Store(int64(len(h.byID)))
	c.client.setSquirrelID(squirrelID)

	log.Printf("[server] %s joined as %s", name, squirrelID)

	c.client.sendEnvelope(protocol.TypeWelcome, squirrelID, 0, protocol.WelcomePayload{
		SquirrelID:       squirrelID,
		TickRate:         h.tickRate,
		HeartbeatSeconds: int(netconfig.HeartbeatInterval.Seconds()),
		WorldExtent:      netconfig.WorldExtent,
		MinHeight:        netconfig.WorldMinHeight,
		TerrainSeed:      h.world.Terrain().Seed(),
	})

	c.client.sendEnvelope(protocol.TypeExistingPlayers, "", 0, protocol.ExistingPlayersPayload{
		Players: h.roster(squirrelID),
	})

	if env, ok := BuildWorldState(h.world); ok {
		c.client.send(env)
	}

	joined := h.playerInfo(squirrelID)
	h.broadcastExcept(squirrelID, protocol.TypePlayerJoined, squirrelID, 0, protocol.PlayerJoinedPayload{PlayerInfo: joined})
}

// onState ingests one client state sample: validate, advance canonical
// state, and acknowledge with the authoritative pose.
func (h *Hub) onState(c stateCmd) {
	session, ok := h.sessions[c.client]
	if !ok {
		return
	}
	session.lastSeen = h.now()

	entry, ok := h.world.Get(session.squirrelID)
	if !ok {
		return
	}
	tf := netcomponents.Transform.Get(entry)

	pos, err := h.validator.Validate(tf.Position, session.prevAt, c.seq, session.lastSeq, c.at, c.state)
	if err != nil {
		log.Printf("[server] rejecting state from %s: %v", session.squirrelID, err)
		// The previous valid pose stands. The ack still carries the
		// rejected message's sequence so the client's pending record for
		// it is found and reconciliation pulls the client back. Acking an
		// older sequence here would be ignored by the client's monotonic
		// watermark and leave it desynced.
	} else {
		pos.Y = h.world.Terrain().Sample(pos.X, pos.Z)
		tf.Position = pos
		tf.Rotation = c.state.Rotation
		if c.state.Velocity != nil {
			netcomponents.Velocity.Get(entry).Linear = c.state.Velocity.ToVec3()
		} else {
			netcomponents.Velocity.Get(entry).Linear = gamemath.Vec3{}
		}
		session.lastSeq = c.seq
		session.prevAt = c.at
		netcomponents.NetIdentity.Get(entry).LastSequence = c.seq
	}

	// Acknowledge with the canonical pose, addressed to the sender's own
	// squirrel. Duplicate acks are harmless: the client watermark is
	// monotonic.
	vel := netcomponents.Velocity.Get(entry).Linear
	ack := protocol.PlayerUpdatePayload{
		Position: protocol.FromVec3(tf.Position),
		Rotation: tf.Rotation,
	}
	if vel.Length() >= netconfig.VelocityNoiseFloor {
		v := protocol.FromVec3(vel)
		ack.Velocity = &v
	}
	c.client.sendEnvelope(protocol.TypePlayerUpdate, session.squirrelID, c.seq, ack)
}

func (h *Hub) onLeave(client *remoteClient, reason string) {
	session, ok := h.sessions[client]
	if !ok {
		return
	}
	delete(h.sessions, client)
	delete(h.byID, session.squirrelID)
	h.count.Store(int64(len(h.byID)))
	h.world.Remove(session.squirrelID)

	log.Printf("[server] %s left (%s)", session.squirrelID, reason)
	h.broadcastExcept(session.squirrelID, protocol.TypePlayerLeft, session.squirrelID, 0, protocol.PlayerLeftPayload{})
}

// tick runs once per server tick: expire silent clients and broadcast
// remote entity state at distance-banded cadence.
func (h *Hub) tick() {
	now := h.now()
	h.expireSilent(now)
	h.broadcastUpdates(now)
}

func (h *Hub) expireSilent(now time.Time) {
	deadline := netconfig.HeartbeatInterval * time.Duration(netconfig.HeartbeatMissLimit)
	for client, session := range h.sessions {
		if now.Sub(session.lastSeen) > deadline {
			log.Printf("[server] expiring silent client %s", session.squirrelID)
			h.onLeave(client, "heartbeat timeout")
			client.close()
		}
	}
}

// broadcastUpdates sends each observer the state of every other squirrel
// whose cadence band is due. Targets beyond the culling radius are skipped
// outright.
func (h *Hub) broadcastUpdates(now time.Time) {
	for _, observer := range h.sessions {
		obsEntry, ok := h.world.Get(observer.squirrelID)
		if !ok {
			continue
		}
		obsPos := netcomponents.Transform.Get(obsEntry).Position

		for targetID, target := range h.byID {
			if targetID == observer.squirrelID {
				continue
			}
			entry, ok := h.world.Get(targetID)
			if !ok {
				continue
			}
			tf := netcomponents.Transform.Get(entry)

			d := obsPos.HorizontalDistanceTo(tf.Position)
			if d > netconfig.CullingRadius {
				delete(observer.lastSent, targetID)
				continue
			}

			interval := time.Second / time.Duration(netconfig.RateForDistance(d))
			if now.Sub(observer.lastSent[targetID]) < interval {
				continue
			}
			observer.lastSent[targetID] = now

			vel := netcomponents.Velocity.Get(entry).Linear
			update := protocol.PlayerUpdatePayload{
				Position: protocol.FromVec3(tf.Position),
				Rotation: tf.Rotation,
			}
			if vel.Length() >= netconfig.VelocityNoiseFloor {
				v := protocol.FromVec3(vel)
				update.Velocity = &v
			}
			observer.client.sendEnvelope(protocol.TypePlayerUpdate, targetID, target.lastSeq, update)
		}
	}
}

func (h *Hub) broadcastExcept(exceptID, msgType, squirrelID string, seq uint64, payload any) {
	for _, session := range h.sessions {
		if session.squirrelID == exceptID {
			continue
		}
		session.client.sendEnvelope(msgType, squirrelID, seq, payload)
	}
}

func (h *Hub) roster(exceptID string) []protocol.PlayerInfo {
	var players []protocol.PlayerInfo
	for id := range h.byID {
		if id == exceptID {
			continue
		}
		players = append(players, h.playerInfo(id))
	}
	return players
}

func (h *Hub) playerInfo(squirrelID string) protocol.PlayerInfo {
	entry, _ := h.world.Get(squirrelID)
	tf := netcomponents.Transform.Get(entry)
	session := h.byID[squirrelID]
	name := ""
	if session != nil {
		name = session.name
	}
	return protocol.PlayerInfo{
		SquirrelID: squirrelID,
		Name:       name,
		Position:   protocol.FromVec3(tf.Position),
		Rotation:   tf.Rotation,
	}
}

// PlayerCount returns the number of joined sessions. Safe to call from any
// goroutine.
func (h *Hub) PlayerCount() int {
	return int(h.count.Load())
}
