package network

import (
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	"github.com/oakgrove/scamper-mp/shared/encoding"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/protocol"
)

// Priority is an advisory send priority. High flushes the batch
// immediately; low and medium wait for the flush window or the size cap.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// wireRound is the precision numeric fields are rounded to before
// serialization (millimeter scale). Distinct from the coarser dedup
// fingerprint rounding.
const wireRound = 1000

// fingerprint is the rounded pose identity used to deduplicate consecutive
// movement messages.
type fingerprint struct {
	x, y, z int64
	rot     int64
}

func fingerprintOf(u PendingUpdate) fingerprint {
	return fingerprint{
		x:   int64(math.Round(u.Position.X / netconfig.DedupPositionStep)),
		y:   int64(math.Round(u.Position.Y / netconfig.DedupPositionStep)),
		z:   int64(math.Round(u.Position.Z / netconfig.DedupPositionStep)),
		rot: int64(math.Round(u.Rotation / netconfig.DedupRotationStep)),
	}
}

// FlushFn delivers one serialized transport frame.
type FlushFn func(frame []byte) error

// Batcher collects outbound messages for up to the flush window or a size
// cap, then coalesces them into one transport frame. Movement messages are
// deduplicated against the last sent fingerprint and delta-compressed
// within a window (only the newest per squirrel survives).
type Batcher struct {
	mu         sync.Mutex
	pending    []protocol.Envelope
	pendingLen int
	timer      *time.Timer
	flushFn    FlushFn
	squirrelID string

	lastSent    fingerprint
	hasLastSent bool

	window    time.Duration
	sizeCap   int
	threshold int

	// Counters for diagnostics.
	Deduped, Flushed int
}

// NewBatcher builds a batcher that delivers frames through flushFn.
func NewBatcher(flushFn FlushFn) *Batcher {
	return &Batcher{
		flushFn:   flushFn,
		window:    netconfig.BatchWindow,
		sizeCap:   netconfig.BatchSizeCap,
		threshold: netconfig.CompressThreshold,
	}
}

// SetSquirrelID sets the local identity stamped on outbound envelopes.
func (b *Batcher) SetSquirrelID(id string) {
	b.mu.Lock()
	b.squirrelID = id
	b.mu.Unlock()
}

// EnqueueState queues one predicted state sample as a player_state message.
// Samples whose rounded fingerprint matches the last transmitted one are
// dropped; only movement messages are ever deduplicated.
func (b *Batcher) EnqueueState(u PendingUpdate, pri Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fp := fingerprintOf(u)
	if b.hasLastSent && fp == b.lastSent {
		b.Deduped++
		return
	}

	payload := protocol.PlayerStatePayload{
		Position: roundVec(protocol.FromVec3(u.Position)),
		Rotation: roundTo(u.Rotation),
	}
	// Velocity below the noise floor is omitted entirely.
	if u.Velocity.Length() >= netconfig.VelocityNoiseFloor {
		v := roundVec(protocol.FromVec3(u.Velocity))
		payload.Velocity = &v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[batch] drop state seq=%d: %v", u.Sequence, err)
		return
	}

	env := protocol.Envelope{
		Type:       protocol.TypePlayerState,
		SquirrelID: b.squirrelID,
		Data:       data,
		Timestamp:  u.Timestamp.UnixMilli(),
		Sequence:   u.Sequence,
	}

	b.lastSent = fp
	b.hasLastSent = true
	b.enqueueLocked(env, pri)
}

// Enqueue queues a non-movement message (join, heartbeat). These are never
// deduplicated.
func (b *Batcher) Enqueue(env protocol.Envelope, pri Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueueLocked(env, pri)
}

// enqueueLocked appends and decides flush timing. Callers hold b.mu.
func (b *Batcher) enqueueLocked(env protocol.Envelope, pri Priority) {
	// Delta compression: a newer movement sample for the same squirrel
	// supersedes any queued one inside the window.
	if env.Type == protocol.TypePlayerState {
		for i, queued := range b.pending {
			if queued.Type == protocol.TypePlayerState && queued.SquirrelID == env.SquirrelID {
				b.pendingLen -= envelopeSize(queued)
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				break
			}
		}
	}

	b.pending = append(b.pending, env)
	b.pendingLen += envelopeSize(env)

	if pri == PriorityHigh || b.pendingLen >= b.sizeCap {
		b.flushLocked()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.Flush)
	}
}

// Flush sends everything pending as one frame.
func (b *Batcher) Flush() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}
	msgs := b.pending
	b.pending = nil
	b.pendingLen = 0

	frame, err := buildFrame(msgs, b.threshold)
	if err != nil {
		log.Printf("[batch] build frame: %v", err)
		return
	}
	if err := b.flushFn(frame); err != nil {
		log.Printf("[batch] flush: %v", err)
		return
	}
	b.Flushed++
}

// buildFrame coalesces envelopes into a single transport frame. A lone
// message goes out bare; multiple go inside a batch envelope whose payload
// gets the run-length pass only above the size threshold.
func buildFrame(msgs []protocol.Envelope, threshold int) ([]byte, error) {
	if len(msgs) == 1 {
		return protocol.Marshal(msgs[0])
	}

	inner, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}

	batch := protocol.BatchPayload{}
	if len(inner) > threshold {
		batch.Encoding = "rle"
		batch.Blob = encoding.EncodeRLE(inner)
	} else {
		batch.Messages = msgs
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	return protocol.Marshal(protocol.Envelope{
		Type:      protocol.TypeBatch,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func envelopeSize(env protocol.Envelope) int {
	// Close enough for the cap check; exact framing overhead is small and
	// constant.
	return len(env.Data) + 96
}

func roundTo(v float64) float64 {
	return math.Round(v*wireRound) / wireRound
}

func roundVec(v protocol.Vec) protocol.Vec {
	return protocol.Vec{X: roundTo(v.X), Y: roundTo(v.Y), Z: roundTo(v.Z)}
}
