package network

import (
	"sync"
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
)

// PlayerSnapshot is one entity's pose inside a recorded tick.
type PlayerSnapshot struct {
	Position gamemath.Vec3
	Rotation float64
	Velocity gamemath.Vec3
}

// TickRecord is one network tick's view of every known entity. Never
// mutated after insertion.
type TickRecord struct {
	Sequence  uint64
	Timestamp time.Time
	Players   map[string]PlayerSnapshot
}

// TickHistory is a ring-bounded append-only log of tick records used for
// diagnostic and lag-compensation queries. Eviction is by combined age and
// count limits.
type TickHistory struct {
	mu      sync.Mutex
	records []TickRecord
	maxAge  time.Duration
	maxLen  int
}

// NewTickHistory builds a history with the netconfig limits.
func NewTickHistory() *TickHistory {
	return &TickHistory{
		maxAge: netconfig.TickHistoryMaxAge,
		maxLen: netconfig.TickHistoryMaxEntries,
	}
}

// Append records a tick and evicts over-limit entries.
func (h *TickHistory) Append(rec TickRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	h.pruneLocked(rec.Timestamp)
}

// Prune evicts entries older than the age limit as of now. Called every
// render frame so the log drains even when ticking stops.
func (h *TickHistory) Prune(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked(now)
}

func (h *TickHistory) pruneLocked(now time.Time) {
	cutoff := now.Add(-h.maxAge)
	firstLive := len(h.records)
	for i, rec := range h.records {
		if rec.Timestamp.After(cutoff) {
			firstLive = i
			break
		}
	}
	h.records = h.records[firstLive:]
	if len(h.records) > h.maxLen {
		h.records = h.records[len(h.records)-h.maxLen:]
	}
}

// Len returns the number of retained records.
func (h *TickHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// At returns the record nearest the given timestamp within the retention
// window.
func (h *TickHistory) At(t time.Time) (TickRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	best := -1
	var bestDelta time.Duration
	for i, rec := range h.records {
		delta := rec.Timestamp.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	if best == -1 {
		return TickRecord{}, false
	}
	return h.records[best], true
}

// SnapshotFn produces the current global snapshot for the history log.
type SnapshotFn func() map[string]PlayerSnapshot

// NetTicker samples predicted state at a fixed rate, independent of the
// render loop, and hands each sample to the batching layer. Frame-rate
// drops never throttle outbound state.
type NetTicker struct {
	predictor *Predictor
	buffer    *PredictionBuffer
	batcher   *Batcher
	history   *TickHistory
	snapshot  SnapshotFn

	interval time.Duration
	horizon  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	open    bool
	stopCh  chan struct{}
	stopped bool
}

// NewNetTicker wires the tick scheduler. snapshot may be nil if no global
// history is wanted.
func NewNetTicker(predictor *Predictor, buffer *PredictionBuffer, batcher *Batcher, history *TickHistory, snapshot SnapshotFn) *NetTicker {
	return &NetTicker{
		predictor: predictor,
		buffer:    buffer,
		batcher:   batcher,
		history:   history,
		snapshot:  snapshot,
		interval:  netconfig.NetSendInterval,
		horizon:   netconfig.PredictionHorizon,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// SetTransportOpen tells the ticker whether the transport is usable. Ticks
// while closed still advance cleanup but send nothing.
func (t *NetTicker) SetTransportOpen(open bool) {
	t.mu.Lock()
	t.open = open
	t.mu.Unlock()
}

// Run drives the fixed-period timer until Stop. Runs in its own goroutine.
func (t *NetTicker) Run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Stop halts tick scheduling. Safe to call once.
func (t *NetTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.stopCh)
	}
}

// Tick performs one scheduled sample: allocate the next sequence, retain a
// pending update, and enqueue the state message at medium priority.
func (t *NetTicker) Tick() {
	t.mu.Lock()
	open := t.open
	t.mu.Unlock()

	now := t.now()
	if open && t.predictor != nil {
		pos, rot := t.predictor.Pose()
		vel := t.predictor.VelocityNow()

		seq := t.buffer.Allocate()
		update := PendingUpdate{
			Sequence:  seq,
			Timestamp: now,
			Position:  pos,
			Rotation:  rot,
			Velocity:  vel,
		}
		t.buffer.Store(update)
		t.batcher.EnqueueState(update, PriorityMedium)
	}

	if t.history != nil && t.snapshot != nil {
		t.history.Append(TickRecord{
			Sequence:  t.buffer.NextSeq() - 1,
			Timestamp: now,
			Players:   t.snapshot(),
		})
	}
}

// OnFrame runs the decoupled cleanup cadence: called from the render loop
// every frame so stale state drains even if ticking stops (tab
// backgrounded, transport down).
func (t *NetTicker) OnFrame() {
	now := t.now()
	t.buffer.PruneStale(now, t.horizon)
	if t.predictor != nil {
		t.predictor.PruneInputs(t.horizon)
	}
	if t.history != nil {
		t.history.Prune(now)
	}
}
