package network

import (
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
)

const pendingBufferSize = 128

// InputState is one frame's worth of discrete movement flags.
type InputState struct {
	Forward   bool
	Backward  bool
	TurnLeft  bool
	TurnRight bool
	Sprint    bool
}

// Active reports whether any flag is pressed.
func (in InputState) Active() bool {
	return in.Forward || in.Backward || in.TurnLeft || in.TurnRight
}

// InputSnapshot records one locally-applied input for the replay window.
type InputSnapshot struct {
	Sequence  uint64
	Timestamp time.Time
	Input     InputState
}

// PendingUpdate is one network-tick state sample awaiting server
// acknowledgement.
type PendingUpdate struct {
	Sequence  uint64
	Timestamp time.Time
	Position  gamemath.Vec3
	Rotation  float64
	Velocity  gamemath.Vec3
}

// PredictionBuffer is a ring buffer of recent pending updates keyed by
// sequence number, plus the acknowledgement watermark that evicts them.
// Sequence numbers are allocated here and are strictly increasing for the
// life of the session.
type PredictionBuffer struct {
	history   [pendingBufferSize]PendingUpdate
	nextSeq   uint64
	lastAcked uint64
}

// NewPredictionBuffer returns a buffer whose first allocated sequence is 1.
func NewPredictionBuffer() *PredictionBuffer {
	return &PredictionBuffer{nextSeq: 1}
}

// Allocate hands out the next sequence number.
func (pb *PredictionBuffer) Allocate() uint64 {
	seq := pb.nextSeq
	pb.nextSeq++
	return seq
}

// NextSeq returns the next sequence number that Allocate will hand out.
func (pb *PredictionBuffer) NextSeq() uint64 {
	return pb.nextSeq
}

// Store saves a pending update in its ring slot.
func (pb *PredictionBuffer) Store(u PendingUpdate) {
	pb.history[u.Sequence%pendingBufferSize] = u
}

// Get retrieves a pending update by sequence number. Returns false if the
// slot was overwritten or the sequence is already acknowledged.
func (pb *PredictionBuffer) Get(seq uint64) (PendingUpdate, bool) {
	if seq == 0 || seq <= pb.lastAcked {
		return PendingUpdate{}, false
	}
	record := pb.history[seq%pendingBufferSize]
	if record.Sequence != seq {
		return PendingUpdate{}, false
	}
	return record, true
}

// Ack advances the acknowledgement watermark. The watermark only moves
// forward, so re-acknowledging an older sequence is a no-op.
func (pb *PredictionBuffer) Ack(seq uint64) {
	if seq > pb.lastAcked {
		pb.lastAcked = seq
	}
}

// LastAcked returns the acknowledgement watermark.
func (pb *PredictionBuffer) LastAcked() uint64 {
	return pb.lastAcked
}

// Unacknowledged returns retained updates with sequence greater than the
// watermark, in ascending sequence order.
func (pb *PredictionBuffer) Unacknowledged() []PendingUpdate {
	var results []PendingUpdate
	for seq := pb.lastAcked + 1; seq < pb.nextSeq; seq++ {
		if record, ok := pb.Get(seq); ok {
			results = append(results, record)
		}
	}
	return results
}

// PruneStale clears updates older than the prediction horizon. Stale
// updates are dropped, never replayed. Returns how many were evicted.
func (pb *PredictionBuffer) PruneStale(now time.Time, horizon time.Duration) int {
	evicted := 0
	for i := range pb.history {
		u := &pb.history[i]
		if u.Sequence == 0 {
			continue
		}
		if u.Sequence <= pb.lastAcked || now.Sub(u.Timestamp) > horizon {
			*u = PendingUpdate{}
			evicted++
		}
	}
	return evicted
}

// PredictionError calculates the distance between the predicted and
// authoritative position for a given sequence. Returns 0 when the sequence
// is no longer retained.
func (pb *PredictionBuffer) PredictionError(seq uint64, serverPos gamemath.Vec3) float64 {
	record, ok := pb.Get(seq)
	if !ok {
		return 0
	}
	return record.Position.DistanceTo(serverPos)
}
