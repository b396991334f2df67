package network

import (
	"log"
	"time"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
)

// ThresholdParams are the tunables behind the dynamic reconciliation
// threshold. The defaults come from netconfig; deployments calibrate them
// against real latency distributions through config.
type ThresholdParams struct {
	Base            float64
	Min, Max        float64
	MovingScale     float64
	StationaryScale float64
	LargeGapScale   float64
	LargeGapDist    float64
	StationaryEps   float64
}

// DefaultThresholdParams returns the netconfig starting point.
func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{
		Base:            netconfig.ReconcileBaseThreshold,
		Min:             netconfig.ReconcileMinThreshold,
		Max:             netconfig.ReconcileMaxThreshold,
		MovingScale:     netconfig.ReconcileMovingScale,
		StationaryScale: netconfig.ReconcileStationaryScale,
		LargeGapScale:   netconfig.ReconcileLargeGapScale,
		LargeGapDist:    netconfig.ReconcileLargeGapDistance,
		StationaryEps:   netconfig.StationaryEpsilon,
	}
}

// DynamicThreshold computes the divergence tolerance for one
// acknowledgement. Motion widens it (movement produces larger natural
// variance), standing still tightens it, and an already-large gap widens it
// further since big jumps are network hiccups rather than precision errors.
func (tp ThresholdParams) DynamicThreshold(speed, positionDiff float64) float64 {
	t := tp.Base
	if speed > tp.StationaryEps {
		t *= tp.MovingScale
	} else {
		t *= tp.StationaryScale
	}
	if positionDiff > tp.LargeGapDist {
		t *= tp.LargeGapScale
	}
	return gamemath.ClampFloat(t, tp.Min, tp.Max)
}

// CorrectionResult reports what one acknowledgement did.
type CorrectionResult struct {
	Corrected    bool
	PositionDiff float64
	Threshold    float64
	Replayed     int
	Skipped      int
}

// Reconciler corrects local prediction against authoritative server state
// and replays unacknowledged updates afterwards.
type Reconciler struct {
	buffer    *PredictionBuffer
	predictor *Predictor
	params    ThresholdParams

	smoothing float64
	timestep  time.Duration
	maxSpeed  float64
	horizon   time.Duration
	now       func() time.Time
}

// NewReconciler builds a reconciler over the shared prediction buffer.
func NewReconciler(buffer *PredictionBuffer, predictor *Predictor) *Reconciler {
	return &Reconciler{
		buffer:    buffer,
		predictor: predictor,
		params:    DefaultThresholdParams(),
		smoothing: netconfig.CorrectionSmoothing,
		timestep:  netconfig.ReplayTimestep,
		maxSpeed:  netconfig.MaxPlausibleSpeed,
		horizon:   netconfig.PredictionHorizon,
		now:       time.Now,
	}
}

// SetParams overrides the threshold tunables.
func (r *Reconciler) SetParams(p ThresholdParams) {
	r.params = p
}

// OnAck handles one server acknowledgement: advance the watermark, evict
// acknowledged updates, and correct + replay if the recorded prediction
// diverged beyond the dynamic threshold. Acknowledgements are idempotent; a
// duplicate or very late ack whose update is already evicted is a no-op.
func (r *Reconciler) OnAck(ackedSeq uint64, serverPos gamemath.Vec3, serverRot float64) CorrectionResult {
	record, retained := r.buffer.Get(ackedSeq)

	r.buffer.Ack(ackedSeq)
	r.buffer.PruneStale(r.now(), r.horizon)

	if !retained {
		return CorrectionResult{}
	}

	diff := record.Position.DistanceTo(serverPos)
	threshold := r.params.DynamicThreshold(record.Velocity.Length(), diff)

	result := CorrectionResult{PositionDiff: diff, Threshold: threshold}
	if diff <= threshold {
		// The common case: prediction held. Must stay this cheap.
		return result
	}

	result.Corrected = true

	// Smoothed correction: nudge toward the authoritative position rather
	// than snapping, then rebuild the unacknowledged tail on top of it.
	current, _ := r.predictor.Pose()
	corrected := gamemath.LerpVec3(current, serverPos, r.smoothing)
	r.predictor.SetPose(corrected, serverRot)

	dt := r.timestep.Seconds()
	now := r.now()
	for _, pending := range r.buffer.Unacknowledged() {
		if !r.validPending(pending, now) {
			log.Printf("[reconcile] skipping pending update seq=%d: failed validation", pending.Sequence)
			result.Skipped++
			continue
		}
		r.predictor.ApplyPending(pending, dt)

		// Refresh the stored prediction so the next ack compares against
		// the replayed pose.
		pos, rot := r.predictor.Pose()
		pending.Position = pos
		pending.Rotation = rot
		r.buffer.Store(pending)
		result.Replayed++
	}

	return result
}

// validPending gates replay on sequence freshness, positional sanity, and a
// plausible velocity. Anything failing is skipped, not replayed.
func (r *Reconciler) validPending(u PendingUpdate, now time.Time) bool {
	if u.Sequence <= r.buffer.LastAcked() {
		return false
	}
	if now.Sub(u.Timestamp) > r.horizon {
		return false
	}
	if !u.Position.IsFinite() || !u.Velocity.IsFinite() || !gamemath.IsFinite(u.Rotation) {
		return false
	}
	if !r.predictor.Bounds().Contains(u.Position) {
		return false
	}
	if u.Velocity.Length() > r.maxSpeed {
		return false
	}
	return true
}
