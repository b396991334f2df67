// Package netconfig defines the protocol constants shared between client and
// server. It must have zero dependencies on the client or server packages so
// both binaries agree on the wire contract by construction.
package netconfig

import "time"

// Network cadence.
const (
	// NetSendRate is how often the client samples predicted state and sends
	// it to the server. Deliberately far below render rate to bound
	// bandwidth.
	NetSendRate = 5 // Hz

	// NetSendInterval is the tick period derived from NetSendRate.
	NetSendInterval = time.Second / NetSendRate

	// ServerTickRate is how often the authoritative step advances.
	ServerTickRate = 20 // Hz

	// HeartbeatInterval is how often each side proves liveness.
	HeartbeatInterval = 30 * time.Second

	// HeartbeatMissLimit is how many missed heartbeat intervals are
	// tolerated before the peer is considered gone.
	HeartbeatMissLimit = 2
)

// Reconnect backoff.
const (
	ReconnectBaseDelay  = 1 * time.Second
	ReconnectMaxDelay   = 30 * time.Second
	ReconnectMaxRetries = 10
)

// Prediction and reconciliation.
const (
	// PredictionHorizon bounds how long an unacknowledged update is
	// retained. Updates older than this are dropped, not replayed.
	PredictionHorizon = 5 * time.Second

	// ReplayTimestep is the fixed dt used when re-applying pending updates
	// after a correction. Pending updates are minted once per network tick,
	// so the tick period is the natural step.
	ReplayTimestep = NetSendInterval

	// ReconcileBaseThreshold is the divergence tolerance before dynamic
	// scaling, in world units (1 cm).
	ReconcileBaseThreshold = 0.01

	// ReconcileMinThreshold and ReconcileMaxThreshold clamp the dynamic
	// threshold to a sane absolute range (5 mm to 5 cm).
	ReconcileMinThreshold = 0.005
	ReconcileMaxThreshold = 0.05

	// ReconcileMovingScale widens the threshold while moving: motion
	// produces larger natural variance between client and server.
	ReconcileMovingScale = 1.5

	// ReconcileStationaryScale tightens the threshold when standing still.
	ReconcileStationaryScale = 0.5

	// ReconcileLargeGapScale widens the threshold further for big gaps,
	// which are network hiccups rather than precision errors.
	ReconcileLargeGapScale = 2.0

	// ReconcileLargeGapDistance is the divergence beyond which the
	// large-gap scale applies, in world units.
	ReconcileLargeGapDistance = 0.5

	// StationaryEpsilon is the velocity magnitude below which an entity
	// counts as stationary.
	StationaryEpsilon = 0.01

	// CorrectionSmoothing is the interpolation factor applied toward the
	// authoritative position on correction. Below 1 so corrections read as
	// a nudge, not a snap.
	CorrectionSmoothing = 0.35

	// MaxPlausibleSpeed is the fastest any squirrel can legitimately move,
	// in world units per second. Replayed or inbound updates above this are
	// rejected.
	MaxPlausibleSpeed = 20.0
)

// Tick history (lag-compensation/diagnostic log).
const (
	TickHistoryMaxAge     = 10 * time.Second
	TickHistoryMaxEntries = 100
)

// Batching and compression.
const (
	// BatchWindow is how long outbound messages accumulate before a flush.
	BatchWindow = 50 * time.Millisecond

	// BatchSizeCap forces a flush once the pending payload reaches this
	// many bytes.
	BatchSizeCap = 4 << 10

	// DedupPositionStep is the grid the position is rounded to for the
	// dedup fingerprint (0.1 world units).
	DedupPositionStep = 0.1

	// DedupRotationStep is the rotation rounding for the dedup fingerprint
	// (0.01 radians).
	DedupRotationStep = 0.01

	// VelocityNoiseFloor is the speed below which velocity is omitted from
	// the wire entirely.
	VelocityNoiseFloor = 0.05

	// CompressThreshold is the serialized payload size above which the
	// run-length pass runs. Smaller payloads go uncompressed; the CPU is
	// not worth it.
	CompressThreshold = 512
)

// Interest and visibility.
const (
	// InterestRadius is the distance within which a remote entity is fully
	// visible.
	InterestRadius = 50.0

	// CullingRadius is the distance beyond which a remote entity is removed
	// from update consideration entirely.
	CullingRadius = 100.0

	FadeInDuration  = 300 * time.Millisecond
	FadeOutDuration = 200 * time.Millisecond
)

// UpdateBand is an advisory cadence hint derived from distance.
type UpdateBand struct {
	MaxDistance float64
	Rate        int // Hz
}

// UpdateBands maps distance to the suggested update rate for an entity.
// Communicated to the batching layer as a priority hint, not a hard
// contract.
var UpdateBands = []UpdateBand{
	{MaxDistance: 10, Rate: 20},
	{MaxDistance: 25, Rate: 10},
	{MaxDistance: 40, Rate: 5},
}

// FarBandRate is the cadence for anything beyond the last band.
const FarBandRate = 2

// RateForDistance returns the advisory update rate for an entity at the
// given distance.
func RateForDistance(d float64) int {
	for _, b := range UpdateBands {
		if d <= b.MaxDistance {
			return b.Rate
		}
	}
	return FarBandRate
}

// World extent.
const (
	WorldExtent    = 500.0 // bounds are +/- this on X and Z
	WorldMinHeight = 0.5   // fallback height when the terrain query times out
)

// TerrainQueryTimeout bounds how long the prediction engine waits for a
// height lookup before falling back to WorldMinHeight.
const TerrainQueryTimeout = 100 * time.Millisecond
