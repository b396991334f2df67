package network

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/oakgrove/scamper-mp/shared/terrain"
)

// heightCache races terrain queries against a timeout so a slow sampler
// degrades vertical placement instead of stalling movement. Lookups return
// the best known height immediately; a background refresh updates the cache
// once the sampler resolves.
type heightCache struct {
	sampler  terrain.HeightSampler
	timeout  time.Duration
	fallback float64

	mu       sync.Mutex
	height   float64
	resolved bool
	inFlight bool
}

func newHeightCache(sampler terrain.HeightSampler, timeout time.Duration, fallback float64) *heightCache {
	return &heightCache{
		sampler:  sampler,
		timeout:  timeout,
		fallback: fallback,
		height:   fallback,
	}
}

// lookup returns the current best height for (x, z) without blocking and
// kicks off a refresh if none is in flight.
func (h *heightCache) lookup(x, z float64) float64 {
	h.mu.Lock()
	height := h.height
	if !h.resolved {
		height = h.fallback
	}
	start := !h.inFlight
	if start {
		h.inFlight = true
	}
	h.mu.Unlock()

	if start && h.sampler != nil {
		go h.refresh(x, z)
	}
	return height
}

func (h *heightCache) refresh(x, z float64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	height, err := h.sampler.HeightAt(ctx, x, z)

	h.mu.Lock()
	h.inFlight = false
	if err == nil {
		h.height = height
		h.resolved = true
	}
	h.mu.Unlock()

	if err != nil {
		log.Printf("[predict] terrain query failed, keeping fallback: %v", err)
	}
}
