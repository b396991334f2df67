package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"
)

// WorldInfo describes a game world visible to clients browsing for a
// server.
type WorldInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Squirrels   int    `json:"squirrels"`
	MaxPlayers  int    `json:"maxPlayers"`
	TerrainSeed int64  `json:"terrainSeed"`
	Version     string `json:"version"`
}

type worldRecord struct {
	WorldInfo
	LastSeen time.Time
}

// Registry is an in-memory store of active game worlds with TTL-based
// expiry. Worlds that stop heartbeating fall out on their own.
type Registry struct {
	mu     sync.RWMutex
	worlds map[string]*worldRecord
	ttl    time.Duration
	stopCh chan struct{}
}

func NewRegistry(ttl time.Duration) *Registry {
	r := &Registry{
		worlds: make(map[string]*worldRecord),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

func (r *Registry) Register(info WorldInfo) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	id := fmt.Sprintf("%x", b)

	info.ID = id

	r.mu.Lock()
	r.worlds[id] = &worldRecord{
		WorldInfo: info,
		LastSeen:  time.Now(),
	}
	r.mu.Unlock()

	return id
}

func (r *Registry) Heartbeat(id string, squirrels int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.worlds[id]
	if !ok {
		return false
	}
	rec.LastSeen = time.Now()
	rec.Squirrels = squirrels
	return true
}

func (r *Registry) List() []WorldInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]WorldInfo, 0, len(r.worlds))
	for _, rec := range r.worlds {
		result = append(result, rec.WorldInfo)
	}
	return result
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := time.Now()
			for id, rec := range r.worlds {
				if now.Sub(rec.LastSeen) >= r.ttl {
					log.Printf("[master] expired world %q (id=%s, last seen %s ago)",
						rec.Name, id, now.Sub(rec.LastSeen).Round(time.Second))
					delete(r.worlds, id)
				}
			}
			r.mu.Unlock()
		}
	}
}
