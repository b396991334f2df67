package main

import (
	"encoding/json"
	"log"
	"net/http"
)

const maxBodyBytes = 64 * 1024

type registerRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	MaxPlayers  int    `json:"maxPlayers"`
	TerrainSeed int64  `json:"terrainSeed"`
	Version     string `json:"version"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type heartbeatRequest struct {
	ID        string `json:"id"`
	Squirrels int    `json:"squirrels"`
}

func handleListWorlds(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worlds := reg.List()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(worlds); err != nil {
			log.Printf("[master] encode world list: %v", err)
		}
	}
}

func handleRegisterWorld(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Address == "" {
			http.Error(w, "name and address are required", http.StatusBadRequest)
			return
		}
		if req.MaxPlayers <= 0 {
			req.MaxPlayers = 32
		}

		id := reg.Register(WorldInfo{
			Name:        req.Name,
			Address:     req.Address,
			MaxPlayers:  req.MaxPlayers,
			TerrainSeed: req.TerrainSeed,
			Version:     req.Version,
		})
		log.Printf("[master] registered world %q at %s (id=%s)", req.Name, req.Address, id)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registerResponse{ID: id})
	}
}

func handleWorldHeartbeat(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		var req heartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if !reg.Heartbeat(req.ID, req.Squirrels) {
			http.Error(w, "unknown world id", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
