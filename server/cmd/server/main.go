package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakgrove/scamper-mp/config"
	"github.com/oakgrove/scamper-mp/server/core"
)

func main() {
	configPath := flag.String("config", "", "Path to server config YAML")
	port := flag.Uint("port", 0, "Server port (overrides config)")
	seed := flag.Int64("seed", 0, "Terrain seed (overrides config)")
	name := flag.String("name", "", "Server display name (overrides config)")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		log.Fatalf("[server] load config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *seed != 0 {
		cfg.TerrainSeed = *seed
	}
	if *name != "" {
		cfg.ServerName = *name
	}

	server := core.NewServer(cfg.TerrainSeed, cfg.TickRate)
	server.Hub().SetMaxPlayers(cfg.MaxPlayers)

	stopMaster := make(chan struct{})
	if cfg.MasterURL != "" {
		go registerWithMaster(cfg, server, stopMaster)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[server] shutting down")
		close(stopMaster)
		server.Stop()
		os.Exit(0)
	}()

	log.Printf("[server] starting %q on port %d (tick rate %d/s, seed %d)",
		cfg.ServerName, cfg.Port, cfg.TickRate, cfg.TerrainSeed)
	if err := server.Start(cfg.Port); err != nil {
		log.Fatalf("[server] error: %v", err)
	}
}

// registerWithMaster announces this server to the directory service and
// heartbeats the registration until stopped. Registration failures retry;
// a lost registration re-registers.
func registerWithMaster(cfg config.ServerConfig, server *core.Server, stop <-chan struct{}) {
	client := &http.Client{Timeout: 5 * time.Second}

	var worldID string
	register := func() {
		body, _ := json.Marshal(map[string]any{
			"name":        cfg.ServerName,
			"address":     fmt.Sprintf("localhost:%d", cfg.Port),
			"maxPlayers":  cfg.MaxPlayers,
			"terrainSeed": cfg.TerrainSeed,
		})
		resp, err := client.Post(cfg.MasterURL+"/worlds/register", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("[server] master registration failed: %v", err)
			return
		}
		defer resp.Body.Close()
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			log.Printf("[server] master registration response: %v", err)
			return
		}
		worldID = out.ID
		log.Printf("[server] registered with master as %s", worldID)
	}

	register()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if worldID == "" {
				register()
				continue
			}
			body, _ := json.Marshal(map[string]any{
				"id":        worldID,
				"squirrels": server.Hub().PlayerCount(),
			})
			resp, err := client.Post(cfg.MasterURL+"/worlds/heartbeat", "application/json", bytes.NewReader(body))
			if err != nil {
				log.Printf("[server] master heartbeat failed: %v", err)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				worldID = ""
			}
		}
	}
}
