// Command scamper runs a headless demo client: it connects to a game
// server, predicts a wandering squirrel locally and reconciles against
// server acknowledgements. Useful for soak-testing a server and as a
// reference for wiring the session into a real frontend.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakgrove/scamper-mp/config"
	"github.com/oakgrove/scamper-mp/network"
)

const frameRate = 60

func main() {
	configPath := flag.String("config", "", "Path to client config YAML")
	server := flag.String("server", "", "Server address (overrides config)")
	name := flag.String("name", "", "Player name (overrides config)")
	duration := flag.Duration("duration", 0, "Exit after this long (0 = run until interrupted)")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Fatalf("[client] load config: %v", err)
	}
	if *server != "" {
		cfg.ServerAddress = *server
	}
	if *name != "" {
		cfg.PlayerName = *name
	}

	if err := network.InitIdentityStore(); err != nil {
		log.Printf("[client] identity store unavailable, using ephemeral identity: %v", err)
	}
	id := network.LoadIdentity(cfg.PlayerName)
	if err := network.SaveIdentity(id); err != nil {
		log.Printf("[client] could not persist identity: %v", err)
	}

	session := network.NewClientSession(cfg.ServerAddress)
	session.Reconciler.SetParams(network.ThresholdParams{
		Base:            cfg.Reconcile.BaseThreshold,
		Min:             cfg.Reconcile.MinThreshold,
		Max:             cfg.Reconcile.MaxThreshold,
		MovingScale:     cfg.Reconcile.MovingScale,
		StationaryScale: cfg.Reconcile.StationaryScale,
		LargeGapScale:   cfg.Reconcile.LargeGapScale,
		LargeGapDist:    cfg.Reconcile.LargeGapDist,
		StationaryEps:   cfg.Reconcile.StationaryEps,
	})
	session.Start(id.Name, id.PlayerID)
	defer session.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	log.Printf("[client] %s (%s) wandering on %s", id.Name, id.PlayerID, cfg.ServerAddress)

	frame := time.NewTicker(time.Second / frameRate)
	defer frame.Stop()

	wander := newWanderer()
	last := time.Now()
	for {
		select {
		case <-sigChan:
			log.Println("[client] interrupted, disconnecting")
			return
		case <-deadline:
			log.Println("[client] duration elapsed, disconnecting")
			return
		case now := <-frame.C:
			dt := now.Sub(last).Seconds()
			last = now

			input := wander.next(dt)
			if _, err := session.Predictor.ApplyInput(input, dt); err != nil {
				log.Printf("[client] input rejected: %v", err)
			}
			session.Frame(dt)

			wander.sinceLog += dt
			if wander.sinceLog >= 5 {
				wander.sinceLog = 0
				pos, rot := session.Predictor.Pose()
				log.Printf("[client] at (%.1f, %.1f, %.1f) facing %.2f, state=%v",
					pos.X, pos.Y, pos.Z, rot, session.Client.State())
			}
		}
	}
}

// wanderer produces a plausible movement pattern: mostly forward motion
// with occasional turns, pauses and sprints, so prediction, batching and
// reconciliation all get exercised.
type wanderer struct {
	rng      *rand.Rand
	phase    float64
	sinceLog float64
}

func newWanderer() *wanderer {
	return &wanderer{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (w *wanderer) next(dt float64) network.InputState {
	w.phase += dt

	// Roughly: move for ~8s, idle for ~2s, on a drifting cycle.
	cycle := math.Mod(w.phase, 10)
	if cycle > 8 {
		return network.InputState{}
	}

	input := network.InputState{Forward: true}
	turn := math.Sin(w.phase * 0.3)
	if turn > 0.4 {
		input.TurnLeft = true
	} else if turn < -0.4 {
		input.TurnRight = true
	}
	if w.rng.Float64() < 0.002 {
		input.Sprint = true
	}
	return input
}
