package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oakgrove/scamper-mp/shared/protocol"
	"golang.org/x/time/rate"
)

// Per-client inbound budget: at 5 Hz state plus batches and heartbeats,
// anything past this is a misbehaving or hostile client.
const (
	inboundRate  = 30 // frames per second
	inboundBurst = 60
	outboundCap  = 256
)

// Server accepts websocket connections and feeds them into the hub.
type Server struct {
	world *World
	hub   *Hub
	http  *http.Server

	mu      sync.Mutex
	clients map[*remoteClient]struct{}
}

// NewServer creates a game server with the given terrain seed and tick
// rate.
func NewServer(seed int64, tickRate int) *Server {
	world := NewWorld(seed)
	return &Server{
		world:   world,
		hub:     NewHub(world, tickRate),
		clients: make(map[*remoteClient]struct{}),
	}
}

// Hub exposes the session actor, mainly for tests and metrics.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving on the given port. Blocks until the listener fails
// or Stop is called.
func (s *Server) Start(port uint) error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","players":%d}`, s.hub.PlayerCount())
	})

	s.http = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	log.Printf("[server] listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.hub.Stop()
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(ctx)
	}

	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("[server] accept: %v", err)
		return
	}

	client := newRemoteClient(conn, s.hub)
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	log.Printf("[server] client connected from %s", r.RemoteAddr)

	go client.writeLoop()
	client.readLoop()

	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

// remoteClient is one websocket connection: a read loop that decodes and
// enqueues hub commands, and a writer goroutine draining the outbound
// queue. Over-budget inbound frames are dropped, not fatal.
type remoteClient struct {
	conn    *websocket.Conn
	hub     *Hub
	limiter *rate.Limiter

	outbound chan []byte

	mu         sync.Mutex
	squirrelID string
	closed     bool

	dropped int
}

func newRemoteClient(conn *websocket.Conn, hub *Hub) *remoteClient {
	return &remoteClient{
		conn:     conn,
		hub:      hub,
		limiter:  rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		outbound: make(chan []byte, outboundCap),
	}
}

func (c *remoteClient) setSquirrelID(id string) {
	c.mu.Lock()
	c.squirrelID = id
	c.mu.Unlock()
}

func (c *remoteClient) readLoop() {
	defer func() {
		c.hub.Enqueue(leaveCmd{client: c, reason: "connection closed"})
		c.close()
	}()

	for {
		_, raw, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.dropped++
			if c.dropped%100 == 1 {
				log.Printf("[server] rate limit: dropped %d frames from %s", c.dropped, c.squirrelIDLocked())
			}
			continue
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("[server] rejecting frame: %v", err)
			c.sendEnvelope(protocol.TypeError, "", 0, protocol.ErrorPayload{Reason: "malformed frame"})
			continue
		}
		c.ingest(msg)
	}
}

// ingest turns decoded messages into hub commands, expanding batches.
func (c *remoteClient) ingest(msg protocol.Message) {
	switch payload := msg.Payload.(type) {
	case protocol.JoinPayload:
		c.hub.Enqueue(joinCmd{client: c, payload: payload})
	case protocol.PlayerStatePayload:
		c.hub.Enqueue(stateCmd{
			client: c,
			seq:    msg.Sequence,
			at:     time.UnixMilli(msg.Timestamp),
			state:  payload,
		})
	case protocol.HeartbeatPayload:
		c.hub.Enqueue(heartbeatCmd{client: c})
	case protocol.BatchPayload:
		msgs, err := protocol.ExpandBatch(payload)
		if err != nil {
			log.Printf("[server] rejecting batch: %v", err)
			return
		}
		for _, env := range msgs {
			inner, err := protocol.DecodeEnvelope(env)
			if err != nil {
				log.Printf("[server] rejecting batched frame: %v", err)
				continue
			}
			c.ingest(inner)
		}
	default:
		// Server-to-client types arriving inbound are protocol
		// violations; filter them before they reach the hub.
		log.Printf("[server] ignoring unexpected %s frame", msg.Type)
	}
}

func (c *remoteClient) writeLoop() {
	for frame := range c.outbound {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			return
		}
	}
}

// send queues one envelope, dropping when the client can't keep up. A slow
// consumer loses stale state updates, which prediction absorbs.
func (c *remoteClient) send(env protocol.Envelope) {
	frame, err := protocol.Marshal(env)
	if err != nil {
		log.Printf("[server] marshal %s: %v", env.Type, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbound <- frame:
	default:
	}
}

func (c *remoteClient) sendEnvelope(msgType, squirrelID string, seq uint64, payload any) {
	env, err := protocol.NewEnvelope(msgType, squirrelID, seq, payload)
	if err != nil {
		log.Printf("[server] build %s: %v", msgType, err)
		return
	}
	c.send(env)
}

func (c *remoteClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.outbound)
	_ = c.conn.Close(websocket.StatusNormalClosure, "server closing")
}

func (c *remoteClient) squirrelIDLocked() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.squirrelID == "" {
		return "unjoined"
	}
	return c.squirrelID
}
