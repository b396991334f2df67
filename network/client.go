package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oakgrove/scamper-mp/shared/encoding"
	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"github.com/oakgrove/scamper-mp/shared/protocol"
)

// ClientState tracks the connection lifecycle.
type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

// Client manages a WebSocket connection to the game server: dialing,
// heartbeats, silent-disconnect detection, and reconnection with capped
// exponential backoff. All shared fields are protected by mu (the read loop
// and timers run on their own goroutines).
type Client struct {
	mu sync.RWMutex

	state      ClientState
	lastError  error
	squirrelID string
	tickRate   int
	conn       *websocket.Conn
	lastSeen   time.Time

	address    string
	playerName string
	playerID   string
	dispatcher Dispatcher

	heartbeat    time.Duration
	missLimit    int
	maxRetries   int
	onTransport  func(open bool)
	closeCh      chan struct{}
	closeOnce    sync.Once
	reconnecting bool
}

// NewClient builds a client that will dispatch decoded messages to d.
// onTransport, if non-nil, is told whenever the transport opens or closes
// (the tick scheduler listens on this).
func NewClient(address string, d Dispatcher, onTransport func(open bool)) *Client {
	return &Client{
		state:       StateDisconnected,
		address:     address,
		dispatcher:  d,
		heartbeat:   netconfig.HeartbeatInterval,
		missLimit:   netconfig.HeartbeatMissLimit,
		maxRetries:  netconfig.ReconnectMaxRetries,
		onTransport: onTransport,
		closeCh:     make(chan struct{}),
	}
}

// Connect dials the server in a background goroutine and initiates the join
// handshake with the given identity.
func (c *Client) Connect(playerName, playerID string) {
	c.mu.Lock()
	c.playerName = playerName
	c.playerID = playerID
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	go c.dialLoop()
}

// dialLoop dials with exponential backoff until connected, retries
// exhausted, or the client is closed.
func (c *Client) dialLoop() {
	delay := netconfig.ReconnectBaseDelay
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		select {
		case <-c.closeCh:
			return
		default:
		}

		if attempt > 0 {
			log.Printf("[client] reconnect attempt %d in %s", attempt, delay)
			select {
			case <-time.After(delay):
			case <-c.closeCh:
				return
			}
			delay *= 2
			if delay > netconfig.ReconnectMaxDelay {
				delay = netconfig.ReconnectMaxDelay
			}
		}

		if err := c.dialOnce(); err != nil {
			log.Printf("[client] dial failed: %v", err)
			continue
		}
		return
	}
	c.setError(fmt.Errorf("gave up after %d reconnect attempts", c.maxRetries))
}

func (c *Client) dialOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+c.address+"/ws", nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.lastSeen = time.Now()
	c.mu.Unlock()

	log.Println("[client] connected to server")
	if c.onTransport != nil {
		c.onTransport(true)
	}

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	return c.sendJoin(conn)
}

func (c *Client) sendJoin(conn *websocket.Conn) error {
	env, err := protocol.NewEnvelope(protocol.TypeJoin, "", 0, protocol.JoinPayload{
		Name:     c.playerName,
		PlayerID: c.playerID,
	})
	if err != nil {
		return err
	}
	frame, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(context.Background(), websocket.MessageText, frame)
}

// readLoop pulls frames until the connection dies, dispatching each decoded
// message. Malformed frames are logged and dropped; the previous valid
// state is retained.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.Read(context.Background())
		if err != nil {
			c.onDisconnect(conn, err)
			return
		}

		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()

		msg, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("[client] dropping frame: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	switch payload := msg.Payload.(type) {
	case protocol.WelcomePayload:
		c.mu.Lock()
		c.squirrelID = payload.SquirrelID
		c.tickRate = payload.TickRate
		if payload.HeartbeatSeconds > 0 {
			c.heartbeat = time.Duration(payload.HeartbeatSeconds) * time.Second
		}
		c.state = StateJoinedGame
		c.mu.Unlock()
		log.Printf("[client] welcome: squirrelId=%s tickRate=%d", payload.SquirrelID, payload.TickRate)
		c.dispatcher.HandleWelcome(payload)
	case protocol.PlayerUpdatePayload:
		c.dispatcher.HandlePlayerUpdate(msg.SquirrelID, msg.Sequence, payload)
	case protocol.PlayerJoinedPayload:
		c.dispatcher.HandlePlayerJoined(payload)
	case protocol.PlayerLeftPayload:
		c.dispatcher.HandlePlayerLeft(msg.SquirrelID)
	case protocol.ExistingPlayersPayload:
		c.dispatcher.HandleExistingPlayers(payload)
	case protocol.WorldStatePayload:
		full, err := expandWorldState(payload)
		if err != nil {
			log.Printf("[client] dropping world_state: %v", err)
			return
		}
		c.dispatcher.HandleWorldState(full)
	case protocol.HeartbeatPayload:
		c.dispatcher.HandleHeartbeat(msg.Timestamp)
	case protocol.ErrorPayload:
		log.Printf("[client] server error: %s", payload.Reason)
		c.dispatcher.HandleServerError(payload.Reason)
	case protocol.BatchPayload:
		msgs, err := protocol.ExpandBatch(payload)
		if err != nil {
			log.Printf("[client] dropping batch: %v", err)
			return
		}
		for _, env := range msgs {
			inner, err := protocol.DecodeEnvelope(env)
			if err != nil {
				log.Printf("[client] dropping batched frame: %v", err)
				continue
			}
			c.dispatch(inner)
		}
	}
}

// expandWorldState decompresses a blob-carrying snapshot into its inline
// form.
func expandWorldState(p protocol.WorldStatePayload) (protocol.WorldStatePayload, error) {
	if p.Encoding == "" {
		return p, nil
	}
	if p.Encoding != "flate" {
		return p, fmt.Errorf("unknown world_state encoding %q", p.Encoding)
	}
	raw, err := encoding.DecompressFlate(p.Blob)
	if err != nil {
		return p, err
	}
	var full protocol.WorldStatePayload
	if err := json.Unmarshal(raw, &full); err != nil {
		return p, err
	}
	return full, nil
}

// heartbeatLoop sends heartbeats and watches for silent disconnects: no
// inbound traffic for missLimit intervals forces a reconnect.
func (c *Client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
		}

		c.mu.RLock()
		current := c.conn
		silent := time.Since(c.lastSeen) > c.heartbeat*time.Duration(c.missLimit)
		c.mu.RUnlock()
		if current != conn {
			return // superseded by a reconnect
		}

		if silent {
			log.Printf("[client] no traffic for %d heartbeat intervals, reconnecting", c.missLimit)
			_ = conn.CloseNow()
			return
		}

		env, err := protocol.NewEnvelope(protocol.TypeHeartbeat, c.SquirrelID(), 0, nil)
		if err != nil {
			continue
		}
		frame, _ := protocol.Marshal(env)
		if err := conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
			log.Printf("[client] heartbeat write: %v", err)
		}
	}
}

func (c *Client) onDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return // stale goroutine from a previous connection
	}
	c.conn = nil
	if c.state != StateError {
		c.state = StateDisconnected
	}
	closed := false
	select {
	case <-c.closeCh:
		closed = true
	default:
	}
	c.mu.Unlock()

	log.Printf("[client] disconnected: %v", err)
	if c.onTransport != nil {
		c.onTransport(false)
	}

	// A dropped socket is a transient fault: recover locally, never
	// surface it as a user-facing error.
	if !closed {
		go c.dialLoop()
	}
}

// SendFrame writes one already serialized transport frame. Used as the
// batcher's flush function.
func (c *Client) SendFrame(frame []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

// Close tears the connection down and stops all retry/heartbeat timers.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closeCh) })

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// State returns the connection lifecycle state.
func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError returns the terminal error, if any.
func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// SquirrelID returns the identity assigned by the server's welcome.
func (c *Client) SquirrelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.squirrelID
}

// TickRate returns the server's advertised tick rate.
func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}
