package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/session"
)

const writeTimeout = 10 * time.Second

// ChannelConfig configures a stream Channel.
type ChannelConfig struct {
	URL       string
	APIKey    string
	ProjectID string

	HeartbeatInterval    time.Duration // default 30s
	CallTimeout          time.Duration // default 10s
	ReconnectMaxAttempts int           // default 5
	ReconnectBaseDelay   time.Duration // default 1s

	Logger zerolog.Logger
}

// Channel maintains one persistent WebSocket connection to the GiveBit
// event stream. It exposes the inbound frames two ways: server-pushed
// events are broadcast to subscribers, and replies carrying a request
// id settle the matching Call.
//
// On unexpected closure the channel emits connection_lost and
// reconnects with exponential backoff until the attempt budget is
// exhausted; a successful open resets the budget and emits
// connection_opened. Close suppresses reconnection.
type Channel struct {
	url       string
	apiKey    string
	projectID string

	heartbeatInterval time.Duration
	callTimeout       time.Duration
	maxAttempts       int
	baseDelay         time.Duration

	logger   zerolog.Logger
	registry *registry
	pending  *pendingCalls

	mu             sync.Mutex
	writeMu        sync.Mutex // serialises conn writes (calls, pings)
	conn           *websocket.Conn
	gen            uint64 // bumped by Close; stales in-flight dials
	attempts       int
	hbCancel       context.CancelFunc
	reconnectTimer *time.Timer
}

// NewChannel creates a channel manager. Zero timing fields get the
// documented defaults.
func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.ReconnectMaxAttempts == 0 {
		cfg.ReconnectMaxAttempts = 5
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = time.Second
	}
	logger := cfg.Logger.With().Str("component", "stream").Logger()
	return &Channel{
		url:               cfg.URL,
		apiKey:            cfg.APIKey,
		projectID:         cfg.ProjectID,
		heartbeatInterval: cfg.HeartbeatInterval,
		callTimeout:       cfg.CallTimeout,
		maxAttempts:       cfg.ReconnectMaxAttempts,
		baseDelay:         cfg.ReconnectBaseDelay,
		logger:            logger,
		registry:          newRegistry(logger),
		pending:           newPendingCalls(),
	}
}

// wireFrame is the single JSON shape carried in either direction.
// Replies carry an id; server-pushed events carry a type.
type wireFrame struct {
	ID        string            `json:"id,omitempty"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	Type      session.EventType `json:"type,omitempty"`
	Session   *session.Session  `json:"session,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"` // unix millis
}

// Connect dials the stream endpoint, authenticating with the bearer
// token and project id headers. On success it resets the reconnect
// budget, starts the heartbeat and read loop, and emits
// connection_opened. Already-connected channels return nil.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("X-Project-ID", c.projectID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	pongWait := 2 * c.heartbeatInterval
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongWait))

	hbCtx, hbCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.gen != gen || c.conn != nil {
		// Close ran (or another dial won) while this dial was in
		// flight; the result has no owner and is discarded.
		c.mu.Unlock()
		hbCancel()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	c.hbCancel = hbCancel
	c.mu.Unlock()

	go c.heartbeat(hbCtx, conn)
	go c.readLoop(conn)

	c.logger.Info().Str("url", c.url).Msg("stream connected")
	c.registry.dispatch(session.Event{
		Type:      session.EventConnectionOpened,
		Timestamp: time.Now(),
	})
	return nil
}

// Call sends payload with a fresh correlation id merged in and blocks
// until the matching reply, the call timeout, or ctx cancellation. It
// fails immediately with ErrNotConnected when the channel is not open.
func (c *Channel) Call(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id, done := c.pending.add(c.callTimeout)

	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["id"] = id

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.pending.take(id)
		return nil, fmt.Errorf("write: %w", err)
	}

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		c.pending.fail(id, ctx.Err())
		return nil, ctx.Err()
	}
}

// Subscribe registers fn for events of the given kind.
func (c *Channel) Subscribe(kind session.EventType, fn Handler) *Subscription {
	return c.registry.subscribe(kind, fn)
}

// Unsubscribe removes a previously registered handler.
func (c *Channel) Unsubscribe(sub *Subscription) {
	c.registry.unsubscribe(sub)
}

// Connected reports whether the channel currently holds an open
// connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops the heartbeat, cancels any scheduled reconnect, and
// closes the connection. The read loop sees the cleared handle and
// neither emits connection_lost nor schedules a reconnect.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.gen++
	if c.hbCancel != nil {
		c.hbCancel()
		c.hbCancel = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.route(data)
	}
}

// handleClose runs once per connection when its read loop ends. A
// deliberate Close cleared the handle first; anything else is an
// unexpected closure that emits connection_lost and starts the
// reconnect procedure.
func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	deliberate := c.conn != conn
	if !deliberate {
		c.conn = nil
		if c.hbCancel != nil {
			c.hbCancel()
			c.hbCancel = nil
		}
	}
	c.mu.Unlock()
	conn.Close()

	if deliberate {
		return
	}

	c.logger.Warn().Err(err).Msg("stream connection lost")
	c.registry.dispatch(session.Event{
		Type:      session.EventConnectionLost,
		Timestamp: time.Now(),
		Err:       err.Error(),
	})
	c.scheduleReconnect()
}

// scheduleReconnect arms the next reconnect attempt with delay
// baseDelay * 2^(attempts-1). Once the budget is exhausted the channel
// stays disconnected until Connect is called again.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.attempts >= c.maxAttempts {
		attempts := c.attempts
		c.mu.Unlock()
		c.logger.Warn().Int("attempts", attempts).Msg("reconnect budget exhausted")
		return
	}
	c.attempts++
	delay := c.baseDelay << (c.attempts - 1)
	attempt := c.attempts
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Warn().Int("attempt", attempt).Err(err).Msg("reconnect failed")
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
	c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
}

// heartbeat pings on a fixed interval while conn is still the active
// connection. Missed pongs surface through the read deadline: the read
// loop errors out and closure handling takes over.
func (c *Channel) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()
			if current != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// route parses one inbound frame. A frame whose id matches a pending
// call settles that call; anything else with a known event type is
// broadcast; frames matching neither shape are ignored. Malformed
// frames are logged and dropped.
func (c *Channel) route(data []byte) {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	if frame.ID != "" {
		var settled bool
		if frame.Error != "" {
			settled = c.pending.fail(frame.ID, fmt.Errorf("remote error: %s", frame.Error))
		} else {
			settled = c.pending.resolve(frame.ID, frame.Data)
		}
		if settled {
			return
		}
		// Unmatched id: not a reply to anything of ours. The frame may
		// still be a well-formed event, so let the type branch decide.
		if frame.Type == "" {
			c.logger.Debug().Str("id", frame.ID).Msg("reply for unknown call")
			return
		}
	}

	if frame.Type == "" {
		return
	}
	if !session.KnownEventType(frame.Type) {
		c.logger.Warn().Str("type", string(frame.Type)).Msg("dropping unknown event kind")
		return
	}

	ts := time.Now()
	if frame.Timestamp != 0 {
		ts = time.UnixMilli(frame.Timestamp)
	}
	c.registry.dispatch(session.Event{
		Type:      frame.Type,
		Session:   frame.Session,
		Timestamp: ts,
		Err:       frame.Error,
	})
}
