// Package client implements the GiveBit notification client: a
// persistent WebSocket channel with automatic fallback to HTTP polling,
// unified behind a single event stream.
package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/config"
	"github.com/zidanaetrna/givebit-sdk/session"
)

// Notifier is the single entry point. It owns one stream channel, one
// REST client, and one poller, and merges both delivery paths into one
// subscriber registry.
//
// Delivery is at-least-once: while the channel and the poller are both
// active for a session, the same status transition may arrive once from
// each. Consumers needing exactly-once semantics must deduplicate by
// session id and status.
type Notifier struct {
	api      *API
	channel  *Channel
	poller   *Poller
	registry *registry
	chainID  int64
	logger   zerolog.Logger

	mu      sync.Mutex
	active  map[string]bool
	forward []*Subscription
}

// New builds a Notifier from cfg. Zero fields in cfg are defaulted via
// cfg.Apply.
func New(cfg config.Config, logger zerolog.Logger) (*Notifier, error) {
	if err := cfg.Apply(); err != nil {
		return nil, err
	}

	api := NewAPI(APIConfig{
		BaseURL:   cfg.APIURL,
		APIKey:    cfg.APIKey,
		ProjectID: cfg.ProjectID,
		Timeout:   cfg.CallTimeout,
	})
	channel := NewChannel(ChannelConfig{
		URL:                  cfg.StreamURL,
		APIKey:               cfg.APIKey,
		ProjectID:            cfg.ProjectID,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		CallTimeout:          cfg.CallTimeout,
		ReconnectMaxAttempts: cfg.ReconnectMaxAttempts,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		Logger:               logger,
	})

	n := &Notifier{
		api:      api,
		channel:  channel,
		poller:   NewPoller(api, cfg.PollInterval, logger),
		registry: newRegistry(logger.With().Str("component", "notifier").Logger()),
		chainID:  cfg.ChainID,
		logger:   logger.With().Str("component", "notifier").Logger(),
		active:   make(map[string]bool),
	}

	// Forward every channel-sourced event kind into the shared registry.
	for _, kind := range session.EventTypes() {
		n.forward = append(n.forward, channel.Subscribe(kind, n.registry.dispatch))
	}
	return n, nil
}

// Connect attempts the stream channel. A channel that cannot be opened
// is not an error for the caller: the failure is logged and the
// notifier keeps working in polling-only mode.
func (n *Notifier) Connect(ctx context.Context) {
	if err := n.channel.Connect(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("stream unavailable, falling back to polling")
	}
}

// CreateDonationSession validates opts, creates the session remotely,
// and starts fallback polling for it regardless of channel state so the
// session stays tracked across channel loss.
func (n *Notifier) CreateDonationSession(ctx context.Context, req CreateSessionRequest) (*session.Session, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, ErrMissingRecipient
	}
	if req.ChainID == 0 {
		req.ChainID = n.chainID
	}

	s, err := n.api.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.active[s.ID] = true
	n.mu.Unlock()
	n.poller.Start(s.ID, n.onPoll)

	return s, nil
}

// onPoll translates one poll result into a donation event and
// broadcasts it through the same registry the channel feeds.
func (n *Notifier) onPoll(s *session.Session) {
	n.registry.dispatch(session.Event{
		Type:      session.DonationEventType(s.Status),
		Session:   s,
		Timestamp: time.Now(),
	})
	if s.Status.IsTerminal() {
		n.mu.Lock()
		delete(n.active, s.ID)
		n.mu.Unlock()
	}
}

// GetSession fetches current state for one session.
func (n *Notifier) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return n.api.GetSession(ctx, id)
}

// History fetches recent sessions for the project.
func (n *Notifier) History(ctx context.Context, limit int) ([]session.Session, error) {
	return n.api.History(ctx, limit)
}

// Call issues a request/response exchange over the stream channel.
func (n *Notifier) Call(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return n.channel.Call(ctx, payload)
}

// Subscribe registers fn for events of the given kind, from either
// delivery path.
func (n *Notifier) Subscribe(kind session.EventType, fn Handler) *Subscription {
	return n.registry.subscribe(kind, fn)
}

// Unsubscribe removes a previously registered handler.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	n.registry.unsubscribe(sub)
}

// Connected reports whether the stream channel is open.
func (n *Notifier) Connected() bool {
	return n.channel.Connected()
}

// ActiveSessions returns the ids currently tracked for fallback polling.
func (n *Notifier) ActiveSessions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.active))
	for id := range n.active {
		ids = append(ids, id)
	}
	return ids
}

// Disconnect tears down the channel and all polling and clears the
// tracked session set.
func (n *Notifier) Disconnect() {
	n.channel.Close()
	n.poller.StopAll()
	n.mu.Lock()
	n.active = make(map[string]bool)
	n.mu.Unlock()
}
