package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/session"
)

// SessionFetcher fetches current session state by id. *API satisfies it.
type SessionFetcher interface {
	GetSession(ctx context.Context, id string) (*session.Session, error)
}

// Poller approximates the stream's event feed by pulling session state
// on a fixed interval, independent of channel health. Polling for a
// session stops itself after the tick that observes a terminal status.
type Poller struct {
	fetch    SessionFetcher
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewPoller creates a poller using fetch on the given interval.
func NewPoller(fetch SessionFetcher, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
		active:   make(map[string]context.CancelFunc),
	}
}

// Start begins polling sessionID, invoking fn with each fetched
// snapshot. Starting an already-polled session is a no-op, so at most
// one loop runs per session.
func (p *Poller) Start(sessionID string, fn func(*session.Session)) {
	p.mu.Lock()
	if _, ok := p.active[sessionID]; ok {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.active[sessionID] = cancel
	p.mu.Unlock()

	go p.loop(ctx, sessionID, fn)
}

// Stop cancels polling for sessionID; unknown ids are a no-op.
func (p *Poller) Stop(sessionID string) {
	p.mu.Lock()
	cancel, ok := p.active[sessionID]
	if ok {
		delete(p.active, sessionID)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every active polling loop.
func (p *Poller) StopAll() {
	p.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(p.active))
	for id, cancel := range p.active {
		cancels = append(cancels, cancel)
		delete(p.active, id)
	}
	p.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Polling reports whether sessionID currently has an active loop.
func (p *Poller) Polling(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[sessionID]
	return ok
}

func (p *Poller) loop(ctx context.Context, sessionID string, fn func(*session.Session)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := p.fetch.GetSession(ctx, sessionID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Fetch failures don't stop the loop; try again next tick.
				p.logger.Warn().Str("session", sessionID).Err(err).Msg("poll fetch failed")
				continue
			}
			if ctx.Err() != nil {
				// Stopped while the fetch was in flight; discard the result.
				return
			}
			fn(s)
			if s.Status.IsTerminal() {
				p.Stop(sessionID)
				return
			}
		}
	}
}
