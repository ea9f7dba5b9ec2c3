package client

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// callResult carries the settled outcome of one correlated call.
type callResult struct {
	data json.RawMessage
	err  error
}

// pendingCall is one outstanding request awaiting a correlated reply.
type pendingCall struct {
	done  chan callResult // buffered; settle never blocks
	timer *time.Timer
}

// pendingCalls matches outbound requests to asynchronous replies by a
// locally generated monotonic identifier. An entry settles exactly
// once: the first of reply, error reply, or timeout removes it; later
// outcomes for the same id find nothing and are discarded.
type pendingCalls struct {
	mu     sync.Mutex
	nextID uint64
	calls  map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]*pendingCall)}
}

// add registers a new pending entry with the given timeout and returns
// its identifier and result channel.
func (p *pendingCalls) add(timeout time.Duration) (string, <-chan callResult) {
	p.mu.Lock()
	p.nextID++
	id := strconv.FormatUint(p.nextID, 10)
	pc := &pendingCall{done: make(chan callResult, 1)}
	pc.timer = time.AfterFunc(timeout, func() {
		p.fail(id, ErrCallTimeout)
	})
	p.calls[id] = pc
	p.mu.Unlock()
	return id, pc.done
}

// resolve settles the entry for id with data. Returns false when no
// entry exists (unknown or already settled id).
func (p *pendingCalls) resolve(id string, data json.RawMessage) bool {
	pc := p.take(id)
	if pc == nil {
		return false
	}
	pc.done <- callResult{data: data}
	return true
}

// fail settles the entry for id with err. Returns false when no entry
// exists.
func (p *pendingCalls) fail(id string, err error) bool {
	pc := p.take(id)
	if pc == nil {
		return false
	}
	pc.done <- callResult{err: err}
	return true
}

// take removes and returns the entry for id, stopping its timer. The
// removal under the lock is what guarantees single settlement.
func (p *pendingCalls) take(id string) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.calls[id]
	if !ok {
		return nil
	}
	pc.timer.Stop()
	delete(p.calls, id)
	return pc
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
