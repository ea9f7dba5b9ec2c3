package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/session"
)

// scriptedFetcher returns one scripted result per GetSession call,
// repeating the last entry once the script runs out.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []scriptStep
	calls  int
}

type scriptStep struct {
	status session.Status
	err    error
}

func (f *scriptedFetcher) GetSession(_ context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := f.script[len(f.script)-1]
	if f.calls < len(f.script) {
		step = f.script[f.calls]
	}
	f.calls++
	if step.err != nil {
		return nil, step.err
	}
	return &session.Session{ID: id, Status: step.status}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func collectStatuses(ch <-chan session.Status, n int, timeout time.Duration) []session.Status {
	var out []session.Status
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case s := <-ch:
			out = append(out, s)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestPollerStopsOnTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{script: []scriptStep{
		{status: session.Pending},
		{status: session.Confirmed},
		{status: session.Finalized},
	}}
	p := NewPoller(fetcher, 10*time.Millisecond, zerolog.Nop())

	results := make(chan session.Status, 16)
	p.Start("s1", func(s *session.Session) { results <- s.Status })

	got := collectStatuses(results, 3, 2*time.Second)
	if len(got) != 3 {
		t.Fatalf("got %d callbacks, want 3: %v", len(got), got)
	}
	if got[2] != session.Finalized {
		t.Errorf("last status = %v, want finalized", got[2])
	}

	// The loop cancels itself after the terminal tick.
	time.Sleep(50 * time.Millisecond)
	if p.Polling("s1") {
		t.Error("still polling after terminal status")
	}
	select {
	case s := <-results:
		t.Errorf("tick after terminal status: %v", s)
	default:
	}
}

func TestPollerStartIdempotent(t *testing.T) {
	fetcher := &scriptedFetcher{script: []scriptStep{{status: session.Pending}}}
	p := NewPoller(fetcher, 20*time.Millisecond, zerolog.Nop())
	defer p.StopAll()

	var mu sync.Mutex
	calls := 0
	cb := func(*session.Session) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	p.Start("s1", cb)
	p.Start("s1", cb)
	p.Start("s1", cb)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	// One timer: roughly two ticks in 50ms at a 20ms interval, never the
	// tripled rate a duplicate loop would produce.
	if got == 0 || got > 3 {
		t.Errorf("callback ran %d times, want 1-3 (single timer)", got)
	}
}

func TestPollerFetchFailureContinues(t *testing.T) {
	fetcher := &scriptedFetcher{script: []scriptStep{
		{err: errors.New("http 502")},
		{err: errors.New("http 502")},
		{status: session.Failed},
	}}
	p := NewPoller(fetcher, 10*time.Millisecond, zerolog.Nop())

	results := make(chan session.Status, 16)
	p.Start("s1", func(s *session.Session) { results <- s.Status })

	got := collectStatuses(results, 1, 2*time.Second)
	if len(got) != 1 || got[0] != session.Failed {
		t.Fatalf("got %v, want [failed]", got)
	}
	if fetcher.callCount() < 3 {
		t.Errorf("fetch called %d times, want >= 3", fetcher.callCount())
	}
}

func TestPollerStop(t *testing.T) {
	fetcher := &scriptedFetcher{script: []scriptStep{{status: session.Pending}}}
	p := NewPoller(fetcher, 10*time.Millisecond, zerolog.Nop())

	p.Start("s1", func(*session.Session) {})
	if !p.Polling("s1") {
		t.Fatal("not polling after Start")
	}
	p.Stop("s1")
	if p.Polling("s1") {
		t.Error("still polling after Stop")
	}

	// Idempotent, including for unknown ids.
	p.Stop("s1")
	p.Stop("never-started")
}

func TestPollerStopAll(t *testing.T) {
	fetcher := &scriptedFetcher{script: []scriptStep{{status: session.Pending}}}
	p := NewPoller(fetcher, 10*time.Millisecond, zerolog.Nop())

	p.Start("s1", func(*session.Session) {})
	p.Start("s2", func(*session.Session) {})
	p.StopAll()

	if p.Polling("s1") || p.Polling("s2") {
		t.Error("sessions still polling after StopAll")
	}
}
