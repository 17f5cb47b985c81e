package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
)

type recordingProc struct {
	mu       sync.Mutex
	got      []*models.Tick
	attempts int
	fail     bool
}

func (p *recordingProc) ProcessTick(ctx context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.fail {
		return errors.New("store down")
	}
	p.got = append(p.got, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func (p *recordingProc) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

type guardMetrics struct{}

func (guardMetrics) RecordTickIngested(string)       {}
func (guardMetrics) RecordSignal(string, string)     {}
func (guardMetrics) RecordError(string)              {}
func (guardMetrics) RecordLastPrice(string, float64) {}
func (guardMetrics) RecordLatency(string, float64)   {}
func (guardMetrics) RecordAlertDelivery(string, string) {}

func validGuardTick(sym string) *models.Tick {
	return &models.Tick{
		Symbol:    sym,
		Timestamp: time.Now().UTC(),
		Open:      100, High: 101, Low: 99, Close: 100,
		Volume: 1000,
	}
}

func TestGuardRejectsMalformedTicks(t *testing.T) {
	proc := &recordingProc{}
	g := NewStreamGuard(proc, guardMetrics{})

	cases := []struct {
		name string
		tick *models.Tick
	}{
		{"nil tick", nil},
		{"empty symbol", &models.Tick{Timestamp: time.Now(), Close: 1}},
		{"zero timestamp", &models.Tick{Symbol: "AAPL", Close: 1}},
		{"negative price", &models.Tick{Symbol: "AAPL", Timestamp: time.Now(), Close: -1}},
		{"high below low", &models.Tick{Symbol: "AAPL", Timestamp: time.Now(), High: 1, Low: 2, Close: 1}},
	}
	for _, tc := range cases {
		if err := g.Process(context.Background(), tc.tick); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("malformed ticks must not reach downstream, got %d", proc.count())
	}
}

func TestGuardThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	g := NewStreamGuard(proc, guardMetrics{}, WithMaxRPS(1))

	// second tick for the same symbol inside the 1s budget is dropped
	if err := g.Process(context.Background(), validGuardTick("AAPL")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := g.Process(context.Background(), validGuardTick("AAPL")); err != nil {
		t.Fatalf("throttled tick must not error: %v", err)
	}
	// a different symbol has its own budget
	if err := g.Process(context.Background(), validGuardTick("MSFT")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if proc.count() != 2 {
		t.Fatalf("downstream saw %d ticks, want 2", proc.count())
	}
}

func TestGuardFlushDropsFailedTick(t *testing.T) {
	proc := &recordingProc{fail: true}
	g := NewStreamGuard(proc, guardMetrics{}, WithBufferSize(4))

	if err := g.Process(context.Background(), validGuardTick("AAPL")); err == nil {
		t.Fatalf("expected downstream error")
	}
	g.Start(context.Background())
	defer g.Stop()

	// attempt 1 was Process itself; attempt 2 is the flusher
	deadline := time.After(2 * time.Second)
	for proc.attemptCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("flusher never attempted the buffered tick")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// a requeued tick would keep getting retried; a dropped one stays gone
	time.Sleep(400 * time.Millisecond)
	if n := proc.attemptCount(); n != 2 {
		t.Fatalf("failed tick flushed %d times, want exactly once", n-1)
	}
	if len(g.bufCh) != 0 {
		t.Fatalf("failed tick must not be requeued")
	}
}

func TestGuardBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordingProc{fail: true}
	g := NewStreamGuard(proc, guardMetrics{}, WithBufferSize(4))

	if err := g.Process(context.Background(), validGuardTick("AAPL")); err == nil {
		t.Fatalf("expected downstream error to surface")
	}
	if got := len(g.bufCh); got != 1 {
		t.Fatalf("buffered %d ticks, want 1", got)
	}

	// downstream recovers; the flusher drains the buffer
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	g.Start(context.Background())
	defer g.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered tick never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
