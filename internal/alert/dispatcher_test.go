package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
	applogger "TickWatch/pkg/logger"
)

type fakeChannel struct {
	mu    sync.Mutex
	name  string
	got   []models.Signal
	err   error
	hang  time.Duration
	panic bool
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, s models.Signal) error {
	if f.panic {
		panic("channel exploded")
	}
	if f.hang > 0 {
		select {
		case <-time.After(f.hang):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.got = append(f.got, s)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type nopMetrics struct{}

func (nopMetrics) RecordTickIngested(string) {}
func (nopMetrics) RecordSignal(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordAlertDelivery(string, string) {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestFailingChannelDoesNotBlockOthers(t *testing.T) {
	ch1 := &fakeChannel{name: "one"}
	ch2 := &fakeChannel{name: "two", err: errors.New("boom")}
	ch3 := &fakeChannel{name: "three"}
	d := NewDispatcher([]Channel{ch1, ch2, ch3}, nopMetrics{}, testLogger(t))

	d.Dispatch(context.Background(), models.Signal{Kind: models.KindPriceSpike, Symbol: "AAPL"})

	if ch1.count() != 1 || ch3.count() != 1 {
		t.Fatalf("healthy channels missed delivery: ch1=%d ch3=%d", ch1.count(), ch3.count())
	}
}

func TestHungChannelDegradesToSkip(t *testing.T) {
	slow := &fakeChannel{name: "slow", hang: time.Minute}
	fast := &fakeChannel{name: "fast"}
	d := NewDispatcher([]Channel{slow, fast}, nopMetrics{}, testLogger(t), WithSendTimeout(20*time.Millisecond))

	start := time.Now()
	d.Dispatch(context.Background(), models.Signal{Kind: models.KindVolumeSurge, Symbol: "MSFT"})

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dispatch stalled for %v", elapsed)
	}
	if fast.count() != 1 {
		t.Fatalf("fast channel missed delivery")
	}
}

func TestPanickingChannelIsContained(t *testing.T) {
	bad := &fakeChannel{name: "bad", panic: true}
	ok := &fakeChannel{name: "ok"}
	d := NewDispatcher([]Channel{bad, ok}, nopMetrics{}, testLogger(t))

	// must not panic the caller
	d.Dispatch(context.Background(), models.Signal{Kind: models.KindVWAPDeviation, Symbol: "SPY"})

	if ok.count() != 1 {
		t.Fatalf("delivery after panic missed")
	}
}

func TestEveryFiringIsDelivered(t *testing.T) {
	ch := &fakeChannel{name: "only"}
	d := NewDispatcher([]Channel{ch}, nopMetrics{}, testLogger(t))

	sig := models.Signal{Kind: models.KindPriceSpike, Symbol: "AAPL"}
	d.Dispatch(context.Background(), sig)
	d.Dispatch(context.Background(), sig) // same kind+symbol: no dedup

	if ch.count() != 2 {
		t.Fatalf("count = %d, want 2 (no dedup across firings)", ch.count())
	}
}

func TestRegistryBuildsConfiguredChannels(t *testing.T) {
	Register("fake", func(cfg ChannelConfig) (Channel, error) {
		return &fakeChannel{name: cfg.Options["name"]}, nil
	})

	chs, err := BuildAll([]ChannelConfig{{Type: "fake", Options: map[string]string{"name": "a"}}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(chs) != 1 || chs[0].Name() != "a" {
		t.Fatalf("built %v", chs)
	}

	if _, err := Build(ChannelConfig{Type: "nope"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
