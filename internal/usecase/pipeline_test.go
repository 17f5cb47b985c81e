package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TickWatch/internal/alert"
	"TickWatch/internal/detector"
	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	"TickWatch/internal/repository"
	applogger "TickWatch/pkg/logger"
)

type sourceResult struct {
	tick *models.Tick
	err  error
}

type fakeSource struct {
	mu      sync.Mutex
	fetched []string
	queue   map[string][]sourceResult
}

func (s *fakeSource) Fetch(ctx context.Context, sym string) (*models.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, sym)
	q := s.queue[sym]
	if len(q) == 0 {
		return nil, nil
	}
	r := q[0]
	s.queue[sym] = q[1:]
	return r.tick, r.err
}

type fakeClock struct {
	now    time.Time
	tickCh chan time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Tick(time.Duration) (<-chan time.Time, func()) {
	return c.tickCh, func() {}
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) { c.sleeps++ }

type captureChannel struct {
	mu  sync.Mutex
	got []models.Signal
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Send(ctx context.Context, s models.Signal) error {
	c.mu.Lock()
	c.got = append(c.got, s)
	c.mu.Unlock()
	return nil
}

func (c *captureChannel) kinds() map[models.SignalKind]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[models.SignalKind]bool)
	for _, s := range c.got {
		out[s.Kind] = true
	}
	return out
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

func tickAt(sym string, sec int, close, volume float64) *models.Tick {
	ts := time.Date(2025, 3, 10, 14, 0, sec, 0, time.UTC)
	return &models.Tick{
		Symbol: sym, Timestamp: ts,
		Open: close, High: close, Low: close, Close: close,
		Volume: volume,
	}
}

func newTestPipeline(t *testing.T, cfg Config, src drepo.TickSource, ch alert.Channel, opts ...Option) (*Pipeline, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	det := detector.New(detector.Config{
		PriceSpikeZScore: 2.5,
		VolumeSurgeRatio: 3.0,
		VolatilityRatio:  2.5,
		VWAPDeviationPct: 0.5,
		MinHistory:       2,
	})
	var channels []alert.Channel
	if ch != nil {
		channels = append(channels, ch)
	}
	disp := alert.NewDispatcher(channels, nopMetrics{}, testLogger(t))
	p := NewPipeline(cfg, src, store, store, det, disp, nopMetrics{}, testLogger(t), opts...)
	return p, store
}

func TestCycleVisitsSymbolsInConfiguredOrder(t *testing.T) {
	src := &fakeSource{queue: map[string][]sourceResult{}}
	cfg := Config{Symbols: []string{"AAPL", "MSFT", "SPY"}, Interval: time.Second, WindowSize: 10}
	p, _ := newTestPipeline(t, cfg, src, nil)

	p.runCycle(context.Background())

	want := []string{"AAPL", "MSFT", "SPY"}
	if len(src.fetched) != len(want) {
		t.Fatalf("fetched %v", src.fetched)
	}
	for i, sym := range want {
		if src.fetched[i] != sym {
			t.Fatalf("order %v, want %v", src.fetched, want)
		}
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{queue: map[string][]sourceResult{
		"AAPL": {
			{err: boom},
			{err: boom},
			{tick: tickAt("AAPL", 1, 100, 1000)},
		},
	}}
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10, RetryMax: 3, BackoffMin: time.Millisecond}
	clk := &fakeClock{now: time.Now(), tickCh: make(chan time.Time)}
	p, store := newTestPipeline(t, cfg, src, nil, WithClock(clk))

	p.runCycle(context.Background())

	got, err := store.GetRecent(context.Background(), "AAPL", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("stored %v err %v", got, err)
	}
	if clk.sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", clk.sleeps)
	}
}

func TestUnknownSymbolNotRetried(t *testing.T) {
	src := &fakeSource{queue: map[string][]sourceResult{
		"NOPE": {
			{err: drepo.ErrUnknownSymbol},
			{tick: tickAt("NOPE", 1, 100, 1000)},
		},
	}}
	cfg := Config{Symbols: []string{"NOPE"}, Interval: time.Second, WindowSize: 10, RetryMax: 5, BackoffMin: time.Millisecond}
	clk := &fakeClock{now: time.Now(), tickCh: make(chan time.Time)}
	p, store := newTestPipeline(t, cfg, src, nil, WithClock(clk))

	p.runCycle(context.Background())

	if len(src.fetched) != 1 {
		t.Fatalf("fetch count = %d, want 1 (no retry)", len(src.fetched))
	}
	got, _ := store.GetRecent(context.Background(), "NOPE", 10)
	if len(got) != 0 {
		t.Fatalf("nothing should be stored, got %v", got)
	}
}

func TestDuplicateTickIsBenign(t *testing.T) {
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10}
	p, store := newTestPipeline(t, cfg, &fakeSource{}, nil)

	tk := tickAt("AAPL", 1, 100, 1000)
	if err := p.ProcessTick(context.Background(), tk); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := p.ProcessTick(context.Background(), tk); err != nil {
		t.Fatalf("duplicate must not surface an error, got %v", err)
	}

	got, _ := store.GetRecent(context.Background(), "AAPL", 10)
	if len(got) != 1 {
		t.Fatalf("stored %d ticks, want 1", len(got))
	}
}

func TestOutlierTickFiresAndDispatches(t *testing.T) {
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10}
	ch := &captureChannel{}
	p, store := newTestPipeline(t, cfg, &fakeSource{}, ch)

	closes := []float64{100, 101, 100, 101, 100}
	for i, c := range closes {
		if err := p.ProcessTick(context.Background(), tickAt("AAPL", i+1, c, 1000)); err != nil {
			t.Fatalf("seed tick %d: %v", i, err)
		}
	}
	if len(ch.got) != 0 {
		t.Fatalf("no signal expected while in-band, got %v", ch.got)
	}

	if err := p.ProcessTick(context.Background(), tickAt("AAPL", 10, 150, 5000)); err != nil {
		t.Fatalf("outlier tick: %v", err)
	}

	kinds := ch.kinds()
	if !kinds[models.KindPriceSpike] {
		t.Fatalf("expected price spike, got %v", kinds)
	}
	if !kinds[models.KindVolumeSurge] {
		t.Fatalf("expected volume surge, got %v", kinds)
	}
	if !kinds[models.KindVWAPDeviation] {
		t.Fatalf("expected vwap deviation, got %v", kinds)
	}

	sigs, err := store.GetSignals(context.Background(), "AAPL", "", 10)
	if err != nil || len(sigs) == 0 {
		t.Fatalf("signals not persisted: %v err %v", sigs, err)
	}
}

func TestWarmupRestoresHistory(t *testing.T) {
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10}
	ch := &captureChannel{}
	p, store := newTestPipeline(t, cfg, &fakeSource{}, ch)

	closes := []float64{100, 101, 100, 101, 100}
	for i, c := range closes {
		if err := store.InsertTick(context.Background(), tickAt("AAPL", i+1, c, 1000)); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	p.Warmup(context.Background())

	if err := p.ProcessTick(context.Background(), tickAt("AAPL", 10, 150, 5000)); err != nil {
		t.Fatalf("outlier tick: %v", err)
	}
	if !ch.kinds()[models.KindPriceSpike] {
		t.Fatalf("warmed-up window should allow detection, got %v", ch.got)
	}
}

func TestConcurrentIngestKeepsPerSymbolState(t *testing.T) {
	cfg := Config{Symbols: []string{"AAPL", "MSFT"}, Interval: time.Second, WindowSize: 200}
	p, store := newTestPipeline(t, cfg, &fakeSource{}, nil)

	// stream guard flush, Kafka workers, and the polling loop all call
	// ProcessTick; interleave four writers across two symbols
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sym := "AAPL"
			if w%2 == 1 {
				sym = "MSFT"
			}
			for i := 0; i < perWorker; i++ {
				sec := w*perWorker + i
				if err := p.ProcessTick(context.Background(), tickAt(sym, sec, 100+float64(i%5), 1000)); err != nil {
					t.Errorf("worker %d tick %d: %v", w, i, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for _, sym := range cfg.Symbols {
		got, err := store.GetRecent(context.Background(), sym, 300)
		if err != nil || len(got) != 2*perWorker {
			t.Fatalf("%s: stored %d ticks err %v, want %d", sym, len(got), err, 2*perWorker)
		}
		p.mu.Lock()
		n := len(p.state[sym].window.Snapshot())
		p.mu.Unlock()
		if n != 2*perWorker {
			t.Fatalf("%s: window holds %d ticks, want %d", sym, n, 2*perWorker)
		}
	}
}

func TestRunStopsAtCycleBoundary(t *testing.T) {
	src := &fakeSource{queue: map[string][]sourceResult{}}
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10}
	clk := &fakeClock{now: time.Now(), tickCh: make(chan time.Time)}
	p, _ := newTestPipeline(t, cfg, src, nil, WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	clk.tickCh <- time.Now() // one extra cycle
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}
