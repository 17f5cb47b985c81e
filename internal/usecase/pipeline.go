package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TickWatch/internal/alert"
	"TickWatch/internal/detector"
	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	"TickWatch/internal/session"
	applogger "TickWatch/pkg/logger"
)

// Clock abstracts the loop's timing so tests can drive cycles without
// wall-clock waits.
type Clock interface {
	Now() time.Time
	Tick(d time.Duration) (<-chan time.Time, func())
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Config holds the pipeline's loop parameters.
type Config struct {
	Symbols    []string
	Interval   time.Duration
	WindowSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// symbolState is the mutable per-symbol state owned by the pipeline:
// the rolling window and the session VWAP accumulator. Detectors only
// ever see copies.
type symbolState struct {
	window *detector.Window
	sess   *session.Session
}

// Pipeline drives the ingestion→storage→detection→alerting cycle.
// ProcessTick is shared by the polling loop, the stream guard, and the
// Kafka consumer workers, so per-symbol state is guarded by mu.
type Pipeline struct {
	cfg      Config
	source   drepo.TickSource
	store    drepo.TickStore
	sigStore drepo.SignalStore
	det      *detector.Detector
	disp     *alert.Dispatcher
	metrics  drepo.Metrics
	logger   *applogger.Logger

	pub      drepo.Publisher
	sink     drepo.EventSink
	clock    Clock
	boundary session.BoundaryPolicy

	mu    sync.Mutex
	state map[string]*symbolState
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithPublisher forwards stored ticks and fired signals to a bus.
func WithPublisher(p drepo.Publisher) Option {
	return func(pl *Pipeline) { pl.pub = p }
}

// WithEventSink broadcasts live events to push consumers.
func WithEventSink(s drepo.EventSink) Option {
	return func(pl *Pipeline) { pl.sink = s }
}

// WithClock injects a test clock.
func WithClock(c Clock) Option {
	return func(pl *Pipeline) { pl.clock = c }
}

// WithBoundaryPolicy sets the session boundary trigger.
func WithBoundaryPolicy(b session.BoundaryPolicy) Option {
	return func(pl *Pipeline) { pl.boundary = b }
}

// NewPipeline creates the orchestrator.
func NewPipeline(
	cfg Config,
	source drepo.TickSource,
	store drepo.TickStore,
	sigStore drepo.SignalStore,
	det *detector.Detector,
	disp *alert.Dispatcher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		source:   source,
		store:    store,
		sigStore: sigStore,
		det:      det,
		disp:     disp,
		metrics:  metrics,
		logger:   logger,
		clock:    realClock{},
		boundary: session.UTCDayPolicy{},
		state:    make(map[string]*symbolState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Warmup rebuilds per-symbol windows and sessions from the store so a
// restart does not wait a full window before detecting again.
func (p *Pipeline) Warmup(ctx context.Context) {
	for _, sym := range p.cfg.Symbols {
		ticks, err := p.store.GetRecent(ctx, sym, p.cfg.WindowSize)
		if err != nil {
			p.logger.Warn("warmup query failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		p.mu.Lock()
		st := p.stateFor(sym)
		for _, t := range ticks {
			st.sess.Update(t)
			st.window.Push(t)
		}
		p.mu.Unlock()
		if len(ticks) > 0 {
			p.logger.Info("warmed up from store",
				applogger.String("symbol", sym),
				applogger.Int("ticks", len(ticks)),
			)
		}
	}
}

// Run executes polling cycles until ctx is cancelled. Cancellation is
// observed only at cycle boundaries; a cycle in progress always
// finishes. No error terminates the loop.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("pipeline started",
		applogger.Strings("symbols", p.cfg.Symbols),
		applogger.Duration("interval_ms", p.cfg.Interval),
	)

	tick, stop := p.clock.Tick(p.cfg.Interval)
	defer stop()

	p.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopped")
			return
		case <-tick:
			p.runCycle(ctx)
			// a cycle that overran its slot leaves a tick pending;
			// that cycle is skipped, not run back to back
			select {
			case <-tick:
			default:
			}
		}
	}
}

// runCycle polls every symbol once, in the configured order.
func (p *Pipeline) runCycle(ctx context.Context) {
	start := p.clock.Now()
	for _, sym := range p.cfg.Symbols {
		p.pollSymbol(ctx, sym)
	}
	p.metrics.RecordLatency("cycle", time.Since(start).Seconds())
}

func (p *Pipeline) pollSymbol(ctx context.Context, sym string) {
	t, err := p.fetchWithRetry(ctx, sym)
	if err != nil {
		p.metrics.RecordError("fetch")
		p.logger.Warn("fetch failed, skipping symbol this cycle",
			applogger.String("symbol", sym),
			applogger.Error(err),
		)
		return
	}
	if t == nil {
		return // no new data (market closed)
	}
	_ = p.ProcessTick(ctx, t) // persist failures already logged; cycle moves on
}

// fetchWithRetry retries transient source failures with exponential
// backoff. ErrUnknownSymbol is not retried.
func (p *Pipeline) fetchWithRetry(ctx context.Context, sym string) (*models.Tick, error) {
	backoff := p.cfg.BackoffMin
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			p.clock.Sleep(ctx, backoff)
			backoff *= 2
			if p.cfg.BackoffMax > 0 && backoff > p.cfg.BackoffMax {
				backoff = p.cfg.BackoffMax
			}
		}
		t, err := p.source.Fetch(ctx, sym)
		if err == nil {
			return t, nil
		}
		if errors.Is(err, drepo.ErrUnknownSymbol) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", p.cfg.RetryMax+1, lastErr)
}

// ProcessTick persists one tick, updates per-symbol state, runs
// detection, and dispatches anything that fired. Shared by the polling
// loop, the streaming collector, and the Kafka ingest handler. Only a
// persistence failure is returned; duplicates are benign.
func (p *Pipeline) ProcessTick(ctx context.Context, t *models.Tick) error {
	if err := p.store.InsertTick(ctx, t); err != nil {
		if errors.Is(err, drepo.ErrDuplicateTick) {
			// already stored and already evaluated once
			p.logger.Debug("duplicate tick ignored",
				applogger.String("symbol", t.Symbol),
				applogger.Int64("ts", t.Timestamp.Unix()),
			)
			return nil
		}
		p.metrics.RecordError("store")
		p.logger.Error("tick persist failed",
			applogger.String("symbol", t.Symbol),
			applogger.Error(err),
		)
		return err
	}
	p.metrics.RecordTickIngested(t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Close)

	p.mu.Lock()
	st := p.stateFor(t.Symbol)
	history := st.window.Snapshot() // excludes the current tick
	st.sess.Update(*t)
	vwap, hasVWAP := st.sess.VWAP()

	signals := p.detectSafe(*t, history, vwap, hasVWAP)
	st.window.Push(*t)
	p.mu.Unlock()

	if p.pub != nil {
		if err := p.pub.PublishTick(ctx, t); err != nil {
			p.metrics.RecordError("publish_tick")
			p.logger.Warn("tick publish failed", applogger.Error(err))
		}
	}
	if p.sink != nil {
		p.sink.Broadcast(models.TickEvent(*t))
	}

	for _, sig := range signals {
		p.fire(ctx, sig)
	}
	return nil
}

// detectSafe guards the detector so nothing escapes into the loop; an
// unexpected condition is logged and treated as no signal.
func (p *Pipeline) detectSafe(t models.Tick, history []models.Tick, vwap float64, hasVWAP bool) (out []models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordError("detect")
			p.logger.Error("detector panic",
				applogger.String("symbol", t.Symbol),
				applogger.Any("panic", r),
			)
			out = nil
		}
	}()
	return p.det.Detect(t, history, vwap, hasVWAP)
}

func (p *Pipeline) fire(ctx context.Context, sig models.Signal) {
	p.metrics.RecordSignal(string(sig.Kind), sig.Symbol)
	p.logger.Info("signal fired",
		applogger.String("kind", string(sig.Kind)),
		applogger.String("symbol", sig.Symbol),
		applogger.Float64("metric", sig.Metric),
		applogger.String("message", sig.Message),
	)

	if p.sigStore != nil {
		if err := p.sigStore.InsertSignal(ctx, &sig); err != nil {
			p.metrics.RecordError("store_signal")
			p.logger.Warn("signal persist failed", applogger.Error(err))
		}
	}
	if p.pub != nil {
		if err := p.pub.PublishSignal(ctx, &sig); err != nil {
			p.metrics.RecordError("publish_signal")
			p.logger.Warn("signal publish failed", applogger.Error(err))
		}
	}
	if p.sink != nil {
		p.sink.Broadcast(models.SignalEvent(sig))
	}

	p.disp.Dispatch(ctx, sig)
}

// stateFor returns the mutable state for sym, creating it on first
// use. Callers must hold mu.
func (p *Pipeline) stateFor(sym string) *symbolState {
	st, ok := p.state[sym]
	if !ok {
		st = &symbolState{
			window: detector.NewWindow(p.cfg.WindowSize),
			sess:   session.New(p.boundary),
		}
		p.state[sym] = st
	}
	return st
}
