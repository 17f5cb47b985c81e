package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TickWatch/internal/domain/models"
	domrepo "TickWatch/internal/domain/repository"
)

// Proc is the minimal processor interface the guard forwards to.
type Proc interface {
	ProcessTick(ctx context.Context, t *models.Tick) error
}

// StreamGuard sits between a live market stream and the pipeline. It
// validates ticks, throttles per symbol, and buffers when the
// downstream store is unavailable so a storage blip does not drop the
// whole stream.
type StreamGuard struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Tick
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type GuardOption func(*StreamGuard)

// WithMaxRPS sets the max ticks per second per symbol.
func WithMaxRPS(n int) GuardOption {
	return func(g *StreamGuard) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) GuardOption {
	return func(g *StreamGuard) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// NewStreamGuard creates a new guard.
func NewStreamGuard(proc Proc, metrics domrepo.Metrics, opts ...GuardOption) *StreamGuard {
	g := &StreamGuard{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.Tick, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bufSize != cap(g.bufCh) {
		g.bufCh = make(chan *models.Tick, g.bufSize)
	}
	return g
}

// Start launches background flushing of buffered ticks.
func (g *StreamGuard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-g.stopCh:
				return
			case t := <-g.bufCh:
				if t == nil {
					continue
				}
				if err := g.proc.ProcessTick(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					g.metrics.RecordError("guard_flush")
					// drop rather than requeue: requeueing would replay
					// this tick behind newer ones, out of timestamp order
					g.metrics.RecordError("guard_buffer_drop")
					time.Sleep(backoff)
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (g *StreamGuard) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Process validates, throttles, and forwards a tick downstream,
// buffering on errors.
func (g *StreamGuard) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		g.metrics.RecordError("guard_validate")
		return err
	}
	if !g.allow(t.Symbol, start) {
		g.metrics.RecordError("guard_throttle")
		return nil
	}

	if err := g.proc.ProcessTick(ctx, t); err != nil {
		g.metrics.RecordError("guard_process")
		select {
		case g.bufCh <- t:
		default:
			g.metrics.RecordError("guard_buffer_full")
		}
		return fmt.Errorf("guard downstream: %w", err)
	}
	g.metrics.RecordLatency("guard_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Close < 0 || t.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	if t.High < t.Low {
		return fmt.Errorf("high below low")
	}
	return nil
}

func (g *StreamGuard) allow(symbol string, now time.Time) bool {
	if g.maxRPS <= 0 {
		return true
	}
	last := g.lastSeen[symbol]
	if last.IsZero() {
		g.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(g.maxRPS) {
		return false
	}
	g.lastSeen[symbol] = now
	return true
}
