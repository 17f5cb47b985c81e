package usecase

import (
	"context"

	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	mid "TickWatch/internal/middleware"
)

// StreamCollector consumes ticks from a live market stream and feeds
// them through the same processing path as the polling loop.
type StreamCollector struct {
	stream   drepo.MarketStream
	pipeline *Pipeline
	metrics  drepo.Metrics
	guard    *mid.StreamGuard
}

// NewStreamCollector creates a new StreamCollector instance.
func NewStreamCollector(stream drepo.MarketStream, pipeline *Pipeline, metrics drepo.Metrics, guard *mid.StreamGuard) *StreamCollector {
	return &StreamCollector{stream: stream, pipeline: pipeline, metrics: metrics, guard: guard}
}

// IsConnected returns true if the market stream is connected.
func (c *StreamCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *StreamCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.guard != nil {
		c.guard.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *StreamCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			// the stream closes both channels after a read failure;
			// they are dead until replaced by a fresh Read
			c.metrics.RecordError("stream")
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				continue
			}
			tickCh, errCh = c.stream.Read(ctx)
		case t, ok := <-tickCh:
			if !ok {
				// error side drives the reconnect; park this case
				tickCh = nil
				continue
			}
			if t == nil {
				continue
			}
			if c.guard != nil {
				_ = c.guard.Process(ctx, t)
			} else {
				_ = c.pipeline.ProcessTick(ctx, t)
			}
		}
	}
}

// Shutdown stops the guard and closes the stream.
func (c *StreamCollector) Shutdown(ctx context.Context) error {
	if c.guard != nil {
		c.guard.Stop()
	}
	return c.stream.Close()
}
