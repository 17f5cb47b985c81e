package alert

import (
	"context"
	"time"

	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	applogger "TickWatch/pkg/logger"
)

// Dispatcher sends each signal to every configured channel. Channel
// failures are isolated: a failing or hung channel is logged and
// skipped, and Dispatch never returns an error to the pipeline.
// Delivery is at-least-once per channel; no dedup across signals.
type Dispatcher struct {
	channels []Channel
	metrics  drepo.Metrics
	logger   *applogger.Logger
	timeout  time.Duration
}

// DispatcherOption configures Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout bounds each channel's Send call.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels []Channel, metrics drepo.Metrics, logger *applogger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		metrics:  metrics,
		logger:   logger,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch fans the signal out to all channels. Each Send runs under
// its own timeout in a goroutine so a hung channel degrades to a
// skipped delivery instead of stalling the polling cadence.
func (d *Dispatcher) Dispatch(ctx context.Context, s models.Signal) {
	for _, ch := range d.channels {
		d.sendOne(ctx, ch, s)
	}
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, s models.Signal) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("alert channel panic",
					applogger.String("channel", ch.Name()),
					applogger.Any("panic", r),
				)
				done <- nil
			}
		}()
		done <- ch.Send(sendCtx, s)
	}()

	select {
	case err := <-done:
		if err != nil {
			d.metrics.RecordAlertDelivery(ch.Name(), "error")
			d.logger.Error("alert channel failed",
				applogger.String("channel", ch.Name()),
				applogger.String("kind", string(s.Kind)),
				applogger.String("symbol", s.Symbol),
				applogger.Error(err),
			)
			return
		}
		d.metrics.RecordAlertDelivery(ch.Name(), "ok")
	case <-sendCtx.Done():
		d.metrics.RecordAlertDelivery(ch.Name(), "timeout")
		d.logger.Warn("alert channel timed out",
			applogger.String("channel", ch.Name()),
			applogger.String("kind", string(s.Kind)),
		)
	}
}
