package repository

import (
	"context"
	"time"

	"TickWatch/internal/domain/models"
)

// TickSource fetches the latest tick for a symbol by polling.
// Implementations distinguish ErrUnknownSymbol (non-retriable) from
// transient failures (retriable).
type TickSource interface {
	Fetch(ctx context.Context, symbol string) (*models.Tick, error)
}

// MarketStream is a push-based tick source (websocket).
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickStore persists ticks and answers recency/range queries.
// One concurrent writer, many concurrent readers.
type TickStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	InsertTick(ctx context.Context, t *models.Tick) error
	GetRecent(ctx context.Context, symbol string, n int) ([]models.Tick, error)
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error)
	GetSymbols(ctx context.Context) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalStore persists fired signals for the read API.
type SignalStore interface {
	InsertSignal(ctx context.Context, s *models.Signal) error
	GetSignals(ctx context.Context, symbol string, kind models.SignalKind, n int) ([]models.Signal, error)
}

// Publisher forwards ticks and signals to a message bus.
type Publisher interface {
	PublishTick(ctx context.Context, t *models.Tick) error
	PublishSignal(ctx context.Context, s *models.Signal) error
	Close() error
}

// EventSink receives live events for push consumers. Broadcast must
// never block the caller.
type EventSink interface {
	Broadcast(ev models.LiveEvent)
}

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordTickIngested(symbol string)
	RecordSignal(kind, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordAlertDelivery(channel, result string)
}
