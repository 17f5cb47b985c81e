package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
)

// fakeStream fails its first read session and serves a tick after the
// collector reconnects.
type fakeStream struct {
	mu         sync.Mutex
	reconnects int
	recovered  bool
}

func (s *fakeStream) Connect(ctx context.Context) error   { return nil }
func (s *fakeStream) Subscribe(ctx context.Context) error { return nil }
func (s *fakeStream) Close() error                        { return nil }
func (s *fakeStream) IsConnected() bool                   { return true }

func (s *fakeStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	s.mu.Lock()
	recovered := s.recovered
	s.mu.Unlock()

	ticks := make(chan *models.Tick, 1)
	errs := make(chan error, 1)
	if !recovered {
		// one error, then both channels die, like a dropped socket
		errs <- errors.New("connection reset")
		close(ticks)
		close(errs)
	} else {
		ticks <- tickAt("AAPL", 30, 100, 1000)
	}
	return ticks, errs
}

func (s *fakeStream) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.recovered = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestCollectorResumesReadingAfterReconnect(t *testing.T) {
	cfg := Config{Symbols: []string{"AAPL"}, Interval: time.Second, WindowSize: 10}
	p, store := newTestPipeline(t, cfg, &fakeSource{}, nil)

	stream := &fakeStream{}
	col := NewStreamCollector(stream, p, nopMetrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		got, err := store.GetRecent(context.Background(), "AAPL", 10)
		if err != nil {
			t.Fatalf("store: %v", err)
		}
		if len(got) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("tick after reconnect never processed (reconnects=%d)", stream.reconnectCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if stream.reconnectCount() == 0 {
		t.Fatalf("collector never reconnected")
	}
}
