package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TickWatch/internal/domain/models"
	"TickWatch/internal/domain/repository"
)

// MemoryStore keeps ticks and signals in process memory, ordered by
// timestamp per symbol. The RWMutex gives the single-writer /
// many-reader discipline: readers never observe a partially written
// tick. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	ticks   map[string][]models.Tick
	signals []models.Signal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ticks: make(map[string][]models.Tick)}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }

func (s *MemoryStore) InsertTick(ctx context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.ticks[t.Symbol]
	i := sort.Search(len(seq), func(i int) bool {
		return !seq[i].Timestamp.Before(t.Timestamp)
	})
	if i < len(seq) && seq[i].Timestamp.Equal(t.Timestamp) {
		return repository.ErrDuplicateTick
	}

	seq = append(seq, models.Tick{})
	copy(seq[i+1:], seq[i:])
	seq[i] = *t
	s.ticks[t.Symbol] = seq
	return nil
}

func (s *MemoryStore) GetRecent(ctx context.Context, symbol string, n int) ([]models.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.ticks[symbol]
	if n > len(seq) {
		n = len(seq)
	}
	out := make([]models.Tick, n)
	copy(out, seq[len(seq)-n:])
	return out, nil
}

func (s *MemoryStore) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.ticks[symbol]
	lo := sort.Search(len(seq), func(i int) bool { return !seq[i].Timestamp.Before(start) })
	hi := sort.Search(len(seq), func(i int) bool { return seq[i].Timestamp.After(end) })
	if lo >= hi {
		return []models.Tick{}, nil
	}
	out := make([]models.Tick, hi-lo)
	copy(out, seq[lo:hi])
	return out, nil
}

func (s *MemoryStore) GetSymbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.ticks))
	for sym := range s.ticks {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) InsertSignal(ctx context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *MemoryStore) GetSignals(ctx context.Context, symbol string, kind models.SignalKind, n int) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Signal, 0, n)
	for i := len(s.signals) - 1; i >= 0 && len(out) < n; i-- {
		sig := s.signals[i]
		if symbol != "" && sig.Symbol != symbol {
			continue
		}
		if kind != "" && sig.Kind != kind {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var (
	_ repository.TickStore   = (*MemoryStore)(nil)
	_ repository.SignalStore = (*MemoryStore)(nil)
)
