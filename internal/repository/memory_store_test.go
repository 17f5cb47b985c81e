package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
	"TickWatch/internal/domain/repository"
)

var baseTime = time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

func tickAt(sym string, offset time.Duration, close float64) *models.Tick {
	return &models.Tick{
		Symbol:    sym,
		Timestamp: baseTime.Add(offset),
		Open:      close, High: close, Low: close, Close: close,
		Volume: 1000,
	}
}

func TestInsertThenGetRecentOne(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	want := tickAt("AAPL", 0, 101.5)
	if err := s.InsertTick(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetRecent(ctx, "AAPL", 1)
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if len(got) != 1 || got[0] != *want {
		t.Fatalf("got %v, want [%v]", got, *want)
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.InsertTick(ctx, tickAt("AAPL", 0, 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.InsertTick(ctx, tickAt("AAPL", 0, 200))
	if !errors.Is(err, repository.ErrDuplicateTick) {
		t.Fatalf("err = %v, want ErrDuplicateTick", err)
	}

	// the original tick is untouched
	got, _ := s.GetRecent(ctx, "AAPL", 10)
	if len(got) != 1 || got[0].Close != 100 {
		t.Fatalf("store corrupted by duplicate insert: %v", got)
	}
}

func TestGetRecentOrderAndBound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.InsertTick(ctx, tickAt("AAPL", time.Duration(i)*time.Minute, float64(i))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := s.GetRecent(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []float64{2, 3, 4} {
		if got[i].Close != want {
			t.Fatalf("got[%d].Close = %v, want %v (oldest first)", i, got[i].Close, want)
		}
	}

	// shorter history returns what exists
	got, _ = s.GetRecent(ctx, "AAPL", 50)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
}

func TestGetRangeInclusiveAscending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = s.InsertTick(ctx, tickAt("AAPL", time.Duration(i)*time.Minute, float64(i)))
	}

	start := baseTime.Add(2 * time.Minute)
	end := baseTime.Add(6 * time.Minute)
	got, err := s.GetRange(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("get range: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5 (both bounds inclusive)", len(got))
	}
	if !got[0].Timestamp.Equal(start) || !got[len(got)-1].Timestamp.Equal(end) {
		t.Fatalf("bounds missing: first=%v last=%v", got[0].Timestamp, got[len(got)-1].Timestamp)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("not ascending at %d", i)
		}
	}
}

func TestSymbolsAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.InsertTick(ctx, tickAt("AAPL", 0, 100))
	_ = s.InsertTick(ctx, tickAt("MSFT", 0, 400))

	got, _ := s.GetRecent(ctx, "AAPL", 10)
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("cross-symbol leak: %v", got)
	}

	syms, _ := s.GetSymbols(ctx)
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Fatalf("symbols = %v", syms)
	}
}

func TestSignalFiltering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.InsertSignal(ctx, &models.Signal{Kind: models.KindPriceSpike, Symbol: "AAPL", Timestamp: baseTime})
	_ = s.InsertSignal(ctx, &models.Signal{Kind: models.KindVolumeSurge, Symbol: "AAPL", Timestamp: baseTime.Add(time.Minute)})
	_ = s.InsertSignal(ctx, &models.Signal{Kind: models.KindPriceSpike, Symbol: "MSFT", Timestamp: baseTime.Add(2 * time.Minute)})

	got, _ := s.GetSignals(ctx, "AAPL", models.KindPriceSpike, 10)
	if len(got) != 1 || got[0].Symbol != "AAPL" || got[0].Kind != models.KindPriceSpike {
		t.Fatalf("filtered signals = %v", got)
	}

	all, _ := s.GetSignals(ctx, "", "", 10)
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
}
