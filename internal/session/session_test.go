package session

import (
	"math"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
)

func tick(ts time.Time, close, vol float64) models.Tick {
	return models.Tick{Symbol: "AAPL", Timestamp: ts, Close: close, Volume: vol}
}

func TestVWAPUndefinedBeforeVolume(t *testing.T) {
	s := New(UTCDayPolicy{})
	if _, ok := s.VWAP(); ok {
		t.Fatalf("expected no vwap on empty session")
	}

	s.Update(tick(time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC), 100, 0))
	if _, ok := s.VWAP(); ok {
		t.Fatalf("expected no vwap with zero cumulative volume")
	}
}

func TestVWAPMidSession(t *testing.T) {
	s := New(UTCDayPolicy{})
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	s.Update(tick(base, 100, 200))
	s.Update(tick(base.Add(time.Minute), 110, 100))

	got, ok := s.VWAP()
	if !ok {
		t.Fatalf("expected vwap")
	}
	want := (100*200 + 110*100) / 300.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("vwap = %v, want %v", got, want)
	}
}

func TestResetAtUTCDayBoundary(t *testing.T) {
	s := New(UTCDayPolicy{})
	s.Update(tick(time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC), 100, 500))

	// first tick of the next UTC day starts a fresh accumulator
	s.Update(tick(time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC), 200, 100))

	got, ok := s.VWAP()
	if !ok {
		t.Fatalf("expected vwap")
	}
	if got != 200 {
		t.Fatalf("vwap = %v, want 200 after reset", got)
	}
}

func TestNoResetMidSession(t *testing.T) {
	s := New(UTCDayPolicy{})
	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Update(tick(base.Add(time.Duration(i)*time.Hour), 100, 100))
	}
	got, _ := s.VWAP()
	if got != 100 {
		t.Fatalf("vwap = %v, want 100", got)
	}
}
