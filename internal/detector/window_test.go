package detector

import (
	"testing"
	"time"

	"TickWatch/internal/domain/models"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		w.Push(models.Tick{Symbol: "AAPL", Timestamp: base.Add(time.Duration(i) * time.Minute), Close: float64(i)})
	}

	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	got := w.Snapshot()
	for i, want := range []float64{2, 3, 4} {
		if got[i].Close != want {
			t.Fatalf("snapshot[%d].Close = %v, want %v", i, got[i].Close, want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	w := NewWindow(3)
	w.Push(models.Tick{Symbol: "AAPL", Close: 100})

	snap := w.Snapshot()
	snap[0].Close = 0

	if w.Snapshot()[0].Close != 100 {
		t.Fatalf("mutating a snapshot leaked into the window")
	}
}
