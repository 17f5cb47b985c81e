package detector

import (
	"reflect"
	"testing"
	"time"

	"TickWatch/internal/domain/models"
)

var baseTime = time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

func histFromCloses(closes ...float64) []models.Tick {
	out := make([]models.Tick, len(closes))
	for i, c := range closes {
		out[i] = models.Tick{
			Symbol:    "AAPL",
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return out
}

func hasKind(signals []models.Signal, kind models.SignalKind) bool {
	for _, s := range signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func TestShortHistoryProducesNothing(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 2.5, VolumeSurgeRatio: 3, VolatilityRatio: 2.5, VWAPDeviationPct: 0.5, MinHistory: 5})
	tk := models.Tick{Symbol: "AAPL", Timestamp: baseTime, Close: 500, High: 600, Low: 1, Volume: 1e9}

	for n := 0; n < 5; n++ {
		got := d.Detect(tk, histFromCloses(make([]float64, n)...), 100, true)
		if len(got) != 0 {
			t.Fatalf("history len %d: expected no signals, got %v", n, got)
		}
	}
}

func TestMinHistoryClampedToFloor(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 2.5, VolumeSurgeRatio: 3, VolatilityRatio: 2.5, VWAPDeviationPct: 0.5, MinHistory: 0})
	if d.cfg.MinHistory != MinHistoryFloor {
		t.Fatalf("MinHistory = %d, want %d", d.cfg.MinHistory, MinHistoryFloor)
	}
}

func TestPriceSpikeNeverFiresOnFlatHistory(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 2.5, VolumeSurgeRatio: 1e9, VolatilityRatio: 1e9, VWAPDeviationPct: 1e9, MinHistory: 2})
	hist := histFromCloses(100, 100, 100, 100, 100) // stddev = 0
	tk := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 150, High: 150, Low: 150, Volume: 1000}

	got := d.Detect(tk, hist, 100, true)
	if hasKind(got, models.KindPriceSpike) {
		t.Fatalf("price spike fired on zero-stddev history: %v", got)
	}
}

func TestPriceSpikeFiresOnOutlier(t *testing.T) {
	d := New(DefaultConfig())
	hist := histFromCloses(100, 101, 99, 100, 102, 98, 100, 101, 99, 100)
	tk := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 130, High: 130, Low: 130, Volume: 1000}

	got := d.Detect(tk, hist, 0, false)
	if !hasKind(got, models.KindPriceSpike) {
		t.Fatalf("expected price spike, got %v", got)
	}
}

func TestVolumeSurgeThreshold(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 1e9, VolumeSurgeRatio: 3, VolatilityRatio: 1e9, VWAPDeviationPct: 1e9, MinHistory: 2})
	hist := histFromCloses(100, 101, 99, 100, 102) // volume 1000 each → avg 1000

	fire := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 100, High: 100, Low: 100, Volume: 3500}
	if got := d.Detect(fire, hist, 0, false); !hasKind(got, models.KindVolumeSurge) {
		t.Fatalf("volume 3500 vs avg 1000: expected surge, got %v", got)
	}

	quiet := fire
	quiet.Volume = 2900
	if got := d.Detect(quiet, hist, 0, false); hasKind(got, models.KindVolumeSurge) {
		t.Fatalf("volume 2900 vs avg 1000: surge must not fire")
	}
}

func TestVolatilityBurst(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 1e9, VolumeSurgeRatio: 1e9, VolatilityRatio: 2.5, VWAPDeviationPct: 1e9, MinHistory: 2})
	hist := make([]models.Tick, 5)
	for i := range hist {
		hist[i] = models.Tick{
			Symbol:    "AAPL",
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			High:      101, Low: 100, Close: 100.5, Volume: 1000,
		}
	}

	burst := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), High: 103, Low: 100, Close: 101, Volume: 1000}
	if got := d.Detect(burst, hist, 0, false); !hasKind(got, models.KindVolatilityBurst) {
		t.Fatalf("range 3.0 vs avg 1.0: expected burst, got %v", got)
	}

	calm := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), High: 102, Low: 100, Close: 101, Volume: 1000}
	if got := d.Detect(calm, hist, 0, false); hasKind(got, models.KindVolatilityBurst) {
		t.Fatalf("range 2.0 vs avg 1.0: burst must not fire")
	}
}

func TestVWAPDeviationThreshold(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 1e9, VolumeSurgeRatio: 1e9, VolatilityRatio: 1e9, VWAPDeviationPct: 0.5, MinHistory: 2})
	hist := histFromCloses(100, 100, 100)

	fire := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 100.6, High: 100.6, Low: 100.6, Volume: 1000}
	if got := d.Detect(fire, hist, 100.0, true); !hasKind(got, models.KindVWAPDeviation) {
		t.Fatalf("0.6%% deviation vs 0.5%% threshold: expected signal, got %v", got)
	}

	quiet := fire
	quiet.Close = 100.4
	if got := d.Detect(quiet, hist, 100.0, true); hasKind(got, models.KindVWAPDeviation) {
		t.Fatalf("0.4%% deviation vs 0.5%% threshold: must not fire")
	}

	// no session volume yet → check is skipped entirely
	if got := d.Detect(fire, hist, 0, false); hasKind(got, models.KindVWAPDeviation) {
		t.Fatalf("vwap check fired without a defined vwap")
	}
}

func TestDetectIsDeterministicAndPure(t *testing.T) {
	d := New(DefaultConfig())
	hist := histFromCloses(100, 101, 99, 100, 102, 98, 100, 101, 99, 100)
	orig := make([]models.Tick, len(hist))
	copy(orig, hist)
	tk := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 130, High: 131, Low: 129, Volume: 9000}

	first := d.Detect(tk, hist, 100, true)
	second := d.Detect(tk, hist, 100, true)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detect not deterministic:\n%v\n%v", first, second)
	}
	if !reflect.DeepEqual(hist, orig) {
		t.Fatalf("detect mutated history")
	}
}

func TestAllChecksMayFireTogether(t *testing.T) {
	d := New(Config{PriceSpikeZScore: 2.5, VolumeSurgeRatio: 3, VolatilityRatio: 2.5, VWAPDeviationPct: 0.5, MinHistory: 2})
	hist := histFromCloses(100, 101, 99, 100, 102, 98, 100, 101, 99, 100)
	for i := range hist {
		hist[i].High = hist[i].Close + 0.5
		hist[i].Low = hist[i].Close - 0.5
	}
	tk := models.Tick{Symbol: "AAPL", Timestamp: baseTime.Add(time.Hour), Close: 130, High: 135, Low: 120, Volume: 50000}

	got := d.Detect(tk, hist, 100, true)
	for _, kind := range []models.SignalKind{models.KindPriceSpike, models.KindVolumeSurge, models.KindVolatilityBurst, models.KindVWAPDeviation} {
		if !hasKind(got, kind) {
			t.Fatalf("expected %s in %v", kind, got)
		}
	}
}
