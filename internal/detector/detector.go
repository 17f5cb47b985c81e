package detector

import (
	"fmt"
	"math"

	"TickWatch/internal/domain/models"
)

// MinHistoryFloor is the smallest usable history: rolling stddev needs
// at least two prior ticks.
const MinHistoryFloor = 2

// Config holds detector thresholds. All values must be positive.
type Config struct {
	PriceSpikeZScore float64 // z-score of close vs rolling mean/stddev
	VolumeSurgeRatio float64 // multiple of rolling average volume
	VolatilityRatio  float64 // multiple of rolling average high-low range
	VWAPDeviationPct float64 // percent deviation from session VWAP
	MinHistory       int     // prior ticks required before rolling checks run
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		PriceSpikeZScore: 2.5,
		VolumeSurgeRatio: 3.0,
		VolatilityRatio:  2.5,
		VWAPDeviationPct: 0.5,
		MinHistory:       10,
	}
}

// Detector runs the four anomaly checks. It is stateless: history and
// session VWAP are passed in, so the same inputs always produce the
// same signals and nothing is mutated.
type Detector struct {
	cfg Config
}

// New creates a detector, clamping MinHistory to the usable floor.
func New(cfg Config) *Detector {
	if cfg.MinHistory < MinHistoryFloor {
		cfg.MinHistory = MinHistoryFloor
	}
	return &Detector{cfg: cfg}
}

// Detect evaluates tick against history (the window contents excluding
// tick, oldest first) and the session VWAP computed up to and including
// tick. hasVWAP is false when the session has seen no volume yet.
//
// With fewer than MinHistory prior ticks the result is empty: thin
// history must never produce a false signal. The four checks are
// independent and may all fire for one tick.
func (d *Detector) Detect(tick models.Tick, history []models.Tick, sessionVWAP float64, hasVWAP bool) []models.Signal {
	if len(history) < d.cfg.MinHistory {
		return nil
	}

	var out []models.Signal
	if s, ok := d.checkPriceSpike(tick, history); ok {
		out = append(out, s)
	}
	if s, ok := d.checkVolumeSurge(tick, history); ok {
		out = append(out, s)
	}
	if s, ok := d.checkVolatilityBurst(tick, history); ok {
		out = append(out, s)
	}
	if hasVWAP {
		if s, ok := d.checkVWAPDeviation(tick, sessionVWAP); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d *Detector) checkPriceSpike(tick models.Tick, history []models.Tick) (models.Signal, bool) {
	closes := make([]float64, len(history))
	for i, t := range history {
		closes[i] = t.Close
	}
	mean, stdev := meanStdev(closes)
	// flat history: a zero stddev would divide by zero and any move
	// would look infinitely anomalous, so this check never fires
	if stdev == 0 {
		return models.Signal{}, false
	}

	z := (tick.Close - mean) / stdev
	if math.Abs(z) < d.cfg.PriceSpikeZScore {
		return models.Signal{}, false
	}
	direction := "above"
	if z < 0 {
		direction = "below"
	}
	return models.Signal{
		Kind:      models.KindPriceSpike,
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Tick:      tick,
		Metric:    z,
		Message:   fmt.Sprintf("close %.2f is %.2fσ %s rolling mean %.2f", tick.Close, math.Abs(z), direction, mean),
	}, true
}

func (d *Detector) checkVolumeSurge(tick models.Tick, history []models.Tick) (models.Signal, bool) {
	var sum float64
	var n int
	for _, t := range history {
		if t.Volume > 0 {
			sum += t.Volume
			n++
		}
	}
	if n == 0 {
		return models.Signal{}, false
	}
	avg := sum / float64(n)
	if avg == 0 {
		return models.Signal{}, false
	}

	ratio := tick.Volume / avg
	if ratio < d.cfg.VolumeSurgeRatio {
		return models.Signal{}, false
	}
	return models.Signal{
		Kind:      models.KindVolumeSurge,
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Tick:      tick,
		Metric:    ratio,
		Message:   fmt.Sprintf("volume %.0f is %.1fx average (%.0f)", tick.Volume, ratio, avg),
	}, true
}

func (d *Detector) checkVolatilityBurst(tick models.Tick, history []models.Tick) (models.Signal, bool) {
	var sum float64
	var n int
	for _, t := range history {
		if r := t.Range(); r > 0 {
			sum += r
			n++
		}
	}
	if n == 0 {
		return models.Signal{}, false
	}
	avg := sum / float64(n)
	if avg == 0 {
		return models.Signal{}, false
	}

	cur := tick.Range()
	ratio := cur / avg
	if ratio < d.cfg.VolatilityRatio {
		return models.Signal{}, false
	}
	return models.Signal{
		Kind:      models.KindVolatilityBurst,
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Tick:      tick,
		Metric:    ratio,
		Message:   fmt.Sprintf("high-low range %.4f is %.1fx average (%.4f)", cur, ratio, avg),
	}, true
}

func (d *Detector) checkVWAPDeviation(tick models.Tick, vwap float64) (models.Signal, bool) {
	if vwap == 0 {
		return models.Signal{}, false
	}
	devPct := math.Abs(tick.Close-vwap) / vwap * 100
	if devPct < d.cfg.VWAPDeviationPct {
		return models.Signal{}, false
	}
	direction := "above"
	if tick.Close < vwap {
		direction = "below"
	}
	return models.Signal{
		Kind:      models.KindVWAPDeviation,
		Symbol:    tick.Symbol,
		Timestamp: tick.Timestamp,
		Tick:      tick,
		Metric:    devPct,
		Message:   fmt.Sprintf("close %.2f is %.2f%% %s session VWAP %.2f", tick.Close, devPct, direction, vwap),
	}, true
}

// meanStdev returns the mean and sample standard deviation.
func meanStdev(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n < 2 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / n

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
