package models

import (
	"fmt"
	"time"
)

// SignalKind tags the detector that produced a signal.
type SignalKind string

const (
	KindPriceSpike      SignalKind = "PRICE_SPIKE"
	KindVolumeSurge     SignalKind = "VOLUME_SURGE"
	KindVolatilityBurst SignalKind = "VOLATILITY_BURST"
	KindVWAPDeviation   SignalKind = "VWAP_DEVIATION"
)

// IsValidSignalKind returns true if k is a known signal kind.
func IsValidSignalKind(k SignalKind) bool {
	switch k {
	case KindPriceSpike, KindVolumeSurge, KindVolatilityBurst, KindVWAPDeviation:
		return true
	default:
		return false
	}
}

// Signal is one detector firing. It carries a snapshot of the
// triggering tick and the metric that crossed the threshold.
// Created once, never mutated.
type Signal struct {
	Kind      SignalKind `json:"kind"`
	Symbol    string     `json:"symbol"`
	Timestamp time.Time  `json:"timestamp"`
	Tick      Tick       `json:"tick"`
	Metric    float64    `json:"metric"`
	Message   string     `json:"message"`
}

func (s Signal) String() string {
	return fmt.Sprintf("[%s] %s @ %.2f: %s", s.Kind, s.Symbol, s.Tick.Close, s.Message)
}
