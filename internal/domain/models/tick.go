package models

import "time"

// Tick is a single OHLCV sample for one symbol at one moment.
// Ticks are written once and never mutated.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Range returns the high-low spread of the tick.
func (t Tick) Range() float64 {
	return t.High - t.Low
}
