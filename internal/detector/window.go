package detector

import "TickWatch/internal/domain/models"

// Window is a bounded, ordered buffer of the most recent ticks for one
// symbol. Size is fixed at construction; the oldest entry is evicted
// when capacity is exceeded. Not safe for concurrent use — the
// orchestrator owns it.
type Window struct {
	size  int
	ticks []models.Tick
}

// NewWindow creates a rolling window holding at most size ticks.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, ticks: make([]models.Tick, 0, size)}
}

// Push appends a tick, evicting the oldest when the window is full.
func (w *Window) Push(t models.Tick) {
	if len(w.ticks) == w.size {
		copy(w.ticks, w.ticks[1:])
		w.ticks = w.ticks[:w.size-1]
	}
	w.ticks = append(w.ticks, t)
}

// Len returns the number of ticks currently held.
func (w *Window) Len() int { return len(w.ticks) }

// Snapshot returns a copy of the window contents, oldest first.
// Detectors receive this copy, never the live buffer.
func (w *Window) Snapshot() []models.Tick {
	out := make([]models.Tick, len(w.ticks))
	copy(out, w.ticks)
	return out
}
