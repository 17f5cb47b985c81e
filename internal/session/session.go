// Package session tracks per-symbol VWAP accumulators scoped to an
// externally defined trading session.
package session

import (
	"time"

	"TickWatch/internal/domain/models"
)

// BoundaryPolicy decides whether two tick timestamps belong to the same
// session. The trigger (calendar day, market open, ...) is supplied by
// the caller; nothing here assumes a timezone or schedule.
type BoundaryPolicy interface {
	SameSession(prev, cur time.Time) bool
}

// UTCDayPolicy starts a new session whenever the UTC calendar day changes.
type UTCDayPolicy struct{}

func (UTCDayPolicy) SameSession(prev, cur time.Time) bool {
	p, c := prev.UTC(), cur.UTC()
	return p.Year() == c.Year() && p.YearDay() == c.YearDay()
}

// Session accumulates price*volume and volume for one symbol within the
// current session. Owned by the orchestrator; reset exactly at a
// boundary, never mid-session.
type Session struct {
	policy BoundaryPolicy

	cumPV  float64
	cumVol float64
	last   time.Time
	seen   bool
}

// New creates an empty session governed by policy.
func New(policy BoundaryPolicy) *Session {
	if policy == nil {
		policy = UTCDayPolicy{}
	}
	return &Session{policy: policy}
}

// Update folds a tick into the accumulator, resetting first when the
// tick falls on the far side of a session boundary.
func (s *Session) Update(t models.Tick) {
	if s.seen && !s.policy.SameSession(s.last, t.Timestamp) {
		s.reset()
	}
	s.cumPV += t.Close * t.Volume
	s.cumVol += t.Volume
	s.last = t.Timestamp
	s.seen = true
}

// VWAP returns the session volume-weighted average price. ok is false
// until the session has accumulated volume.
func (s *Session) VWAP() (float64, bool) {
	if s.cumVol == 0 {
		return 0, false
	}
	return s.cumPV / s.cumVol, true
}

func (s *Session) reset() {
	s.cumPV = 0
	s.cumVol = 0
}
