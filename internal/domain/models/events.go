package models

// Live event types pushed to websocket consumers.
const (
	EventTick   = "tick"
	EventSignal = "signal"
)

// LiveEvent is the envelope for the one-directional push stream.
// Data is a Tick or a Signal depending on Type. Delivery is
// at-most-once per connection; consumers tolerate reconnect gaps.
type LiveEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TickEvent wraps a tick for broadcasting.
func TickEvent(t Tick) LiveEvent { return LiveEvent{Type: EventTick, Data: t} }

// SignalEvent wraps a signal for broadcasting.
func SignalEvent(s Signal) LiveEvent { return LiveEvent{Type: EventSignal, Data: s} }
