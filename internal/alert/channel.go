// Package alert fans fired signals out to pluggable delivery channels.
package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"TickWatch/internal/domain/models"
)

// Channel delivers one signal to one destination. Send may fail; the
// dispatcher isolates failures so they never reach the pipeline.
type Channel interface {
	Name() string
	Send(ctx context.Context, s models.Signal) error
}

// ChannelConfig is the raw per-channel configuration block. Options are
// channel-specific (path, url, token, chat_id, ...).
type ChannelConfig struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// Builder constructs a channel from its configuration block.
type Builder func(cfg ChannelConfig) (Channel, error)

var (
	regMu    sync.RWMutex
	builders = make(map[string]Builder)
)

// Register adds a channel builder under a type name. Called from init
// funcs of the concrete channels; later registrations win so tests can
// substitute fakes.
func Register(typ string, b Builder) {
	regMu.Lock()
	builders[typ] = b
	regMu.Unlock()
}

// Build constructs a channel for the given config block.
func Build(cfg ChannelConfig) (Channel, error) {
	regMu.RLock()
	b, ok := builders[cfg.Type]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown alert channel type %q (registered: %v)", cfg.Type, registered())
	}
	return b(cfg)
}

// BuildAll constructs every configured channel, failing fast on the
// first bad block.
func BuildAll(cfgs []ChannelConfig) ([]Channel, error) {
	out := make([]Channel, 0, len(cfgs))
	for _, cfg := range cfgs {
		ch, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func registered() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
