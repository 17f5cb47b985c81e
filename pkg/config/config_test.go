package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
source:
  symbols: [AAPL, MSFT]
  poll_interval: 2s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Store.Type != "memory" {
		t.Fatalf("store type = %q", c.Store.Type)
	}
	if c.Source.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v", c.Source.PollInterval)
	}
	if c.Detectors.MinHistory != 10 || c.Detectors.WindowSize != 50 {
		t.Fatalf("detector defaults = %+v", c.Detectors)
	}
	if c.Detectors.PriceSpikeZScore != 2.5 {
		t.Fatalf("zscore default = %v", c.Detectors.PriceSpikeZScore)
	}
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsWindowSmallerThanHistory(t *testing.T) {
	body := minimalYAML + `
detectors:
  min_history: 30
  window_size: 10
`
	_, err := Load(writeConfig(t, body))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	body := minimalYAML + `
store:
  type: cassandra
`
	_, err := Load(writeConfig(t, body))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "SPY,QQQ")
	t.Setenv("STORE_TYPE", "memory")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Source.Symbols) != 2 || c.Source.Symbols[0] != "SPY" {
		t.Fatalf("symbols = %v", c.Source.Symbols)
	}
}
