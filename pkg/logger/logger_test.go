package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFieldsEncodeToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(&Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	l.Info("tick stored",
		String("symbol", "AAPL"),
		Int64("ts", 1741615200),
		Float64("metric", 3.5),
		Bool("live", true),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`"symbol":"AAPL"`,
		`"ts":1741615200`,
		`"metric":3.5`,
		`"live":true`,
		`"message":"tick stored"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}
