package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TickWatch/internal/domain/models"
)

func init() {
	Register("file", func(cfg ChannelConfig) (Channel, error) {
		path := cfg.Options["path"]
		if path == "" {
			path = "logs/alerts.log"
		}
		return NewFileChannel(path)
	})
}

// FileChannel appends one JSON record per alert to a log file.
type FileChannel struct {
	mu   sync.Mutex
	path string
}

// NewFileChannel creates the parent directory if needed.
func NewFileChannel(path string) (*FileChannel, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("alert log dir: %w", err)
	}
	return &FileChannel{path: path}, nil
}

func (c *FileChannel) Name() string { return "file" }

type fileRecord struct {
	TS      time.Time         `json:"ts"`
	Kind    models.SignalKind `json:"kind"`
	Symbol  string            `json:"symbol"`
	Close   float64           `json:"close"`
	Metric  float64           `json:"metric"`
	Message string            `json:"message"`
}

func (c *FileChannel) Send(ctx context.Context, s models.Signal) error {
	b, err := json.Marshal(fileRecord{
		TS:      s.Timestamp.UTC(),
		Kind:    s.Kind,
		Symbol:  s.Symbol,
		Close:   s.Tick.Close,
		Metric:  s.Metric,
		Message: s.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}
