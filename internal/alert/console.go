package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"TickWatch/internal/domain/models"
)

func init() {
	Register("console", func(cfg ChannelConfig) (Channel, error) {
		return &ConsoleChannel{out: os.Stdout}, nil
	})
}

// ConsoleChannel prints one line per alert to stdout.
type ConsoleChannel struct {
	out io.Writer
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Send(ctx context.Context, s models.Signal) error {
	ts := s.Timestamp.UTC().Format("15:04:05")
	_, err := fmt.Fprintf(c.out, "ALERT [%s] %s\n", ts, s)
	return err
}
