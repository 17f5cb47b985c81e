package alert

import (
	"context"
	"fmt"
	"time"

	"TickWatch/internal/domain/models"
	xhttp "TickWatch/pkg/http"
)

func init() {
	Register("webhook", func(cfg ChannelConfig) (Channel, error) {
		url := cfg.Options["url"]
		if url == "" {
			return nil, fmt.Errorf("webhook channel: url is required")
		}
		return NewWebhookChannel(url, 5*time.Second), nil
	})
}

// WebhookChannel POSTs the signal as JSON to a configured URL.
type WebhookChannel struct {
	url    string
	client *xhttp.Client
}

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, s models.Signal) error {
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    s,
	}, nil)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	return nil
}
