package finnhub

import (
	"context"
	"fmt"
	"time"

	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	xhttp "TickWatch/pkg/http"
)

// Poller implements TickSource over the Finnhub REST quote endpoint.
type Poller struct {
	apiKey  string
	baseURL string
	client  *xhttp.Client
}

var _ drepo.TickSource = (*Poller)(nil)

// NewPoller creates a REST quote source.
func NewPoller(apiKey, baseURL string, timeout time.Duration) *Poller {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &Poller{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type fhQuote struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Current   float64 `json:"c"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // unix seconds
}

// Fetch returns the latest quote for symbol, or nil when the market
// reports no fresh data. Finnhub answers unknown symbols with an
// all-zero quote, which maps to ErrUnknownSymbol.
func (p *Poller) Fetch(ctx context.Context, symbol string) (*models.Tick, error) {
	var q fhQuote
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/quote",
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"token":  {p.apiKey},
		},
	}, &q)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}

	if q.Timestamp == 0 && q.Current == 0 {
		return nil, fmt.Errorf("%w: %s", drepo.ErrUnknownSymbol, symbol)
	}
	if q.Current == 0 {
		return nil, nil // market closed, nothing new
	}

	return &models.Tick{
		Symbol:    symbol,
		Timestamp: time.Unix(q.Timestamp, 0).UTC(),
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		Close:     q.Current,
		Volume:    q.Volume,
	}, nil
}
