package models

// Requests for the HTTP read API. Defined in domain for consistency and reuse.

type TicksRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=10000"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Kind   string `query:"kind" json:"kind" validate:"omitempty,oneof=PRICE_SPIKE VOLUME_SURGE VOLATILITY_BURST VWAP_DEVIATION"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=5000"`
}
