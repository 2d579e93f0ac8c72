package models

import "time"

// TradeEvent is one observed exchange event: an AMM swap or an order fill.
// Amounts are human-readable decimals derived from base units at publish time.
type TradeEvent struct {
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"pair"`
	TokenIn   string    `json:"token_in"`
	TokenOut  string    `json:"token_out"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	Price     float64   `json:"price"`
	Pool      string    `json:"pool"`
	Venue     string    `json:"venue"` // "amm" or "orderbook"
}
