package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK      bool  `json:"ok"`       // Service health status
	ChainID int64 `json:"chain_id"` // Configured chain id
}

// PriceResponse represents token price information
type PriceResponse struct {
	Token string  `json:"token"` // Token symbol (uppercase)
	Price float64 `json:"price"` // Current price
}

// BalancesResponse reports holdings of one address across the exchange tokens
type BalancesResponse struct {
	Address string `json:"address"`
	Native  string `json:"native"`  // gas token, 18-dec display
	USD     string `json:"usd"`     // mock USDC, 6-dec display
	TokenID string `json:"token_id"`
	Credits string `json:"credits"` // raw ERC-1155 units for token_id
	Wrapped string `json:"wrapped"` // wrapper balance, 18-dec display ("0" when no wrapper)
}

// WrapperInfo describes one deployed credit wrapper
type WrapperInfo struct {
	Address string `json:"address"`
	TokenID string `json:"token_id"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// SwapRequest executes a pool swap through the operator wallet
type SwapRequest struct {
	TokenIn     string `json:"token_in"`     // token address
	TokenOut    string `json:"token_out"`    // token address
	AmountIn    string `json:"amount_in"`    // human decimal amount of token_in
	SlippageBps uint16 `json:"slippage_bps"` // default 50 (0.5%)
}

// LiquidityAddRequest supplies both sides of a pool
type LiquidityAddRequest struct {
	TokenA      string `json:"token_a"`
	TokenB      string `json:"token_b"`
	AmountA     string `json:"amount_a"`
	AmountB     string `json:"amount_b"`
	SlippageBps uint16 `json:"slippage_bps"`
}

// LiquidityRemoveRequest burns LP tokens
type LiquidityRemoveRequest struct {
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	Liquidity  string `json:"liquidity"`   // LP token base units
	AmountAMin string `json:"amount_a_min"` // base units, optional
	AmountBMin string `json:"amount_b_min"` // base units, optional
}

// PlaceOrderRequest posts an order book entry
type PlaceOrderRequest struct {
	TokenID    string `json:"token_id"`
	IsBuy      bool   `json:"is_buy"`
	Price      string `json:"price"`      // human USD per credit
	Amount     string `json:"amount"`     // whole credit units
	Expiration int64  `json:"expiration"` // unix seconds, 0 = never
}

// FillOrderRequest takes the other side of an order
type FillOrderRequest struct {
	Amount string `json:"amount"` // whole credit units
}

// CreateWrapperRequest deploys an ERC-20 wrapper for a credit token
type CreateWrapperRequest struct {
	TokenID string `json:"token_id"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// WrapRequest converts credits to wrapper tokens (and back for unwrap)
type WrapRequest struct {
	TokenID string `json:"token_id"`
	Amount  string `json:"amount"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about the exchange
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	Answer      string   `json:"answer"`        // Natural language answer
	HasRealData bool     `json:"has_real_data"` // Whether live exchange data backed the answer
	ToolsUsed   []string `json:"tools_used"`    // Data sources consulted
	Confidence  int      `json:"confidence"`    // 50-95 score
	TookMs      int64    `json:"took_ms"`       // Execution time in milliseconds
}
