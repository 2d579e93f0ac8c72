package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = HTTPErrorHandler()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health) // Health check endpoint
	v1.POST("/echo", h.Echo)    // Echo endpoint for testing

	// Market reads
	v1.GET("/quote", h.Quote)                           // AMM swap quote
	v1.GET("/pools", h.Pools)                           // Pool list with reserves
	v1.GET("/orderbook", h.Orderbook)                   // Open order book
	v1.GET("/orderbook/completed", h.OrderbookCompleted) // Filled and cancelled orders
	v1.GET("/balances/:address", h.Balances)            // Holdings of one address
	v1.GET("/wrappers", h.Wrappers)                     // Deployed credit wrappers
	v1.GET("/faucet", h.Faucet)                         // Faucet state for the operator
	v1.GET("/trades/recent", h.RecentTrades)            // Recent trade events
	v1.GET("/prices/:token", h.Price)                   // Token price lookup

	// Operator transactions
	v1.POST("/swap", h.Swap)
	v1.POST("/liquidity/add", h.LiquidityAdd)
	v1.POST("/liquidity/remove", h.LiquidityRemove)
	v1.POST("/orders", h.PlaceOrder)
	v1.POST("/orders/:id/fill", h.FillOrder)
	v1.POST("/orders/:id/cancel", h.CancelOrder)
	v1.POST("/wrappers", h.CreateWrapper)
	v1.POST("/wrap", h.Wrap)
	v1.POST("/unwrap", h.Unwrap)
	v1.POST("/faucet/claim", h.FaucetClaim)

	// AI endpoints with rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/ask", h.AIAsk) // Natural language market questions

	// Feature flags CRUD endpoints
	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)           // List all flags
	flagGroup.POST("", h.FlagsUpsert)        // Create new flag
	flagGroup.GET("/:key", h.FlagsGet)       // Get specific flag
	flagGroup.PUT("/:key", h.FlagsUpdate)    // Update existing flag
	flagGroup.DELETE("/:key", h.FlagsDelete) // Delete flag

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
