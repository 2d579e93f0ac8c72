package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Chain settings
	RPCUrl       string
	ChainID      int64
	PollInterval time.Duration

	// Contract addresses (hex)
	OrderbookAddr      string
	CreditTokenAddr    string
	USDCAddr           string
	WrapperFactoryAddr string
	AMMFactoryAddr     string
	AMMRouterAddr      string

	// Operator wallet (hex private key, no 0x prefix required)
	OperatorPrivateKey string

	// Order book scan
	OrderScanWindow      int
	OrderScanConcurrency int

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// AI settings
	GroqAPIKey string
	GroqModel  string

	// Tx settings
	ConfirmTimeout time.Duration
	GasLimitCap    uint64
}

func Load() *Config {
	return &Config{
		// Chain
		RPCUrl:       getEnv("EVM_RPC_URL", "https://rpc.sepolia.mantle.xyz"),
		ChainID:      int64(getIntEnv("CHAIN_ID", 5003)),
		PollInterval: getDurationEnv("POLL_INTERVAL", 15*time.Second),

		// Contracts
		OrderbookAddr:      getEnv("ORDERBOOK_ADDR", ""),
		CreditTokenAddr:    getEnv("CREDIT_TOKEN_ADDR", ""),
		USDCAddr:           getEnv("USDC_ADDR", ""),
		WrapperFactoryAddr: getEnv("WRAPPER_FACTORY_ADDR", ""),
		AMMFactoryAddr:     getEnv("AMM_FACTORY_ADDR", ""),
		AMMRouterAddr:      getEnv("AMM_ROUTER_ADDR", ""),

		// Wallet
		OperatorPrivateKey: getEnv("OPERATOR_PRIVATE_KEY", ""),

		// Order scan
		OrderScanWindow:      getIntEnv("ORDER_SCAN_WINDOW", 500),
		OrderScanConcurrency: getIntEnv("ORDER_SCAN_CONCURRENCY", 16),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "greendex"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// AI
		GroqAPIKey: getEnv("GROQ_API_KEY", ""),
		GroqModel:  getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),

		// Tx
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", 90*time.Second),
		GasLimitCap:    uint64(getIntEnv("GAS_LIMIT_CAP", 5_000_000)),
	}
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("EVM_RPC_URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}
	if c.OrderScanWindow < 1 {
		return fmt.Errorf("ORDER_SCAN_WINDOW must be at least 1, got %d", c.OrderScanWindow)
	}
	if c.OrderScanConcurrency < 1 {
		return fmt.Errorf("ORDER_SCAN_CONCURRENCY must be at least 1, got %d", c.OrderScanConcurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
