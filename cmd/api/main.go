package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/ai"
	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/cache"
	"github.com/greendex-labs/greendex-gateway/internal/config"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/engine"
	"github.com/greendex-labs/greendex-gateway/internal/flags"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/server"
	"github.com/greendex-labs/greendex-gateway/internal/stream"
	"github.com/greendex-labs/greendex-gateway/internal/wallet"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the gateway API server
// It initializes all dependencies and starts the HTTP server with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client for caching and feature flags
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0, // Use default database for main application
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	// Initialize trade cache for recent trades and price data
	tradeCache := cache.NewRedisCacheFromClient(rclient, logger)

	// Initialize feature flags store for runtime configuration
	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	// Operator wallet refuses to start against the wrong network
	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:       cfg.RPCUrl,
		ChainID:      cfg.ChainID,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PrivateKey:   cfg.OperatorPrivateKey,
		GasLimitCap:  cfg.GasLimitCap,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create operator wallet")
	}
	if err := w.VerifyChainID(ctx); err != nil {
		logger.WithError(err).Fatal("chain id verification failed")
	}

	book, err := contracts.ParseAddressBook(
		cfg.OrderbookAddr, cfg.CreditTokenAddr, cfg.USDCAddr,
		cfg.WrapperFactoryAddr, cfg.AMMFactoryAddr, cfg.AMMRouterAddr,
	)
	if err != nil {
		logger.WithError(err).Fatal("invalid contract addresses")
	}

	ammSvc := amm.NewService(book, w.RPC(), logger)
	scanner := orderbook.NewScanner(
		orderbook.NewChainReader(book, w.RPC()),
		cfg.OrderScanWindow, cfg.OrderScanConcurrency, logger,
	)

	// The poller doubles as the engine's post-transaction refresher; the API
	// never starts its periodic loop, the indexer service owns that.
	refresher := stream.NewPoller(stream.PollerConfig{
		AMM:          ammSvc,
		Scanner:      scanner,
		RPC:          w.RPC(),
		Book:         book,
		Cache:        tradeCache,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	eng := engine.NewEngine(engine.Deps{
		Backend:   engine.NewWalletBackend(w, cfg.ConfirmTimeout),
		Book:      book,
		AMM:       ammSvc,
		Orders:    orderbook.NewChainReader(book, w.RPC()),
		Logger:    logger,
		Refresher: refresher,
	})

	// Initialize AI agent for natural language queries (optional)
	var agent *ai.Agent
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		GroqAPIKey:         cfg.GroqAPIKey,
		Model:              cfg.GroqModel,
		Logger:             logger,
	}

	// Only initialize AI if a Groq API key is provided
	if cfg.GroqAPIKey != "" {
		a, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			agent = a.WithTools(
				ai.OrderBookTool(scanner),
				ai.PoolsTool(ammSvc),
				ai.RecentTradesTool(tradeCache),
			)
			defer func() {
				_ = agent.Close() // Clean up AI resources on shutdown
			}()
		}
	}

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Cache:        tradeCache,
		Flags:        flagStore,
		AI:           agent, // Optional AI agent (can be nil)
		AIBaseConfig: aiBase,
		Engine:       eng,
		AMM:          ammSvc,
		Scanner:      scanner,
		Book:         book,
		RPC:          w.RPC(),
		ChainID:      cfg.ChainID,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop ongoing operations
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithFields(logrus.Fields{
		"addr":     cfg.APIAddr,
		"chain_id": cfg.ChainID,
		"operator": w.Address().Hex(),
	}).Info("gateway api starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
