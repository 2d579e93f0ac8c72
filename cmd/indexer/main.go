package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/cache"
	"github.com/greendex-labs/greendex-gateway/internal/config"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
	"github.com/greendex-labs/greendex-gateway/internal/models"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/stream"
)

// Indexer fans each observed trade out to the cache, the pub/sub channel,
// and historical storage
type Indexer struct {
	cache      *cache.RedisCache
	clickhouse *cache.ClickHouseStore
	logger     *logrus.Logger
}

func (idx *Indexer) ProcessTrade(ctx context.Context, trade *models.TradeEvent) {
	log := idx.logger.WithFields(logrus.Fields{
		"pair":  trade.Pair,
		"venue": trade.Venue,
	})

	// 1. Store in Redis cache
	if err := idx.cache.AddRecentTrade(ctx, trade); err != nil {
		log.WithError(err).Warn("redis cache error")
	}

	// 2. Publish to Redis Pub/Sub (real-time distribution)
	if err := idx.cache.PublishTrade(ctx, trade); err != nil {
		log.WithError(err).Warn("pub/sub error")
	}

	// 3. Store in ClickHouse (historical data)
	if idx.clickhouse != nil {
		if err := idx.clickhouse.InsertTrade(ctx, trade); err != nil {
			log.WithError(err).Error("clickhouse error")
			return
		}
	}

	log.Debug("trade processed")
}

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tradeCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer tradeCache.Close()

	// ClickHouse is optional; without it trades only live in Redis.
	var store *cache.ClickHouseStore
	if cfg.ClickHouseAddr != "" {
		store, err = cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer store.Close()
	}

	rpc := ethrpc.NewClient(ethrpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	book, err := contracts.ParseAddressBook(
		cfg.OrderbookAddr, cfg.CreditTokenAddr, cfg.USDCAddr,
		cfg.WrapperFactoryAddr, cfg.AMMFactoryAddr, cfg.AMMRouterAddr,
	)
	if err != nil {
		logger.WithError(err).Fatal("invalid contract addresses")
	}

	poller := stream.NewPoller(stream.PollerConfig{
		AMM: amm.NewService(book, rpc, logger),
		Scanner: orderbook.NewScanner(
			orderbook.NewChainReader(book, rpc),
			cfg.OrderScanWindow, cfg.OrderScanConcurrency, logger,
		),
		RPC:          rpc,
		Book:         book,
		Cache:        tradeCache,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	indexer := &Indexer{cache: tradeCache, clickhouse: store, logger: logger}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"interval":   cfg.PollInterval,
		"clickhouse": store != nil,
	}).Info("indexer starting")

	if err := poller.Start(ctx, func(trade *models.TradeEvent) {
		indexer.ProcessTrade(ctx, trade)
	}); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("poller stopped")
	}
}
