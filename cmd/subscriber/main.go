package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/cache"
)

// Example consumer of the real-time trade feed. Listens on the trades
// pub/sub channel and logs each event as it arrives.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tradeCache, err := cache.NewRedisCache(ctx, redisAddr, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer tradeCache.Close()

	trades, err := tradeCache.SubscribeTrades(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe to trades")
	}

	logger.Info("subscriber running, waiting for trades")

	for {
		select {
		case <-sigCh:
			logger.Info("shutting down subscriber")
			return
		case trade, ok := <-trades:
			if !ok {
				logger.Info("trade channel closed")
				return
			}
			logger.WithFields(logrus.Fields{
				"pair":       trade.Pair,
				"venue":      trade.Venue,
				"amount_in":  trade.AmountIn,
				"token_in":   trade.TokenIn,
				"amount_out": trade.AmountOut,
				"token_out":  trade.TokenOut,
				"price":      trade.Price,
			}).Info("trade received")
		}
	}
}
