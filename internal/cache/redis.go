package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/models"
)

const (
	recentTradesKey = "trades:recent"
	recentTradesCap = 500
	pricePrefix     = "price:"
	tradesChannel   = "trades:all"
)

// RedisCache keeps the hot read path (recent trades, spot prices) and the
// trade pub/sub feed in Redis
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

func NewRedisCache(ctx context.Context, addr string, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, logger), nil
}

// AddRecentTrade pushes a trade onto the capped recent list
func (r *RedisCache) AddRecentTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentTradesKey, data)
	pipe.LTrim(ctx, recentTradesKey, 0, recentTradesCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent trade: %w", err)
	}
	return nil
}

// GetRecentTrades returns up to limit most recent trades, newest first
func (r *RedisCache) GetRecentTrades(ctx context.Context, limit int64) ([]*models.TradeEvent, error) {
	if limit < 1 {
		limit = 1
	}
	vals, err := r.client.LRange(ctx, recentTradesKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent trades: %w", err)
	}

	out := make([]*models.TradeEvent, 0, len(vals))
	for _, v := range vals {
		var trade models.TradeEvent
		if err := json.Unmarshal([]byte(v), &trade); err != nil {
			r.logger.WithError(err).Warn("dropping malformed cached trade")
			continue
		}
		out = append(out, &trade)
	}
	return out, nil
}

// UpdatePrice stores the latest derived price for a token symbol
func (r *RedisCache) UpdatePrice(ctx context.Context, token string, price float64) error {
	if err := r.client.Set(ctx, pricePrefix+token, strconv.FormatFloat(price, 'f', -1, 64), 0).Err(); err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	return nil
}

// GetPrice returns the cached price, or 0 when the token is unknown
func (r *RedisCache) GetPrice(ctx context.Context, token string) (float64, error) {
	val, err := r.client.Get(ctx, pricePrefix+token).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached price: %w", err)
	}
	return price, nil
}

// PublishTrade fans a trade out to the global channel and a pair channel
func (r *RedisCache) PublishTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Publish(ctx, tradesChannel, data)
	pipe.Publish(ctx, fmt.Sprintf("trades:pair:%s", trade.Pair), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

// SubscribeTrades streams trade events until the context is cancelled
func (r *RedisCache) SubscribeTrades(ctx context.Context) (<-chan *models.TradeEvent, error) {
	pubsub := r.client.Subscribe(ctx, tradesChannel)

	// Confirm the subscription before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe trades: %w", err)
	}

	out := make(chan *models.TradeEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var trade models.TradeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &trade); err != nil {
					r.logger.WithError(err).Warn("dropping malformed trade message")
					continue
				}
				select {
				case out <- &trade:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
