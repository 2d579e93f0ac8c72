package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/storage"
	"github.com/greendex-labs/greendex-gateway/internal/units"
)

// Tool is one live data source the agent can pull into its answer context
type Tool struct {
	Name        string
	Description string
	Fetch       func(ctx context.Context) (string, error)
}

// OrderBookTool snapshots the open order book
func OrderBookTool(scanner *orderbook.Scanner) Tool {
	return Tool{
		Name:        "order_book",
		Description: "Current open buy and sell orders: id, token id, price in USD, amount, remaining.",
		Fetch: func(ctx context.Context) (string, error) {
			book, err := scanner.Scan(ctx)
			if err != nil {
				return "", err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Open buy orders: %d, open sell orders: %d, completed in window: %d\n",
				len(book.Buys), len(book.Sells), len(book.Completed))
			for _, o := range limitOrders(book.Buys, 10) {
				fmt.Fprintf(&b, "BUY  #%d token=%s price=%s USD amount=%s remaining=%s\n",
					o.ID, o.TokenID, units.FromBaseUnits(o.Price, units.USDDecimals), o.Amount, o.Remaining())
			}
			for _, o := range limitOrders(book.Sells, 10) {
				fmt.Fprintf(&b, "SELL #%d token=%s price=%s USD amount=%s remaining=%s\n",
					o.ID, o.TokenID, units.FromBaseUnits(o.Price, units.USDDecimals), o.Amount, o.Remaining())
			}
			return b.String(), nil
		},
	}
}

func limitOrders(orders []*orderbook.Order, n int) []*orderbook.Order {
	if len(orders) > n {
		return orders[:n]
	}
	return orders
}

// PoolsTool snapshots AMM pools and reserves
func PoolsTool(svc *amm.Service) Tool {
	return Tool{
		Name:        "amm_pools",
		Description: "Liquidity pools with their token addresses and current reserves.",
		Fetch: func(ctx context.Context) (string, error) {
			pools, err := svc.ListPools(ctx)
			if err != nil {
				return "", err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Pools: %d\n", len(pools))
			for _, p := range pools {
				fmt.Fprintf(&b, "pool=%s token0=%s reserve0=%s token1=%s reserve1=%s\n",
					p.Address.Hex(), p.Token0.Hex(), p.Reserve0, p.Token1.Hex(), p.Reserve1)
			}
			return b.String(), nil
		},
	}
}

// RecentTradesTool reads the Redis recent-trade cache
func RecentTradesTool(cache storage.TradeCache) Tool {
	return Tool{
		Name:        "recent_trades",
		Description: "The most recent trades observed on the exchange (AMM swaps and order fills).",
		Fetch: func(ctx context.Context) (string, error) {
			trades, err := cache.GetRecentTrades(ctx, 20)
			if err != nil {
				return "", err
			}
			data, err := json.Marshal(trades)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// TradeHistoryTool aggregates 24h trade statistics from ClickHouse
func TradeHistoryTool(db *sql.DB) Tool {
	return Tool{
		Name:        "trade_history",
		Description: "24-hour aggregate trade statistics per pair: trade count, volume, last price.",
		Fetch: func(ctx context.Context) (string, error) {
			rows, err := db.QueryContext(ctx, `
				SELECT pair, count() AS trades, sum(amount_in) AS volume_in, argMax(price, timestamp) AS last_price
				FROM trades
				WHERE timestamp >= now() - INTERVAL 24 HOUR
				GROUP BY pair
				ORDER BY trades DESC
				LIMIT 20`)
			if err != nil {
				return "", fmt.Errorf("query trade history: %w", err)
			}
			defer rows.Close()

			var b strings.Builder
			b.WriteString("24h trade statistics per pair:\n")
			for rows.Next() {
				var pair string
				var trades uint64
				var volumeIn, lastPrice float64
				if err := rows.Scan(&pair, &trades, &volumeIn, &lastPrice); err != nil {
					return "", fmt.Errorf("scan trade history: %w", err)
				}
				fmt.Fprintf(&b, "pair=%s trades=%d volume_in=%.4f last_price=%.6f\n", pair, trades, volumeIn, lastPrice)
			}
			if err := rows.Err(); err != nil {
				return "", err
			}
			return b.String(), nil
		},
	}
}
