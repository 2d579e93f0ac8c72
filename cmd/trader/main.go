package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/config"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/engine"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/units"
	"github.com/greendex-labs/greendex-gateway/internal/wallet"
)

const usage = `usage: trader <command> [flags]

commands:
  quote           price a swap without executing it
  swap            swap tokens through a liquidity pool
  place-order     post an order book entry
  fill-order      fill an open order
  cancel-order    cancel one of the operator's orders
  wrap            wrap credits into their ERC-20 wrapper
  unwrap          unwrap wrapper tokens back into credits
  create-wrapper  deploy a wrapper for a credit token id
  faucet          claim test USD from the faucet
`

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

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

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
	eng := engine.NewEngine(engine.Deps{
		Backend: engine.NewWalletBackend(w, cfg.ConfirmTimeout),
		Book:    book,
		AMM:     ammSvc,
		Orders:  orderbook.NewChainReader(book, w.RPC()),
		Logger:  logger,
	})

	cli := &cli{engine: eng, amm: ammSvc, book: book, logger: logger}

	var out any
	switch cmd := os.Args[1]; cmd {
	case "quote":
		out, err = cli.quote(ctx, os.Args[2:])
	case "swap":
		out, err = cli.swap(ctx, os.Args[2:])
	case "place-order":
		out, err = cli.placeOrder(ctx, os.Args[2:])
	case "fill-order":
		out, err = cli.fillOrder(ctx, os.Args[2:])
	case "cancel-order":
		out, err = cli.cancelOrder(ctx, os.Args[2:])
	case "wrap":
		out, err = cli.wrap(ctx, os.Args[2:])
	case "unwrap":
		out, err = cli.unwrap(ctx, os.Args[2:])
	case "create-wrapper":
		out, err = cli.createWrapper(ctx, os.Args[2:])
	case "faucet":
		out, err = cli.engine.ClaimFaucet(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).Fatal("command failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

type cli struct {
	engine *engine.Engine
	amm    *amm.Service
	book   *contracts.AddressBook
	logger *logrus.Logger
}

func (c *cli) decimalsFor(token common.Address) int32 {
	if token == c.book.USDC {
		return units.USDDecimals
	}
	return units.WrappedDecimals
}

func (c *cli) quote(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	tokenIn := fs.String("in", "", "input token address")
	tokenOut := fs.String("out", "", "output token address")
	amount := fs.String("amount", "", "input amount, human decimal")
	slippage := fs.Uint("slippage-bps", 50, "slippage tolerance in basis points")
	_ = fs.Parse(args)

	in, out := common.HexToAddress(*tokenIn), common.HexToAddress(*tokenOut)
	amountIn, err := units.ToBaseUnits(*amount, c.decimalsFor(in))
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return c.amm.GetQuote(ctx, in, out, amountIn, uint16(*slippage))
}

func (c *cli) swap(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("swap", flag.ExitOnError)
	tokenIn := fs.String("in", "", "input token address")
	tokenOut := fs.String("out", "", "output token address")
	amount := fs.String("amount", "", "input amount, human decimal")
	slippage := fs.Uint("slippage-bps", 50, "slippage tolerance in basis points")
	_ = fs.Parse(args)

	in, out := common.HexToAddress(*tokenIn), common.HexToAddress(*tokenOut)
	amountIn, err := units.ToBaseUnits(*amount, c.decimalsFor(in))
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return c.engine.Swap(ctx, in, out, amountIn, uint16(*slippage))
}

func (c *cli) placeOrder(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("place-order", flag.ExitOnError)
	tokenID := fs.Int64("token", 1, "credit token id")
	buy := fs.Bool("buy", false, "place a buy order (default sell)")
	price := fs.String("price", "", "price per credit in USD")
	amount := fs.Int64("amount", 0, "whole credit units")
	expiration := fs.Int64("expiration", 0, "unix expiration, 0 = never")
	_ = fs.Parse(args)

	p, err := units.ToBaseUnits(*price, units.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	return c.engine.PlaceOrder(ctx, engine.PlaceOrderParams{
		TokenID:    big.NewInt(*tokenID),
		IsBuy:      *buy,
		Price:      p,
		Amount:     big.NewInt(*amount),
		Expiration: big.NewInt(*expiration),
	})
}

func (c *cli) fillOrder(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("fill-order", flag.ExitOnError)
	id := fs.Uint64("id", 0, "order id")
	amount := fs.Int64("amount", 0, "whole credit units to fill")
	_ = fs.Parse(args)

	return c.engine.FillOrder(ctx, *id, big.NewInt(*amount))
}

func (c *cli) cancelOrder(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("cancel-order", flag.ExitOnError)
	id := fs.Uint64("id", 0, "order id")
	_ = fs.Parse(args)

	return c.engine.CancelOrder(ctx, *id)
}

func (c *cli) wrap(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("wrap", flag.ExitOnError)
	tokenID := fs.Int64("token", 1, "credit token id")
	amount := fs.Int64("amount", 0, "whole credit units")
	_ = fs.Parse(args)

	return c.engine.Wrap(ctx, big.NewInt(*tokenID), big.NewInt(*amount))
}

func (c *cli) unwrap(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("unwrap", flag.ExitOnError)
	tokenID := fs.Int64("token", 1, "credit token id")
	amount := fs.String("amount", "", "wrapper amount, human decimal")
	_ = fs.Parse(args)

	a, err := units.ToBaseUnits(*amount, units.WrappedDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return c.engine.Unwrap(ctx, big.NewInt(*tokenID), a)
}

func (c *cli) createWrapper(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("create-wrapper", flag.ExitOnError)
	tokenID := fs.Int64("token", 1, "credit token id")
	name := fs.String("name", "", "wrapper token name")
	symbol := fs.String("symbol", "", "wrapper token symbol")
	_ = fs.Parse(args)

	return c.engine.CreateWrapper(ctx, big.NewInt(*tokenID), *name, *symbol)
}
