package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
)

// Refresher is notified after a confirmed write so cached chain state can be
// invalidated and re-fetched
type Refresher interface {
	Refresh(ctx context.Context)
}

// Engine orchestrates approve-then-act transaction flows against the
// exchange contracts. Phases within one operation run strictly in order;
// independent operations are unrelated.
type Engine struct {
	backend Backend
	book    *contracts.AddressBook
	amm     *amm.Service
	orders  orderbook.Reader
	guard   *actionGuard
	logger  *logrus.Logger

	refresher Refresher // optional
}

// Deps bundles the engine's collaborators
type Deps struct {
	Backend   Backend
	Book      *contracts.AddressBook
	AMM       *amm.Service
	Orders    orderbook.Reader
	Refresher Refresher
	Logger    *logrus.Logger
}

func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		backend:   deps.Backend,
		book:      deps.Book,
		amm:       deps.AMM,
		orders:    deps.Orders,
		guard:     newActionGuard(),
		logger:    logger,
		refresher: deps.Refresher,
	}
}

// refresh triggers cache invalidation after a confirmed write. Best effort:
// stale caches self-heal on the next poll.
func (e *Engine) refresh(ctx context.Context) {
	if e.refresher != nil {
		e.refresher.Refresh(ctx)
	}
}
