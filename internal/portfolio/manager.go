package portfolio

import (
	"context"
	"sort"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/observability"
	"github.com/nordlight/backtester/internal/pricing"
)

// Manager is the locatable service that keeps a Portfolio in sync with
// the event stream: it subscribes to ORDER_FULFILLED to record fills and
// to PRICE_CHANGE to re-mark open positions, and publishes
// PORTFOLIO_UPDATE after each mutation.
type Manager struct {
	portfolio *Portfolio
	prices    *pricing.View
	k         *kernel.Kernel
	idGen     event.IDGenerator
	logger    observability.Logger
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithIDGenerator overrides the default random UUID generator used for
// PORTFOLIO_UPDATE events.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(m *Manager) { m.idGen = gen }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l observability.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager constructs a Manager and subscribes it to k.
func NewManager(k *kernel.Kernel, prices *pricing.View, capitalBase float64, opts ...Option) *Manager {
	m := &Manager{
		portfolio: New(capitalBase),
		prices:    prices,
		k:         k,
		idGen:     event.RandomIDGenerator{},
		logger:    observability.Log(),
	}
	for _, opt := range opts {
		opt(m)
	}
	k.Subscribe(event.OrderFulfilled, m.onFulfilled)
	k.Subscribe(event.PriceChange, m.onPriceChange)
	return m
}

// Portfolio returns the underlying read-only portfolio view.
func (m *Manager) Portfolio() *Portfolio { return m.portfolio }

func (m *Manager) onFulfilled(_ context.Context, evt *event.Event) error {
	payload, ok := evt.Payload.(event.TransactionPayload)
	if !ok {
		return nil
	}
	txn := payload.Transaction
	m.portfolio.ApplyTransaction(txn.Asset.Symbol, txn.Dt, txn.Amount, txn.Price, txn.Commission)
	m.logger.WithSimTime(m.k.Now()).Debug("portfolio: applied transaction",
		observability.F("symbol", txn.Asset.Symbol), observability.F("amount", txn.Amount))
	return m.refreshAndPublish()
}

func (m *Manager) onPriceChange(_ context.Context, _ *event.Event) error {
	if len(m.portfolio.Positions()) == 0 {
		return nil
	}
	return m.refreshAndPublish()
}

func (m *Manager) refreshAndPublish() error {
	positions := m.portfolio.Positions()
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	if len(symbols) > 0 {
		prices, err := m.prices.CurrentPrices(symbols, m.k.Now())
		if err != nil {
			return err
		}
		m.portfolio.SetCurrentPrices(prices)
	}

	update := event.New(m.idGen, event.PortfolioUpdate, nil)
	m.k.Schedule(update, m.k.Now())
	return nil
}
