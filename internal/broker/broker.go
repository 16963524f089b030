// Package broker implements order placement and execution: the
// ORDER_PLACED / ORDER_FULFILLED half of the simulator's event taxonomy.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/commission"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/observability"
	"github.com/nordlight/backtester/internal/pricing"
)

// defaultExecutionDelay matches the source system's default: a small,
// fixed delay between an order's placement and its fulfillment, modeling
// exchange-side processing latency.
const defaultExecutionDelay = 3 * time.Millisecond

type config struct {
	executionDelay time.Duration
	commission     commission.Model
	limiter        *rate.Limiter
	idGen          event.IDGenerator
	logger         observability.Logger
}

// Option configures optional broker behavior.
type Option func(*config)

// WithExecutionDelay overrides the default 3ms execution delay.
func WithExecutionDelay(d time.Duration) Option {
	return func(c *config) { c.executionDelay = d }
}

// WithCommissionModel overrides the default NoCommission model.
func WithCommissionModel(m commission.Model) Option {
	return func(c *config) { c.commission = m }
}

// WithRateLimiter bounds order submission throughput. nil (the default)
// means unlimited.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *config) { c.limiter = l }
}

// WithIDGenerator overrides the default random UUID generator.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(c *config) { c.idGen = gen }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l observability.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Broker places orders and settles them against the Prices View,
// subscribing to ORDER_PLACED on the kernel it is attached to and
// emitting ORDER_FULFILLED after the configured execution delay.
type Broker struct {
	k      *kernel.Kernel
	cal    calendar.Calendar
	prices *pricing.View

	executionDelay time.Duration
	commission     commission.Model
	limiter        *rate.Limiter
	idGen          event.IDGenerator
	logger         observability.Logger

	mu     sync.Mutex
	orders map[uuid.UUID]event.Order
}

// New constructs a Broker and subscribes it to k's ORDER_PLACED events.
func New(k *kernel.Kernel, cal calendar.Calendar, prices *pricing.View, opts ...Option) *Broker {
	cfg := config{
		executionDelay: defaultExecutionDelay,
		commission:     commission.NoCommission{},
		idGen:          event.RandomIDGenerator{},
		logger:         observability.Log(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Broker{
		k:              k,
		cal:            cal,
		prices:         prices,
		executionDelay: cfg.executionDelay,
		commission:     cfg.commission,
		limiter:        cfg.limiter,
		idGen:          cfg.idGen,
		logger:         cfg.logger,
		orders:         make(map[uuid.UUID]event.Order),
	}
	k.Subscribe(event.OrderPlaced, b.executeTrade)
	return b
}

// Order returns the current state of the order with the given ID and
// whether it is known to this broker. Status reflects the OPEN -> FILLED
// transition executeTrade applies at fulfillment.
func (b *Broker) Order(id uuid.UUID) (event.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	return o, ok
}

// PlaceOrder submits amount shares of asset (negative for a sell). Orders
// placed outside a trading session are shifted to the next session's
// open: order.PlacedAt and the ORDER_PLACED event both land there, so the
// order never attempts to trade against a price that doesn't exist yet.
func (b *Broker) PlaceOrder(asset event.Asset, amount int) (event.Order, error) {
	if amount == 0 {
		return event.Order{}, errs.New("broker", errs.KindInvalidOrder,
			errs.WithMessage("order amount must be non-zero"))
	}
	if b.limiter != nil && !b.limiter.Allow() {
		return event.Order{}, errs.New("broker", errs.KindRateLimited,
			errs.WithMessage("order submission rate limit exceeded"))
	}

	now := b.k.Now()
	placedAt := now
	if !b.cal.IsTradingMinute(now) {
		placedAt = b.cal.NextOpen(now)
	}

	order := event.Order{
		ID:       b.idGen.NewID(),
		Asset:    asset,
		Amount:   amount,
		PlacedAt: placedAt,
		Status:   event.OrderOpen,
	}
	b.mu.Lock()
	b.orders[order.ID] = order
	b.mu.Unlock()

	b.logger.WithSimTime(now).Debug("broker: placing order",
		observability.F("symbol", asset.Symbol), observability.F("amount", amount))

	evt := event.New(b.idGen, event.OrderPlaced, event.OrderPlacedPayload{Order: order})
	b.k.Schedule(evt, placedAt)
	return order, nil
}

func (b *Broker) executeTrade(_ context.Context, evt *event.Event) error {
	payload, ok := evt.Payload.(event.OrderPlacedPayload)
	if !ok {
		return errs.New("broker", errs.KindInvalidOrder,
			errs.WithMessage("ORDER_PLACED event carried an unexpected payload type"))
	}
	order := payload.Order
	now := b.k.Now()

	price, err := b.prices.CurrentPrice(order.Asset.Symbol, now)
	if err != nil {
		return errs.New("broker", errs.KindPriceUnavailable,
			errs.WithMessage("execute trade for "+order.Asset.Symbol), errs.WithCause(err))
	}

	fulfilledAt := now.Add(b.executionDelay)
	txn := event.Transaction{
		OrderID: order.ID,
		Asset:   order.Asset,
		Amount:  order.Amount,
		Dt:      fulfilledAt,
		Price:   price,
	}
	txn.Commission = b.commission.Calculate(order, txn)

	b.mu.Lock()
	if stored, ok := b.orders[order.ID]; ok {
		stored.Status = event.OrderFilled
		stored.Filled = order.Amount
		b.orders[order.ID] = stored
	}
	b.mu.Unlock()

	b.logger.WithSimTime(now).Debug("broker: executed trade",
		observability.F("symbol", order.Asset.Symbol), observability.F("price", price), observability.F("commission", txn.Commission))

	fulfilled := event.New(b.idGen, event.OrderFulfilled, event.TransactionPayload{Transaction: txn})
	b.k.Schedule(fulfilled, fulfilledAt)
	return nil
}
