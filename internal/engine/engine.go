// Package engine is the Engine Facade: it wires the Event Manager,
// Broker, Portfolio Manager, Performance Tracker, and an optional
// strategy into a single runnable simulation, registering each in a
// Service Locator so cooperating services can find one another.
package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/nordlight/backtester/internal/broker"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/commission"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/locator"
	"github.com/nordlight/backtester/internal/market"
	"github.com/nordlight/backtester/internal/observability"
	"github.com/nordlight/backtester/internal/performance"
	"github.com/nordlight/backtester/internal/portfolio"
	"github.com/nordlight/backtester/internal/priceticker"
	"github.com/nordlight/backtester/internal/pricing"
	"github.com/nordlight/backtester/internal/telemetry"
)

// Service Locator registration names, used by any component that needs to
// look up a peer it was not constructed with.
const (
	ServiceKernel    = "kernel"
	ServiceBroker    = "broker"
	ServicePortfolio = "portfolio"
	ServiceTracker   = "tracker"
	ServicePrices    = "prices"
)

// Strategy wires a trading strategy against the engine's kernel,
// portfolio, and broker. Both strategy.Strategy.Register (method value)
// and a closure around js.Strategy.Register satisfy this signature.
type Strategy func(k *kernel.Kernel, p *portfolio.Portfolio, br *broker.Broker)

type config struct {
	cal            calendar.Calendar
	commission     commission.Model
	executionDelay time.Duration
	limiter        *rate.Limiter
	logger         observability.Logger
	idGen          event.IDGenerator
	strategy       Strategy
	tickerURL      string
	tickerOpts     []priceticker.Option
	metrics        *telemetry.Recorder
}

// Option configures optional engine behavior, composing the ambient and
// domain stack without changing New's core signature.
type Option func(*config)

// WithCalendar overrides the default XNYS exchange calendar.
func WithCalendar(cal calendar.Calendar) Option {
	return func(c *config) { c.cal = cal }
}

// WithCommissionModel overrides the broker's default NoCommission model.
func WithCommissionModel(m commission.Model) Option {
	return func(c *config) { c.commission = m }
}

// WithExecutionDelay overrides the broker's default order-to-fill delay.
func WithExecutionDelay(d time.Duration) Option {
	return func(c *config) { c.executionDelay = d }
}

// WithRateLimiter caps broker order-submission throughput.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *config) { c.limiter = l }
}

// WithLogger overrides the default no-op logger for every wired service.
func WithLogger(l observability.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithIDGenerator overrides the default random UUID generator for every
// wired service. Swap in an event.CounterIDGenerator for bit-identical
// replay across runs.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(c *config) { c.idGen = gen }
}

// WithStrategy registers strategy against the kernel, portfolio, and
// broker once they are constructed.
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithPriceTicker starts an external PRICE_CHANGE adapter against url
// alongside the kernel's dispatch loop. The ticker is configured only by
// opts: it does not share the engine's ID generator or logger, and it
// uses a dead-letter queue only if opts supply one.
func WithPriceTicker(url string, opts ...priceticker.Option) Option {
	return func(c *config) { c.tickerURL = url; c.tickerOpts = opts }
}

// WithMetrics attaches rec to the kernel: every event type the engine
// dispatches is counted, clock advances are recorded, and rec's queue
// depth gauge is wired to the kernel's own pending-queue length.
func WithMetrics(rec *telemetry.Recorder) Option {
	return func(c *config) { c.metrics = rec }
}

// Engine is the assembled simulation: a kernel bound to a market-event
// generator for [start, end), a broker, a portfolio manager, and a
// performance tracker, all registered in a Service Locator.
type Engine struct {
	Locator *locator.Locator

	Kernel    *kernel.Kernel
	Broker    *broker.Broker
	Portfolio *portfolio.Manager
	Tracker   *performance.Tracker

	start, end time.Time
	ticker     *priceticker.Ticker
}

// New wires the Event Manager, Broker, Portfolio Manager, Performance
// Tracker, and (if configured via WithStrategy) a Strategy over
// [start, end), sourcing prices from source and seeding the portfolio
// with capitalBase cash. Every component is registered in the returned
// Engine's Service Locator under the Service* name constants.
func New(start, end time.Time, source pricing.DataSource, capitalBase float64, opts ...Option) *Engine {
	cfg := config{
		cal:            calendar.XNYS(),
		commission:     commission.NoCommission{},
		executionDelay: 0,
		logger:         observability.Log(),
		idGen:          event.RandomIDGenerator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	loc := locator.New()

	k := kernel.New(start, kernel.WithIDGenerator(cfg.idGen), kernel.WithLogger(cfg.logger))
	k.SetMarketSource(boundedMarketSource(market.New(cfg.cal), end))
	loc.Register(ServiceKernel, k)

	view := pricing.NewView(source, cfg.cal)
	loc.Register(ServicePrices, view)

	brokerOpts := []broker.Option{
		broker.WithCommissionModel(cfg.commission),
		broker.WithIDGenerator(cfg.idGen),
		broker.WithLogger(cfg.logger),
	}
	if cfg.executionDelay > 0 {
		brokerOpts = append(brokerOpts, broker.WithExecutionDelay(cfg.executionDelay))
	}
	if cfg.limiter != nil {
		brokerOpts = append(brokerOpts, broker.WithRateLimiter(cfg.limiter))
	}
	br := broker.New(k, cfg.cal, view, brokerOpts...)
	loc.Register(ServiceBroker, br)

	pm := portfolio.NewManager(k, view, capitalBase,
		portfolio.WithIDGenerator(cfg.idGen),
		portfolio.WithLogger(cfg.logger))
	loc.Register(ServicePortfolio, pm)

	tracker := performance.New(k, pm.Portfolio())
	loc.Register(ServiceTracker, tracker)

	if cfg.strategy != nil {
		cfg.strategy(k, pm.Portfolio(), br)
	}

	if cfg.metrics != nil {
		cfg.metrics.Attach(k, []event.Type{
			event.PreMarketOpen, event.MarketOpen, event.MarketClose, event.PostMarketClose,
			event.OrderPlaced, event.OrderFulfilled, event.PortfolioUpdate, event.PriceChange,
		})
		cfg.metrics.SetQueueDepthProvider(func() int64 { return int64(k.QueueDepth()) })
	}

	e := &Engine{
		Locator:   loc,
		Kernel:    k,
		Broker:    br,
		Portfolio: pm,
		Tracker:   tracker,
		start:     start,
		end:       end,
	}

	if cfg.tickerURL != "" {
		e.ticker = priceticker.New(cfg.tickerURL, k, cfg.tickerOpts...)
	}

	return e
}

// Run iterates the kernel to exhaustion: the heap drains and no market
// event remains before end. If a price ticker is configured it runs
// alongside the kernel loop for the duration of Run, stopping when Run
// returns.
func (e *Engine) Run(ctx context.Context) error {
	if e.ticker != nil {
		tickerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			_ = e.ticker.Run(tickerCtx)
		}()
	}
	return e.Kernel.Run(ctx)
}

// StepUntil iterates the kernel until an event of kind is dispatched
// (returning it) or the simulation is exhausted first (returning nil,
// nil).
func (e *Engine) StepUntil(ctx context.Context, kind event.Type) (*event.Event, error) {
	return e.Kernel.StepUntil(ctx, kind)
}

// boundedMarketSource adapts a market.Generator into a kernel.MarketPullFunc
// that stops supplying boundaries once the next one would fall at or past
// end, satisfying the cancellation rule: the loop terminates when the heap
// is empty and the next market event's time exceeds end_time.
func boundedMarketSource(gen *market.Generator, end time.Time) kernel.MarketPullFunc {
	return func(t time.Time) (event.Type, time.Time) {
		next := gen.Next(t)
		if !next.Time.Before(end) {
			return "", time.Time{}
		}
		return next.Type, next.Time
	}
}
