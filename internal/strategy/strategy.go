// Package strategy assembles a user-supplied trading function and its
// data bindings into a kernel subscriber, per the Strategy Harness
// contract: fetch each declared data view, assemble a context, and call the
// user function, which places orders through the context's broker.
package strategy

import (
	"context"
	"time"

	"github.com/nordlight/backtester/internal/broker"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/portfolio"
	"github.com/nordlight/backtester/internal/pricing"
)

// DataKind enumerates the data views a strategy may declare a binding
// for.
type DataKind int

const (
	// CurrentPrices is the current-price map for the builder's assets.
	CurrentPrices DataKind = iota
	// HistoricalPrices is a backward-looking window of bars.
	HistoricalPrices
)

// Context is passed to the user function on every invocation.
type Context struct {
	Portfolio *portfolio.Portfolio
	Time      time.Time
	EventKind event.Type
	Broker    *broker.Broker
}

// Data holds the fetched views for one invocation, keyed by DataKind.
type Data struct {
	Values map[DataKind]any
}

// Function is the user-supplied trading function. It returns nothing;
// orders are placed by calling ctx.Broker.PlaceOrder.
type Function func(ctx Context, data Data)

type dataSource func(t time.Time) (DataKind, any, error)

// Builder configures a Strategy by selecting the event kinds it fires on
// and the data bindings it needs at each invocation.
type Builder struct {
	events      []event.Type
	assets      []event.Asset
	dataSources []dataSource
}

// NewBuilder starts an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// OnEvent registers typ as one of the event kinds the built strategy
// fires on.
func (b *Builder) OnEvent(typ event.Type) *Builder {
	b.events = append(b.events, typ)
	return b
}

// WithAssets scopes subsequent data bindings (WithCurrentPrices,
// WithHistoricalPrices) to this asset list.
func (b *Builder) WithAssets(assets []event.Asset) *Builder {
	b.assets = assets
	return b
}

// WithCurrentPrices binds a CurrentPrices data view resolved from view at
// the firing event's time, for the builder's assets.
func (b *Builder) WithCurrentPrices(view *pricing.View) *Builder {
	assets := b.assets
	b.dataSources = append(b.dataSources, func(t time.Time) (DataKind, any, error) {
		symbols := make([]string, len(assets))
		for i, a := range assets {
			symbols[i] = a.Symbol
		}
		prices, err := view.CurrentPrices(symbols, t)
		if err != nil {
			return CurrentPrices, nil, err
		}
		return CurrentPrices, prices, nil
	})
	return b
}

// WithHistoricalPrices binds a HistoricalPrices data view: for each of
// the builder's assets, the trading-session bars in
// [t-lookback, t), walked backward session-by-session over cal.
func (b *Builder) WithHistoricalPrices(lookback time.Duration, source pricing.DataSource, cal calendar.Calendar) *Builder {
	assets := b.assets
	b.dataSources = append(b.dataSources, func(t time.Time) (DataKind, any, error) {
		window := make(map[string][]pricing.OHLCV, len(assets))
		cutoff := t.Add(-lookback)
		for _, a := range assets {
			bars, err := pricing.HistoricalWindow(source, cal, a.Symbol, cutoff, t)
			if err != nil {
				return HistoricalPrices, nil, err
			}
			window[a.Symbol] = bars
		}
		return HistoricalPrices, window, nil
	})
	return b
}

// Build yields a Strategy invoking fn on every firing.
func (b *Builder) Build(fn Function) *Strategy {
	return &Strategy{
		events:      b.events,
		dataSources: b.dataSources,
		fn:          fn,
	}
}

// Strategy is a built trading strategy, ready to register against a
// kernel. It retains no references to transient data views across
// invocations: Data is rebuilt fresh on every execute call.
type Strategy struct {
	events      []event.Type
	dataSources []dataSource
	fn          Function

	portfolio *portfolio.Portfolio
	broker    *broker.Broker
}

// Register subscribes the strategy to every event kind it declared via
// OnEvent, wiring p and br as the portfolio/broker surfaced in Context.
func (s *Strategy) Register(k *kernel.Kernel, p *portfolio.Portfolio, br *broker.Broker) {
	s.portfolio = p
	s.broker = br
	for _, typ := range s.events {
		k.Subscribe(typ, s.execute)
	}
}

func (s *Strategy) execute(_ context.Context, evt *event.Event) error {
	data := Data{Values: make(map[DataKind]any, len(s.dataSources))}
	for _, src := range s.dataSources {
		kind, value, err := src(evt.Time)
		if err != nil {
			return err
		}
		data.Values[kind] = value
	}

	ctx := Context{
		Portfolio: s.portfolio,
		Time:      evt.Time,
		EventKind: evt.Type,
		Broker:    s.broker,
	}
	s.fn(ctx, data)
	return nil
}
