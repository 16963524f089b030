// Package js is an alternate strategy harness whose user function is a
// JavaScript callback, hosted by goja and invoked against the same
// event/portfolio/broker contract, and the same declared data-view
// bindings (current prices, historical window), that the native Go
// harness (internal/strategy) exposes. Unlike a multi-caller VM host, the
// kernel's single-threaded dispatch loop is the only caller here, so the
// runtime is driven inline with no goroutine/channel serialization.
package js

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/nordlight/backtester/internal/broker"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/portfolio"
	"github.com/nordlight/backtester/internal/pricing"
)

// jsOrder is the shape a JavaScript handler returns to place an order;
// zero Amount means no order was placed.
type jsOrder struct {
	Symbol string `json:"symbol"`
	Amount int    `json:"amount"`
}

// jsBar mirrors pricing.OHLCV in JS-friendly field names for the
// historical-window data view.
type jsBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// jsContext mirrors strategy.Context and Data in JS-friendly field names,
// passed as the sole argument to the handler on every firing. CurrentPrices
// and HistoricalPrices are only populated when the Strategy was built with
// the corresponding Option.
type jsContext struct {
	Time             string             `json:"time"`
	EventKind        string             `json:"eventKind"`
	Cash             float64            `json:"cash"`
	CurrentPrices    map[string]float64 `json:"currentPrices,omitempty"`
	HistoricalPrices map[string][]jsBar `json:"historicalPrices,omitempty"`
}

// Strategy hosts a single JavaScript handler function, called on every
// event it is registered against.
type Strategy struct {
	rt      *goja.Runtime
	handler goja.Callable

	portfolio *portfolio.Portfolio
	broker    *broker.Broker

	assets []event.Asset

	pricesView *pricing.View

	historicalLookback time.Duration
	historicalSource   pricing.DataSource
	historicalCal      calendar.Calendar
}

// Option configures a data-view binding on a Strategy, mirroring
// strategy.Builder's WithAssets/WithCurrentPrices/WithHistoricalPrices.
type Option func(*Strategy)

// WithAssets scopes subsequent data bindings (WithCurrentPrices,
// WithHistoricalPrices) to this asset list.
func WithAssets(assets []event.Asset) Option {
	return func(s *Strategy) { s.assets = assets }
}

// WithCurrentPrices binds a currentPrices data view resolved from view at
// the firing event's time, for the strategy's assets.
func WithCurrentPrices(view *pricing.View) Option {
	return func(s *Strategy) { s.pricesView = view }
}

// WithHistoricalPrices binds a historicalPrices data view: for each of the
// strategy's assets, the trading-session bars in [t-lookback, t), walked
// backward session-by-session over cal.
func WithHistoricalPrices(lookback time.Duration, source pricing.DataSource, cal calendar.Calendar) Option {
	return func(s *Strategy) {
		s.historicalLookback = lookback
		s.historicalSource = source
		s.historicalCal = cal
	}
}

// Compile parses source as JavaScript and resolves the function named
// entryPoint as the strategy's handler (e.g. a top-level declaration
// `function onEvent(ctx) { ... }`). opts declare the data views fetched
// and marshaled into the handler's context on every firing.
func Compile(source, entryPoint string, opts ...Option) (*Strategy, error) {
	rt := goja.New()
	// Expose Go structs to JS (and read them back) under their json tag
	// names, so handlers see ctx.currentPrices and return {symbol, amount}.
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if _, err := rt.RunString(source); err != nil {
		return nil, fmt.Errorf("js strategy: compile: %w", err)
	}
	value := rt.Get(entryPoint)
	if value == nil || goja.IsUndefined(value) {
		return nil, fmt.Errorf("js strategy: entry point %q not found", entryPoint)
	}
	callable, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("js strategy: entry point %q is not a function", entryPoint)
	}
	s := &Strategy{rt: rt, handler: callable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register subscribes the strategy to every event kind in events, wiring
// p and br as the portfolio/broker the JS handler can act through via its
// returned order.
func (s *Strategy) Register(k *kernel.Kernel, p *portfolio.Portfolio, br *broker.Broker, events []event.Type) {
	s.portfolio = p
	s.broker = br
	for _, typ := range events {
		k.Subscribe(typ, s.execute)
	}
}

func (s *Strategy) execute(_ context.Context, evt *event.Event) error {
	ctx := jsContext{
		Time:      evt.Time.Format("2006-01-02T15:04:05Z07:00"),
		EventKind: string(evt.Type),
		Cash:      s.portfolio.Cash(),
	}

	if s.pricesView != nil && len(s.assets) > 0 {
		symbols := make([]string, len(s.assets))
		for i, a := range s.assets {
			symbols[i] = a.Symbol
		}
		prices, err := s.pricesView.CurrentPrices(symbols, evt.Time)
		if err != nil {
			return fmt.Errorf("js strategy: current prices: %w", err)
		}
		ctx.CurrentPrices = prices
	}

	if s.historicalSource != nil && len(s.assets) > 0 {
		window := make(map[string][]jsBar, len(s.assets))
		cutoff := evt.Time.Add(-s.historicalLookback)
		for _, a := range s.assets {
			bars, err := pricing.HistoricalWindow(s.historicalSource, s.historicalCal, a.Symbol, cutoff, evt.Time)
			if err != nil {
				return fmt.Errorf("js strategy: historical prices: %w", err)
			}
			jsBars := make([]jsBar, len(bars))
			for i, bar := range bars {
				jsBars[i] = jsBar{
					Date:   bar.Date.Format("2006-01-02"),
					Open:   bar.Open,
					High:   bar.High,
					Low:    bar.Low,
					Close:  bar.Close,
					Volume: bar.Volume,
				}
			}
			window[a.Symbol] = jsBars
		}
		ctx.HistoricalPrices = window
	}

	result, err := s.handler(goja.Undefined(), s.rt.ToValue(ctx))
	if err != nil {
		return fmt.Errorf("js strategy: handler: %w", err)
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return nil
	}

	var order jsOrder
	if err := s.rt.ExportTo(result, &order); err != nil {
		return fmt.Errorf("js strategy: handler returned an unrecognized order shape: %w", err)
	}
	if order.Amount == 0 {
		return nil
	}
	_, err = s.broker.PlaceOrder(event.NewAsset(0, order.Symbol, order.Symbol), order.Amount)
	return err
}
