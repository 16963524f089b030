// Package priceticker is an external PRICE_CHANGE adapter: it streams
// price updates over a websocket feed and schedules them onto the
// kernel, resolving the open question of how prices arrive outside the
// daily OHLCV backing store. It is deliberately not kernel-internal —
// the kernel never dials a socket itself.
package priceticker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/goccy/go-json"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/observability"
)

const (
	defaultMaxReconnectInterval = 30 * time.Second
	defaultReadLimit            = 1 << 20
)

// tick is the wire shape of a single price update. Time is the upstream
// feed's own timestamp, independent of the kernel's virtual clock.
type tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

type config struct {
	maxReconnectInterval time.Duration
	idGen                event.IDGenerator
	logger               observability.Logger
	dlq                  *observability.DeadLetterQueue
}

// Option configures optional Ticker behavior.
type Option func(*config)

// WithMaxReconnectInterval caps the exponential backoff between reconnect
// attempts.
func WithMaxReconnectInterval(d time.Duration) Option {
	return func(c *config) { c.maxReconnectInterval = d }
}

// WithIDGenerator overrides the default random UUID generator.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(c *config) { c.idGen = gen }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l observability.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDeadLetterQueue routes stale ticks (timestamped before the kernel's
// current time) to dlq instead of silently dropping them.
func WithDeadLetterQueue(dlq *observability.DeadLetterQueue) Option {
	return func(c *config) { c.dlq = dlq }
}

// Ticker maintains a single websocket connection to url, reconnecting
// with exponential backoff, and schedules a PRICE_CHANGE event on k for
// every tick received.
type Ticker struct {
	url string
	k   *kernel.Kernel
	cfg config
}

// New constructs a Ticker for url, not yet connected.
func New(url string, k *kernel.Kernel, opts ...Option) *Ticker {
	cfg := config{
		maxReconnectInterval: defaultMaxReconnectInterval,
		idGen:                event.RandomIDGenerator{},
		logger:               observability.Log(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Ticker{url: url, k: k, cfg: cfg}
}

// Run dials url and streams ticks until ctx is cancelled, reconnecting
// with exponential backoff on transport errors.
func (t *Ticker) Run(ctx context.Context) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = t.cfg.maxReconnectInterval

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := t.runOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		t.cfg.logger.Error("priceticker: connection lost", observability.F("error", err.Error()))

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = t.cfg.maxReconnectInterval
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

func (t *Ticker) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutdown")
	conn.SetReadLimit(defaultReadLimit)

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return context.Canceled
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var tk tick
		if err := json.Unmarshal(data, &tk); err != nil {
			t.cfg.logger.Error("priceticker: malformed tick", observability.F("error", err.Error()))
			continue
		}
		t.deliver(tk)
	}
}

// deliver schedules tk as a PRICE_CHANGE event at its own timestamp. The
// feed's clock and the kernel's virtual clock are independent; a tick
// timestamped before the kernel's current time would violate Schedule's
// forward-only contract, so it is never scheduled: it is routed to the
// dead-letter queue when one is configured, and dropped otherwise.
func (t *Ticker) deliver(tk tick) {
	now := t.k.Now()
	at := tk.Time
	if at.IsZero() {
		at = now
	}
	if at.Before(now) {
		if t.cfg.dlq != nil {
			t.cfg.dlq.Offer(observability.EventRecord{
				SimTime: now,
				Kind:    "priceticker_stale_tick",
				Detail:  fmt.Sprintf("symbol=%s tick_time=%s", tk.Symbol, tk.Time),
			})
		}
		return
	}

	payload := event.PriceChangePayload{Prices: map[string]float64{tk.Symbol: tk.Price}}
	evt := event.New(t.cfg.idGen, event.PriceChange, payload)
	// deliver runs on the ticker's own read-loop goroutine, never the
	// kernel's dispatch goroutine, so it must go through the
	// concurrency-safe ScheduleExternal rather than touching the heap via
	// Schedule directly.
	t.k.ScheduleExternal(evt, at)
}
