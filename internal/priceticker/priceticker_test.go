package priceticker

import (
	"context"
	"testing"
	"time"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/observability"
)

func TestDeliverSchedulesFreshTickAsPriceChange(t *testing.T) {
	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	ticker := New("wss://example.invalid", k, WithIDGenerator(&event.CounterIDGenerator{}))

	var received *event.Event
	k.Subscribe(event.PriceChange, func(_ context.Context, e *event.Event) error {
		received = e
		return nil
	})

	ticker.deliver(tick{Symbol: "AAPL", Price: 101.5, Time: t0.Add(time.Second)})

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if received == nil {
		t.Fatalf("expected a PRICE_CHANGE event to be dispatched")
	}
	payload, ok := received.Payload.(event.PriceChangePayload)
	if !ok {
		t.Fatalf("expected PriceChangePayload, got %T", received.Payload)
	}
	if payload.Prices["AAPL"] != 101.5 {
		t.Fatalf("expected price 101.5, got %v", payload.Prices["AAPL"])
	}
}

func TestDeliverRoutesStaleTickToDeadLetterQueue(t *testing.T) {
	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	dlq := observability.NewDeadLetterQueue(10)
	ticker := New("wss://example.invalid", k,
		WithIDGenerator(&event.CounterIDGenerator{}),
		WithDeadLetterQueue(dlq))

	var calls int
	k.Subscribe(event.PriceChange, func(_ context.Context, _ *event.Event) error {
		calls++
		return nil
	})

	ticker.deliver(tick{Symbol: "AAPL", Price: 101.5, Time: t0.Add(-time.Hour)})

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected a stale tick not to be scheduled, got %d dispatches", calls)
	}
	if dlq.Len() != 1 {
		t.Fatalf("expected the stale tick to be recorded on the dead-letter queue, got %d", dlq.Len())
	}
}

func TestDeliverDefaultsToKernelTimeWhenTickHasNoTimestamp(t *testing.T) {
	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	ticker := New("wss://example.invalid", k, WithIDGenerator(&event.CounterIDGenerator{}))

	var received *event.Event
	k.Subscribe(event.PriceChange, func(_ context.Context, e *event.Event) error {
		received = e
		return nil
	})

	ticker.deliver(tick{Symbol: "AAPL", Price: 99})

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if received == nil {
		t.Fatalf("expected a PRICE_CHANGE event even without an explicit tick timestamp")
	}
	if !received.Time.Equal(t0) {
		t.Fatalf("expected the event scheduled at the kernel's current time %v, got %v", t0, received.Time)
	}
}
