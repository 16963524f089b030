// Package event defines the closed event-type taxonomy and the typed
// payloads each kind carries, per the simulator's payload discipline: the
// kernel treats payloads opaquely, but each kind is paired with a fixed
// payload shape at the call sites that construct and consume events.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the closed set of event kinds the kernel can dispatch.
type Type string

const (
	// PreMarketOpen fires 15 minutes before the session open. No payload.
	// Emitted by the market event generator.
	PreMarketOpen Type = "PRE_MARKET_OPEN"
	// MarketOpen fires at the session open. No payload. Emitted by the
	// market event generator.
	MarketOpen Type = "MARKET_OPEN"
	// MarketClose fires at the session close. No payload. Emitted by the
	// market event generator.
	MarketClose Type = "MARKET_CLOSE"
	// PostMarketClose fires 15 minutes after the session close. No
	// payload. Emitted by the market event generator.
	PostMarketClose Type = "POST_MARKET_CLOSE"
	// OrderPlaced carries an OrderPlacedPayload value. Emitted by the broker
	// in response to PlaceOrder.
	OrderPlaced Type = "ORDER_PLACED"
	// OrderFulfilled carries a TransactionPayload value. Emitted by the
	// broker after the execution delay elapses.
	OrderFulfilled Type = "ORDER_FULFILLED"
	// PortfolioUpdate has no payload. Emitted by the portfolio manager.
	PortfolioUpdate Type = "PORTFOLIO_UPDATE"
	// PriceChange carries a PriceChangePayload value. Emitted by an external
	// price ticker adapter, never by the kernel itself.
	PriceChange Type = "PRICE_CHANGE"
)

// Event is a timestamped, typed notification dispatched by the kernel. Time
// is nil (zero Time) until the kernel assigns it during Schedule; Payload
// is opaque to the kernel and typed per Type at the producer/consumer
// boundary.
type Event struct {
	ID      uuid.UUID
	Type    Type
	Time    time.Time
	Payload any
}

// IDGenerator produces event/order identifiers. Swapping in a
// deterministic generator (counter-based, or a seeded PRNG) is what makes
// replay bit-identical per the kernel's determinism guarantee.
type IDGenerator interface {
	NewID() uuid.UUID
}

// RandomIDGenerator generates random v4 UUIDs, matching the source
// system's uuid4-based tie-breaker. Not deterministic across runs.
type RandomIDGenerator struct{}

// NewID returns a new random UUID.
func (RandomIDGenerator) NewID() uuid.UUID { return uuid.New() }

// CounterIDGenerator generates monotonically increasing UUIDs (encoding a
// counter into the low bits) so that two runs with identical inputs and
// identical schedule order produce identical event and order IDs. The
// kernel's queue breaks timestamp ties by insertion order, not by ID, so
// dispatch order does not depend on which generator is in use.
type CounterIDGenerator struct {
	next uint64
}

// NewID returns the next counter-derived UUID.
func (g *CounterIDGenerator) NewID() uuid.UUID {
	g.next++
	var id uuid.UUID
	for i := 0; i < 8; i++ {
		id[15-i] = byte(g.next >> (8 * i))
	}
	return id
}

// New constructs an unscheduled event of the given type and payload using
// gen to assign its identifier. Time is left zero; the kernel sets it in
// Schedule.
func New(gen IDGenerator, typ Type, payload any) *Event {
	return &Event{ID: gen.NewID(), Type: typ, Payload: payload}
}
