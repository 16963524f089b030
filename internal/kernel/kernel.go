// Package kernel implements the Event Manager: the virtual clock,
// subscription table, and min-heap priority queue that together drive the
// simulator's single-threaded cooperative dispatch loop.
package kernel

import (
	"container/heap"
	"context"
	"time"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/observability"
)

// Handler reacts to a dispatched event. A returned error is recorded
// against the kernel's dead-letter queue (if configured) and logged, then
// aborts the current step: no further handlers for this event run, and the
// error surfaces to the caller of Run or StepUntil.
type Handler func(ctx context.Context, evt *event.Event) error

// MarketPullFunc lazily supplies the next session-boundary event strictly
// after t. It is the kernel's only coupling to the market event generator,
// kept as a function type rather than a concrete dependency so the kernel
// package stays free of any calendar-specific import.
type MarketPullFunc func(t time.Time) (typ event.Type, at time.Time)

// externalSchedule is a schedule request arriving from an adapter running
// on its own goroutine (e.g. priceticker). It is queued on a channel rather
// than pushed onto the heap directly, since the heap is not safe for
// concurrent use; step drains the channel synchronously from the kernel's
// own goroutine before every pop.
type externalSchedule struct {
	evt *event.Event
	at  time.Time
}

// externalQueueDepth is the external-schedule channel's buffer size. An
// adapter delivering faster than the kernel drains will block on
// ScheduleExternal rather than overflow silently.
const externalQueueDepth = 1024

type config struct {
	idGen  event.IDGenerator
	logger observability.Logger
	dlq    *observability.DeadLetterQueue
}

// Option configures optional kernel behavior.
type Option func(*config)

// WithIDGenerator overrides the default random UUID generator. Swap in an
// event.CounterIDGenerator for bit-identical replay.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(c *config) { c.idGen = gen }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l observability.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDeadLetterQueue routes handler errors into q instead of only logging
// them.
func WithDeadLetterQueue(q *observability.DeadLetterQueue) Option {
	return func(c *config) { c.dlq = q }
}

// Kernel is the Event Manager: it owns the virtual clock, the priority
// queue of scheduled events, and the subscription table, and drives the
// single dispatch loop that advances the clock strictly forward one event
// at a time.
type Kernel struct {
	clock  *VirtualClock
	idGen  event.IDGenerator
	logger observability.Logger
	dlq    *observability.DeadLetterQueue

	queue eventQueue
	seq   uint64

	marketPull      MarketPullFunc
	marketScheduled bool

	subs map[event.Type][]Handler

	external chan externalSchedule
}

// New constructs a Kernel with its clock starting at start.
func New(start time.Time, opts ...Option) *Kernel {
	cfg := config{
		idGen:  event.RandomIDGenerator{},
		logger: observability.Log(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	k := &Kernel{
		clock:    NewVirtualClock(start),
		idGen:    cfg.idGen,
		logger:   cfg.logger,
		dlq:      cfg.dlq,
		subs:     make(map[event.Type][]Handler),
		external: make(chan externalSchedule, externalQueueDepth),
	}
	heap.Init(&k.queue)
	return k
}

// SetMarketSource wires the kernel to a market event generator. Only one
// source may be active; calling it again replaces the previous one.
func (k *Kernel) SetMarketSource(pull MarketPullFunc) {
	k.marketPull = pull
	k.marketScheduled = false
}

// Now returns the kernel's current virtual time.
func (k *Kernel) Now() time.Time {
	return k.clock.Now()
}

// QueueDepth returns the number of events currently pending in the
// priority queue, for callers (e.g. telemetry) that want to sample it.
func (k *Kernel) QueueDepth() int {
	return k.queue.Len()
}

// Subscribe registers h to be invoked, in registration order alongside any
// other handlers for typ, whenever an event of that type is dispatched.
func (k *Kernel) Subscribe(typ event.Type, h Handler) {
	k.subs[typ] = append(k.subs[typ], h)
}

// Schedule enqueues evt to be dispatched at time at. at must not be before
// the kernel's current time; Schedule does not validate this, since a
// handler racing the clock forward is a caller bug, not a runtime
// condition to recover from. Schedule touches the priority queue directly,
// so it must only be called from the kernel's own goroutine (i.e. from
// within a Handler); an adapter running on its own goroutine must use
// ScheduleExternal instead.
func (k *Kernel) Schedule(evt *event.Event, at time.Time) {
	k.scheduleItem(evt, at, false)
}

// ScheduleExternal is the concurrency-safe counterpart to Schedule, for
// adapters (e.g. priceticker) delivering events from their own goroutine.
// The request is queued on a channel and applied to the priority queue
// synchronously inside step, so the heap itself is still only ever touched
// by the kernel's single dispatch goroutine. ScheduleExternal blocks if the
// channel is full, which only happens if a caller delivers far faster than
// the kernel drains.
func (k *Kernel) ScheduleExternal(evt *event.Event, at time.Time) {
	k.external <- externalSchedule{evt: evt, at: at}
}

func (k *Kernel) scheduleItem(evt *event.Event, at time.Time, isMarket bool) {
	k.seq++
	evt.Time = at
	heap.Push(&k.queue, &queueItem{evt: evt, at: at, isMarket: isMarket, seq: k.seq})
}

// ensureMarketScheduled makes sure exactly one pending market-boundary
// event sits in the queue, representing the next boundary strictly after
// the kernel's current time. It must be re-armed after that event is
// popped, since the generator is a pure function of time and would
// otherwise produce the same boundary again on every call.
func (k *Kernel) ensureMarketScheduled() {
	if k.marketPull == nil || k.marketScheduled {
		return
	}
	typ, at := k.marketPull(k.clock.Now())
	if at.IsZero() {
		return
	}
	evt := event.New(k.idGen, typ, nil)
	k.scheduleItem(evt, at, true)
	k.marketScheduled = true
}

// step pops and dispatches the single earliest-scheduled event, advancing
// the clock to its time first. It returns (nil, false, nil) once both the
// queue and the market source are exhausted, or (evt, false, err) if a
// handler for evt returned an error: the step still consumed evt and
// advanced the clock to it, but no further steps run after this one.
func (k *Kernel) step(ctx context.Context) (*event.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	k.drainExternal()
	k.ensureMarketScheduled()

	if k.queue.Len() == 0 {
		return nil, false, nil
	}

	item := heap.Pop(&k.queue).(*queueItem)
	k.clock.AdvanceTo(item.at)
	if item.isMarket {
		k.marketScheduled = false
	}
	item.evt.Time = item.at

	if err := k.dispatch(ctx, item.evt); err != nil {
		return item.evt, false, err
	}
	return item.evt, true, nil
}

// drainExternal applies every schedule request an adapter has queued via
// ScheduleExternal since the last step, pushing each onto the heap from
// the kernel's own goroutine.
func (k *Kernel) drainExternal() {
	for {
		select {
		case req := <-k.external:
			k.scheduleItem(req.evt, req.at, false)
		default:
			return
		}
	}
}

// dispatch invokes every handler subscribed to evt.Type in registration
// order. It stops and returns the first handler error: the kernel does not
// swallow handler errors, per the single-threaded dispatch loop's
// all-or-nothing step contract.
func (k *Kernel) dispatch(ctx context.Context, evt *event.Event) error {
	for _, h := range k.subs[evt.Type] {
		if err := h(ctx, evt); err != nil {
			k.logger.Error("kernel: handler error", observability.F("event_type", string(evt.Type)), observability.F("error", err.Error()))
			if k.dlq != nil {
				k.dlq.Offer(observability.EventRecord{
					SimTime: evt.Time,
					Kind:    string(evt.Type),
					Detail:  err.Error(),
				})
			}
			return err
		}
	}
	return nil
}

// Run drives the dispatch loop to completion: it steps repeatedly until
// the queue and market source are both exhausted, or ctx is cancelled.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		_, more, err := k.step(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// StepUntil drives the dispatch loop until an event of kind is dispatched
// (returning it), the queue and market source are exhausted (returning nil,
// nil), or ctx is cancelled (returning nil, ctx.Err()).
func (k *Kernel) StepUntil(ctx context.Context, kind event.Type) (*event.Event, error) {
	for {
		evt, more, err := k.step(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			return nil, nil
		}
		if evt.Type == kind {
			return evt, nil
		}
	}
}
