package kernel

import (
	"time"

	"github.com/nordlight/backtester/internal/event"
)

// queueItem is one entry in the kernel's priority queue.
type queueItem struct {
	evt      *event.Event
	at       time.Time
	isMarket bool
	seq      uint64
	index    int
}

// eventQueue is a container/heap.Interface ordered by (time, kind, seq).
// Ties at identical timestamps resolve scheduled events before
// market-boundary events — a handler reacting to a fill at time T should
// see its own scheduled follow-up before the next session boundary lands
// on the same instant. Ties within the same kind resolve by insertion
// sequence (FIFO), which is deterministic regardless of which event ID
// generator is in use.
type eventQueue []*queueItem

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	if q[i].isMarket != q[j].isMarket {
		return !q[i].isMarket
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	item.index = -1
	*q = old[:n-1]
	return item
}
