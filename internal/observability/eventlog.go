package observability

import (
	"io"
	"sync"
	"time"
)

// EventRecord is a single entry written to the event log sink: a record of
// a subscription, publication, or dispatch, tagged with simulation time.
type EventRecord struct {
	SimTime time.Time
	Kind    string // "subscribe", "publish", "dispatch"
	Detail  string
}

// EventSink is a configurable file sink for event-level logging, kept
// separate from ordinary application logs per §6 of the spec.
type EventSink struct {
	mu  sync.Mutex
	out io.Writer
	log Logger
}

// NewEventSink wraps an io.Writer (typically an opened log file) as an
// EventSink. A nil writer disables the file sink but still fans out
// through the ambient Logger.
func NewEventSink(w io.Writer, log Logger) *EventSink {
	if log == nil {
		log = Log()
	}
	return &EventSink{out: w, log: log}
}

// Record appends an event record to the sink and emits a debug log line.
func (s *EventSink) Record(rec EventRecord) {
	s.log.WithSimTime(rec.SimTime).Debug(rec.Detail, F("kind", rec.Kind))
	if s.out == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line := rec.SimTime.Format(time.RFC3339Nano) + " " + rec.Kind + " " + rec.Detail + "\n"
	_, _ = s.out.Write([]byte(line))
}

// DeadLetterQueue stores telemetry/event records that failed delivery to
// an external sink (e.g. the price-ticker adapter's upstream websocket
// drops a message). Bounded FIFO: oldest entries are evicted first.
type DeadLetterQueue struct {
	mu       sync.Mutex
	capacity int
	records  []EventRecord
}

// NewDeadLetterQueue creates a DLQ with the given capacity. Capacity <= 0
// means unbounded.
func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	return &DeadLetterQueue{capacity: capacity, records: make([]EventRecord, 0)}
}

// Offer records an entry, evicting the oldest if at capacity.
func (q *DeadLetterQueue) Offer(rec EventRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.records) >= q.capacity {
		copy(q.records[0:], q.records[1:])
		q.records[len(q.records)-1] = rec
		return
	}
	q.records = append(q.records, rec)
}

// Drain retrieves and clears all queued records.
func (q *DeadLetterQueue) Drain() []EventRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]EventRecord, len(q.records))
	copy(drained, q.records)
	q.records = q.records[:0]
	return drained
}

// Len returns the number of queued records.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}
