// Package outbox implements the memory fabric's transactional write-behind
// event queue. The fabric never writes directly across tiers: every
// cross-tier effect (a promotion, a cascading invalidation, a sync push) is
// an OutboxEvent that a background drain processes.
package outbox

import (
	"sync"
	"time"
)

// Operation names the kind of cross-tier effect an event carries.
type Operation string

const (
	OpStore      Operation = "store"
	OpPromote    Operation = "promote"
	OpInvalidate Operation = "invalidate"
)

// Status is the lifecycle state of an event. The union of
// pending ∪ processed ∪ failed ∪ dead_letter is exactly the set of events
// ever enqueued: Outbox never drops an event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// Event is a single outbox entry.
type Event struct {
	ID         string
	Operation  Operation
	Key        string
	Payload    any
	Timestamp  time.Time
	Status     Status
	RetryCount int
}

// Outcome is the tagged result of processing one event, replacing
// exception-as-control-flow: a handler reports Ok, Retry, or DeadLetter
// explicitly instead of the processor inferring retry policy from a caught
// error.
type Outcome int

const (
	Ok Outcome = iota
	Retry
	DeadLetter
)

// Handler applies one event's cross-tier effect and reports its outcome.
type Handler func(Event) Outcome

// MaxRetries is the retry budget before an event is dead-lettered.
const MaxRetries = 3

// Outbox is a FIFO queue with per-key ordering: events for the same key
// apply in enqueue order; events for different keys have no ordering
// guarantee relative to each other. A single mutex protects the queue, per
// the fabric's documented lock order (concept repository -> L3 -> L2 ->
// L1 -> outbox).
type Outbox struct {
	mu      sync.Mutex
	pending []Event
	seen    map[string]bool // ids that Enqueue has issued; nothing reads it
	dead    []Event
	nextID  func() string
}

// New creates an empty outbox. idFunc generates event IDs; callers
// typically pass a uuid generator.
func New(idFunc func() string) *Outbox {
	return &Outbox{seen: make(map[string]bool), nextID: idFunc}
}

// Enqueue appends a new pending event and returns it. Each call generates a
// fresh id; there is no dedup check. Events that fail and are retried are
// re-appended by DrainOnce with their original id.
func (o *Outbox) Enqueue(op Operation, key string, payload any) Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	ev := Event{
		ID:        o.nextID(),
		Operation: op,
		Key:       key,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		Status:    StatusPending,
	}
	o.seen[ev.ID] = true
	o.pending = append(o.pending, ev)
	return ev
}

// Len returns the number of pending events, used by `core memory stat`.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// DeadLetterLen returns the number of dead-lettered events.
func (o *Outbox) DeadLetterLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.dead)
}

// DrainOnce pops every currently pending event (FIFO) and applies handler
// to each, routing the outcome: Ok removes it, Retry increments
// RetryCount and re-enqueues it (at the back of the queue) unless the
// retry budget is exhausted, DeadLetter (or an exhausted retry budget)
// moves it to the dead-letter set. It is the named background task the
// scheduler invokes periodically in place of the source's
// `while(true) sleep(1) drain()` recursion.
func (o *Outbox) DrainOnce(handler Handler) {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.mu.Unlock()

	var requeue []Event
	var dead []Event

	for _, ev := range batch {
		switch handler(ev) {
		case Ok:
			ev.Status = StatusProcessed
		case Retry:
			ev.RetryCount++
			if ev.RetryCount >= MaxRetries {
				ev.Status = StatusDeadLetter
				dead = append(dead, ev)
			} else {
				ev.Status = StatusPending
				requeue = append(requeue, ev)
			}
		case DeadLetter:
			ev.Status = StatusDeadLetter
			dead = append(dead, ev)
		}
	}

	o.mu.Lock()
	o.pending = append(o.pending, requeue...)
	o.dead = append(o.dead, dead...)
	o.mu.Unlock()
}

// DeadLetters returns a snapshot of dead-lettered events, for inspection
// tooling.
func (o *Outbox) DeadLetters() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, len(o.dead))
	copy(out, o.dead)
	return out
}
