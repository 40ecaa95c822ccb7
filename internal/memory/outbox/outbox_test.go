package outbox

import (
	"strconv"
	"testing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "ev-" + strconv.Itoa(n)
	}
}

func TestOutbox_EnqueueAndDrainOk(t *testing.T) {
	o := New(sequentialIDs())
	o.Enqueue(OpStore, "k1", nil)

	if o.Len() != 1 {
		t.Fatalf("expected 1 pending event, got %d", o.Len())
	}

	o.DrainOnce(func(Event) Outcome { return Ok })

	if o.Len() != 0 {
		t.Errorf("expected 0 pending after drain, got %d", o.Len())
	}
	if o.DeadLetterLen() != 0 {
		t.Errorf("expected 0 dead letters, got %d", o.DeadLetterLen())
	}
}

func TestOutbox_RetryExhaustionReachesDeadLetter(t *testing.T) {
	o := New(sequentialIDs())
	o.Enqueue(OpInvalidate, "poison", "tagged")

	for i := 0; i < MaxRetries; i++ {
		o.DrainOnce(func(Event) Outcome { return Retry })
	}

	if o.Len() != 0 {
		t.Errorf("expected 0 pending after exhausting retries, got %d", o.Len())
	}
	if o.DeadLetterLen() != 1 {
		t.Fatalf("expected 1 dead letter, got %d", o.DeadLetterLen())
	}
	if o.DeadLetters()[0].RetryCount != MaxRetries {
		t.Errorf("expected retry_count %d, got %d", MaxRetries, o.DeadLetters()[0].RetryCount)
	}
}

func TestOutbox_RetryBelowBudgetStaysPending(t *testing.T) {
	o := New(sequentialIDs())
	o.Enqueue(OpPromote, "k2", nil)

	o.DrainOnce(func(Event) Outcome { return Retry })

	if o.Len() != 1 {
		t.Errorf("expected event requeued as pending, got %d pending", o.Len())
	}
	if o.DeadLetterLen() != 0 {
		t.Errorf("expected no dead letters before retry budget exhausted, got %d", o.DeadLetterLen())
	}
}

func TestOutbox_ExplicitDeadLetterSkipsRetry(t *testing.T) {
	o := New(sequentialIDs())
	o.Enqueue(OpStore, "k3", nil)

	o.DrainOnce(func(Event) Outcome { return DeadLetter })

	if o.DeadLetterLen() != 1 {
		t.Fatalf("expected immediate dead letter, got %d", o.DeadLetterLen())
	}
	if o.DeadLetters()[0].RetryCount != 0 {
		t.Errorf("expected retry_count 0 for explicit dead letter, got %d", o.DeadLetters()[0].RetryCount)
	}
}
