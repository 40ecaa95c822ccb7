package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsRegisteredTaskOnInterval(t *testing.T) {
	s := New(Config{})
	var calls int32
	err := s.Register(Task{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(500 * time.Millisecond)
	for atomic.LoadInt32(&calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 calls, got %d", atomic.LoadInt32(&calls))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_RunImmediatelyFiresBeforeFirstTick(t *testing.T) {
	s := New(Config{})
	fired := make(chan struct{}, 1)
	err := s.Register(Task{
		Name:           "startup",
		Interval:       time.Hour,
		RunImmediately: true,
		Fn: func(ctx context.Context) error {
			fired <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected the task to run immediately on Start")
	}
}

func TestScheduler_RunNowTriggersAnOutOfCycleRun(t *testing.T) {
	s := New(Config{})
	var calls int32
	err := s.Register(Task{
		Name:     "ondemand",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	s.RunNow("ondemand")

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&calls) < 1 {
		select {
		case <-deadline:
			t.Fatal("expected RunNow to trigger a run without waiting for the interval")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_RunNowOnUnknownTaskIsANoOp(t *testing.T) {
	s := New(Config{})
	s.Start(context.Background())
	defer s.Stop()

	s.RunNow("does-not-exist") // must not panic or block
}

func TestScheduler_TaskErrorsDoNotStopTheTicker(t *testing.T) {
	s := New(Config{})
	var calls int32
	err := s.Register(Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(500 * time.Millisecond)
	for atomic.LoadInt32(&calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected the ticker to keep running despite errors, got %d calls", atomic.LoadInt32(&calls))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_StopWaitsForTasksToExit(t *testing.T) {
	s := New(Config{})
	started := make(chan struct{})
	err := s.Register(Task{
		Name:     "slow",
		Interval: time.Millisecond,
		Fn: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start(context.Background())
	<-started
	s.Stop()
	// Stop must return (not hang) once every task's goroutine has exited.
}

func TestScheduler_RegisterRejectsDuplicateNames(t *testing.T) {
	s := New(Config{})
	task := Task{Name: "dup", Interval: time.Second, Fn: func(ctx context.Context) error { return nil }}
	if err := s.Register(task); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := s.Register(task); err == nil {
		t.Fatal("expected an error registering a duplicate task name")
	}
}

func TestScheduler_RegisterRejectsNonPositiveInterval(t *testing.T) {
	s := New(Config{})
	err := s.Register(Task{Name: "bad", Interval: 0, Fn: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected an error for a non-positive interval")
	}
}

func TestScheduler_RegisterAfterStartIsRejected(t *testing.T) {
	s := New(Config{})
	s.Start(context.Background())
	defer s.Stop()

	err := s.Register(Task{Name: "late", Interval: time.Second, Fn: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected an error registering after Start")
	}
}

func TestScheduler_ContextCancellationStopsAllTasks(t *testing.T) {
	s := New(Config{})
	var calls int32
	err := s.Register(Task{
		Name:     "cancelable",
		Interval: 5 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.wg.Wait()

	seenAtCancel := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&calls) != seenAtCancel {
		t.Fatal("expected no further calls after context cancellation")
	}
}
