package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeOutbox struct{ drained int }

func (f *fakeOutbox) DrainOutboxOnce(ctx context.Context) { f.drained++ }

type fakeSync struct {
	runs int
	err  error
}

func (f *fakeSync) RunSync(ctx context.Context) error {
	f.runs++
	return f.err
}

type fakeOptimizer struct{ runs int }

func (f *fakeOptimizer) Optimize(ctx context.Context) error {
	f.runs++
	return nil
}

func TestNewOutboxDrainTask_InvokesDrainOutboxOnce(t *testing.T) {
	f := &fakeOutbox{}
	task := NewOutboxDrainTask(f)
	if task.Name != "outbox-drain" {
		t.Fatalf("unexpected task name: %s", task.Name)
	}
	if err := task.Fn(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.drained != 1 {
		t.Fatalf("expected DrainOutboxOnce to be called once, got %d", f.drained)
	}
}

func TestNewSyncTask_PropagatesRunSyncError(t *testing.T) {
	f := &fakeSync{err: errors.New("conflict")}
	task := NewSyncTask(f)
	if err := task.Fn(context.Background()); err == nil {
		t.Fatal("expected the sync error to propagate")
	}
	if f.runs != 1 {
		t.Fatalf("expected RunSync to be called once, got %d", f.runs)
	}
}

func TestNewOptimizeTask_InvokesOptimize(t *testing.T) {
	f := &fakeOptimizer{}
	task := NewOptimizeTask(f)
	if err := task.Fn(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.runs != 1 {
		t.Fatalf("expected Optimize to be called once, got %d", f.runs)
	}
}

func TestSchedulerTasks_RegisterCleanlyTogether(t *testing.T) {
	s := New(Config{})
	if err := s.Register(NewOutboxDrainTask(&fakeOutbox{})); err != nil {
		t.Fatalf("register outbox task: %v", err)
	}
	if err := s.Register(NewSyncTask(&fakeSync{})); err != nil {
		t.Fatalf("register sync task: %v", err)
	}
	if err := s.Register(NewOptimizeTask(&fakeOptimizer{})); err != nil {
		t.Fatalf("register optimize task: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()
	time.Sleep(5 * time.Millisecond)
}
