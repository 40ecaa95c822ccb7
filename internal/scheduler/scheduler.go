// Package scheduler runs the core's named background tasks: outbox
// draining, tier synchronization, adaptive tier-size optimization, chaos
// experiment monitoring, and graph indexing. Each task is a simple
// interval loop; the scheduler's job is giving them a shared shutdown
// signal and a place to report failures, rather than letting each
// subsystem hand-roll its own ticker and recursive sleep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telos-systems/telos-core/internal/logging"
)

// Task is one named periodic background job.
type Task struct {
	// Name identifies the task in logs and in RunNow.
	Name string
	// Interval is how often Fn runs. The first run happens after one
	// Interval has elapsed, not immediately, unless RunImmediately is set.
	Interval time.Duration
	// RunImmediately triggers one run as soon as the scheduler starts,
	// before the first tick.
	RunImmediately bool
	// Fn is the work to perform. A returned error is logged but never
	// stops the task's ticker.
	Fn func(ctx context.Context) error
}

// Scheduler runs a fixed set of registered Tasks, each on its own ticker,
// until Stop is called.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]Task

	logger         *slog.Logger
	decisionLogger *logging.DecisionLogger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	runNowCh map[string]chan struct{}
	runNowMu sync.Mutex
}

// Config configures a Scheduler.
type Config struct {
	Logger         *slog.Logger
	DecisionLogger *logging.DecisionLogger
}

// New constructs an idle Scheduler. Register tasks, then call Start.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:          make(map[string]Task),
		logger:         logger,
		decisionLogger: cfg.DecisionLogger,
		runNowCh:       make(map[string]chan struct{}),
	}
}

// Register adds a task. It returns an error if a task with the same name
// is already registered, or if called after Start.
func (s *Scheduler) Register(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler: cannot register %q after Start", t.Name)
	}
	if _, exists := s.tasks[t.Name]; exists {
		return fmt.Errorf("scheduler: task %q already registered", t.Name)
	}
	if t.Interval <= 0 {
		return fmt.Errorf("scheduler: task %q has a non-positive interval", t.Name)
	}
	s.tasks[t.Name] = t
	s.runNowCh[t.Name] = make(chan struct{}, 1)
	return nil
}

// Start launches one goroutine per registered task. It returns
// immediately; call Stop (or cancel ctx) to shut every task down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		s.wg.Add(1)
		go s.runLoop(runCtx, t)
	}
}

// Stop cancels every running task and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunNow requests an out-of-cycle run of the named task on its next
// opportunity. It is a no-op if the task is not registered; a request made
// before Start is buffered and runs once the task starts.
func (s *Scheduler) RunNow(name string) {
	s.runNowMu.Lock()
	ch, ok := s.runNowCh[name]
	s.runNowMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// A run is already pending; coalesce.
	}
}

func (s *Scheduler) runLoop(ctx context.Context, t Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runNowMu.Lock()
	runNow := s.runNowCh[t.Name]
	s.runNowMu.Unlock()

	if t.RunImmediately {
		s.execute(ctx, t)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, t)
		case <-runNow:
			s.execute(ctx, t)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t Task) {
	start := time.Now()
	err := t.Fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error("scheduled task failed", "task", t.Name, "elapsed", elapsed, "error", err)
	} else {
		s.logger.Debug("scheduled task completed", "task", t.Name, "elapsed", elapsed)
	}

	if s.decisionLogger != nil {
		entry := map[string]any{
			"event":      "scheduled_task_run",
			"task":       t.Name,
			"elapsed_ms": elapsed.Milliseconds(),
			"succeeded":  err == nil,
		}
		if err != nil {
			entry["error"] = err.Error()
		}
		s.decisionLogger.Log(entry)
	}
}
