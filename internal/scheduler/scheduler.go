// Package scheduler runs delayed tasks on a bounded goroutine pool.
//
// A timer fires after the requested delay and submits the task to an ants
// pool; timers never run task code themselves. When every worker is busy
// the fired task waits for one, so an accepted task is never dropped.
// Tasks are not retried.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// DefaultWorkers is the pool size used when Options.Workers is zero.
const DefaultWorkers = 4

var (
	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("scheduler closed")
	// ErrOverload is returned by Schedule when MaxPending tasks are
	// already waiting.
	ErrOverload = errors.New("scheduler: too many pending tasks")
)

// Options configures a Scheduler.
type Options struct {
	Workers int
	// MaxPending caps tasks that are scheduled but not yet running.
	// Zero means no cap.
	MaxPending int
	Logger     zerolog.Logger
}

// Scheduler dispatches delayed tasks.
type Scheduler struct {
	pool   *ants.Pool
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	maxPending int

	mu      sync.Mutex
	pending map[*Task]struct{}
	closed  bool
}

type taskState int32

const (
	statePending taskState = iota
	stateRunning
	stateDone
	stateCanceled
)

// Task is a scheduled unit of work.
type Task struct {
	Key   string
	s     *Scheduler
	fn    func(context.Context)
	timer *time.Timer
	state atomic.Int32
}

// New creates a Scheduler. Submissions to its pool block until a worker
// is free.
func New(opts Options) (*Scheduler, error) {
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers < 0 {
		return nil, errors.New("scheduler: workers must be positive")
	}
	if opts.MaxPending < 0 {
		return nil, errors.New("scheduler: max pending must not be negative")
	}
	s := &Scheduler{
		log:        opts.Logger.With().Str("component", "scheduler").Logger(),
		maxPending: opts.MaxPending,
		pending:    make(map[*Task]struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	pool, err := ants.NewPool(opts.Workers,
		ants.WithLogger(&s.log),
		ants.WithPanicHandler(func(p any) {
			s.log.Error().Interface("panic", p).Msg("task panicked")
		}),
	)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Schedule runs fn after delay. It never blocks on the pool: the task is
// handed to a worker from the timer goroutine, waiting there when all
// workers are busy. A non-positive delay fires immediately.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func(ctx context.Context)) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.maxPending > 0 && len(s.pending) >= s.maxPending {
		return nil, ErrOverload
	}

	t := &Task{Key: key, s: s, fn: fn}
	s.pending[t] = struct{}{}
	t.timer = time.AfterFunc(max(delay, 0), t.fire)
	return t, nil
}

// Pending returns the number of tasks whose timers have not fired or that
// are waiting on the pool.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Running returns the number of busy workers.
func (s *Scheduler) Running() int { return s.pool.Running() }

// Close cancels pending tasks and waits up to timeout for running tasks.
// The context passed to tasks is canceled afterwards.
func (s *Scheduler) Close(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for t := range s.pending {
		t.cancel()
	}
	s.mu.Unlock()

	err := s.pool.ReleaseTimeout(timeout)
	s.cancel()
	return err
}

func (s *Scheduler) forget(t *Task) {
	s.mu.Lock()
	delete(s.pending, t)
	s.mu.Unlock()
}

// Cancel stops the task if it has not started. It reports whether the
// task was canceled.
func (t *Task) Cancel() bool {
	if !t.cancel() {
		return false
	}
	t.s.forget(t)
	return true
}

func (t *Task) cancel() bool {
	if !t.state.CompareAndSwap(int32(statePending), int32(stateCanceled)) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// fire blocks until a worker takes the task. The pool only rejects it
// once it is closed, and Close has already canceled the task by then.
func (t *Task) fire() {
	if taskState(t.state.Load()) != statePending {
		return
	}
	if err := t.s.pool.Submit(t.run); err != nil {
		t.s.forget(t)
		if t.state.CompareAndSwap(int32(statePending), int32(stateDone)) {
			t.s.log.Error().Err(err).Str("key", t.Key).Msg("task not started")
		}
	}
}

func (t *Task) run() {
	if !t.state.CompareAndSwap(int32(statePending), int32(stateRunning)) {
		return
	}
	t.s.forget(t)
	defer t.state.Store(int32(stateDone))
	t.fn(t.s.ctx)
}
