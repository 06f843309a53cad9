// Package scheduler runs the recurring automation tasks of a process on a
// single worker goroutine. Tasks never overlap: due tasks run one after
// another in registration order.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/vadim/linkpilot/internal/metrics"
)

const (
	defaultTick        = time.Second
	defaultLockTTL     = 30 * time.Minute
	triggerQueueLength = 16
)

var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrDuplicateTask   = errors.New("task already registered")
	ErrRunning         = errors.New("scheduler is running")
	ErrNotRunning      = errors.New("scheduler is not running")
	ErrTriggerBusy     = errors.New("trigger queue is full")
	ErrStopTimeout     = errors.New("scheduler did not stop in time")
	ErrLockNotAcquired = errors.New("task is running in another process")
)

// Func is the work of a task
type Func func(ctx context.Context) error

// Task is a named unit of recurring work
type Task struct {
	Name     string
	Schedule Schedule
	Run      Func
}

// Locker provides a cross-process lock per task
type Locker interface {
	// TryLock returns ok=false when another holder has the key
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NoopLocker always grants the lock
type NoopLocker struct{}

// TryLock implements Locker
func (NoopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// TaskStatus is a snapshot of one task
type TaskStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	NextRun      time.Time     `json:"next_run"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastError    string        `json:"last_error,omitempty"`
	Running      bool          `json:"running"`
}

type entry struct {
	task  Task
	order int
	index int
	next  time.Time

	lastRun      *time.Time
	lastDuration time.Duration
	runs         int
	failures     int
	lastError    string
	inProgress   bool
}

// Scheduler is an explicit, start/stop-able task runner
type Scheduler struct {
	mu      sync.Mutex
	runMu   sync.Mutex
	entries []*entry
	byName  map[string]*entry
	queue   queue
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	trigger chan string

	tick    time.Duration
	clock   func() time.Time
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Scheduler
type Option func(*Scheduler)

// WithTick sets how often the worker checks for due tasks
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocker sets the cross-process task lock
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler with no tasks
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		byName:  make(map[string]*entry),
		tick:    defaultTick,
		clock:   time.Now,
		locker:  NoopLocker{},
		lockTTL: defaultLockTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a task. Tasks due at the same time run in registration order.
func (s *Scheduler) Register(t Task) error {
	if t.Name == "" || t.Schedule == nil || t.Run == nil {
		return fmt.Errorf("registering task %q: name, schedule and func are required", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	if _, ok := s.byName[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
	}

	e := &entry{task: t, order: len(s.entries), next: t.Schedule.First(s.now())}
	s.entries = append(s.entries, e)
	s.byName[t.Name] = e
	heap.Push(&s.queue, e)
	return nil
}

// Start launches the worker. Starting a running scheduler logs a warning and does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler already running, ignoring start")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.trigger = make(chan string, triggerQueueLength)

	// due times are recomputed from the moment the loop starts
	now := s.now()
	for _, e := range s.entries {
		e.next = e.task.Schedule.First(now)
	}
	heap.Init(&s.queue)
	stopCh, done, trigger := s.stopCh, s.done, s.trigger
	s.mu.Unlock()

	s.logger.Info("scheduler started", "tasks", len(s.entries), "tick", s.tick)

	go s.run(context.WithoutCancel(ctx), ctx.Done(), stopCh, done, trigger)
}

// Stop asks the worker to exit and waits up to timeout for it. A task that is
// already running is not interrupted; on timeout it keeps running in the background.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out, task still in progress", "timeout", timeout)
		return ErrStopTimeout
	}
}

// IsRunning reports whether the worker loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger queues an immediate run of a task on the worker
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if !s.running {
		return ErrNotRunning
	}

	select {
	case s.trigger <- name:
		return nil
	default:
		return ErrTriggerBusy
	}
}

// RunOnce runs a task synchronously, serialised with the worker
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.execute(ctx, e)
}

// Tasks returns the registered task names in registration order
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.task.Name
	}
	return names
}

// Status returns a snapshot of every task in registration order
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = TaskStatus{
			Name:         e.task.Name,
			Schedule:     e.task.Schedule.String(),
			NextRun:      e.next,
			LastRun:      e.lastRun,
			LastDuration: e.lastDuration,
			Runs:         e.runs,
			Failures:     e.failures,
			LastError:    e.lastError,
			Running:      e.inProgress,
		}
	}
	return out
}

// RunPending runs every task due at the current time and returns how many ran
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for top := s.queue.peek(); top != nil && !top.next.After(now); top = s.queue.peek() {
		due = append(due, heap.Pop(&s.queue).(*entry))
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].order < due[j].order })

	for _, e := range due {
		_ = s.execute(ctx, e)

		s.mu.Lock()
		next := e.task.Schedule.Next(e.next)
		// skip runs missed while the worker was busy
		for current := s.now(); !next.After(current); {
			next = e.task.Schedule.Next(next)
		}
		e.next = next
		heap.Push(&s.queue, e)
		s.mu.Unlock()
	}

	return len(due)
}

func (s *Scheduler) run(ctx context.Context, cancelled <-chan struct{}, stopCh <-chan struct{}, done chan<- struct{}, trigger <-chan string) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.RunPending(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-cancelled:
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case name := <-trigger:
			s.mu.Lock()
			e := s.byName[name]
			s.mu.Unlock()
			_ = s.execute(ctx, e)
		case <-ticker.C:
			s.RunPending(ctx)
		}
	}
}

// execute runs one task under the task lock, recovering panics
func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	name := e.task.Name
	release, ok, lockErr := s.locker.TryLock(ctx, "linkpilot:task:"+name, s.lockTTL)
	switch {
	case lockErr != nil:
		s.logger.Warn("task lock unavailable, running without it", "task", name, "error", lockErr)
	case !ok:
		s.logger.Info("task skipped, lock held elsewhere", "task", name)
		return ErrLockNotAcquired
	default:
		defer release()
	}

	started := s.now()
	s.mu.Lock()
	e.inProgress = true
	s.mu.Unlock()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
			s.logger.Error("task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
		}

		finished := s.now()
		s.mu.Lock()
		e.inProgress = false
		e.lastRun = &started
		e.lastDuration = finished.Sub(started)
		e.runs++
		if err != nil {
			e.failures++
			e.lastError = err.Error()
		} else {
			e.lastError = ""
		}
		s.mu.Unlock()

		metrics.ObserveTask(name, started, err != nil)
		if err != nil && r == nil {
			s.logger.Error("task failed", "task", name, "error", err)
		}
	}()

	s.logger.Debug("running task", "task", name)
	return e.task.Run(ctx)
}

func (s *Scheduler) now() time.Time {
	return s.clock().UTC()
}
