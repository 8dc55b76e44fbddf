// Package scheduler runs the clock's tasks and callbacks cooperatively on one goroutine.
//
// Each registered task has at most one pending deadline; planning it again replaces the old
// deadline, whether the new one is earlier or later.  Callbacks from sensor and button goroutines
// are handed over with Post and run to completion on the scheduler goroutine, so code running
// under the scheduler never needs locks for state it shares only with other scheduled code.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_task_runs_total",
		Help: "number of times each task body has run",
	}, []string{"task"})

	callbacksRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_callbacks_total",
		Help: "number of posted callbacks run on the scheduler goroutine",
	})
)

// TaskID identifies a registered task.
type TaskID int

const noTask TaskID = -1

type task struct {
	name    string
	fn      func()
	due     time.Time
	planned bool
}

// Scheduler is a single-threaded cooperative scheduler.  Plan* and Register may only be called
// from the scheduler goroutine (inside a task or a posted callback) or before Run starts.
type Scheduler struct {
	now     func() time.Time
	tasks   []*task
	current TaskID
	events  chan func()
}

// New returns a scheduler that reads time from now, which is usually time.Now.
func New(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		now:     now,
		current: noTask,
		events:  make(chan func(), 16),
	}
}

// Register adds a task.  It does not run until it is planned.
func (s *Scheduler) Register(name string, fn func()) TaskID {
	s.tasks = append(s.tasks, &task{name: name, fn: fn})
	return TaskID(len(s.tasks) - 1)
}

// PlanAbsolute makes the task due at t, replacing any earlier plan.
func (s *Scheduler) PlanAbsolute(id TaskID, t time.Time) {
	tk := s.tasks[id]
	tk.due = t
	tk.planned = true
}

// PlanNow makes the task due immediately.
func (s *Scheduler) PlanNow(id TaskID) { s.PlanAbsolute(id, s.now()) }

// PlanRelative makes the task due d from now.
func (s *Scheduler) PlanRelative(id TaskID, d time.Duration) { s.PlanAbsolute(id, s.now().Add(d)) }

// PlanCurrentRelative replans the task that is currently running.  It panics when called outside
// a task body.
func (s *Scheduler) PlanCurrentRelative(d time.Duration) {
	if s.current == noTask {
		panic("scheduler: PlanCurrentRelative called outside a task")
	}
	s.PlanRelative(s.current, d)
}

// Due returns when the task will next run, if it is planned.
func (s *Scheduler) Due(id TaskID) (time.Time, bool) {
	tk := s.tasks[id]
	return tk.due, tk.planned
}

// Next returns the earliest deadline of any planned task.
func (s *Scheduler) Next() (time.Time, bool) {
	var next time.Time
	var ok bool
	for _, tk := range s.tasks {
		if tk.planned && (!ok || tk.due.Before(next)) {
			next, ok = tk.due, true
		}
	}
	return next, ok
}

// Step runs, in registration order, every task that is due at now.  A task is unplanned before its
// body runs, so it runs again only if something plans it.
func (s *Scheduler) Step(now time.Time) {
	for i, tk := range s.tasks {
		if !tk.planned || tk.due.After(now) {
			continue
		}
		tk.planned = false
		s.current = TaskID(i)
		tk.fn()
		s.current = noTask
		tasksRun.WithLabelValues(tk.name).Inc()
	}
}

// Post hands fn to the scheduler goroutine.  It blocks until there is room in the queue, and
// reports false if ctx ends first.
func (s *Scheduler) Post(ctx context.Context, fn func()) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run runs tasks and posted callbacks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.Step(s.now())

		var wake <-chan time.Time
		var timer *time.Timer
		if next, ok := s.Next(); ok {
			timer = time.NewTimer(next.Sub(s.now()))
			wake = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return fmt.Errorf("scheduler: %w", ctx.Err())
		case fn := <-s.events:
			fn()
			callbacksRun.Inc()
		case <-wake:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Handle binds a task to its scheduler, for components that only ever plan one task.
type Handle struct {
	s  *Scheduler
	id TaskID
}

// Handle returns a Handle for id.
func (s *Scheduler) Handle(id TaskID) Handle { return Handle{s: s, id: id} }

// PlanNow plans the bound task immediately.
func (h Handle) PlanNow() { h.s.PlanNow(h.id) }

// PlanRelative plans the bound task d from now.
func (h Handle) PlanRelative(d time.Duration) { h.s.PlanRelative(h.id, d) }
