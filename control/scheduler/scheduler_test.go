package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time { return f.t }

func TestLatestPlanWins(t *testing.T) {
	clk := &fakeTime{t: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)}
	s := New(clk.now)
	var runs int
	id := s.Register("render", func() { runs++ })

	s.PlanRelative(id, 5*time.Second)
	s.PlanRelative(id, 10*time.Millisecond)
	due, ok := s.Due(id)
	if !ok {
		t.Fatal("task not planned")
	}
	if got, want := due.Sub(clk.t), 10*time.Millisecond; got != want {
		t.Errorf("deadline after replanning sooner:\n  got: %v\n want: %v", got, want)
	}

	s.PlanRelative(id, time.Second)
	s.Step(clk.t.Add(500 * time.Millisecond))
	if got, want := runs, 0; got != want {
		t.Errorf("runs before the later deadline:\n  got: %v\n want: %v", got, want)
	}

	s.Step(clk.t.Add(time.Second))
	if got, want := runs, 1; got != want {
		t.Errorf("runs at the deadline:\n  got: %v\n want: %v", got, want)
	}
	s.Step(clk.t.Add(time.Hour))
	if got, want := runs, 1; got != want {
		t.Errorf("runs after the task did not replan itself:\n  got: %v\n want: %v", got, want)
	}
}

func TestPlanCurrentRelative(t *testing.T) {
	clk := &fakeTime{t: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)}
	s := New(clk.now)
	var runs int
	id := s.Register("render", func() {
		runs++
		s.PlanCurrentRelative(330 * time.Millisecond)
	})
	s.PlanNow(id)
	for i := 0; i < 3; i++ {
		s.Step(clk.t)
		clk.t = clk.t.Add(330 * time.Millisecond)
	}
	if got, want := runs, 3; got != want {
		t.Errorf("runs of self-replanning task:\n  got: %v\n want: %v", got, want)
	}
	next, ok := s.Next()
	if !ok {
		t.Fatal("self-replanning task is not planned")
	}
	if got, want := next, clk.t; !got.Equal(want) {
		t.Errorf("next deadline:\n  got: %v\n want: %v", got, want)
	}
}

func TestPlanCurrentRelativeOutsideTask(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("PlanCurrentRelative outside a task did not panic")
		}
	}()
	New(nil).PlanCurrentRelative(time.Second)
}

func TestHandle(t *testing.T) {
	clk := &fakeTime{t: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)}
	s := New(clk.now)
	s.Register("other", func() {})
	id := s.Register("render", func() {})
	h := s.Handle(id)

	h.PlanRelative(10 * time.Millisecond)
	if due, _ := s.Due(id); !due.Equal(clk.t.Add(10 * time.Millisecond)) {
		t.Errorf("due after PlanRelative: %v", due)
	}
	h.PlanNow()
	if due, _ := s.Due(id); !due.Equal(clk.t) {
		t.Errorf("due after PlanNow: %v", due)
	}
	if _, ok := s.Due(0); ok {
		t.Error("handle planned the wrong task")
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(nil)

	ran := make(chan string, 10)
	id := s.Register("render", func() { ran <- "task" })

	errCh := make(chan error)
	go func() {
		errCh <- s.Run(ctx)
		close(errCh)
	}()

	// Callbacks are the only way to touch scheduler state from another goroutine.
	if !s.Post(ctx, func() {
		ran <- "callback"
		s.PlanRelative(id, 10*time.Millisecond)
	}) {
		t.Fatal("post failed")
	}

	for _, want := range []string{"callback", "task"} {
		select {
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		case got := <-ran:
			if got != want {
				t.Errorf("run order:\n  got: %v\n want: %v", got, want)
			}
		}
	}

	cancel()
	select {
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for cancel")
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error after cancel: %v", err)
		}
	}
	if s.Post(ctx, func() {}) {
		t.Error("post succeeded after the context was cancelled")
	}
}
