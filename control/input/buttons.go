package input

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultHoldTime is how long a button must stay down to count as a hold instead of a click.
const DefaultHoldTime = 400 * time.Millisecond

const (
	left = iota
	right
)

// Recognizer turns button levels sampled over time into gestures.  A press shorter than Hold is a
// click when it is released; a press that reaches Hold is a hold as soon as it does, and its
// release is silent.  Holding both buttons together is a single both-hold.
type Recognizer struct {
	Hold time.Duration

	pressed [2]bool
	since   [2]time.Time
	fired   [2]bool
}

// Update feeds the current button levels (true = pressed) observed at now and returns any gestures
// that completed.
func (r *Recognizer) Update(leftDown, rightDown bool, now time.Time) []Gesture {
	var out []Gesture
	clicks := [2]Gesture{GestureLeftClick, GestureRightClick}
	holds := [2]Gesture{GestureLeftHold, GestureRightHold}
	hold := r.Hold
	if hold <= 0 {
		hold = DefaultHoldTime
	}

	for b, down := range [2]bool{leftDown, rightDown} {
		switch {
		case down && !r.pressed[b]:
			r.pressed[b] = true
			r.since[b] = now
			r.fired[b] = false
		case !down && r.pressed[b]:
			r.pressed[b] = false
			if !r.fired[b] {
				out = append(out, clicks[b])
			}
		}
	}

	held := func(b int) bool {
		return r.pressed[b] && !r.fired[b] && now.Sub(r.since[b]) >= hold
	}
	if r.pressed[left] && r.pressed[right] {
		if held(left) && held(right) {
			r.fired[left], r.fired[right] = true, true
			out = append(out, GestureBothHold)
		}
		return out
	}
	for _, b := range []int{left, right} {
		if held(b) {
			r.fired[b] = true
			out = append(out, holds[b])
		}
	}
	return out
}

// DefaultPollInterval is how often Buttons samples the pins.
const DefaultPollInterval = 10 * time.Millisecond

// Buttons reads two active-low push buttons.
type Buttons struct {
	Left, Right gpio.PinIn
	Recognizer  Recognizer
	Interval    time.Duration
}

// Configure sets up the pins as pulled-up inputs.
func (b *Buttons) Configure() error {
	for _, p := range []gpio.PinIn{b.Left, b.Right} {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return fmt.Errorf("configure %s: %w", p, err)
		}
	}
	return nil
}

func (b *Buttons) sample(now time.Time) []Gesture {
	return b.Recognizer.Update(b.Left.Read() == gpio.Low, b.Right.Read() == gpio.Low, now)
}

// Run polls the buttons until the context is cancelled, calling emit for each gesture.
func (b *Buttons) Run(ctx context.Context, emit func(Gesture)) error {
	interval := b.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("poll buttons: %w", ctx.Err())
		case now := <-t.C:
			for _, g := range b.sample(now) {
				emit(g)
			}
		}
	}
}
