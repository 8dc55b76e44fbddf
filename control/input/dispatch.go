// Package input turns the two side buttons into gestures and gestures into controller operations.
package input

import (
	"fmt"
	"time"

	"github.com/jrockway/dice-clock/control/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gesturesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "input_gestures_total",
	Help: "button gestures handled, by gesture and the mode they arrived in",
}, []string{"gesture", "mode"})

// Gesture is a recognized button action.
type Gesture int

const (
	GestureBothHold Gesture = iota
	GestureLeftHold
	GestureRightHold
	GestureLeftClick
	GestureRightClick
)

func (g Gesture) String() string {
	switch g {
	case GestureBothHold:
		return "both-hold"
	case GestureLeftHold:
		return "left-hold"
	case GestureRightHold:
		return "right-hold"
	case GestureLeftClick:
		return "left-click"
	case GestureRightClick:
		return "right-click"
	default:
		return fmt.Sprintf("Gesture(%d)", int(g))
	}
}

// SettleDelay is how far ahead a gesture plans the next render, giving the display controller
// time to finish whatever it was doing.
const SettleDelay = 10 * time.Millisecond

// Planner plans the render task.
type Planner interface {
	PlanRelative(d time.Duration)
}

// Dispatcher applies gestures to the clock controller.
type Dispatcher struct {
	ctrl   *clock.Controller
	render Planner
}

// NewDispatcher returns a dispatcher for ctrl.
func NewDispatcher(ctrl *clock.Controller, render Planner) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, render: render}
}

// adjustment is what a click does to the field under each set-mode cursor position.
type adjustment struct {
	field clock.Field
	delta int
}

var (
	leftClickAdjustments  = [...]adjustment{{clock.FieldHour, -1}, {clock.FieldMinute, -10}, {clock.FieldMinute, -1}}
	rightClickAdjustments = [...]adjustment{{clock.FieldHour, +1}, {clock.FieldMinute, +10}, {clock.FieldMinute, +1}}
)

// Handle applies one gesture.  Buttons do nothing in stopwatch mode; the stopwatch is only left by
// turning the clock over.
func (d *Dispatcher) Handle(g Gesture) {
	d.render.PlanRelative(SettleDelay)

	mode := d.ctrl.Mode()
	gesturesHandled.WithLabelValues(g.String(), mode.String()).Inc()
	switch mode {
	case clock.ModeDisplay:
		switch g {
		case GestureBothHold:
			d.ctrl.Toggle(clock.ToggleSeconds)
		case GestureLeftHold:
			d.ctrl.EnterSetMode(clock.CursorMinutes)
		case GestureRightHold:
			d.ctrl.EnterSetMode(clock.CursorHour)
		case GestureLeftClick:
			d.ctrl.Toggle(clock.ToggleTemperature)
		case GestureRightClick:
			d.ctrl.Toggle(clock.ToggleVoltage)
		}
	case clock.ModeSet:
		switch g {
		case GestureBothHold:
			d.ctrl.Toggle(clock.ToggleSeconds)
		case GestureLeftHold:
			d.ctrl.AdvanceCursor(-1)
		case GestureRightHold:
			d.ctrl.AdvanceCursor(+1)
		case GestureLeftClick:
			a := leftClickAdjustments[d.ctrl.Cursor()]
			d.ctrl.AdjustTime(a.field, a.delta)
		case GestureRightClick:
			a := rightClickAdjustments[d.ctrl.Cursor()]
			d.ctrl.AdjustTime(a.field, a.delta)
		}
	}
}
