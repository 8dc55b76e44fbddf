// Package clock holds the state machine behind the clock face: which mode the clock is in, which
// field is being edited, what extra readings are shown, and when the stopwatch started.
//
// A Controller is owned by the scheduler goroutine.  Its methods never fail; problems reading or
// writing the real-time clock are logged and the update is skipped.
package clock

import (
	"fmt"
	"time"

	"github.com/jrockway/dice-clock/control/orientation"
	"github.com/jrockway/dice-clock/control/rtc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	modeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clock_mode_transitions_total",
		Help: "count of mode changes, by old and new mode",
	}, []string{"from", "to"})

	timeAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clock_time_adjustments_total",
		Help: "count of user adjustments to the real-time clock, by field",
	}, []string{"field"})
)

// Mode is the top-level operating state of the clock.
type Mode int

const (
	ModeDisplay Mode = iota
	ModeSet
	ModeStopwatch
)

func (m Mode) String() string {
	switch m {
	case ModeDisplay:
		return "display"
	case ModeSet:
		return "set"
	case ModeStopwatch:
		return "stopwatch"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Field is a part of the time that can be adjusted.
type Field int

const (
	FieldHour Field = iota
	FieldMinute
)

func (f Field) String() string {
	switch f {
	case FieldHour:
		return "hour"
	case FieldMinute:
		return "minute"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Cursor positions in set mode.
const (
	CursorHour          = 0
	CursorTensOfMinutes = 1
	CursorMinutes       = 2
)

// StopwatchFace is the face that, when turned up, starts the stopwatch.
const StopwatchFace = orientation.Face3

// Toggle names one of the optional display elements.
type Toggle int

const (
	ToggleSeconds Toggle = iota
	ToggleVoltage
	ToggleTemperature
)

// Toggles are the optional display elements that are switched on.
type Toggles struct {
	Seconds, Voltage, Temperature bool
}

// Planner requests a render.
type Planner interface {
	PlanNow()
}

// State is a read-only copy of the controller state.
type State struct {
	Mode    Mode
	Cursor  int // only meaningful in ModeSet
	Toggles Toggles
	Face    orientation.Face // most recently classified face, for display rotation
}

// Controller is the clock state machine.
type Controller struct {
	rtc    rtc.Source
	render Planner
	log    trace.EventLog

	mode     Mode
	cursor   int
	toggles  Toggles
	face     orientation.Face
	lastFace orientation.Face
	anchor   int64 // rtc.Timestamp at stopwatch start
}

// New returns a controller in display mode.
func New(src rtc.Source, render Planner) *Controller {
	return &Controller{
		rtc:      src,
		render:   render,
		log:      trace.NewEventLog("controller", "clock"),
		mode:     ModeDisplay,
		face:     orientation.Face1,
		lastFace: orientation.FaceUnknown,
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	return State{Mode: c.mode, Cursor: c.cursor, Toggles: c.toggles, Face: c.face}
}

func (c *Controller) setMode(m Mode) {
	if m == c.mode {
		return
	}
	modeTransitions.WithLabelValues(c.mode.String(), m.String()).Inc()
	c.log.Printf("mode %v -> %v", c.mode, m)
	c.mode = m
}

func wrap(v, n int) int {
	return ((v % n) + n) % n
}

// AdjustTime adds delta to one field of the real-time clock, wrapping within the field.  Minutes
// never carry into hours.  Seconds are reset to zero and the clock is marked as initialized.
func (c *Controller) AdjustTime(field Field, delta int) {
	now, err := c.rtc.Now()
	if err != nil {
		c.log.Errorf("adjust %v: read rtc: %v", field, err)
		return
	}
	tod := rtc.TimeOfDayOf(now)
	switch field {
	case FieldHour:
		tod.Hour = wrap(tod.Hour+delta, 24)
	case FieldMinute:
		tod.Minute = wrap(tod.Minute+delta, 60)
	default:
		return
	}
	tod.Second = 0
	if err := c.rtc.Set(rtc.WithTimeOfDay(now, tod)); err != nil {
		c.log.Errorf("adjust %v: write rtc: %v", field, err)
	} else {
		timeAdjustments.WithLabelValues(field.String()).Inc()
	}
	c.render.PlanNow()
}

// EnterSetMode switches from display mode to set mode with the cursor at cursor.  It does nothing
// in any other mode.
func (c *Controller) EnterSetMode(cursor int) {
	if c.mode != ModeDisplay || cursor < CursorHour || cursor > CursorMinutes {
		return
	}
	c.setMode(ModeSet)
	c.cursor = cursor
}

// AdvanceCursor moves the set-mode cursor by direction.  Moving past either end leaves set mode.
func (c *Controller) AdvanceCursor(direction int) {
	if c.mode != ModeSet {
		return
	}
	next := c.cursor + direction
	if next < CursorHour || next > CursorMinutes {
		c.setMode(ModeDisplay)
		return
	}
	c.cursor = next
}

// Cursor returns the set-mode cursor.
func (c *Controller) Cursor() int { return c.cursor }

// Toggle flips one optional display element.
func (c *Controller) Toggle(t Toggle) {
	switch t {
	case ToggleSeconds:
		c.toggles.Seconds = !c.toggles.Seconds
	case ToggleVoltage:
		c.toggles.Voltage = !c.toggles.Voltage
	case ToggleTemperature:
		c.toggles.Temperature = !c.toggles.Temperature
	}
}

// Toggles returns which optional display elements are on.
func (c *Controller) Toggles() Toggles { return c.toggles }

// NoteOrientation records a classified face.  The face always updates the display rotation, but
// only a face different from the previous one can change the mode: turning StopwatchFace up in
// display mode starts the stopwatch, and turning any other face up stops it.
func (c *Controller) NoteOrientation(f orientation.Face) {
	c.face = f
	if f == c.lastFace {
		return
	}
	switch {
	case c.mode == ModeDisplay && f == StopwatchFace:
		now, err := c.rtc.Now()
		if err != nil {
			// Leave lastFace alone so the next sample tries again.
			c.log.Errorf("start stopwatch: read rtc: %v", err)
			return
		}
		c.lastFace = f
		c.anchor = rtc.Timestamp(now)
		c.setMode(ModeStopwatch)
		c.render.PlanNow()
	case c.mode == ModeStopwatch && f != StopwatchFace:
		c.lastFace = f
		c.setMode(ModeDisplay)
		c.render.PlanNow()
	default:
		c.lastFace = f
	}
}

// StopwatchElapsed returns the whole seconds between the stopwatch start and now.  It is zero
// outside stopwatch mode.
func (c *Controller) StopwatchElapsed(now time.Time) time.Duration {
	if c.mode != ModeStopwatch {
		return 0
	}
	d := rtc.Timestamp(now) - c.anchor
	if d < 0 {
		return 0
	}
	return time.Duration(d) * time.Second
}
