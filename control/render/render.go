// Package render draws the clock face for the current mode and decides when to draw it next.
package render

import (
	"fmt"
	"time"

	"github.com/jrockway/dice-clock/control/clock"
	"github.com/jrockway/dice-clock/control/orientation"
	"github.com/jrockway/dice-clock/control/readings"
	"github.com/jrockway/dice-clock/control/rtc"
	"github.com/jrockway/dice-clock/control/screen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	framesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_frames_total",
		Help: "frames drawn, by mode",
	}, []string{"mode"})

	notReady = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_display_not_ready_total",
		Help: "renders postponed because the display was still busy",
	})
)

// Layout of the 128x128 canvas.
const (
	centerX      = 64
	temperatureY = 15
	timeY        = 50
	underlineY   = 85
	underlineH   = 2
	voltageY     = 100
)

// Render cadences.
const (
	RetryDelay            = 50 * time.Millisecond
	DisplayDelay          = 5000 * time.Millisecond
	DisplaySecondsDelay   = 330 * time.Millisecond
	SetDelay              = 2000 * time.Millisecond
	StopwatchRefreshDelay = 330 * time.Millisecond
)

// Surface is something that can be drawn on.
type Surface interface {
	Ready() bool
	Clear()
	SetRotation(r screen.Rotation)
	SetFont(f screen.Font)
	StringWidth(s string) int
	DrawString(x, y int, s string)
	FillRect(x0, y0, x1, y1 int)
	Update() error
}

// Performance is a resource that makes drawing faster at the cost of battery life.
type Performance interface {
	Enable()
	Disable()
}

// Renderer draws frames.  It must run on the same goroutine as the controller it reads.
type Renderer struct {
	surface  Surface
	ctrl     *clock.Controller
	rtc      rtc.Source
	readings *readings.Cache
	perf     Performance
	log      trace.EventLog
}

// New returns a Renderer.
func New(surface Surface, ctrl *clock.Controller, src rtc.Source, cache *readings.Cache, perf Performance) *Renderer {
	return &Renderer{
		surface:  surface,
		ctrl:     ctrl,
		rtc:      src,
		readings: cache,
		perf:     perf,
		log:      trace.NewEventLog("render", "renderer"),
	}
}

// RotationFor returns the rotation that keeps the time upright with face f on top.
func RotationFor(f orientation.Face) screen.Rotation {
	switch f {
	case orientation.Face2:
		return screen.Rotation270
	case orientation.Face5:
		return screen.Rotation90
	default:
		return screen.Rotation0
	}
}

// Render draws one frame and returns how long to wait before drawing the next one.
func (r *Renderer) Render() time.Duration {
	if !r.surface.Ready() {
		notReady.Inc()
		return RetryDelay
	}
	state := r.ctrl.Snapshot()
	framesRendered.WithLabelValues(state.Mode.String()).Inc()
	switch state.Mode {
	case clock.ModeSet:
		return r.renderSet(state)
	case clock.ModeStopwatch:
		return r.renderStopwatch()
	default:
		return r.renderDisplay(state)
	}
}

func (r *Renderer) drawCentered(y int, s string) {
	r.surface.DrawString(centerX-r.surface.StringWidth(s)/2, y, s)
}

func (r *Renderer) flush() {
	if err := r.surface.Update(); err != nil {
		r.log.Errorf("update display: %v", err)
	}
}

func (r *Renderer) renderDisplay(state clock.State) time.Duration {
	delay := DisplayDelay
	if state.Toggles.Seconds {
		delay = DisplaySecondsDelay
	}

	r.surface.Clear()
	r.surface.SetRotation(RotationFor(state.Face))
	r.surface.SetFont(screen.FontSmall)
	if state.Toggles.Temperature {
		t, _ := r.readings.Temperature()
		r.drawCentered(temperatureY, fmt.Sprintf("%.1f °C", t))
	}
	if state.Toggles.Voltage {
		v, _ := r.readings.Voltage()
		r.drawCentered(voltageY, fmt.Sprintf("%.1f V", v))
	}

	now, err := r.rtc.Now()
	if err != nil {
		r.log.Errorf("read rtc: %v", err)
	} else {
		tod := rtc.TimeOfDayOf(now)
		text := fmt.Sprintf("%d : %02d", tod.Hour, tod.Minute)
		if state.Toggles.Seconds {
			text = fmt.Sprintf("%d:%02d:%02d", tod.Hour, tod.Minute, tod.Second)
		}
		r.surface.SetFont(screen.FontLarge)
		r.drawCentered(timeY, text)
	}
	r.flush()
	return delay
}

func (r *Renderer) renderSet(state clock.State) time.Duration {
	r.perf.Enable()
	defer r.perf.Disable()

	r.surface.Clear()
	r.surface.SetRotation(screen.Rotation0)
	r.surface.SetFont(screen.FontLarge)

	now, err := r.rtc.Now()
	if err != nil {
		r.log.Errorf("read rtc: %v", err)
		r.flush()
		return SetDelay
	}
	tod := rtc.TimeOfDayOf(now)
	segments := [...]string{
		fmt.Sprint(tod.Hour),
		" : ",
		fmt.Sprint(tod.Minute / 10),
		fmt.Sprint(tod.Minute % 10),
	}
	var widths [len(segments)]int
	total := 0
	for i, s := range segments {
		widths[i] = r.surface.StringWidth(s)
		total += widths[i]
	}

	// Segment index under each cursor position; the separator is never selected.
	underlined := [...]int{clock.CursorHour: 0, clock.CursorTensOfMinutes: 2, clock.CursorMinutes: 3}
	x := centerX - total/2
	for i, s := range segments {
		r.surface.DrawString(x, timeY, s)
		if state.Cursor >= 0 && state.Cursor < len(underlined) && underlined[state.Cursor] == i {
			r.surface.FillRect(x, underlineY, x+widths[i]-1, underlineY+underlineH-1)
		}
		x += widths[i]
	}
	r.flush()
	return SetDelay
}

func (r *Renderer) renderStopwatch() time.Duration {
	r.surface.Clear()
	r.surface.SetRotation(screen.Rotation180)
	r.surface.SetFont(screen.FontLarge)

	now, err := r.rtc.Now()
	if err != nil {
		r.log.Errorf("read rtc: %v", err)
	} else {
		elapsed := int64(r.ctrl.StopwatchElapsed(now) / time.Second)
		r.drawCentered(timeY, fmt.Sprintf("%d : %02d", elapsed/60, elapsed%60))
	}
	r.flush()
	return StopwatchRefreshDelay
}
