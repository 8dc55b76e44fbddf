// Package orientation turns accelerometer gravity samples into the face of the clock body that is
// facing up, treating the enclosure like a die.
//
// Face numbering follows a die: opposite faces add up to 7.  With the display facing the viewer:
//
//	+Z (lying on its back)   1      -Z (face down)            6
//	+X (on its right side)   2      -X (on its left side)     5
//	+Y (upside down)         3      -Y (standing normally)    4
package orientation

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var samplesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "orientation_samples_total",
	Help: "accelerometer samples classified, by resulting face",
}, []string{"face"})

// Vector is a gravity sample in units of g.
type Vector struct {
	X, Y, Z float64
}

// Magnitude returns the length of the vector.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vector) String() string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f]", v.X, v.Y, v.Z)
}

// Face is the upward-facing side of the enclosure.
type Face int

const (
	FaceUnknown Face = iota
	Face1
	Face2
	Face3
	Face4
	Face5
	Face6
)

func (f Face) String() string {
	if f < Face1 || f > Face6 {
		return "unknown"
	}
	return fmt.Sprintf("%d", int(f))
}

const (
	// DefaultThreshold is the fraction of the total acceleration that the dominant axis must
	// carry before the classifier commits to a new face.
	DefaultThreshold = 0.8

	// Samples whose magnitude is outside [minGravity, maxGravity] are taken while the device is
	// being moved and say nothing about which side is down.
	minGravity = 0.5
	maxGravity = 1.5
)

// Classifier maps gravity vectors to faces.  It keeps the last face it reported so that tilted or
// shaken samples do not flap between faces; only a clear reading on a new axis moves it.
type Classifier struct {
	Threshold float64
	face      Face
}

// NewClassifier returns a classifier that reports initial until it sees a clear sample.
func NewClassifier(initial Face) *Classifier {
	return &Classifier{Threshold: DefaultThreshold, face: initial}
}

// Feed classifies one sample and returns the current face.
func (c *Classifier) Feed(v Vector) Face {
	m := v.Magnitude()
	if m < minGravity || m > maxGravity {
		return c.face
	}
	axes := [3]struct {
		value    float64
		pos, neg Face
	}{
		{v.X, Face2, Face5},
		{v.Y, Face3, Face4},
		{v.Z, Face1, Face6},
	}
	best := 0
	for i := range axes {
		if math.Abs(axes[i].value) > math.Abs(axes[best].value) {
			best = i
		}
	}
	a := axes[best]
	if math.Abs(a.value)/m < c.Threshold {
		return c.face
	}
	if a.value > 0 {
		c.face = a.pos
	} else {
		c.face = a.neg
	}
	return c.face
}

// Sink receives every classified face; it is responsible for debouncing.
type Sink interface {
	NoteOrientation(Face)
}

// Monitor feeds accelerometer samples through a classifier into a sink.
type Monitor struct {
	classifier *Classifier
	sink       Sink
}

// NewMonitor returns a monitor with a fresh classifier that starts out not knowing the face.
func NewMonitor(sink Sink) *Monitor {
	return &Monitor{classifier: NewClassifier(FaceUnknown), sink: sink}
}

// Feed classifies a sample and passes the face on.  Repeats are passed on too; the sink's
// one-slot memory turns them into no-ops.
func (m *Monitor) Feed(v Vector) {
	f := m.classifier.Feed(v)
	samplesClassified.WithLabelValues(f.String()).Inc()
	m.sink.NoteOrientation(f)
}
