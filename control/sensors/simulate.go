package sensors

import (
	"math"
	"time"

	"github.com/jrockway/dice-clock/control/orientation"
)

// DefaultDwell is how long the simulated clock rests on each face.
const DefaultDwell = 20 * time.Second

// simulatedFaces is the path the simulated clock is turned through: upright, onto the stopwatch
// face and back, then onto each side.
var simulatedFaces = []orientation.Face{
	orientation.Face4,
	orientation.Face3,
	orientation.Face4,
	orientation.Face2,
	orientation.Face5,
}

// GravityFor returns the acceleration measured with face f up.
func GravityFor(f orientation.Face) orientation.Vector {
	switch f {
	case orientation.Face1:
		return orientation.Vector{Z: 1}
	case orientation.Face2:
		return orientation.Vector{X: 1}
	case orientation.Face3:
		return orientation.Vector{Y: 1}
	case orientation.Face4:
		return orientation.Vector{Y: -1}
	case orientation.Face5:
		return orientation.Vector{X: -1}
	case orientation.Face6:
		return orientation.Vector{Z: -1}
	}
	return orientation.Vector{}
}

// Simulated stands in for all three sensors when there is no hardware.
type Simulated struct {
	now   func() time.Time
	start time.Time
	dwell time.Duration
}

// NewSimulated returns simulated sensors that start on the upright face at now().
func NewSimulated(now func() time.Time, dwell time.Duration) *Simulated {
	if now == nil {
		now = time.Now
	}
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	return &Simulated{now: now, start: now(), dwell: dwell}
}

func (s *Simulated) elapsed() time.Duration {
	d := s.now().Sub(s.start)
	if d < 0 {
		return 0
	}
	return d
}

// Acceleration implements Accelerometer.
func (s *Simulated) Acceleration() (orientation.Vector, error) {
	i := int(s.elapsed()/s.dwell) % len(simulatedFaces)
	return GravityFor(simulatedFaces[i]), nil
}

// Temperature implements Thermometer.  It drifts by a degree and a half over a day.
func (s *Simulated) Temperature() (float64, error) {
	day := s.elapsed().Hours() / 24
	return 21 + 1.5*math.Sin(2*math.Pi*day), nil
}

// Voltage implements BatteryMonitor.  The simulated coin cell loses 10mV a day.
func (s *Simulated) Voltage() (float64, error) {
	day := s.elapsed().Hours() / 24
	return math.Max(3.0-0.01*day, 2.0), nil
}
