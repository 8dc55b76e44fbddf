// Package sensors reads the thermometer, accelerometer and battery monitor on a fixed schedule.
//
// Sensors are read on their own goroutines.  Samples are handed to a deliver function, which is
// expected to pass them to the scheduler; a failed read is logged and skipped, and whatever was
// delivered last stays in effect.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrockway/dice-clock/control/orientation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

// ErrWrongDevice means the chip at an address identified itself as something else.
var ErrWrongDevice = errors.New("unexpected device id")

var sensorReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sensor_reads_total",
	Help: "sensor reads, by sensor and result",
}, []string{"sensor", "result"})

// Default sampling intervals.
const (
	DefaultTemperatureInterval   = 2 * time.Minute
	DefaultAccelerometerInterval = 2 * time.Second
	DefaultBatteryInterval       = 5 * time.Minute
)

// Thermometer measures ambient temperature in degrees Celsius.
type Thermometer interface {
	Temperature() (float64, error)
}

// Accelerometer measures acceleration in g.
type Accelerometer interface {
	Acceleration() (orientation.Vector, error)
}

// BatteryMonitor measures the battery voltage in volts.
type BatteryMonitor interface {
	Voltage() (float64, error)
}

// Poll calls read now and then every interval until the context is done, passing each successful
// sample to deliver.
func Poll[T any](ctx context.Context, name string, interval time.Duration, read func() (T, error), deliver func(T)) error {
	l := trace.NewEventLog("sensor", name)
	defer l.Finish()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("poll %s: %w", name, err)
		}
		v, err := read()
		if err != nil {
			sensorReads.WithLabelValues(name, "error").Inc()
			l.Errorf("read %s: %v", name, err)
		} else {
			sensorReads.WithLabelValues(name, "ok").Inc()
			l.Printf("%s: %v", name, v)
			deliver(v)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("poll %s: %w", name, ctx.Err())
		case <-t.C:
		}
	}
}
