// Package readings holds the most recent sensor samples for the renderer.
//
// A Cache is owned by the scheduler goroutine: sensor pollers hand their samples to the scheduler
// with Post, and the renderer reads them from a task.  Samples never expire; a failed read simply
// leaves the previous value in place until the next periodic sample overwrites it.
package readings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	temperatureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cached_temperature_celsius",
		Help: "most recent temperature sample shown on the clock face",
	})
	voltageGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cached_battery_volts",
		Help: "most recent battery voltage sample shown on the clock face",
	})
)

// Cache is the last temperature and battery voltage seen.
type Cache struct {
	temperature    float64 // degrees Celsius
	voltage        float64 // volts
	hasTemperature bool
	hasVoltage     bool
}

// SetTemperature records a temperature sample in degrees Celsius.
func (c *Cache) SetTemperature(celsius float64) {
	c.temperature = celsius
	c.hasTemperature = true
	temperatureGauge.Set(celsius)
}

// SetVoltage records a battery voltage sample in volts.
func (c *Cache) SetVoltage(volts float64) {
	c.voltage = volts
	c.hasVoltage = true
	voltageGauge.Set(volts)
}

// Temperature returns the last temperature and whether any sample has arrived yet.  Before the
// first sample the zero value is returned, which is what the face shows.
func (c *Cache) Temperature() (float64, bool) { return c.temperature, c.hasTemperature }

// Voltage returns the last battery voltage and whether any sample has arrived yet.
func (c *Cache) Voltage() (float64, bool) { return c.voltage, c.hasVoltage }
