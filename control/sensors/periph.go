package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/bmxx80"
)

// BME280Addr is the BME280's address with SDO pulled high.
const BME280Addr = 0x77

// BME280 reads temperature from a Bosch BME280 environmental sensor.
type BME280 struct {
	dev *bmxx80.Dev
}

// NewBME280 initializes the BME280 at addr.
func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	opts := bmxx80.Opts{Temperature: bmxx80.O16x, Pressure: bmxx80.O1x, Humidity: bmxx80.O1x}
	dev, err := bmxx80.NewI2C(bus, addr, &opts)
	if err != nil {
		return nil, fmt.Errorf("init bme280: %w", err)
	}
	return &BME280{dev: dev}, nil
}

// Temperature implements Thermometer.
func (b *BME280) Temperature() (float64, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return 0, fmt.Errorf("sense: %w", err)
	}
	return celsius(e.Temperature), nil
}

// Halt stops the sensor.
func (b *BME280) Halt() error { return b.dev.Halt() }

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}

// ADS1115Addr is the ADS1115's address with ADDR tied to ground.
const ADS1115Addr = 0x48

var ads1115Channels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// Battery measures the battery through a resistor divider on one input of an ADS1115.
type Battery struct {
	pin     ads1x15.PinADC
	divider float64
}

// NewBattery opens channel (0-3) of the ADS1115 at addr.  Readings are multiplied by divider to
// undo the resistor divider in front of the input.
func NewBattery(bus i2c.Bus, addr uint16, channel int, divider float64) (*Battery, error) {
	if channel < 0 || channel >= len(ads1115Channels) {
		return nil, fmt.Errorf("ads1115 has no channel %d", channel)
	}
	if divider <= 0 {
		divider = 1
	}
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("init ads1115: %w", err)
	}
	pin, err := adc.PinForChannel(ads1115Channels[channel], 4096*physic.MilliVolt, 8*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("open ads1115 channel %d: %w", channel, err)
	}
	return &Battery{pin: pin, divider: divider}, nil
}

// Voltage implements BatteryMonitor.
func (b *Battery) Voltage() (float64, error) {
	s, err := b.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	return float64(s.V) / float64(physic.Volt) * b.divider, nil
}

// Halt releases the ADC input.
func (b *Battery) Halt() error {
	if err := b.pin.Halt(); err != nil {
		return fmt.Errorf("halt ads1115 pin: %w", err)
	}
	return nil
}
