// Package config describes how the clock's hardware is wired up.
//
// Values come from built-in defaults, then an optional YAML file named by -config, then any flags
// given explicitly on the command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jrockway/dice-clock/control/input"
	"github.com/jrockway/dice-clock/control/power"
	"github.com/jrockway/dice-clock/control/sensors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Device kinds.
const (
	None     = "none"
	TMP112   = "tmp112"
	BME280   = "bme280"
	LIS2DH12 = "lis2dh12"
	ADS1115  = "ads1115"
	SSD1306  = "ssd1306"
	Software = "software"
	DS3231   = "ds3231"
)

// Display is the screen the clock face is drawn on.
type Display struct {
	Kind string `yaml:"kind"`
	SPI  string `yaml:"spi"` // SPI port; empty means I2C
	DC   string `yaml:"dc"`  // data/command pin, SPI only
}

// Buttons are the two side buttons.
type Buttons struct {
	Left  string        `yaml:"left"`
	Right string        `yaml:"right"`
	Hold  time.Duration `yaml:"hold"`
}

// Sensor is a periodically sampled I2C sensor.
type Sensor struct {
	Kind     string        `yaml:"kind"`
	Addr     uint16        `yaml:"addr"` // 0 means the usual address for Kind
	Interval time.Duration `yaml:"interval"`
}

// Battery is the battery monitor.
type Battery struct {
	Sensor  `yaml:",inline"`
	Channel int     `yaml:"channel"`
	Divider float64 `yaml:"divider"`
}

// Config is the whole configuration.
type Config struct {
	I2C           string  `yaml:"i2c"`
	Display       Display `yaml:"display"`
	Buttons       Buttons `yaml:"buttons"`
	Thermometer   Sensor  `yaml:"thermometer"`
	Accelerometer Sensor  `yaml:"accelerometer"`
	Battery       Battery `yaml:"battery"`
	RTC           string  `yaml:"rtc"`
	LED           string  `yaml:"led"`      // status led pin, pulsed at boot; empty disables
	Governor      string  `yaml:"governor"` // cpufreq scaling_governor file; empty disables
	Debug         string  `yaml:"debug"`    // address for the debug server; empty disables
	Simulate      bool    `yaml:"simulate"`
}

// Default returns the configuration of the reference hardware.
func Default() *Config {
	c := defaults()
	c.resolveAddrs()
	return c
}

// defaults is Default with the sensor addresses left for resolveAddrs, so that picking a different
// kind of sensor also picks that sensor's address.
func defaults() *Config {
	return &Config{
		Display: Display{Kind: SSD1306, DC: "GPIO25"},
		Buttons: Buttons{Left: "GPIO5", Right: "GPIO6", Hold: input.DefaultHoldTime},
		Thermometer: Sensor{
			Kind:     TMP112,
			Interval: sensors.DefaultTemperatureInterval,
		},
		Accelerometer: Sensor{
			Kind:     LIS2DH12,
			Interval: sensors.DefaultAccelerometerInterval,
		},
		Battery: Battery{
			Sensor:  Sensor{Kind: ADS1115, Interval: sensors.DefaultBatteryInterval},
			Channel: 0,
			Divider: 2,
		},
		RTC:      DS3231,
		Governor: power.DefaultGovernorPath,
		Debug:    ":8080",
	}
}

// DefaultAddr returns the usual I2C address of a kind of sensor, or 0 for kinds that are not on
// the I2C bus.
func DefaultAddr(kind string) uint16 {
	switch kind {
	case TMP112:
		return sensors.TMP112Addr
	case BME280:
		return sensors.BME280Addr
	case LIS2DH12:
		return sensors.LIS2DH12Addr
	case ADS1115:
		return sensors.ADS1115Addr
	default:
		return 0
	}
}

func (c *Config) resolveAddrs() {
	for _, s := range []*Sensor{&c.Thermometer, &c.Accelerometer, &c.Battery.Sensor} {
		if s.Addr == 0 {
			s.Addr = DefaultAddr(s.Kind)
		}
	}
}

type addrValue struct{ p *uint16 }

func (a addrValue) String() string {
	if a.p == nil || *a.p == 0 {
		return ""
	}
	return fmt.Sprintf("%#x", *a.p)
}

func (a addrValue) Set(s string) error {
	if s == "" {
		*a.p = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if v > 0x3ff {
		return fmt.Errorf("address %#x out of range", v)
	}
	*a.p = uint16(v)
	return nil
}

// bind registers a flag for every field of c, defaulting to its current value.  The display's SPI
// port is left to the caller, which can validate it against the registered buses.
func bind(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.I2C, "i2c", c.I2C, "i2c bus the sensors and rtc are on; empty for the first one")
	fs.StringVar(&c.Display.Kind, "display", c.Display.Kind, "display kind: ssd1306 or none")
	fs.StringVar(&c.Display.DC, "display-dc", c.Display.DC, "display data/command pin (spi only)")
	fs.StringVar(&c.Buttons.Left, "left-button", c.Buttons.Left, "gpio pin of the left button")
	fs.StringVar(&c.Buttons.Right, "right-button", c.Buttons.Right, "gpio pin of the right button")
	fs.DurationVar(&c.Buttons.Hold, "hold", c.Buttons.Hold, "how long a press must last to count as a hold")
	fs.StringVar(&c.Thermometer.Kind, "thermometer", c.Thermometer.Kind, "thermometer kind: tmp112, bme280 or none")
	fs.Var(addrValue{&c.Thermometer.Addr}, "thermometer-addr", "thermometer i2c address; empty for the usual one")
	fs.DurationVar(&c.Thermometer.Interval, "thermometer-interval", c.Thermometer.Interval, "how often to read the temperature")
	fs.StringVar(&c.Accelerometer.Kind, "accelerometer", c.Accelerometer.Kind, "accelerometer kind: lis2dh12 or none")
	fs.Var(addrValue{&c.Accelerometer.Addr}, "accelerometer-addr", "accelerometer i2c address; empty for the usual one")
	fs.DurationVar(&c.Accelerometer.Interval, "accelerometer-interval", c.Accelerometer.Interval, "how often to read the orientation")
	fs.StringVar(&c.Battery.Kind, "battery", c.Battery.Kind, "battery monitor kind: ads1115 or none")
	fs.Var(addrValue{&c.Battery.Addr}, "battery-addr", "battery monitor i2c address; empty for the usual one")
	fs.DurationVar(&c.Battery.Interval, "battery-interval", c.Battery.Interval, "how often to read the battery voltage")
	fs.IntVar(&c.Battery.Channel, "battery-channel", c.Battery.Channel, "adc channel the battery is on")
	fs.Float64Var(&c.Battery.Divider, "battery-divider", c.Battery.Divider, "ratio of the resistor divider in front of the adc")
	fs.StringVar(&c.RTC, "rtc", c.RTC, "real-time clock kind: ds3231 or software")
	fs.StringVar(&c.LED, "led", c.LED, "gpio pin of the status led; empty for none")
	fs.StringVar(&c.Governor, "governor", c.Governor, "cpufreq scaling_governor file to switch while setting the time; empty to disable")
	fs.StringVar(&c.Debug, "debug", c.Debug, "address to bind for the debug/metrics server; empty to disable")
	fs.BoolVar(&c.Simulate, "simulate", c.Simulate, "use simulated sensors and no display")
}

// Load parses args with fs and returns the resulting configuration.  Flags already defined on fs
// are parsed too but otherwise left alone.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	path := fs.String("config", "", "yaml file to read configuration from")
	bind(fs, defaults())
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	c := defaults()
	if *path != "" {
		if err := c.readFile(*path); err != nil {
			return nil, err
		}
	}

	// Explicit flags win over the file.
	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	bind(overrides, c)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || overrides.Lookup(f.Name) == nil {
			return
		}
		if setErr := overrides.Set(f.Name, f.Value.String()); setErr != nil {
			err = fmt.Errorf("apply flag -%s: %w", f.Name, setErr)
		}
	})
	if err != nil {
		return nil, err
	}
	c.resolveAddrs()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown kind %q (want one of %v): %w", field, value, allowed, ErrInvalid)
}

// Validate checks that the configuration makes sense.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(oneOf("display", c.Display.Kind, SSD1306, None))
	add(oneOf("thermometer", c.Thermometer.Kind, TMP112, BME280, None))
	add(oneOf("accelerometer", c.Accelerometer.Kind, LIS2DH12, None))
	add(oneOf("battery", c.Battery.Kind, ADS1115, None))
	add(oneOf("rtc", c.RTC, DS3231, Software))
	for _, d := range []struct {
		name string
		d    time.Duration
	}{
		{"hold", c.Buttons.Hold},
		{"thermometer interval", c.Thermometer.Interval},
		{"accelerometer interval", c.Accelerometer.Interval},
		{"battery interval", c.Battery.Interval},
	} {
		if d.d <= 0 {
			add(fmt.Errorf("%s: must be positive, not %v: %w", d.name, d.d, ErrInvalid))
		}
	}
	if c.Battery.Channel < 0 || c.Battery.Channel > 3 {
		add(fmt.Errorf("battery channel: %d is not between 0 and 3: %w", c.Battery.Channel, ErrInvalid))
	}
	if c.Battery.Divider <= 0 {
		add(fmt.Errorf("battery divider: must be positive, not %v: %w", c.Battery.Divider, ErrInvalid))
	}
	if c.Display.Kind == SSD1306 && c.Display.SPI != "" && c.Display.DC == "" {
		add(fmt.Errorf("display: spi displays need a dc pin: %w", ErrInvalid))
	}
	return errors.Join(errs...)
}
