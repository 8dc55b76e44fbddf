package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrockway/dice-clock/control/sensors"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clock.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := *c, *Default(); got != want {
		t.Errorf("config:\n  got: %+v\n want: %+v", got, want)
	}
	if got, want := c.Buttons.Hold, 400*time.Millisecond; got != want {
		t.Errorf("hold:\n  got: %v\n want: %v", got, want)
	}
	if got, want := c.Accelerometer.Interval, 2*time.Second; got != want {
		t.Errorf("accelerometer interval:\n  got: %v\n want: %v", got, want)
	}
	for _, test := range []struct {
		name string
		got  uint16
		want uint16
	}{
		{"thermometer", c.Thermometer.Addr, 0x49},
		{"accelerometer", c.Accelerometer.Addr, 0x19},
		{"battery", c.Battery.Addr, 0x48},
	} {
		if test.got != test.want {
			t.Errorf("%s address:\n  got: %#x\n want: %#x", test.name, test.got, test.want)
		}
	}
}

func TestBME280DefaultAddr(t *testing.T) {
	testData := []struct {
		name string
		args func(t *testing.T) []string
		want uint16
	}{
		{
			name: "flag",
			args: func(t *testing.T) []string { return []string{"-thermometer", "bme280"} },
			want: sensors.BME280Addr,
		},
		{
			name: "file",
			args: func(t *testing.T) []string {
				return []string{"-config", writeConfig(t, "thermometer:\n  kind: bme280\n")}
			},
			want: sensors.BME280Addr,
		},
		{
			name: "explicit address",
			args: func(t *testing.T) []string { return []string{"-thermometer", "bme280", "-thermometer-addr", "0x76"} },
			want: 0x76,
		},
		{
			name: "address in file, kind on command line",
			args: func(t *testing.T) []string {
				return []string{"-config", writeConfig(t, "thermometer:\n  addr: 0x76\n"), "-thermometer", "bme280"}
			},
			want: 0x76,
		},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			c, err := Load(newFlagSet(), test.args(t))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got, want := c.Thermometer.Kind, BME280; got != want {
				t.Errorf("thermometer kind:\n  got: %v\n want: %v", got, want)
			}
			if got, want := c.Thermometer.Addr, test.want; got != want {
				t.Errorf("thermometer address:\n  got: %#x\n want: %#x", got, want)
			}
		})
	}
}

func TestDefaultAddr(t *testing.T) {
	testData := []struct {
		kind string
		want uint16
	}{
		{TMP112, sensors.TMP112Addr},
		{BME280, sensors.BME280Addr},
		{LIS2DH12, sensors.LIS2DH12Addr},
		{ADS1115, sensors.ADS1115Addr},
		{None, 0},
	}
	for _, test := range testData {
		if got, want := DefaultAddr(test.kind), test.want; got != want {
			t.Errorf("%s:\n  got: %#x\n want: %#x", test.kind, got, want)
		}
	}
}

func TestFileAndFlags(t *testing.T) {
	path := writeConfig(t, `
i2c: I2C1
thermometer:
  kind: bme280
  addr: 0x76
  interval: 30s
battery:
  kind: ads1115
  channel: 2
  divider: 3.5
rtc: software
debug: ""
`)
	c, err := Load(newFlagSet(), []string{"-config", path, "-thermometer-interval", "1m", "-simulate", "-led", "GPIO12"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.I2C = "I2C1"
	want.Thermometer = Sensor{Kind: BME280, Addr: 0x76, Interval: time.Minute}
	want.Battery.Channel = 2
	want.Battery.Divider = 3.5
	want.RTC = Software
	want.Debug = ""
	want.Simulate = true
	want.LED = "GPIO12"
	if got := *c; got != *want {
		t.Errorf("config:\n  got: %+v\n want: %+v", got, *want)
	}
}

func TestFlagsLeaveOtherFlagsAlone(t *testing.T) {
	fs := newFlagSet()
	spi := fs.String("display-spi", "", "")
	c, err := Load(fs, []string{"-display-spi", "SPI0.0", "-thermometer-addr", "0x48"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := *spi, "SPI0.0"; got != want {
		t.Errorf("caller's flag:\n  got: %v\n want: %v", got, want)
	}
	if got, want := c.Thermometer.Addr, uint16(0x48); got != want {
		t.Errorf("thermometer address:\n  got: %#x\n want: %#x", got, want)
	}
}

func TestUnknownFileField(t *testing.T) {
	path := writeConfig(t, "thermometr:\n  kind: tmp112\n")
	if _, err := Load(newFlagSet(), []string{"-config", path}); err == nil {
		t.Error("expected error for misspelled field")
	}
}

func TestValidate(t *testing.T) {
	testData := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"thermometer kind", func(c *Config) { c.Thermometer.Kind = "lm75" }},
		{"accelerometer kind", func(c *Config) { c.Accelerometer.Kind = "" }},
		{"rtc kind", func(c *Config) { c.RTC = "ntp" }},
		{"display kind", func(c *Config) { c.Display.Kind = "epd" }},
		{"hold", func(c *Config) { c.Buttons.Hold = 0 }},
		{"interval", func(c *Config) { c.Battery.Interval = -time.Second }},
		{"channel", func(c *Config) { c.Battery.Channel = 4 }},
		{"divider", func(c *Config) { c.Battery.Divider = 0 }},
		{"spi without dc", func(c *Config) { c.Display.SPI = "SPI0.0"; c.Display.DC = "" }},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("validate:\n  got: %v\n want: %v", err, ErrInvalid)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}
