package main

import (
	"fmt"
	"log"
	"time"

	"github.com/jrockway/dice-clock/control/config"
	"github.com/jrockway/dice-clock/control/input"
	"github.com/jrockway/dice-clock/control/power"
	"github.com/jrockway/dice-clock/control/render"
	"github.com/jrockway/dice-clock/control/rtc"
	"github.com/jrockway/dice-clock/control/sensors"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306"
)

// hardware is every device the clock talks to.  Devices that are not fitted are nil.
type hardware struct {
	rtc           rtc.Source
	display       display.Drawer
	thermometer   sensors.Thermometer
	accelerometer sensors.Accelerometer
	battery       sensors.BatteryMonitor
	buttons       *input.Buttons
	statusLED     gpio.PinOut
	perf          render.Performance

	closers []func() error
}

func (hw *hardware) Close() {
	for i := len(hw.closers) - 1; i >= 0; i-- {
		if err := hw.closers[i](); err != nil {
			log.Printf("close device: %v", err)
		}
	}
}

func openHardware(cfg *config.Config) (_ *hardware, retErr error) {
	hw := &hardware{perf: power.Nop{}}
	if cfg.Governor != "" {
		hw.perf = power.NewGovernor(cfg.Governor)
	}
	if cfg.Simulate {
		sim := sensors.NewSimulated(time.Now, sensors.DefaultDwell)
		clk := rtc.NewSoftware(time.Now)
		clk.AssumeInitialized()
		hw.rtc = clk
		hw.thermometer, hw.accelerometer, hw.battery = sim, sim, sim
		return hw, nil
	}
	defer func() {
		if retErr != nil {
			hw.Close()
		}
	}()

	bus, err := i2creg.Open(cfg.I2C)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2C, err)
	}
	hw.closers = append(hw.closers, bus.Close)

	switch cfg.RTC {
	case config.DS3231:
		d, err := rtc.NewDS3231(bus, time.Local)
		if err != nil {
			return nil, fmt.Errorf("init ds3231: %w", err)
		}
		hw.rtc = d
	default:
		hw.rtc = rtc.NewSoftware(time.Now)
	}

	if err := hw.openSensors(cfg, bus); err != nil {
		return nil, err
	}
	if err := hw.openDisplay(cfg, bus); err != nil {
		return nil, err
	}
	if err := hw.openButtons(cfg); err != nil {
		return nil, err
	}
	if cfg.LED != "" {
		p := gpioreg.ByName(cfg.LED)
		if p == nil {
			return nil, fmt.Errorf("no gpio pin named %q for the status led", cfg.LED)
		}
		hw.statusLED = p
	}
	return hw, nil
}

func (hw *hardware) openSensors(cfg *config.Config, bus i2c.Bus) error {
	switch cfg.Thermometer.Kind {
	case config.TMP112:
		d, err := sensors.NewTMP112(bus, cfg.Thermometer.Addr)
		if err != nil {
			return fmt.Errorf("init tmp112: %w", err)
		}
		hw.thermometer = d
	case config.BME280:
		d, err := sensors.NewBME280(bus, cfg.Thermometer.Addr)
		if err != nil {
			return err
		}
		hw.thermometer = d
		hw.closers = append(hw.closers, d.Halt)
	}

	if cfg.Accelerometer.Kind == config.LIS2DH12 {
		d, err := sensors.NewLIS2DH12(bus, cfg.Accelerometer.Addr)
		if err != nil {
			return fmt.Errorf("init lis2dh12: %w", err)
		}
		hw.accelerometer = d
	}

	if cfg.Battery.Kind == config.ADS1115 {
		d, err := sensors.NewBattery(bus, cfg.Battery.Addr, cfg.Battery.Channel, cfg.Battery.Divider)
		if err != nil {
			return err
		}
		hw.battery = d
		hw.closers = append(hw.closers, d.Halt)
	}
	return nil
}

func (hw *hardware) openDisplay(cfg *config.Config, bus i2c.Bus) error {
	if cfg.Display.Kind != config.SSD1306 {
		return nil
	}
	opts := ssd1306.DefaultOpts
	var dev *ssd1306.Dev
	if cfg.Display.SPI != "" {
		port, err := spireg.Open(cfg.Display.SPI)
		if err != nil {
			return fmt.Errorf("open spi port %q: %w", cfg.Display.SPI, err)
		}
		hw.closers = append(hw.closers, port.Close)
		dc := gpioreg.ByName(cfg.Display.DC)
		if dc == nil {
			return fmt.Errorf("no gpio pin named %q", cfg.Display.DC)
		}
		dev, err = ssd1306.NewSPI(port, dc, &opts)
		if err != nil {
			return fmt.Errorf("init ssd1306 on %s: %w", cfg.Display.SPI, err)
		}
	} else {
		var err error
		dev, err = ssd1306.NewI2C(bus, &opts)
		if err != nil {
			return fmt.Errorf("init ssd1306 on i2c: %w", err)
		}
	}
	hw.display = dev
	hw.closers = append(hw.closers, dev.Halt)
	return nil
}

func (hw *hardware) openButtons(cfg *config.Config) error {
	left := gpioreg.ByName(cfg.Buttons.Left)
	if left == nil {
		return fmt.Errorf("no gpio pin named %q for the left button", cfg.Buttons.Left)
	}
	right := gpioreg.ByName(cfg.Buttons.Right)
	if right == nil {
		return fmt.Errorf("no gpio pin named %q for the right button", cfg.Buttons.Right)
	}
	b := &input.Buttons{Left: left, Right: right, Recognizer: input.Recognizer{Hold: cfg.Buttons.Hold}}
	if err := b.Configure(); err != nil {
		return fmt.Errorf("configure buttons: %w", err)
	}
	hw.buttons = b
	return nil
}
