package rtc

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DS3231Addr is the fixed I2C address of the DS3231.
const DS3231Addr = 0x68

type register uint8

const (
	regSeconds register = 0x00
	regControl register = 0x0e
	regStatus  register = 0x0f
)

const (
	statusOSF  = 0x80 // oscillator stopped since the flag was last cleared
	hour12Mode = 0x40
	hourPM     = 0x20
	century    = 2000
)

// DS3231 is a battery-backed temperature-compensated RTC.  The chip sets its oscillator-stop flag
// whenever it loses both supplies, which is exactly the "never initialized" condition; setting the
// time clears it.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS3231.pdf
type DS3231 struct {
	dev i2c.Dev
	loc *time.Location
}

// NewDS3231 returns a driver for the DS3231 on bus.  Times are interpreted in loc.
func NewDS3231(bus i2c.Bus, loc *time.Location) (*DS3231, error) {
	if loc == nil {
		loc = time.UTC
	}
	d := &DS3231{dev: i2c.Dev{Bus: bus, Addr: DS3231Addr}, loc: loc}
	// Oscillator on, square wave and alarm interrupts off.
	if err := d.writeRegister(regControl, 0x1c); err != nil {
		return nil, fmt.Errorf("write control register: %w", err)
	}
	return d, nil
}

func (d *DS3231) readRegister(r register, out []byte) error {
	if err := d.dev.Tx([]byte{byte(r)}, out); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

func (d *DS3231) writeRegister(r register, data ...byte) error {
	w := make([]byte, 1, len(data)+1)
	w[0] = byte(r)
	w = append(w, data...)
	if err := d.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

// Now implements Source.
func (d *DS3231) Now() (time.Time, error) {
	var buf [7]byte
	if err := d.readRegister(regSeconds, buf[:]); err != nil {
		return time.Time{}, fmt.Errorf("read time registers: %w", err)
	}
	sec := bcdToDec(buf[0] & 0x7f)
	min := bcdToDec(buf[1] & 0x7f)
	var hour int
	if buf[2]&hour12Mode != 0 {
		hour = bcdToDec(buf[2]&0x1f) % 12
		if buf[2]&hourPM != 0 {
			hour += 12
		}
	} else {
		hour = bcdToDec(buf[2] & 0x3f)
	}
	day := bcdToDec(buf[4] & 0x3f)
	month := time.Month(bcdToDec(buf[5] & 0x1f))
	year := bcdToDec(buf[6]) + century
	return time.Date(year, month, day, hour, min, sec, 0, d.loc), nil
}

// Set implements Source.
func (d *DS3231) Set(t time.Time) error {
	t = t.In(d.loc)
	if t.Year() < century || t.Year() > century+99 {
		return fmt.Errorf("year %d out of range", t.Year())
	}
	if err := d.writeRegister(regSeconds,
		decToBCD(t.Second()),
		decToBCD(t.Minute()),
		decToBCD(t.Hour()), // 24-hour mode
		decToBCD(int(t.Weekday())+1),
		decToBCD(t.Day()),
		decToBCD(int(t.Month())),
		decToBCD(t.Year()-century),
	); err != nil {
		return fmt.Errorf("write time registers: %w", err)
	}
	var status [1]byte
	if err := d.readRegister(regStatus, status[:]); err != nil {
		return fmt.Errorf("read status register: %w", err)
	}
	if err := d.writeRegister(regStatus, status[0]&^statusOSF); err != nil {
		return fmt.Errorf("clear oscillator stop flag: %w", err)
	}
	return nil
}

// Initialized implements Source.
func (d *DS3231) Initialized() (bool, error) {
	var status [1]byte
	if err := d.readRegister(regStatus, status[:]); err != nil {
		return false, fmt.Errorf("read status register: %w", err)
	}
	return status[0]&statusOSF == 0, nil
}

func (d *DS3231) String() string { return fmt.Sprintf("DS3231{%s}", &d.dev) }

func bcdToDec(x byte) int {
	return int(x>>4)*10 + int(x&0x0f)
}

func decToBCD(x int) byte {
	return byte(x/10)<<4 | byte(x%10)
}
