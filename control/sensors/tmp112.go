package sensors

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// TMP112Addr is the TMP112's address with ADD0 tied to V+.  Tied to ground it would collide with
// the ADS1115.
const TMP112Addr = 0x49

const (
	tmp112Temperature = 0x00
	tmp112Config      = 0x01

	// Continuous conversion at 0.25Hz, comparator mode, 12-bit readings.
	tmp112ConfigHigh = 0x60
	tmp112ConfigLow  = 0x20

	tmp112Resolution = 0.0625 // degrees Celsius per LSB
)

// TMP112 is a low-power digital thermometer.
//
// Datasheet: https://www.ti.com/lit/ds/symlink/tmp112.pdf
type TMP112 struct {
	dev i2c.Dev
}

// NewTMP112 configures the TMP112 at addr.
func NewTMP112(bus i2c.Bus, addr uint16) (*TMP112, error) {
	t := &TMP112{dev: i2c.Dev{Bus: bus, Addr: addr}}
	if err := t.dev.Tx([]byte{tmp112Config, tmp112ConfigHigh, tmp112ConfigLow}, nil); err != nil {
		return nil, fmt.Errorf("write config register: %w", err)
	}
	return t, nil
}

// Temperature implements Thermometer.
func (t *TMP112) Temperature() (float64, error) {
	var buf [2]byte
	if err := t.dev.Tx([]byte{tmp112Temperature}, buf[:]); err != nil {
		return 0, fmt.Errorf("read temperature register: %w", err)
	}
	var raw int16
	if err := binary.Read(bytes.NewReader(buf[:]), binary.BigEndian, &raw); err != nil {
		return 0, fmt.Errorf("binary.Read: %w", err)
	}
	// The reading is left-justified; the arithmetic shift keeps the sign.
	return float64(raw>>4) * tmp112Resolution, nil
}

func (t *TMP112) String() string { return fmt.Sprintf("TMP112{%s}", &t.dev) }
