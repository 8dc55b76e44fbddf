package sensors

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jrockway/dice-clock/control/orientation"
	"periph.io/x/conn/v3/i2c"
)

// LIS2DH12Addr is the LIS2DH12's address with SA0 pulled high.
const LIS2DH12Addr = 0x19

type lisRegister uint8

const (
	lisWhoAmI lisRegister = 0x0f
	lisCtrl1  lisRegister = 0x20
	lisCtrl4  lisRegister = 0x23
	lisOutX   lisRegister = 0x28

	lisAutoIncrement = 0x80
	lisDeviceID      = 0x33

	lisODR1Hz    = 0x10
	lisXYZEnable = 0x07
	lisBDU       = 0x80 // don't update output registers between reading the low and high bytes
	lisHighRes   = 0x08 // 12-bit output at +/-2g
	lisGPerLSB   = 0.001
)

// LIS2DH12 is a three-axis accelerometer.
//
// Datasheet: https://www.st.com/resource/en/datasheet/lis2dh12.pdf
type LIS2DH12 struct {
	dev i2c.Dev
}

// NewLIS2DH12 checks the identity of the chip at addr and starts it sampling at 1Hz.
func NewLIS2DH12(bus i2c.Bus, addr uint16) (*LIS2DH12, error) {
	d := &LIS2DH12{dev: i2c.Dev{Bus: bus, Addr: addr}}
	var id [1]byte
	if err := d.readRegister(lisWhoAmI, id[:]); err != nil {
		return nil, fmt.Errorf("read device id: %w", err)
	}
	if got, want := id[0], byte(lisDeviceID); got != want {
		return nil, fmt.Errorf("device at %#x is not a LIS2DH12 (got: %#x, want: %#x): %w", addr, got, want, ErrWrongDevice)
	}
	if err := d.writeRegister(lisCtrl1, lisODR1Hz|lisXYZEnable); err != nil {
		return nil, fmt.Errorf("write ctrl1: %w", err)
	}
	if err := d.writeRegister(lisCtrl4, lisBDU|lisHighRes); err != nil {
		return nil, fmt.Errorf("write ctrl4: %w", err)
	}
	return d, nil
}

func (d *LIS2DH12) readRegister(r lisRegister, out []byte) error {
	if len(out) > 1 {
		r |= lisAutoIncrement
	}
	if err := d.dev.Tx([]byte{byte(r)}, out); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

func (d *LIS2DH12) writeRegister(r lisRegister, data byte) error {
	if err := d.dev.Tx([]byte{byte(r), data}, nil); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

// Acceleration implements Accelerometer.
func (d *LIS2DH12) Acceleration() (orientation.Vector, error) {
	var buf [6]byte
	if err := d.readRegister(lisOutX, buf[:]); err != nil {
		return orientation.Vector{}, fmt.Errorf("read output registers: %w", err)
	}
	var raw struct{ X, Y, Z int16 }
	if err := binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &raw); err != nil {
		return orientation.Vector{}, fmt.Errorf("binary.Read: %w", err)
	}
	g := func(v int16) float64 { return float64(v>>4) * lisGPerLSB }
	return orientation.Vector{X: g(raw.X), Y: g(raw.Y), Z: g(raw.Z)}, nil
}

func (d *LIS2DH12) String() string { return fmt.Sprintf("LIS2DH12{%s}", &d.dev) }
