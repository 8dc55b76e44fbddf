package sensors

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jrockway/dice-clock/control/orientation"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestTMP112(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: TMP112Addr, W: []byte{0x01, 0x60, 0x20}},
			{Addr: TMP112Addr, W: []byte{0x00}, R: []byte{0x19, 0x00}},
			{Addr: TMP112Addr, W: []byte{0x00}, R: []byte{0xe7, 0x00}},
			{Addr: TMP112Addr, W: []byte{0x00}, R: []byte{0x15, 0x30}},
		},
	}
	d, err := NewTMP112(bus, TMP112Addr)
	if err != nil {
		t.Fatalf("new tmp112: %v", err)
	}
	for _, want := range []float64{25, -25, 21.1875} {
		got, err := d.Temperature()
		if err != nil {
			t.Fatalf("read temperature: %v", err)
		}
		if got != want {
			t.Errorf("temperature:\n  got: %v\n want: %v", got, want)
		}
	}
	if err := bus.Close(); err != nil {
		t.Errorf("playback: %v", err)
	}
}

func TestLIS2DH12(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: LIS2DH12Addr, W: []byte{0x0f}, R: []byte{0x33}},
			{Addr: LIS2DH12Addr, W: []byte{0x20, 0x17}},
			{Addr: LIS2DH12Addr, W: []byte{0x23, 0x88}},
			// x=0, y=-1000mg, z=50mg
			{Addr: LIS2DH12Addr, W: []byte{0xa8}, R: []byte{0x00, 0x00, 0x80, 0xc1, 0x20, 0x03}},
		},
	}
	d, err := NewLIS2DH12(bus, LIS2DH12Addr)
	if err != nil {
		t.Fatalf("new lis2dh12: %v", err)
	}
	v, err := d.Acceleration()
	if err != nil {
		t.Fatalf("read acceleration: %v", err)
	}
	want := orientation.Vector{X: 0, Y: -1, Z: 0.05}
	if math.Abs(v.X-want.X) > 1e-9 || math.Abs(v.Y-want.Y) > 1e-9 || math.Abs(v.Z-want.Z) > 1e-9 {
		t.Errorf("acceleration:\n  got: %v\n want: %v", v, want)
	}
	if got, want := orientation.NewClassifier(orientation.FaceUnknown).Feed(v), orientation.Face4; got != want {
		t.Errorf("face:\n  got: %v\n want: %v", got, want)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("playback: %v", err)
	}
}

func TestLIS2DH12WrongDevice(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: LIS2DH12Addr, W: []byte{0x0f}, R: []byte{0x44}},
		},
	}
	if _, err := NewLIS2DH12(bus, LIS2DH12Addr); !errors.Is(err, ErrWrongDevice) {
		t.Errorf("new lis2dh12 with the wrong chip:\n  got: %v\n want: %v", err, ErrWrongDevice)
	}
}

func TestCelsius(t *testing.T) {
	if got, want := celsius(physic.ZeroCelsius+25*physic.Celsius), 25.0; got != want {
		t.Errorf("celsius:\n  got: %v\n want: %v", got, want)
	}
}

func TestPoll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	calls := 0
	read := func() (float64, error) {
		calls++
		if calls == 2 {
			return 0, errors.New("i2c: nack")
		}
		return float64(calls), nil
	}
	var got []float64
	deliver := func(v float64) {
		got = append(got, v)
		if len(got) == 3 {
			cancel()
		}
	}
	err := Poll(ctx, "test", time.Millisecond, read, deliver)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("poll returned:\n  got: %v\n want: %v", err, context.Canceled)
	}
	if want := []float64{1, 3, 4}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("delivered:\n  got: %v\n want: %v", got, want)
	}
}

func TestSimulated(t *testing.T) {
	now := time.Date(2021, time.October, 30, 12, 0, 0, 0, time.UTC)
	s := NewSimulated(func() time.Time { return now }, time.Minute)
	c := orientation.NewClassifier(orientation.FaceUnknown)

	var faces []orientation.Face
	for i := 0; i < len(simulatedFaces)+1; i++ {
		v, err := s.Acceleration()
		if err != nil {
			t.Fatalf("acceleration: %v", err)
		}
		faces = append(faces, c.Feed(v))
		now = now.Add(time.Minute)
	}
	want := append(append([]orientation.Face{}, simulatedFaces...), simulatedFaces[0])
	for i := range want {
		if faces[i] != want[i] {
			t.Errorf("face %d:\n  got: %v\n want: %v", i, faces[i], want[i])
		}
	}

	v, err := s.Voltage()
	if err != nil {
		t.Fatalf("voltage: %v", err)
	}
	if v <= 2 || v > 3 {
		t.Errorf("voltage out of range: %v", v)
	}
	temp, err := s.Temperature()
	if err != nil {
		t.Fatalf("temperature: %v", err)
	}
	if temp < 19 || temp > 23 {
		t.Errorf("temperature out of range: %v", temp)
	}
}

func TestGravityForEveryFace(t *testing.T) {
	for f := orientation.Face1; f <= orientation.Face6; f++ {
		c := orientation.NewClassifier(orientation.FaceUnknown)
		if got, want := c.Feed(GravityFor(f)), f; got != want {
			t.Errorf("classified gravity for face %v:\n  got: %v\n want: %v", f, got, want)
		}
	}
}
