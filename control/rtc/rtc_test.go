package rtc

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestSoftware(t *testing.T) {
	host := time.Date(2021, time.October, 30, 12, 0, 0, 0, time.UTC)
	s := NewSoftware(func() time.Time { return host })

	ok, err := s.Initialized()
	if err != nil {
		t.Fatalf("initialized: %v", err)
	}
	if ok {
		t.Error("new software rtc claims to be initialized")
	}

	want := time.Date(2021, time.October, 30, 23, 58, 0, 0, time.UTC)
	if err := s.Set(want); err != nil {
		t.Fatalf("set: %v", err)
	}
	host = host.Add(1500 * time.Millisecond)
	got, err := s.Now()
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if want := want.Add(time.Second); !got.Equal(want) {
		t.Errorf("time after set:\n  got: %v\n want: %v", got, want)
	}
	if ok, _ := s.Initialized(); !ok {
		t.Error("software rtc not initialized after set")
	}
}

func TestEnsureInitialized(t *testing.T) {
	s := NewSoftware(nil)
	set, err := EnsureInitialized(s, DefaultTime)
	if err != nil {
		t.Fatalf("ensure initialized: %v", err)
	}
	if !set {
		t.Error("uninitialized clock was not set")
	}
	now, _ := s.Now()
	if got, want := TimeOfDayOf(now), (TimeOfDay{}); got != want {
		t.Errorf("time of day after default init:\n  got: %v\n want: %v", got, want)
	}

	if err := s.Set(time.Date(2021, time.January, 1, 7, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("set: %v", err)
	}
	set, err = EnsureInitialized(s, DefaultTime)
	if err != nil {
		t.Fatalf("ensure initialized again: %v", err)
	}
	if set {
		t.Error("initialized clock was reset to the default time")
	}
}

func TestAssumeInitialized(t *testing.T) {
	host := time.Date(2021, time.October, 30, 12, 0, 0, 0, time.UTC)
	s := NewSoftware(func() time.Time { return host })
	s.AssumeInitialized()
	set, err := EnsureInitialized(s, DefaultTime)
	if err != nil {
		t.Fatalf("ensure initialized: %v", err)
	}
	if set {
		t.Error("clock assumed initialized was reset to the default time")
	}
	now, err := s.Now()
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if got, want := now, host; !got.Equal(want) {
		t.Errorf("time:\n  got: %v\n want: %v", got, want)
	}
}

func TestWithTimeOfDay(t *testing.T) {
	in := time.Date(2021, time.May, 4, 23, 58, 31, 12, time.UTC)
	got := WithTimeOfDay(in, TimeOfDay{Hour: 1, Minute: 2, Second: 0})
	want := time.Date(2021, time.May, 4, 1, 2, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("with time of day:\n  got: %v\n want: %v", got, want)
	}
}

func TestDS3231(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DS3231Addr, W: []byte{0x0e, 0x1c}},
			// Now: 2024-03-05 23:58:07, 24 hour mode.
			{Addr: DS3231Addr, W: []byte{0x00}, R: []byte{0x07, 0x58, 0x23, 0x03, 0x05, 0x03, 0x24}},
			// Now: 11:00:00 PM in 12 hour mode.
			{Addr: DS3231Addr, W: []byte{0x00}, R: []byte{0x00, 0x00, 0x71, 0x03, 0x05, 0x03, 0x24}},
			// Initialized: oscillator stop flag set.
			{Addr: DS3231Addr, W: []byte{0x0f}, R: []byte{0x88}},
			// Set 2024-03-05 (a Tuesday) 13:04:00.
			{Addr: DS3231Addr, W: []byte{0x00, 0x00, 0x04, 0x13, 0x03, 0x05, 0x03, 0x24}},
			{Addr: DS3231Addr, W: []byte{0x0f}, R: []byte{0x88}},
			{Addr: DS3231Addr, W: []byte{0x0f, 0x08}},
			// Initialized: flag cleared.
			{Addr: DS3231Addr, W: []byte{0x0f}, R: []byte{0x08}},
		},
	}
	d, err := NewDS3231(bus, time.UTC)
	if err != nil {
		t.Fatalf("new ds3231: %v", err)
	}

	got, err := d.Now()
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if want := time.Date(2024, time.March, 5, 23, 58, 7, 0, time.UTC); !got.Equal(want) {
		t.Errorf("now (24h):\n  got: %v\n want: %v", got, want)
	}
	got, err = d.Now()
	if err != nil {
		t.Fatalf("now: %v", err)
	}
	if got, want := got.Hour(), 23; got != want {
		t.Errorf("hour (12h pm):\n  got: %v\n want: %v", got, want)
	}

	ok, err := d.Initialized()
	if err != nil {
		t.Fatalf("initialized: %v", err)
	}
	if ok {
		t.Error("ds3231 with oscillator stop flag claims to be initialized")
	}

	if err := d.Set(time.Date(2024, time.March, 5, 13, 4, 0, 0, time.UTC)); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err = d.Initialized()
	if err != nil {
		t.Fatalf("initialized: %v", err)
	}
	if !ok {
		t.Error("ds3231 not initialized after set")
	}
	if err := bus.Close(); err != nil {
		t.Errorf("playback: %v", err)
	}
}

func TestBCD(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got, want := bcdToDec(decToBCD(i)), i; got != want {
			t.Errorf("bcd round trip:\n  got: %v\n want: %v", got, want)
		}
	}
}
