// Package led drives the status LED.
package led

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// BootPulse is how long the LED is lit when the clock starts.
const BootPulse = 2 * time.Second

// Pulse lights the LED on pin for d, or until ctx is done, and then turns it off again.
func Pulse(ctx context.Context, pin gpio.PinOut, d time.Duration) error {
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("turn on %s: %w", pin, err)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	var err error
	select {
	case <-t.C:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if offErr := pin.Out(gpio.Low); offErr != nil {
		return fmt.Errorf("turn off %s: %w", pin, offErr)
	}
	return err
}
