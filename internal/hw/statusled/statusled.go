// Package statusled drives a single active-HIGH indicator that is lit while
// the thermal sensor is delivering frames.
package statusled

import (
	"fmt"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/hw/gpio"
)

// LED is one indicator pin.
type LED struct {
	drv gpio.Driver
	pin int
	lit bool
}

// New configures pin as an output and switches it off.
func New(drv gpio.Driver, pin int) (*LED, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("status LED pin must be > 0, got %d", pin)
	}
	if err := drv.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup status LED pin %d: %w", pin, err)
	}
	if err := drv.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("init status LED pin %d: %w", pin, err)
	}
	debug.Verbose("Status LED ready on GPIO%d", pin)
	return &LED{drv: drv, pin: pin}, nil
}

// Set lights the LED when online is true. Repeated calls with the same value
// do not touch the pin.
func (l *LED) Set(online bool) error {
	if online == l.lit {
		return nil
	}
	if err := l.drv.WritePin(l.pin, gpio.Level(online)); err != nil {
		return fmt.Errorf("status LED: %w", err)
	}
	l.lit = online
	return nil
}

// Lit reports the last level written.
func (l *LED) Lit() bool {
	return l.lit
}

// Off switches the LED off.
func (l *LED) Off() error {
	return l.Set(false)
}
