// Package amg88xx reads the Panasonic AMG88xx (Grid-EYE) 8x8 thermopile
// array over I²C.
package amg88xx

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// I²C addresses, selected by the AD_SELECT pin.
const (
	AddrLow  uint16 = 0x68
	AddrHigh uint16 = 0x69
)

// Registers.
const (
	regPowerControl = 0x00
	regReset        = 0x01
	regFrameRate    = 0x02
	regIntControl   = 0x03
	regThermistor   = 0x0E
	regPixels       = 0x80
)

const (
	powerNormal  = 0x00
	initialReset = 0x3F
	fps10        = 0x00
	intDisabled  = 0x00

	pixelLSB      = 0.25   // °C per pixel count
	thermistorLSB = 0.0625 // °C per thermistor count
)

// Settle is how long the sensor needs after reset before the first frame is
// valid.
var Settle = 100 * time.Millisecond

// Dev is one AMG88xx on an I²C bus.
type Dev struct {
	d i2c.Dev
}

// New resets the sensor, switches it to normal mode at 10 frames per second
// and waits for it to settle.
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr != AddrLow && addr != AddrHigh {
		return nil, fmt.Errorf("amg88xx: invalid address %#x", addr)
	}
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}
	init := []struct {
		reg, val byte
	}{
		{regPowerControl, powerNormal},
		{regReset, initialReset},
		{regIntControl, intDisabled},
		{regFrameRate, fps10},
	}
	for _, w := range init {
		debug.I2C("write", addr, w.reg, 1)
		if err := d.d.Tx([]byte{w.reg, w.val}, nil); err != nil {
			return nil, fmt.Errorf("amg88xx: write register %#02x: %w", w.reg, err)
		}
	}
	time.Sleep(Settle)
	debug.Info("AMG88xx ready at %#x", addr)
	return d, nil
}

// ReadPixels returns the 64 readings in row-major order, in °C.
func (d *Dev) ReadPixels() ([thermal.Cells]float64, error) {
	var out [thermal.Cells]float64
	buf := make([]byte, 2*thermal.Cells)
	debug.I2C("read", d.d.Addr, regPixels, len(buf))
	if err := d.d.Tx([]byte{regPixels}, buf); err != nil {
		return out, fmt.Errorf("amg88xx: read pixels: %w", err)
	}
	for i := range out {
		raw := binary.LittleEndian.Uint16(buf[2*i:])
		out[i] = float64(twosComplement12(raw)) * pixelLSB
	}
	return out, nil
}

// Thermistor returns the on-chip reference temperature in °C.
func (d *Dev) Thermistor() (float64, error) {
	buf := make([]byte, 2)
	debug.I2C("read", d.d.Addr, regThermistor, len(buf))
	if err := d.d.Tx([]byte{regThermistor}, buf); err != nil {
		return 0, fmt.Errorf("amg88xx: read thermistor: %w", err)
	}
	return float64(signMagnitude12(binary.LittleEndian.Uint16(buf))) * thermistorLSB, nil
}

// Halt puts the sensor in sleep mode.
func (d *Dev) Halt() error {
	debug.I2C("write", d.d.Addr, regPowerControl, 1)
	if err := d.d.Tx([]byte{regPowerControl, 0x10}, nil); err != nil {
		return fmt.Errorf("amg88xx: sleep: %w", err)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("AMG88xx{%s}", &d.d)
}

func twosComplement12(v uint16) int {
	v &= 0x0FFF
	if v&0x0800 != 0 {
		return int(v) - 0x1000
	}
	return int(v)
}

func signMagnitude12(v uint16) int {
	m := int(v & 0x07FF)
	if v&0x0800 != 0 {
		return -m
	}
	return m
}

// Board owns a host I²C bus and the sensor on it.
type Board struct {
	*Dev
	bus i2c.BusCloser
}

// Open initializes the host drivers, opens busName ("" for the first bus)
// and brings up the sensor at addr.
func Open(busName string, addr uint16) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("amg88xx: host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("amg88xx: open I²C bus %q: %w", busName, err)
	}
	dev, err := New(bus, addr)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	if t, err := dev.Thermistor(); err == nil {
		debug.Value("AMG88xx thermistor", fmt.Sprintf("%.2f°C", t))
	}
	return &Board{Dev: dev, bus: bus}, nil
}

// Close puts the sensor to sleep and releases the bus.
func (b *Board) Close() error {
	herr := b.Halt()
	if err := b.bus.Close(); err != nil {
		return fmt.Errorf("amg88xx: close bus: %w", err)
	}
	return herr
}
