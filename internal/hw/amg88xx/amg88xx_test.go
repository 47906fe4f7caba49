package amg88xx

import (
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

func init() {
	Settle = 0
}

func initSequence(addr uint16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{0x00, 0x00}},
		{Addr: addr, W: []byte{0x01, 0x3F}},
		{Addr: addr, W: []byte{0x03, 0x00}},
		{Addr: addr, W: []byte{0x02, 0x00}},
	}
}

func TestNew(t *testing.T) {
	b := i2ctest.Playback{Ops: initSequence(AddrHigh)}
	if _, err := New(&b, AddrHigh); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_badAddress(t *testing.T) {
	b := i2ctest.Record{}
	if _, err := New(&b, 0x42); err == nil {
		t.Fatal("expected error for address 0x42")
	}
	if len(b.Ops) != 0 {
		t.Errorf("no bus traffic expected, got %d ops", len(b.Ops))
	}
}

func TestReadPixels(t *testing.T) {
	raw := make([]byte, 2*thermal.Cells)
	// 25.0°C = 100 counts.
	for i := 0; i < thermal.Cells; i++ {
		raw[2*i] = 100
	}
	// Cell 1: -0.25°C, 12-bit two's complement 0xFFF.
	raw[2], raw[3] = 0xFF, 0x0F
	// Cell 63: 80.0°C = 320 counts = 0x140.
	raw[126], raw[127] = 0x40, 0x01

	b := i2ctest.Playback{Ops: append(initSequence(AddrLow),
		i2ctest.IO{Addr: AddrLow, W: []byte{0x80}, R: raw},
	)}
	d, err := New(&b, AddrLow)
	if err != nil {
		t.Fatal(err)
	}
	px, err := d.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if px[0] != 25 {
		t.Errorf("px[0] = %v, want 25", px[0])
	}
	if px[1] != -0.25 {
		t.Errorf("px[1] = %v, want -0.25", px[1])
	}
	if px[63] != 80 {
		t.Errorf("px[63] = %v, want 80", px[63])
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadPixels_busError(t *testing.T) {
	b := i2ctest.Playback{Ops: initSequence(AddrHigh), DontPanic: true}
	d, err := New(&b, AddrHigh)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadPixels(); err == nil {
		t.Fatal("expected error once the playback is exhausted")
	}
}

func TestThermistor(t *testing.T) {
	b := i2ctest.Playback{Ops: append(initSequence(AddrHigh),
		// 0x190 = 400 counts = 25°C
		i2ctest.IO{Addr: AddrHigh, W: []byte{0x0E}, R: []byte{0x90, 0x01}},
		// sign bit set: -400 counts = -25°C
		i2ctest.IO{Addr: AddrHigh, W: []byte{0x0E}, R: []byte{0x90, 0x09}},
	)}
	d, err := New(&b, AddrHigh)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []float64{25, -25} {
		got, err := d.Thermistor()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Thermistor() = %v, want %v", got, want)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHalt(t *testing.T) {
	b := i2ctest.Playback{Ops: append(initSequence(AddrHigh),
		i2ctest.IO{Addr: AddrHigh, W: []byte{0x00, 0x10}},
	)}
	d, err := New(&b, AddrHigh)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConversions(t *testing.T) {
	cases := []struct {
		raw  uint16
		two  int
		sign int
	}{
		{0x000, 0, 0},
		{0x001, 1, 1},
		{0x7FF, 2047, 2047},
		{0x800, -2048, 0},
		{0xFFF, -1, -2047},
		{0xF064, 100, 100}, // upper nibble ignored
	}
	for _, tc := range cases {
		if got := twosComplement12(tc.raw); got != tc.two {
			t.Errorf("twosComplement12(%#x) = %d, want %d", tc.raw, got, tc.two)
		}
		if got := signMagnitude12(tc.raw); got != tc.sign {
			t.Errorf("signMagnitude12(%#x) = %d, want %d", tc.raw, got, tc.sign)
		}
	}
}
