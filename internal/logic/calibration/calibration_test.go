package calibration

import (
	"errors"
	"math"
	"testing"
)

func TestSetRange_AcceptsAnyFinite(t *testing.T) {
	cases := []struct {
		name     string
		min, max float64
	}{
		{"normal", 20, 30},
		{"degenerate", 25, 25},
		{"inverted", 35, 20},
		{"negative", -40, -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Range{Min: 26, Max: 32})
			if err := s.SetRange(tc.min, tc.max); err != nil {
				t.Fatalf("SetRange(%v, %v): %v", tc.min, tc.max, err)
			}
			if got := s.Range(); got.Min != tc.min || got.Max != tc.max {
				t.Errorf("Range() = %+v, want {%v %v}", got, tc.min, tc.max)
			}
		})
	}
}

func TestSetRange_RejectsNonFinite(t *testing.T) {
	cases := []struct {
		name     string
		min, max float64
	}{
		{"nan_min", math.NaN(), 30},
		{"nan_max", 20, math.NaN()},
		{"inf_min", math.Inf(-1), 30},
		{"inf_max", 20, math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Range{Min: 26, Max: 32})
			called := false
			s.OnChange = func(Range) { called = true }
			err := s.SetRange(tc.min, tc.max)
			if !errors.Is(err, ErrNonFinite) {
				t.Errorf("err = %v, want ErrNonFinite", err)
			}
			if got := s.Range(); got != (Range{Min: 26, Max: 32}) {
				t.Errorf("range changed to %+v after rejected update", got)
			}
			if called {
				t.Error("OnChange must not run for a rejected update")
			}
		})
	}
}

func TestSetRange_NotifiesSynchronously(t *testing.T) {
	s := New(Range{Min: 26, Max: 32})
	var got []Range
	s.OnChange = func(r Range) { got = append(got, r) }

	_ = s.SetRange(20, 40)
	_ = s.SetRange(21, 41)

	if len(got) != 2 {
		t.Fatalf("OnChange called %d times, want 2", len(got))
	}
	if got[1] != (Range{Min: 21, Max: 41}) {
		t.Errorf("last notification = %+v, want {21 41}", got[1])
	}
}

func TestRange_Predicates(t *testing.T) {
	if !(Range{Min: 5, Max: 5}).Degenerate() {
		t.Error("min == max should be degenerate")
	}
	if (Range{Min: 5, Max: 6}).Degenerate() {
		t.Error("min < max should not be degenerate")
	}
	if !(Range{Min: 7, Max: 6}).Inverted() {
		t.Error("min > max should be inverted")
	}
	if got := (Range{Min: 26, Max: 32}).String(); got != "26.0°C - 32.0°C" {
		t.Errorf("String() = %q", got)
	}
}
