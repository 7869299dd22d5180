package lightcurve

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

// vectorsEqual compares vectors with a relative tolerance of 1e-3 (or an
// absolute one of 1e-9 for components near zero).
func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := len(a) - 1; i >= 0; i-- {
		if !scalar.EqualWithinAbsOrRel(a[i], b[i], 1e-9, 1e-3) {
			return false
		}
	}
	return true
}

// vectorsWithin compares vectors with an absolute tolerance.
func vectorsWithin(a, b []float64, ε float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !scalar.EqualWithinAbs(a[i], b[i], ε) {
			return false
		}
	}
	return true
}

// testTolerances are tight tolerances for accuracy checks.
func testTolerances() Tolerances {
	return Tolerances{RelTol: 1e-10, AbsTol: 1e-12, MaxSteps: 10000000}
}

// testGrid returns a grid or fails the test.
func testGrid(t *testing.T, t0, dt, end float64) TimeGrid {
	grid, err := NewTimeGrid(t0, dt, end)
	if err != nil {
		t.Fatalf("grid: %s", err)
	}
	return grid
}
