package lightcurve

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestCross(t *testing.T) {
	i := []float64{1, 0, 0}
	j := []float64{0, 1, 0}
	k := []float64{0, 0, 1}
	if !vectorsEqual(cross(i, j), k) {
		t.Fatal("i x j != k")
	}
	if !vectorsEqual(cross(j, k), i) {
		t.Fatal("j x k != i")
	}
	if !vectorsEqual(cross([]float64{2, 3, 4}, []float64{5, 6, 7}), []float64{-3, 6, -3}) {
		t.Fatal("cross fail")
	}
	// From Vallado
	if !vectorsEqual(cross([]float64{6524.834, 6862.875, 6448.296}, []float64{4.901327, 5.533756, -1.976341}), []float64{-4.924667792015100e4, 4.450050424118601e4, 0.246964476137900e4}) {
		t.Fatal("cross fail")
	}
}

func TestUnitNormDot(t *testing.T) {
	if n := norm([]float64{3, 4, 12}); n != 13 {
		t.Fatalf("norm=%f instead of 13", n)
	}
	u := unit([]float64{3, 4, 12})
	if !scalar.EqualWithinAbs(norm(u), 1, 1e-15) {
		t.Fatalf("|unit|=%f", norm(u))
	}
	if !vectorsEqual(unit([]float64{0, 0, 0}), []float64{0, 0, 0}) {
		t.Fatal("unit of zero vector should be zero")
	}
	if d := dot([]float64{1, 2, 3}, []float64{4, -5, 6}); d != 12 {
		t.Fatalf("dot=%f instead of 12", d)
	}
	a := []float64{1, 2, 3}
	if d := sub(a, []float64{1, 1, 1}); !vectorsEqual(d, []float64{0, 1, 2}) || a[0] != 1 {
		t.Fatalf("sub=%v, a=%v", d, a)
	}
}

func TestFinite(t *testing.T) {
	if !finite([]float64{0, 1, -1e300}) {
		t.Fatal("finite values reported as non finite")
	}
	if finite([]float64{0, math.NaN()}) || finite([]float64{math.Inf(-1)}) {
		t.Fatal("non finite values reported as finite")
	}
}
