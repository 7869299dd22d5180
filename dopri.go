package lightcurve

import (
	"gonum.org/v1/gonum/floats"
)

// Dormand–Prince 5(4) tableau.
const (
	dpC2 = 1 / 5.
	dpC3 = 3 / 10.
	dpC4 = 4 / 5.
	dpC5 = 8 / 9.

	dpA21 = 1 / 5.
	dpA31 = 3 / 40.
	dpA32 = 9 / 40.
	dpA41 = 44 / 45.
	dpA42 = -56 / 15.
	dpA43 = 32 / 9.
	dpA51 = 19372 / 6561.
	dpA52 = -25360 / 2187.
	dpA53 = 64448 / 6561.
	dpA54 = -212 / 729.
	dpA61 = 9017 / 3168.
	dpA62 = -355 / 33.
	dpA63 = 46732 / 5247.
	dpA64 = 49 / 176.
	dpA65 = -5103 / 18656.
	dpA71 = 35 / 384.
	dpA73 = 500 / 1113.
	dpA74 = 125 / 192.
	dpA75 = -2187 / 6784.
	dpA76 = 11 / 84.

	// Difference between the 5th and 4th order weights.
	dpE1 = 71 / 57600.
	dpE3 = -71 / 16695.
	dpE4 = 71 / 1920.
	dpE5 = -17253 / 339200.
	dpE6 = 22 / 525.
	dpE7 = -1 / 40.
)

// DormandPrince is the adaptive explicit 5(4) pair. It is cheaper than
// Rosenbrock23 on non-stiff problems such as the two-body orbit.
type DormandPrince struct {
	Tolerances
}

func (dp DormandPrince) String() string {
	return "dopri5"
}

// Integrate implements the Integrator interface.
func (dp DormandPrince) Integrate(f Derivative, y0 []float64, grid TimeGrid, obs Observer) (*Solution, error) {
	var stats Stats
	f = countingDerivative(f, &stats)
	tol := dp.Tolerances.withDefaults()
	n := len(y0)
	k := make([][]float64, 7)
	for i := range k {
		k[i] = make([]float64, n)
	}
	tmp := make([]float64, n)

	stage := func(t float64, y []float64, h float64, out []float64, coeffs ...float64) {
		copy(tmp, y)
		for i, c := range coeffs {
			if c != 0 {
				floats.AddScaled(tmp, h*c, k[i])
			}
		}
		f(t, tmp, out)
	}

	attempt := func(t, h float64, y, ynew, yerr []float64) error {
		f(t, y, k[0])
		stage(t+dpC2*h, y, h, k[1], dpA21)
		stage(t+dpC3*h, y, h, k[2], dpA31, dpA32)
		stage(t+dpC4*h, y, h, k[3], dpA41, dpA42, dpA43)
		stage(t+dpC5*h, y, h, k[4], dpA51, dpA52, dpA53, dpA54)
		stage(t+h, y, h, k[5], dpA61, dpA62, dpA63, dpA64, dpA65)
		copy(ynew, y)
		floats.AddScaled(ynew, h*dpA71, k[0])
		floats.AddScaled(ynew, h*dpA73, k[2])
		floats.AddScaled(ynew, h*dpA74, k[3])
		floats.AddScaled(ynew, h*dpA75, k[4])
		floats.AddScaled(ynew, h*dpA76, k[5])
		f(t+h, ynew, k[6])
		for i := 0; i < n; i++ {
			yerr[i] = h * (dpE1*k[0][i] + dpE3*k[2][i] + dpE4*k[3][i] + dpE5*k[4][i] + dpE6*k[5][i] + dpE7*k[6][i])
		}
		return nil
	}
	return solveAdaptive(f, y0, grid, obs, tol, 4, attempt, &stats)
}
