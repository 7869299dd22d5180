package lightcurve

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Rosenbrock23 is the adaptive, L-stable Rosenbrock 2(3) pair of Shampine and
// Reichelt (the ode23s scheme). It only needs linear solves with the iteration
// matrix W = I - h*d*J, so it copes with mildly stiff rotational dynamics.
type Rosenbrock23 struct {
	Tolerances
}

func (r Rosenbrock23) String() string {
	return "rosenbrock23"
}

// Integrate implements the Integrator interface.
func (r Rosenbrock23) Integrate(f Derivative, y0 []float64, grid TimeGrid, obs Observer) (*Solution, error) {
	var stats Stats
	f = countingDerivative(f, &stats)
	tol := r.Tolerances.withDefaults()
	n := len(y0)
	var (
		d   = 1 / (2 + math.Sqrt2)
		e32 = 6 + math.Sqrt2
	)
	// Workspace, reused by every attempt.
	J := mat.NewDense(n, n, nil)
	W := mat.NewDense(n, n, nil)
	F0 := make([]float64, n)
	F1 := make([]float64, n)
	F2 := make([]float64, n)
	T := make([]float64, n)
	tmp := make([]float64, n)
	rhs := mat.NewVecDense(n, nil)
	k1 := mat.NewVecDense(n, nil)
	k2 := mat.NewVecDense(n, nil)
	k3 := mat.NewVecDense(n, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	var lu mat.LU

	attempt := func(t, h float64, y, ynew, yerr []float64) error {
		f(t, y, F0)
		fd.Jacobian(J, func(dst, x []float64) {
			f(t, x, dst)
		}, y, settings)
		// Time derivative of f, zero for autonomous systems up to round-off.
		δ := math.Sqrt(epsilon) * math.Max(math.Abs(t), 1)
		f(t+δ, y, T)
		for i := range T {
			T[i] = (T[i] - F0[i]) / δ
		}
		// W = I - h*d*J
		W.Scale(-h*d, J)
		for i := 0; i < n; i++ {
			W.Set(i, i, 1+W.At(i, i))
		}
		lu.Factorize(W)

		// k1 = W \ (F0 + h*d*T)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, F0[i]+h*d*T[i])
		}
		if err := lu.SolveVecTo(k1, false, rhs); err != nil {
			return err
		}
		// F1 = f(t + h/2, y + h/2*k1)
		for i := 0; i < n; i++ {
			tmp[i] = y[i] + 0.5*h*k1.AtVec(i)
		}
		f(t+0.5*h, tmp, F1)
		// k2 = W \ (F1 - k1) + k1
		for i := 0; i < n; i++ {
			rhs.SetVec(i, F1[i]-k1.AtVec(i))
		}
		if err := lu.SolveVecTo(k2, false, rhs); err != nil {
			return err
		}
		k2.AddVec(k2, k1)
		// y_{n+1} = y + h*k2
		copy(ynew, y)
		floats.AddScaled(ynew, h, k2.RawVector().Data)
		f(t+h, ynew, F2)
		// k3 = W \ (F2 - e32*(k2 - F1) - 2*(k1 - F0) + h*d*T)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, F2[i]-e32*(k2.AtVec(i)-F1[i])-2*(k1.AtVec(i)-F0[i])+h*d*T[i])
		}
		if err := lu.SolveVecTo(k3, false, rhs); err != nil {
			return err
		}
		// err = h/6*(k1 - 2*k2 + k3)
		for i := 0; i < n; i++ {
			yerr[i] = h / 6 * (k1.AtVec(i) - 2*k2.AtVec(i) + k3.AtVec(i))
		}
		return nil
	}
	return solveAdaptive(f, y0, grid, obs, tol, 2, attempt, &stats)
}
