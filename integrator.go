package lightcurve

import (
	"fmt"
	"math"
	"strings"
)

// Derivative computes dy/dt at time t for the state y and stores it in dydt.
// It must not retain y nor dydt.
type Derivative func(t float64, y, dydt []float64)

// Observer is notified once per output sample, in increasing sample order.
// It must not modify y.
type Observer func(k int, t float64, y []float64)

// Integrator is a swappable integration strategy. It integrates f from y0 and
// returns the states sampled on every point of the grid, or an error wrapping
// ErrIntegrationStep and no solution at all.
type Integrator interface {
	Integrate(f Derivative, y0 []float64, grid TimeGrid, obs Observer) (*Solution, error)
}

// TimeGrid is the fixed output cadence shared by all trajectories of a run.
// Samples are T0 + k*DT for every k such that the sample is before End.
type TimeGrid struct {
	T0, DT, End float64
}

// NewTimeGrid returns a new grid spanning [t0, end) with step dt.
func NewTimeGrid(t0, dt, end float64) (TimeGrid, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return TimeGrid{}, fmt.Errorf("%w: time step must be positive (got %f)", ErrInvalidConfig, dt)
	}
	if !(end > t0) {
		return TimeGrid{}, fmt.Errorf("%w: end time %f must be after start time %f", ErrInvalidConfig, end, t0)
	}
	return TimeGrid{t0, dt, end}, nil
}

// Len returns the number of samples, i.e. ceil((End-T0)/DT).
func (g TimeGrid) Len() int {
	if !(g.DT > 0) || !(g.End > g.T0) {
		return 0
	}
	// The tolerance absorbs the representation error of DT (e.g. 400/0.1).
	return int(math.Ceil((g.End-g.T0)/g.DT - 1e-9))
}

// At returns the time of the k-th sample.
func (g TimeGrid) At(k int) float64 {
	return g.T0 + float64(k)*g.DT
}

// Times returns all the sample times.
func (g TimeGrid) Times() []float64 {
	times := make([]float64, g.Len())
	for k := range times {
		times[k] = g.At(k)
	}
	return times
}

func (g TimeGrid) String() string {
	return fmt.Sprintf("[%g, %g) every %g s (%d samples)", g.T0, g.End, g.DT, g.Len())
}

// Stats stores integration statistics.
type Stats struct {
	Steps       int // accepted steps
	Rejected    int // rejected steps
	Evaluations int // derivative evaluations
}

// Solution is the output of an integration: one state per grid sample.
type Solution struct {
	Times  []float64
	States [][]float64
	Stats  Stats
}

func (s *Solution) append(t float64, y []float64) {
	state := make([]float64, len(y))
	copy(state, y)
	s.Times = append(s.Times, t)
	s.States = append(s.States, state)
}

// Tolerances configures adaptive integrators.
type Tolerances struct {
	RelTol, AbsTol float64
	InitialStep    float64 // zero lets the integrator pick one
	MaxStep        float64 // zero means no limit besides the grid step
	MaxSteps       int     // total accepted and rejected step attempts
}

// DefaultTolerances returns the default tolerances.
func DefaultTolerances() Tolerances {
	return Tolerances{RelTol: 1e-8, AbsTol: 1e-10, MaxSteps: 10000000}
}

func (tol Tolerances) withDefaults() Tolerances {
	def := DefaultTolerances()
	if tol.RelTol <= 0 {
		tol.RelTol = def.RelTol
	}
	if tol.AbsTol <= 0 {
		tol.AbsTol = def.AbsTol
	}
	if tol.MaxSteps <= 0 {
		tol.MaxSteps = def.MaxSteps
	}
	return tol
}

// errNorm returns the weighted RMS norm of the local error estimate.
func (tol Tolerances) errNorm(yerr, y, ynew []float64) float64 {
	var sum float64
	for i, e := range yerr {
		sc := tol.AbsTol + tol.RelTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		sum += (e / sc) * (e / sc)
	}
	return math.Sqrt(sum / float64(len(yerr)))
}

// stepAttempt tries to advance (t, y) by h, writing the new state in ynew and
// the local error estimate in yerr. An error means the step cannot be computed
// at all (e.g. singular iteration matrix).
type stepAttempt func(t, h float64, y, ynew, yerr []float64) error

// countingDerivative wraps f to count the evaluations.
func countingDerivative(f Derivative, stats *Stats) Derivative {
	return func(t float64, y, dydt []float64) {
		stats.Evaluations++
		f(t, y, dydt)
	}
}

// initialStep picks a starting step following Hairer, Nørsett & Wanner (II.4).
func initialStep(f Derivative, t0 float64, y0 []float64, tol Tolerances, order int, dt float64) float64 {
	if tol.InitialStep > 0 {
		return math.Min(tol.InitialStep, dt)
	}
	f0 := make([]float64, len(y0))
	f(t0, y0, f0)
	var d0, d1 float64
	for i := range y0 {
		sc := tol.AbsTol + tol.RelTol*math.Abs(y0[i])
		d0 += (y0[i] / sc) * (y0[i] / sc)
		d1 += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(len(y0)))
	d1 = math.Sqrt(d1 / float64(len(y0)))
	h := 1e-6
	if d0 > 1e-5 && d1 > 1e-5 {
		h = 0.01 * d0 / d1
	}
	// Keep the first step well inside the first output interval.
	return math.Min(h, dt/float64(order+1))
}

// solveAdaptive drives an embedded pair of the given order over the grid.
// Every attempted step is checked: accepted when the error norm is at most one,
// otherwise retried with a smaller step until the step falls under the floor.
func solveAdaptive(f Derivative, y0 []float64, grid TimeGrid, obs Observer, tol Tolerances, order int, attempt stepAttempt, stats *Stats) (*Solution, error) {
	n := grid.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty time grid %s", ErrIntegrationStep, grid)
	}
	if !finite(y0) {
		return nil, fmt.Errorf("%w: non finite initial state %v", ErrIntegrationStep, y0)
	}
	sol := &Solution{Times: make([]float64, 0, n), States: make([][]float64, 0, n)}
	y := make([]float64, len(y0))
	copy(y, y0)
	ynew := make([]float64, len(y0))
	yerr := make([]float64, len(y0))
	t := grid.T0
	sol.append(t, y)
	if obs != nil {
		obs(0, t, y)
	}
	h := initialStep(f, t, y, tol, order, grid.DT)
	exp := 1 / float64(order+1)
	attempts := 0
	for k := 1; k < n; k++ {
		target := grid.At(k)
		for t < target {
			if attempts >= tol.MaxSteps {
				return nil, fmt.Errorf("%w: exceeded %d step attempts at t=%f", ErrIntegrationStep, tol.MaxSteps, t)
			}
			attempts++
			if tol.MaxStep > 0 && h > tol.MaxStep {
				h = tol.MaxStep
			}
			hmin := 16 * epsilon * math.Max(math.Abs(t), 1)
			step := h
			last := false
			if t+step >= target-hmin {
				step = target - t
				last = true
			}
			if err := attempt(t, step, y, ynew, yerr); err != nil {
				return nil, fmt.Errorf("%w: t=%f h=%g: %s", ErrIntegrationStep, t, step, err)
			}
			errNorm := tol.errNorm(yerr, y, ynew)
			if !finite(ynew) || math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
				stats.Rejected++
				h = step * 0.25
				if h < hmin {
					return nil, fmt.Errorf("%w: non finite state at t=%f", ErrIntegrationStep, t)
				}
				continue
			}
			if errNorm <= 1 {
				stats.Steps++
				if last {
					t = target
				} else {
					t += step
				}
				copy(y, ynew)
				factor := 5.0
				if errNorm > 0 {
					factor = math.Min(5, 0.9*math.Pow(errNorm, -exp))
				}
				if last {
					// A step shortened to hit the sample says little about the next one.
					h = math.Max(h, step*factor)
				} else {
					h = step * factor
				}
				continue
			}
			stats.Rejected++
			h = step * math.Max(0.2, 0.9*math.Pow(errNorm, -exp))
			if h < hmin {
				return nil, fmt.Errorf("%w: step size %g under the floor %g at t=%f (error norm %g)", ErrIntegrationStep, h, hmin, t, errNorm)
			}
		}
		sol.append(t, y)
		if obs != nil {
			obs(k, t, y)
		}
	}
	sol.Stats = *stats
	return sol, nil
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// IntegratorFromName returns the integrator by its configuration name.
func IntegratorFromName(name string, tol Tolerances, substeps int) (Integrator, error) {
	switch strings.ToLower(name) {
	case "", "rosenbrock23", "rosenbrock", "ode23s":
		return Rosenbrock23{tol}, nil
	case "dopri", "dopri5", "dormandprince":
		return DormandPrince{tol}, nil
	case "rk4":
		return RK4{substeps}, nil
	}
	return nil, fmt.Errorf("%w: unknown integrator `%s`", ErrInvalidConfig, name)
}
