package lightcurve

import (
	"fmt"
)

// Integrable defines something which can be integrated, i.e. has a state vector.
// WARNING: Implementation must manage its own state based on the iteration.
type Integrable interface {
	GetState() []float64                   // Get the latest state of this integrable.
	SetState(i uint64, s []float64)        // Set the state s of a given iteration i.
	Stop(i uint64) bool                    // Return whether to stop the integration from iteration i.
	Func(t float64, s []float64) []float64 // ODE function from time t and state s, must return a new state.
}

// RK4 is the classical fixed step Runge-Kutta integrator. Each output interval
// is split in Substeps steps. There is no error estimate, so the only rejected
// steps are those producing a non finite state.
type RK4 struct {
	Substeps int
}

func (r RK4) String() string {
	return fmt.Sprintf("rk4(%d)", r.substeps())
}

func (r RK4) substeps() int {
	if r.Substeps < 1 {
		return 1
	}
	return r.Substeps
}

// Integrate implements the Integrator interface.
func (r RK4) Integrate(f Derivative, y0 []float64, grid TimeGrid, obs Observer) (*Solution, error) {
	n := grid.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty time grid %s", ErrIntegrationStep, grid)
	}
	if !finite(y0) {
		return nil, fmt.Errorf("%w: non finite initial state %v", ErrIntegrationStep, y0)
	}
	inte := &gridIntegrable{f: f, grid: grid, substeps: uint64(r.substeps()), obs: obs, samples: uint64(n)}
	inte.state = make([]float64, len(y0))
	copy(inte.state, y0)
	inte.sol = &Solution{Times: make([]float64, 0, n), States: make([][]float64, 0, n)}
	inte.record(0)
	solver := newRK4Solver(grid.T0, grid.DT/float64(r.substeps()), inte)
	solver.Solve()
	if inte.err != nil {
		return nil, inte.err
	}
	inte.sol.Stats = inte.stats
	return inte.sol, nil
}

// gridIntegrable adapts a Derivative to the Integrable interface, recording
// every substeps-th iteration on the grid.
type gridIntegrable struct {
	f        Derivative
	grid     TimeGrid
	substeps uint64
	samples  uint64
	state    []float64
	obs      Observer
	sol      *Solution
	stats    Stats
	err      error
}

func (g *gridIntegrable) GetState() []float64 {
	return g.state
}

func (g *gridIntegrable) SetState(i uint64, s []float64) {
	if !finite(s) {
		g.stats.Rejected++
		g.err = fmt.Errorf("%w: non finite state after iteration %d", ErrIntegrationStep, i)
		return
	}
	g.stats.Steps++
	g.state = s
	if (i+1)%g.substeps == 0 {
		g.record(int((i + 1) / g.substeps))
	}
}

func (g *gridIntegrable) Stop(i uint64) bool {
	return g.err != nil || i >= (g.samples-1)*g.substeps
}

func (g *gridIntegrable) Func(t float64, s []float64) []float64 {
	g.stats.Evaluations++
	dydt := make([]float64, len(s))
	g.f(t, s, dydt)
	return dydt
}

func (g *gridIntegrable) record(k int) {
	// Use the grid time rather than the accumulated one so that every
	// trajectory of a run shares exactly the same sample times.
	t := g.grid.At(k)
	g.sol.append(t, g.state)
	if g.obs != nil {
		g.obs(k, t, g.state)
	}
}

// rk4Solver defines an RK4 integrator.
type rk4Solver struct {
	X0        float64    // The initial x0.
	StepSize  float64    // The step size.
	Integator Integrable // What is to be integrated.
}

// newRK4Solver returns a new RK4 integrator instance.
func newRK4Solver(x0 float64, stepSize float64, inte Integrable) (r *rk4Solver) {
	if stepSize <= 0 {
		panic("config StepSize must be positive")
	}
	if inte == nil {
		panic("config Integator may not be nil")
	}
	r = &rk4Solver{X0: x0, StepSize: stepSize, Integator: inte}
	return
}

// Solve solves the configured RK4.
// Returns the number of iterations performed and the last X_i. Failures are
// reported by the Integrable, which stops the integration.
func (r *rk4Solver) Solve() (uint64, float64) {
	const (
		half     = 1 / 2.0
		oneSixth = 1 / 6.0
		oneThird = 1 / 3.0
	)

	iterNum := uint64(0)
	xi := r.X0
	halfStep := r.StepSize * half
	for !r.Integator.Stop(iterNum) {
		state := r.Integator.GetState()
		newState := make([]float64, len(state))
		k1 := make([]float64, len(state))
		//k2, k3, k4 are used as buffers AND result variables.
		k2 := make([]float64, len(state))
		k3 := make([]float64, len(state))
		k4 := make([]float64, len(state))
		tState := make([]float64, len(state))

		// Compute the k's.
		for i, y := range r.Integator.Func(xi, state) {
			k1[i] = y * r.StepSize
			tState[i] = state[i] + k1[i]*half
		}
		for i, y := range r.Integator.Func(xi+halfStep, tState) {
			k2[i] = y * r.StepSize
			tState[i] = state[i] + k2[i]*half
		}
		for i, y := range r.Integator.Func(xi+halfStep, tState) {
			k3[i] = y * r.StepSize
			tState[i] = state[i] + k3[i]
		}
		for i, y := range r.Integator.Func(xi+r.StepSize, tState) {
			k4[i] = y * r.StepSize
			newState[i] = state[i] + oneSixth*(k1[i]+k4[i]) + oneThird*(k2[i]+k3[i])
		}
		r.Integator.SetState(iterNum, newState)

		// Recompute rather than accumulate to avoid drifting from the grid.
		iterNum++
		xi = r.X0 + float64(iterNum)*r.StepSize
	}

	return iterNum, xi
}
