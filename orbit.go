package lightcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// EarthMu is the gravitational parameter of the Earth in km^3/s^2.
	EarthMu = 398600.0
	// EarthRadius is the spherical Earth radius in km.
	EarthRadius = 6378.0
	// OrbitStateSize is the size of the orbit state vector [R V].
	OrbitStateSize = 6
)

// OrbitState defines an inertial position (km) and velocity (km/s).
type OrbitState struct {
	R, V []float64
}

// RNorm returns the norm of the position vector.
func (o OrbitState) RNorm() float64 {
	return norm(o.R)
}

// VNorm returns the norm of the velocity vector.
func (o OrbitState) VNorm() float64 {
	return norm(o.V)
}

// H returns the orbital angular momentum vector.
func (o OrbitState) H() []float64 {
	return cross(o.R, o.V)
}

// Energyξ returns the specific mechanical energy ξ.
func (o OrbitState) Energyξ(μ float64) float64 {
	return math.Pow(o.VNorm(), 2)/2 - μ/o.RNorm()
}

// Vector returns the state vector [R V].
func (o OrbitState) Vector() []float64 {
	return []float64{o.R[0], o.R[1], o.R[2], o.V[0], o.V[1], o.V[2]}
}

func orbitStateFromVector(v []float64) OrbitState {
	return OrbitState{[]float64{v[0], v[1], v[2]}, []float64{v[3], v[4], v[5]}}
}

func (o OrbitState) String() string {
	return fmt.Sprintf("R=[%.3f %.3f %.3f] km V=[%.6f %.6f %.6f] km/s", o.R[0], o.R[1], o.R[2], o.V[0], o.V[1], o.V[2])
}

// Validate checks the state can be propagated.
func (o OrbitState) Validate() error {
	if len(o.R) != 3 || len(o.V) != 3 {
		return fmt.Errorf("%w: R and V must be 3-vectors", ErrInvalidInitialState)
	}
	if !finite(o.Vector()) || o.RNorm() == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInitialState, o)
	}
	return nil
}

// TwoBody returns the point mass gravity equations of motion.
func TwoBody(μ float64) Derivative {
	return func(t float64, f, fDot []float64) {
		bodyAcc := -μ / math.Pow(norm(f[0:3]), 3)
		// d\vec{R}/dt
		fDot[0] = f[3]
		fDot[1] = f[4]
		fDot[2] = f[5]
		// d\vec{V}/dt
		fDot[3] = bodyAcc * f[0]
		fDot[4] = bodyAcc * f[1]
		fDot[5] = bodyAcc * f[2]
	}
}

// VisibilityAngle returns the angle between the site and a spacecraft sitting
// exactly on the site horizon, i.e. acos(rSite/rOrbit).
func VisibilityAngle(rOrbit, rSite float64) (float64, error) {
	if !(rSite > 0) || !(rOrbit > rSite) {
		return 0, fmt.Errorf("%w: orbit radius %f km must exceed the site radius %f km", ErrInvalidInitialState, rOrbit, rSite)
	}
	return math.Acos(rSite / rOrbit), nil
}

// HorizonOrbit returns the circular orbit state crossing the horizon of a site
// on the X axis at t=0, rising toward the zenith. The reference state
// [r 0 0], [0 sqrt(μ/r) 0] is rotated by -angle about the out of plane axis.
// R3 being a frame rotation, that vector rotation is R3(angle).
func HorizonOrbit(rOrbit, rSite, μ float64) (OrbitState, error) {
	if !(μ > 0) {
		return OrbitState{}, fmt.Errorf("%w: gravitational parameter must be positive", ErrInvalidInitialState)
	}
	angle, err := VisibilityAngle(rOrbit, rSite)
	if err != nil {
		return OrbitState{}, err
	}
	rot := R3(angle)
	R := MxV33(rot, []float64{rOrbit, 0, 0})
	V := MxV33(rot, []float64{0, math.Sqrt(μ / rOrbit), 0})
	return OrbitState{R, V}, nil
}

// SiteHorizonOrbit is HorizonOrbit for a site anywhere on the sphere: the
// horizon state is rotated with R3(-longitude)R2(latitude), which maps the X
// axis onto the site direction. A site at (0, 0) gives HorizonOrbit exactly.
func SiteHorizonOrbit(site Site, orbitAltitude, μ float64) (OrbitState, error) {
	rSite := site.Radius()
	o, err := HorizonOrbit(site.BodyRadius+orbitAltitude, rSite, μ)
	if err != nil {
		return OrbitState{}, err
	}
	if site.LatΦ == 0 && site.Longθ == 0 {
		return o, nil
	}
	var toSite mat.Dense
	toSite.Mul(R3(-site.Longθ), R2(site.LatΦ))
	return OrbitState{MxV33(&toSite, o.R), MxV33(&toSite, o.V)}, nil
}

// OrbitTrajectory is the propagated orbit, one state per grid sample.
type OrbitTrajectory struct {
	Times  []float64
	States []OrbitState
	Stats  Stats
}

// Len returns the number of samples.
func (t *OrbitTrajectory) Len() int {
	return len(t.States)
}

// PropagateOrbit integrates the two body orbit from o0 over the grid.
func PropagateOrbit(μ float64, o0 OrbitState, grid TimeGrid, inte Integrator, progress Progress) (*OrbitTrajectory, error) {
	if !(μ > 0) {
		return nil, fmt.Errorf("%w: gravitational parameter must be positive", ErrInvalidInitialState)
	}
	if err := o0.Validate(); err != nil {
		return nil, err
	}
	sol, err := inte.Integrate(TwoBody(μ), o0.Vector(), grid, progressObserver(progress, grid.Len(), "Simulating Orbit"))
	if err != nil {
		return nil, fmt.Errorf("orbit propagation: %w", err)
	}
	traj := &OrbitTrajectory{Times: sol.Times, States: make([]OrbitState, len(sol.States)), Stats: sol.Stats}
	for i, v := range sol.States {
		traj.States[i] = orbitStateFromVector(v)
	}
	return traj, nil
}
