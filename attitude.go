package lightcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

const (
	// unitQuaternionε is the tolerance on the norm of an initial quaternion.
	unitQuaternionε = 1e-9
	// AttitudeStateSize is the size of the attitude state vector [η ε ω].
	AttitudeStateSize = 7
)

// Attitude is any attitude representation which can provide the body to
// inertial direction cosine matrix.
type Attitude interface {
	DCM() *mat.Dense
}

/*-----*/
/* Quaternion (Euler parameters) */
/*-----*/

// Quaternion defines an attitude quaternion with scalar part η and vector part ε.
type Quaternion struct {
	Eta float64
	Eps []float64
}

// IdentityQuaternion returns the quaternion of a body frame aligned with the inertial frame.
func IdentityQuaternion() Quaternion {
	return Quaternion{1, []float64{0, 0, 0}}
}

// NewQuaternionFromAxisAngle returns the quaternion of a rotation of θ about the provided axis.
func NewQuaternionFromAxisAngle(axis []float64, θ float64) Quaternion {
	s, c := math.Sincos(θ / 2)
	u := unit(axis)
	return Quaternion{c, []float64{u[0] * s, u[1] * s, u[2] * s}}
}

// RandomQuaternion returns a uniformly distributed unit quaternion, obtained by
// normalizing a four dimensional standard normal draw.
func RandomQuaternion() Quaternion {
	dist, ok := distmv.NewNormal(make([]float64, 4), mat.NewSymDense(4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1}), nil)
	if !ok {
		panic("NOK in Gaussian")
	}
	for {
		q := dist.Rand(nil)
		n := floats.Norm(q, 2)
		if n > 1e-6 {
			floats.Scale(1/n, q)
			return Quaternion{q[0], q[1:4]}
		}
	}
}

// Norm returns the norm of the quaternion.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.Eta*q.Eta + dot(q.Eps, q.Eps))
}

// Mul returns the Hamilton product q ⊗ p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	c := cross(q.Eps, p.Eps)
	eps := make([]float64, 3)
	for i := 0; i < 3; i++ {
		eps[i] = q.Eta*p.Eps[i] + p.Eta*q.Eps[i] + c[i]
	}
	return Quaternion{q.Eta*p.Eta - dot(q.Eps, p.Eps), eps}
}

// Equals returns whether both quaternions represent the same attitude within ε,
// i.e. q = p or q = -p.
func (q Quaternion) Equals(p Quaternion, ε float64) bool {
	same := scalar.EqualWithinAbs(q.Eta, p.Eta, ε)
	opposite := scalar.EqualWithinAbs(q.Eta, -p.Eta, ε)
	for i := 0; i < 3; i++ {
		same = same && scalar.EqualWithinAbs(q.Eps[i], p.Eps[i], ε)
		opposite = opposite && scalar.EqualWithinAbs(q.Eps[i], -p.Eps[i], ε)
	}
	return same || opposite
}

// DCM returns the body to inertial direction cosine matrix
// (η²-εᵀε)I + 2εεᵀ + 2η[ε×].
func (q Quaternion) DCM() *mat.Dense {
	ε := mat.NewVecDense(3, q.Eps)
	var dcm, εεT mat.Dense
	dcm.Scale(2*q.Eta, tilde(q.Eps))
	εεT.Outer(2, ε, ε)
	dcm.Add(&dcm, &εεT)
	d := q.Eta*q.Eta - mat.Dot(ε, ε)
	for i := 0; i < 3; i++ {
		dcm.Set(i, i, dcm.At(i, i)+d)
	}
	return &dcm
}

func (q Quaternion) String() string {
	return fmt.Sprintf("η=%.6f ε=[%.6f %.6f %.6f]", q.Eta, q.Eps[0], q.Eps[1], q.Eps[2])
}

/*-----*/
/* Euler angles */
/*-----*/

// EulerAngles defines an attitude with three successive rotations (in radians)
// about the axes of Sequence, e.g. "321" for yaw, pitch, roll.
type EulerAngles struct {
	Sequence string
	Angles   [3]float64
}

// DCM returns the body to inertial direction cosine matrix.
// It panics on an invalid sequence, which Config.Validate rejects beforehand.
func (e EulerAngles) DCM() *mat.Dense {
	ib, err := EulerSequence(e.Sequence, e.Angles[0], e.Angles[1], e.Angles[2])
	if err != nil {
		panic(err)
	}
	var bi mat.Dense
	bi.CloneFrom(ib.T())
	return &bi
}

// tilde returns the skew matrix of v, i.e. [v×].
func tilde(v []float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0})
}

/*-----*/
/* Dynamics */
/*-----*/

// AttitudeState is the attitude quaternion and the body angular velocity (rad/s).
type AttitudeState struct {
	Q     Quaternion
	Omega []float64
}

// NewAttitudeState returns an AttitudeState.
func NewAttitudeState(q Quaternion, omega []float64) AttitudeState {
	return AttitudeState{q, omega}
}

// Vector returns the state vector [η ε ω].
func (s AttitudeState) Vector() []float64 {
	return []float64{s.Q.Eta, s.Q.Eps[0], s.Q.Eps[1], s.Q.Eps[2], s.Omega[0], s.Omega[1], s.Omega[2]}
}

// attitudeStateFromVector is the inverse of Vector.
func attitudeStateFromVector(v []float64) AttitudeState {
	return AttitudeState{
		Quaternion{v[0], []float64{v[1], v[2], v[3]}},
		[]float64{v[4], v[5], v[6]},
	}
}

// Validate checks the initial state can be propagated.
func (s AttitudeState) Validate() error {
	if len(s.Q.Eps) != 3 || len(s.Omega) != 3 {
		return fmt.Errorf("%w: ε and ω must be 3-vectors", ErrInvalidInitialState)
	}
	if !finite(s.Vector()) {
		return fmt.Errorf("%w: non finite attitude %s ω=%v", ErrInvalidInitialState, s.Q, s.Omega)
	}
	if n := s.Q.Norm(); !scalar.EqualWithinAbs(n, 1, unitQuaternionε) {
		return fmt.Errorf("%w: quaternion norm is %.12f, not 1", ErrInvalidInitialState, n)
	}
	return nil
}

// Momentum returns the norm of the angular momentum.
func (s AttitudeState) Momentum(inertia mat.Matrix) float64 {
	return norm(MxV33(inertia, s.Omega))
}

// TorqueFunc returns the external torque (body frame) at time t for a state.
type TorqueFunc func(t float64, s AttitudeState) []float64

// AttitudeDynamics defines the rigid body rotational dynamics.
type AttitudeDynamics struct {
	InertiaTensor *mat.Dense
	Torque        TorqueFunc // nil for torque free motion
}

// NewAttitudeDynamics returns the torque free dynamics of the provided inertia tensor (row major).
func NewAttitudeDynamics(tensor []float64) AttitudeDynamics {
	return AttitudeDynamics{InertiaTensor: mat.NewDense(3, 3, tensor)}
}

// EOM returns the equations of motion: quaternion kinematics
// η' = -½ εᵀω, ε' = ½(ηω + ε×ω), coupled with Euler's equation
// Iω' = -ω×(Iω) + τ.
func (a AttitudeDynamics) EOM() (Derivative, error) {
	if a.InertiaTensor == nil {
		return nil, fmt.Errorf("%w: no inertia tensor", ErrInvalidInitialState)
	}
	if r, c := a.InertiaTensor.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("%w: inertia tensor must be 3x3, got %dx%d", ErrInvalidInitialState, r, c)
	}
	var invI mat.Dense
	if err := invI.Inverse(a.InertiaTensor); err != nil {
		return nil, fmt.Errorf("%w: inertia tensor is not invertible: %s", ErrInvalidInitialState, err)
	}
	I := mat.DenseCopyOf(a.InertiaTensor)
	torque := a.Torque
	return func(t float64, state, f []float64) {
		η := state[0]
		ε := state[1:4]
		ω := state[4:7]
		εxω := cross(ε, ω)
		f[0] = -0.5 * dot(ε, ω)
		for i := 0; i < 3; i++ {
			f[1+i] = 0.5 * (η*ω[i] + εxω[i])
		}
		rhs := cross(MxV33(I, ω), ω) // -ω×(Iω)
		if torque != nil {
			τ := torque(t, attitudeStateFromVector(state))
			for i := 0; i < 3; i++ {
				rhs[i] += τ[i]
			}
		}
		ωDot := MxV33(&invI, rhs)
		copy(f[4:7], ωDot)
	}, nil
}

// AttitudeTrajectory is the propagated attitude, one state per grid sample.
type AttitudeTrajectory struct {
	Times  []float64
	States []AttitudeState
	Stats  Stats
}

// Len returns the number of samples.
func (t *AttitudeTrajectory) Len() int {
	return len(t.States)
}

// Attitudes returns the attitudes as the generic representation.
func (t *AttitudeTrajectory) Attitudes() []Attitude {
	atts := make([]Attitude, len(t.States))
	for i, s := range t.States {
		atts[i] = s.Q
	}
	return atts
}

// MaxNormDrift returns the largest deviation of the quaternion norm from one.
// The quaternion is never renormalized during propagation, so this measures
// the numerical drift of the integration.
func (t *AttitudeTrajectory) MaxNormDrift() float64 {
	var drift float64
	for _, s := range t.States {
		drift = math.Max(drift, math.Abs(s.Q.Norm()-1))
	}
	return drift
}

// PropagateAttitude integrates the attitude from s0 over the grid.
func PropagateAttitude(dyn AttitudeDynamics, s0 AttitudeState, grid TimeGrid, inte Integrator, progress Progress) (*AttitudeTrajectory, error) {
	if err := s0.Validate(); err != nil {
		return nil, err
	}
	eom, err := dyn.EOM()
	if err != nil {
		return nil, err
	}
	sol, err := inte.Integrate(eom, s0.Vector(), grid, progressObserver(progress, grid.Len(), "Simulating Rotation"))
	if err != nil {
		return nil, fmt.Errorf("attitude propagation: %w", err)
	}
	traj := &AttitudeTrajectory{Times: sol.Times, States: make([]AttitudeState, len(sol.States)), Stats: sol.Stats}
	for i, v := range sol.States {
		traj.States[i] = attitudeStateFromVector(v)
	}
	return traj, nil
}

// EulerTrajectory returns the attitudes of Euler angles moving at constant
// rates: θ(t) = θ0 + θ' t, sampled on the grid.
func EulerTrajectory(sequence string, angles0, rates []float64, grid TimeGrid) ([]Attitude, error) {
	if err := ValidSequence(sequence); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInitialState, err)
	}
	if len(angles0) != 3 || len(rates) != 3 {
		return nil, fmt.Errorf("%w: euler angles and rates must be 3-vectors", ErrInvalidInitialState)
	}
	atts := make([]Attitude, grid.Len())
	for k := range atts {
		dt := grid.At(k) - grid.T0
		var θ [3]float64
		for i := 0; i < 3; i++ {
			θ[i] = angles0[i] + rates[i]*dt
		}
		atts[k] = EulerAngles{sequence, θ}
	}
	return atts, nil
}
