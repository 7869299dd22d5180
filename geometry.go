package lightcurve

// SunProvider returns the inertial sun direction at a time since the start of the run.
type SunProvider interface {
	SunDirection(t float64) []float64
}

// FixedSun is a SunProvider with a constant inertial direction.
type FixedSun []float64

// SunDirection implements the SunProvider interface.
func (s FixedSun) SunDirection(t float64) []float64 {
	return []float64{s[0], s[1], s[2]}
}

// DefaultSun is the sun direction used when none is configured.
var DefaultSun = FixedSun{0, 1, 0}

// Reduce rotates the inertial sun and observer vectors into the body frame of
// the provided attitude: v_body = Rᵀ v where R is the body to inertial DCM.
func Reduce(att Attitude, sun, obs []float64) (sunBody, obsBody []float64) {
	dcm := att.DCM()
	return MTxV33(dcm, sun), MTxV33(dcm, obs)
}
