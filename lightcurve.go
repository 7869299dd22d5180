package lightcurve

import "fmt"

// Lightcurve is the reflected power received by the site at every sample.
type Lightcurve struct {
	Times []float64
	Power []float64 // W/m^2
}

// Len returns the number of samples.
func (l Lightcurve) Len() int {
	return len(l.Power)
}

// Assemble computes the lightcurve. For every sample, in order, the sun and
// observer vectors are reduced to the body frame of the attitude and fed to
// the spacecraft geometry. All the inputs must have the same length, which is
// checked before anything is evaluated. A reflectance error is returned as is.
func Assemble(times []float64, obs [][]float64, atts []Attitude, sc SpacecraftGeometry, sun SunProvider, progress Progress) (Lightcurve, error) {
	n := len(times)
	if len(obs) != n || len(atts) != n {
		return Lightcurve{}, fmt.Errorf("%w: %d times, %d observer vectors, %d attitudes", ErrLengthMismatch, n, len(obs), len(atts))
	}
	if sun == nil {
		sun = DefaultSun
	}
	report := progressObserver(progress, n, "Simulating Lightcurve")
	power := make([]float64, 0, n)
	for k, t := range times {
		sunBody, obsBody := Reduce(atts[k], sun.SunDirection(t), obs[k])
		p, err := sc.ReflectedPower(obsBody, sunBody)
		if err != nil {
			return Lightcurve{}, err
		}
		power = append(power, p)
		if report != nil {
			report(k, t, nil)
		}
	}
	tCopy := make([]float64, n)
	copy(tCopy, times)
	return Lightcurve{tCopy, power}, nil
}
