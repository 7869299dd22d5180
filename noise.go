package lightcurve

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// MeasurementNoise adds zero mean Gaussian noise of a fixed variance to the
// reflected power, as a ground sensor would.
type MeasurementNoise struct {
	Variance float64
	dist     *distmv.Normal
}

// NewMeasurementNoise returns the noise model. A zero variance returns a model
// which leaves the measurements untouched.
func NewMeasurementNoise(variance float64) (*MeasurementNoise, error) {
	if variance < 0 {
		return nil, fmt.Errorf("%w: negative measurement variance %f", ErrInvalidConfig, variance)
	}
	n := &MeasurementNoise{Variance: variance}
	if variance == 0 {
		return n, nil
	}
	dist, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{variance}), nil)
	if !ok {
		return nil, fmt.Errorf("%w: measurement variance %f is not positive definite", ErrInvalidConfig, variance)
	}
	n.dist = dist
	return n, nil
}

// Apply returns a noisy copy of the power samples.
func (n *MeasurementNoise) Apply(power []float64) []float64 {
	measured := make([]float64, len(power))
	copy(measured, power)
	if n == nil || n.dist == nil {
		return measured
	}
	for i := range measured {
		measured[i] += n.dist.Rand(nil)[0]
	}
	return measured
}
