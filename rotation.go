package lightcurve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// axisRotation returns R1, R2 or R3 from the axis digit.
func axisRotation(axis byte, x float64) (*mat.Dense, error) {
	switch axis {
	case '1':
		return R1(x), nil
	case '2':
		return R2(x), nil
	case '3':
		return R3(x), nil
	}
	return nil, fmt.Errorf("unknown rotation axis `%c`", axis)
}

// ValidSequence returns an error if the Euler rotation sequence is not made of
// three axis digits with no two consecutive identical axes (e.g. "321", "313").
func ValidSequence(seq string) error {
	if len(seq) != 3 {
		return fmt.Errorf("rotation sequence `%s` must have three axes", seq)
	}
	for i := 0; i < 3; i++ {
		if seq[i] < '1' || seq[i] > '3' {
			return fmt.Errorf("unknown rotation axis `%c` in `%s`", seq[i], seq)
		}
		if i > 0 && seq[i] == seq[i-1] {
			return fmt.Errorf("rotation sequence `%s` repeats an axis", seq)
		}
	}
	return nil
}

// EulerSequence returns the inertial to body frame rotation for the provided
// sequence, i.e. R_c(θ3) R_b(θ2) R_a(θ1) for the sequence "abc".
func EulerSequence(seq string, θ1, θ2, θ3 float64) (*mat.Dense, error) {
	if err := ValidSequence(seq); err != nil {
		return nil, err
	}
	if seq == "313" {
		return R3R1R3(θ1, θ2, θ3), nil
	}
	var tmp, out mat.Dense
	first, _ := axisRotation(seq[0], θ1)
	second, _ := axisRotation(seq[1], θ2)
	third, _ := axisRotation(seq[2], θ3)
	tmp.Mul(second, first)
	out.Mul(third, &tmp)
	return &out, nil
}

// R3R1R3 performs a 3-1-3 Euler parameter rotation.
// From Schaub and Junkins.
func R3R1R3(θ1, θ2, θ3 float64) *mat.Dense {
	sθ1, cθ1 := math.Sincos(θ1)
	sθ2, cθ2 := math.Sincos(θ2)
	sθ3, cθ3 := math.Sincos(θ3)
	return mat.NewDense(3, 3, []float64{cθ3*cθ1 - sθ3*cθ2*sθ1, cθ3*sθ1 + sθ3*cθ2*cθ1, sθ3 * sθ2,
		-sθ3*cθ1 - cθ3*cθ2*sθ1, -sθ3*sθ1 + cθ3*cθ2*cθ1, cθ3 * sθ2,
		sθ2 * sθ1, -sθ2 * cθ1, cθ2})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v []float64) (o []float64) {
	vVec := mat.NewVecDense(len(v), v)
	var rVec mat.VecDense
	rVec.MulVec(m, vVec)
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// MTxV33 multiplies the transpose of a matrix with a vector.
func MTxV33(m mat.Matrix, v []float64) (o []float64) {
	return MxV33(m.T(), v)
}

// GEO2ECEF converts the provided parameters (in km and radians) to the position
// vector on a spherical body of the given radius.
// Note that the first parameter is the altitude, not the radius from the center of the body!
func GEO2ECEF(altitude, latitude, longitude, radius float64) []float64 {
	sLong, cLong := math.Sincos(longitude)
	sLat, cLat := math.Sincos(latitude)
	r := altitude + radius
	return []float64{r * cLat * cLong, r * cLat * sLong, r * sLat}
}
