package lightcurve

import (
	"errors"
	"fmt"
	"math"
)

// SpacecraftGeometry evaluates the power reflected toward an observer.
// Implementations must be pure and deterministic. Both vectors are in the body
// frame: obs goes from the spacecraft to the observer (km), sun is the sun direction.
type SpacecraftGeometry interface {
	ReflectedPower(obs, sun []float64) (float64, error)
}

// Material defines the reflectance of a surface.
type Material struct {
	Specular float64 // specular reflectance R_s
	Diffuse  float64 // diffuse reflectance R_d
	Phong    float64 // Phong exponent N
}

// Facet is a flat, one sided surface.
type Facet struct {
	Normal   []float64 // outward unit normal, body frame
	Area     float64   // m^2
	Material Material
}

// FacetedGeometry is a faceted spacecraft, each facet reflecting sunlight with a
// Lambertian plus Phong BRDF:
//
//	ρ = R_d/π + R_s (N+2)/(2π) max(0, r·ô)^N, with r = 2(n·ŝ)n - ŝ
//
// and the power reaching the observer is the sum over lit and visible facets of
// C_sun A ρ (n·ŝ)(n·ô) / d², d being the observer range in meters.
// There is no self shadowing.
type FacetedGeometry struct {
	Facets []Facet
	CSun   float64 // W/m^2
}

var (
	errNoObserver = errors.New("observer vector has zero length")
	errNoSun      = errors.New("sun vector has zero length")
)

// ReflectedPower implements the SpacecraftGeometry interface.
func (f FacetedGeometry) ReflectedPower(obs, sun []float64) (float64, error) {
	d := norm(obs)
	if d == 0 {
		return 0, errNoObserver
	}
	if norm(sun) == 0 {
		return 0, errNoSun
	}
	ô := unit(obs)
	ŝ := unit(sun)
	dMeters := d * 1e3
	var power float64
	for _, facet := range f.Facets {
		n := facet.Normal
		cosI := dot(n, ŝ)
		cosR := dot(n, ô)
		if cosI <= 0 || cosR <= 0 {
			continue
		}
		r := make([]float64, 3)
		for i := 0; i < 3; i++ {
			r[i] = 2*cosI*n[i] - ŝ[i]
		}
		m := facet.Material
		brdf := m.Diffuse / math.Pi
		if cosA := dot(r, ô); cosA > 0 {
			brdf += m.Specular * (m.Phong + 2) / (2 * math.Pi) * math.Pow(cosA, m.Phong)
		}
		power += f.CSun * facet.Area * brdf * cosI * cosR
	}
	return power / (dMeters * dMeters), nil
}

// Validate checks every facet has a unit normal and a non negative area.
func (f FacetedGeometry) Validate() error {
	for i, facet := range f.Facets {
		if len(facet.Normal) != 3 || math.Abs(norm(facet.Normal)-1) > 1e-9 {
			return fmt.Errorf("facet %d: normal %v is not a unit vector", i, facet.Normal)
		}
		if facet.Area < 0 {
			return fmt.Errorf("facet %d: negative area", i)
		}
	}
	return nil
}

// BoxWing returns the premade box-wing spacecraft: a one meter cube bus and a
// two sided 4 m^2 solar panel in the body XZ plane, all with the same material.
func BoxWing(m Material, cSun float64) FacetedGeometry {
	axes := [][]float64{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	facets := make([]Facet, 0, 8)
	for _, n := range axes {
		facets = append(facets, Facet{n, 1, m})
	}
	facets = append(facets, Facet{[]float64{0, 1, 0}, 4, m}, Facet{[]float64{0, -1, 0}, 4, m})
	return FacetedGeometry{facets, cSun}
}
