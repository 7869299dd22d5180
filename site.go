package lightcurve

import (
	"fmt"
	"math"
)

const (
	r2d = 180 / math.Pi
	d2r = 1 / r2d
)

// Site defines a ground observation site on a spherical, non rotating body.
type Site struct {
	Name        string
	LatΦ, Longθ float64 // these are stored in radians!
	Altitude    float64 // km above BodyRadius
	BodyRadius  float64 // km
	R           []float64
}

// NewSite returns a new site. Angles in degrees, altitude in km.
func NewSite(name string, altitude, latΦ, longθ float64) Site {
	return NewSiteOnBody(name, altitude, latΦ, longθ, EarthRadius)
}

// NewSiteOnBody is NewSite for a body of a given radius.
func NewSiteOnBody(name string, altitude, latΦ, longθ, radius float64) Site {
	R := GEO2ECEF(altitude, latΦ*d2r, longθ*d2r, radius)
	return Site{name, latΦ * d2r, longθ * d2r, altitude, radius, R}
}

// Radius returns the distance of the site to the body center.
func (s Site) Radius() float64 {
	return s.BodyRadius + s.Altitude
}

// ObserverVector returns the vector from the spacecraft to the site, i.e.
// site - rSC, both in the inertial frame.
func (s Site) ObserverVector(rSC []float64) []float64 {
	return sub(s.R, rSC)
}

// RangeElAz returns the range vector (site to spacecraft), range, elevation
// and azimuth (in degrees) of a given inertial position.
func (s Site) RangeElAz(rSC []float64) (ρVec []float64, ρ, el, az float64) {
	ρVec = sub(rSC, s.R)
	ρ = norm(ρVec)
	rSEZ := MxV33(R3(s.Longθ), ρVec)
	rSEZ = MxV33(R2(math.Pi/2-s.LatΦ), rSEZ)
	el = math.Asin(rSEZ[2]/ρ) * r2d
	az = math.Mod(2*math.Pi+math.Atan2(rSEZ[1], -rSEZ[0]), 2*math.Pi) * r2d
	return
}

func (s Site) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km", s.Name, s.LatΦ*r2d, s.Longθ*r2d, s.Altitude)
}

// ObserverVectors returns the site - spacecraft vector for every orbit sample.
func ObserverVectors(site Site, orbit *OrbitTrajectory) [][]float64 {
	obs := make([][]float64, orbit.Len())
	for i, st := range orbit.States {
		obs[i] = site.ObserverVector(st.R)
	}
	return obs
}
