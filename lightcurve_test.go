package lightcurve

import (
	"errors"
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// recordingGeometry returns the observer range and records every call.
type recordingGeometry struct {
	calls [][2][]float64
	failAt int
	err    error
}

func (g *recordingGeometry) ReflectedPower(obs, sun []float64) (float64, error) {
	if g.err != nil && len(g.calls) == g.failAt {
		return 0, g.err
	}
	g.calls = append(g.calls, [2][]float64{obs, sun})
	return norm(obs), nil
}

// countingProgress records every report.
type countingProgress struct {
	sync.Mutex
	fractions []float64
	labels    map[string]int
}

func (p *countingProgress) Report(fraction float64, label string) {
	p.Lock()
	defer p.Unlock()
	if p.labels == nil {
		p.labels = make(map[string]int)
	}
	p.fractions = append(p.fractions, fraction)
	p.labels[label]++
}

func identityAttitudes(n int) []Attitude {
	atts := make([]Attitude, n)
	for i := range atts {
		atts[i] = IdentityQuaternion()
	}
	return atts
}

func TestReduce(t *testing.T) {
	sun := []float64{0, 1, 0}
	obs := []float64{100, -200, 300}
	sunB, obsB := Reduce(IdentityQuaternion(), sun, obs)
	if !vectorsWithin(sunB, sun, 0) || !vectorsWithin(obsB, obs, 0) {
		t.Fatalf("identity attitude changed the vectors: %v %v", sunB, obsB)
	}
	// Body X is inertial Y.
	q := NewQuaternionFromAxisAngle([]float64{0, 0, 1}, math.Pi/2)
	sunB, obsB = Reduce(q, sun, obs)
	if !vectorsWithin(sunB, []float64{1, 0, 0}, 1e-15) || !vectorsWithin(obsB, []float64{-200, -100, 300}, 1e-12) {
		t.Fatalf("incorrect body frame vectors: %v %v", sunB, obsB)
	}
	e := EulerAngles{"321", [3]float64{math.Pi / 2, 0, 0}}
	sunE, obsE := Reduce(e, sun, obs)
	if !vectorsWithin(sunE, sunB, 1e-15) || !vectorsWithin(obsE, obsB, 1e-12) {
		t.Fatal("Euler and quaternion attitudes reduce differently")
	}
	// Norms are preserved.
	r := RandomQuaternion()
	_, obsR := Reduce(r, sun, obs)
	if !scalar.EqualWithinRel(norm(obsR), norm(obs), 1e-14) {
		t.Fatalf("|obs| changed from %f to %f", norm(obs), norm(obsR))
	}
}

func TestAssemble(t *testing.T) {
	n := 10
	times := make([]float64, n)
	obs := make([][]float64, n)
	for k := range times {
		times[k] = float64(k)
		obs[k] = []float64{float64(k + 1), 0, 0}
	}
	g := &recordingGeometry{}
	p := &countingProgress{}
	lc, err := Assemble(times, obs, identityAttitudes(n), g, FixedSun{0, 0, 1}, p)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Len() != n || len(lc.Times) != n {
		t.Fatalf("lightcurve has %d samples instead of %d", lc.Len(), n)
	}
	for k := range lc.Power {
		// In order, one call per sample.
		if lc.Power[k] != float64(k+1) || lc.Times[k] != times[k] {
			t.Fatalf("sample %d: %f at %f", k, lc.Power[k], lc.Times[k])
		}
		if !vectorsWithin(g.calls[k][1], []float64{0, 0, 1}, 0) {
			t.Fatalf("sun vector %v", g.calls[k][1])
		}
	}
	if len(p.fractions) != n || p.fractions[n-1] != 1 || p.labels["Simulating Lightcurve"] != n {
		t.Fatalf("progress reports %v %v", p.fractions, p.labels)
	}
	// A nil progress and a nil sun provider are fine.
	if _, err := Assemble(times, obs, identityAttitudes(n), &recordingGeometry{}, nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestAssembleLengthMismatch(t *testing.T) {
	times := make([]float64, 10)
	obs := make([][]float64, 10)
	for k := range obs {
		obs[k] = []float64{1, 0, 0}
	}
	for _, tc := range []struct {
		obs  [][]float64
		atts []Attitude
	}{
		{obs, identityAttitudes(9)},
		{obs[:9], identityAttitudes(10)},
		{nil, identityAttitudes(10)},
	} {
		g := &recordingGeometry{}
		p := &countingProgress{}
		_, err := Assemble(times, tc.obs, tc.atts, g, DefaultSun, p)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("expected ErrLengthMismatch, got %v", err)
		}
		if len(g.calls) != 0 || len(p.fractions) != 0 {
			t.Fatal("samples processed despite the length mismatch")
		}
	}
}

func TestAssembleReflectanceError(t *testing.T) {
	n := 5
	times := make([]float64, n)
	obs := make([][]float64, n)
	for k := range obs {
		obs[k] = []float64{1, 2, 3}
	}
	errBRDF := errors.New("brdf failure")
	g := &recordingGeometry{failAt: 2, err: errBRDF}
	lc, err := Assemble(times, obs, identityAttitudes(n), g, DefaultSun, nil)
	if err != errBRDF {
		t.Fatalf("reflectance error not returned as is: %v", err)
	}
	if lc.Len() != 0 || len(g.calls) != 2 {
		t.Fatalf("lightcurve returned with an error (%d samples, %d calls)", lc.Len(), len(g.calls))
	}
	// Zero length observer vector from the faceted geometry.
	obs[3] = []float64{0, 0, 0}
	if _, err := Assemble(times, obs, identityAttitudes(n), BoxWing(Material{0.7, 0.5, 10}, 1361), DefaultSun, nil); err != errNoObserver {
		t.Fatalf("expected the zero observer error, got %v", err)
	}
}

func TestZeroRatePassVaries(t *testing.T) {
	// Constant attitude over a pass: the power still varies with the geometry.
	grid := testGrid(t, 0, 1, 400)
	site := NewSite("equator", 0, 0, 0)
	o0, _ := SiteHorizonOrbit(site, 400, EarthMu)
	orbit, err := PropagateOrbit(EarthMu, o0, grid, DormandPrince{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	att, err := PropagateAttitude(NewAttitudeDynamics([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), NewAttitudeState(IdentityQuaternion(), []float64{0, 0, 0}), grid, Rosenbrock23{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sc := BoxWing(Material{Specular: 0.7, Diffuse: 0.5, Phong: 10}, 1361)
	lc, err := Assemble(grid.Times(), ObserverVectors(site, orbit), att.Attitudes(), sc, DefaultSun, nil)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Len() != grid.Len() {
		t.Fatalf("%d samples for %d grid points", lc.Len(), grid.Len())
	}
	if floats.Max(lc.Power) <= 0 {
		t.Fatal("the spacecraft is never seen")
	}
	if floats.Max(lc.Power) == floats.Min(lc.Power) {
		t.Fatal("constant lightcurve over a pass")
	}
}
