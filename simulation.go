package lightcurve

import (
	"context"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

/* Drives a full pass simulation. */

// Simulation couples the attitude and orbit propagations with the reflectance
// of the spacecraft to produce the lightcurve seen by the site.
type Simulation struct {
	cfg        Config
	logger     kitlog.Logger
	progress   Progress
	metrics    *Metrics
	geometry   SpacecraftGeometry
	sun        SunProvider
	integrator Integrator
	noise      *MeasurementNoise
	tracer     trace.Tracer
}

// Option customizes a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger (defaults to a nop logger).
func WithLogger(logger kitlog.Logger) Option {
	return func(s *Simulation) { s.logger = logger }
}

// WithProgress sets where the progress of each phase is reported.
func WithProgress(p Progress) Option {
	return func(s *Simulation) { s.progress = p }
}

// WithMetrics sets the prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulation) { s.metrics = m }
}

// WithGeometry overrides the box-wing spacecraft.
func WithGeometry(g SpacecraftGeometry) Option {
	return func(s *Simulation) { s.geometry = g }
}

// WithSun overrides the configured fixed sun direction.
func WithSun(sun SunProvider) Option {
	return func(s *Simulation) { s.sun = sun }
}

// WithIntegrator overrides the configured integrator.
func WithIntegrator(inte Integrator) Option {
	return func(s *Simulation) { s.integrator = inte }
}

// NewSimulation returns a new simulation of the provided scenario.
func NewSimulation(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inte, err := IntegratorFromName(cfg.Integrator, cfg.Tolerances, cfg.Substeps)
	if err != nil {
		return nil, err
	}
	noise, err := NewMeasurementNoise(cfg.MeasurementVariance)
	if err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:        cfg,
		logger:     kitlog.NewNopLogger(),
		geometry:   BoxWing(cfg.Material, cfg.CSun),
		sun:        FixedSun(cfg.Sun),
		integrator: inte,
		noise:      noise,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result is the output of a simulation.
type Result struct {
	Config     Config
	Grid       TimeGrid
	Site       Site
	Attitude   *AttitudeTrajectory // nil when the attitude is given by Euler angles
	Attitudes  []Attitude
	Orbit      *OrbitTrajectory
	Observer   [][]float64 // site - spacecraft, inertial, km
	Lightcurve Lightcurve
	Measured   []float64 // lightcurve with measurement noise, nil without variance
	Elapsed    time.Duration
}

// Run simulates the pass. Any error stops the run and no result is returned.
func (s *Simulation) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "simulation")
	defer func() {
		s.metrics.ObserveRun(err)
		endSpan(span, err)
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	grid, err := s.cfg.Grid()
	if err != nil {
		return nil, err
	}
	site := s.cfg.Site()
	s0, o0, err := s.initialStates(site)
	if err != nil {
		s.logger.Log("level", "critical", "subsys", "simulation", "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("samples", grid.Len()), attribute.String("integrator", fmt.Sprintf("%v", s.integrator)))
	s.logger.Log("level", "info", "subsys", "simulation", "grid", grid, "site", site, "integrator", s.integrator)

	var progress Progress
	if s.progress != nil {
		async := NewAsyncProgress(s.progress, 256)
		defer async.Close()
		progress = async
	}

	var (
		attTraj *AttitudeTrajectory
		atts    []Attitude
		orbit   *OrbitTrajectory
		attErr  error
		orbErr  error
	)
	if s.cfg.Parallel {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			attTraj, atts, attErr = s.attitude(ctx, grid, s0, progress)
		}()
		go func() {
			defer wg.Done()
			orbit, orbErr = s.orbit(ctx, grid, o0, progress)
		}()
		wg.Wait()
	} else {
		attTraj, atts, attErr = s.attitude(ctx, grid, s0, progress)
		if attErr == nil {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
			orbit, orbErr = s.orbit(ctx, grid, o0, progress)
		}
	}
	if attErr != nil {
		return nil, attErr
	}
	if orbErr != nil {
		return nil, orbErr
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	obs := ObserverVectors(site, orbit)
	lc, err := s.lightcurve(ctx, grid, obs, atts, progress)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Config:     s.cfg,
		Grid:       grid,
		Site:       site,
		Attitude:   attTraj,
		Attitudes:  atts,
		Orbit:      orbit,
		Observer:   obs,
		Lightcurve: lc,
	}
	if s.cfg.MeasurementVariance > 0 {
		res.Measured = s.noise.Apply(lc.Power)
	}
	res.Elapsed = time.Since(start)
	s.logger.Log("level", "notice", "subsys", "simulation", "status", "finished", "samples", lc.Len(), "duration", res.Elapsed)
	return res, nil
}

// initialAttitude returns the configured or random initial attitude state.
func (s *Simulation) initialAttitude() AttitudeState {
	omega := append([]float64(nil), s.cfg.Omega...)
	if s.cfg.RandomAttitude {
		q := RandomQuaternion()
		s.logger.Log("level", "info", "subsys", "attitude", "random", q)
		return NewAttitudeState(q, omega)
	}
	q := s.cfg.Quaternion
	return NewAttitudeState(Quaternion{q[0], []float64{q[1], q[2], q[3]}}, omega)
}

// initialStates builds and checks both initial states so that no propagation
// starts from an invalid scenario. The attitude state is unused in Euler mode.
func (s *Simulation) initialStates(site Site) (s0 AttitudeState, o0 OrbitState, err error) {
	if s.cfg.AttitudeMode != AttitudeEuler {
		s0 = s.initialAttitude()
		if err = s0.Validate(); err != nil {
			return s0, o0, err
		}
		if _, err = NewAttitudeDynamics(s.cfg.Inertia).EOM(); err != nil {
			return s0, o0, err
		}
	}
	if o0, err = SiteHorizonOrbit(site, s.cfg.OrbitAltitude, s.cfg.Mu); err != nil {
		return s0, o0, err
	}
	return s0, o0, o0.Validate()
}

func (s *Simulation) attitude(ctx context.Context, grid TimeGrid, s0 AttitudeState, progress Progress) (traj *AttitudeTrajectory, atts []Attitude, err error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "attitude")
	defer func() {
		s.metrics.ObservePhase("attitude", start)
		endSpan(span, err)
	}()
	if s.cfg.AttitudeMode == AttitudeEuler {
		atts, err = EulerTrajectory(s.cfg.Rotation, s.cfg.EulerAngles, s.cfg.EulerRates, grid)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Log("level", "info", "subsys", "attitude", "mode", AttitudeEuler, "sequence", s.cfg.Rotation, "samples", len(atts))
		return nil, atts, nil
	}
	dyn := NewAttitudeDynamics(s.cfg.Inertia)
	traj, err = PropagateAttitude(dyn, s0, grid, s.integrator, progress)
	if err != nil {
		s.logger.Log("level", "critical", "subsys", "attitude", "err", err)
		return nil, nil, err
	}
	drift := traj.MaxNormDrift()
	s.metrics.ObserveStats("attitude", traj.Stats)
	s.metrics.ObserveDrift(drift)
	span.SetAttributes(attribute.Int("steps", traj.Stats.Steps), attribute.Float64("norm_drift", drift))
	s.logger.Log("level", "info", "subsys", "attitude", "steps", traj.Stats.Steps, "rejected", traj.Stats.Rejected, "|q|-1", drift)
	if drift > NormDriftWarn {
		s.logger.Log("level", "warning", "subsys", "attitude", "message", "quaternion norm drifted", "drift", drift)
	}
	return traj, traj.Attitudes(), nil
}

func (s *Simulation) orbit(ctx context.Context, grid TimeGrid, o0 OrbitState, progress Progress) (traj *OrbitTrajectory, err error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "orbit")
	defer func() {
		s.metrics.ObservePhase("orbit", start)
		endSpan(span, err)
	}()
	s.logger.Log("level", "info", "subsys", "astro", "initial", o0, "ξ", o0.Energyξ(s.cfg.Mu))
	traj, err = PropagateOrbit(s.cfg.Mu, o0, grid, s.integrator, progress)
	if err != nil {
		s.logger.Log("level", "critical", "subsys", "astro", "err", err)
		return nil, err
	}
	s.metrics.ObserveStats("orbit", traj.Stats)
	span.SetAttributes(attribute.Int("steps", traj.Stats.Steps))
	s.logger.Log("level", "info", "subsys", "astro", "steps", traj.Stats.Steps, "rejected", traj.Stats.Rejected, "final", traj.States[traj.Len()-1])
	return traj, nil
}

func (s *Simulation) lightcurve(ctx context.Context, grid TimeGrid, obs [][]float64, atts []Attitude, progress Progress) (lc Lightcurve, err error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "lightcurve")
	defer func() {
		s.metrics.ObservePhase("lightcurve", start)
		endSpan(span, err)
	}()
	lc, err = Assemble(grid.Times(), obs, atts, s.geometry, s.sun, progress)
	if err != nil {
		s.logger.Log("level", "critical", "subsys", "lightcurve", "err", err)
		return Lightcurve{}, err
	}
	s.metrics.ObserveSamples(lc.Len())
	return lc, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
