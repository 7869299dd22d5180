package lightcurve

import (
	"fmt"
	"io"
	"math"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
)

const (
	// AttitudeQuaternion propagates the rigid body dynamics on quaternions.
	AttitudeQuaternion = "quaternion"
	// AttitudeEuler uses Euler angles moving at constant rates.
	AttitudeEuler = "euler"
	// NormDriftWarn is the quaternion norm drift above which a warning is logged.
	NormDriftWarn = 1e-6
)

// Config is a full simulation scenario. It is built once and passed by value.
type Config struct {
	// Truth
	Inertia             []float64 // row major, kg.m^2
	MeasurementVariance float64

	// Simulation
	Rotation     string  // Euler sequence, e.g. "321"
	DT           float64 // output cadence, s
	Pass         float64 // pass duration, s
	Latitude     float64 // site latitude, degrees
	Longitude    float64 // site longitude, degrees
	SiteAltitude float64 // km
	Material     Material
	CSun         float64 // W/m^2
	Parallel     bool
	Epoch        time.Time

	// Attitude
	AttitudeMode   string
	Quaternion     []float64 // η ε1 ε2 ε3
	Omega          []float64 // rad/s
	RandomAttitude bool
	EulerAngles    []float64 // rad
	EulerRates     []float64 // rad/s

	// Orbit
	OrbitAltitude float64 // km
	Mu            float64 // km^3/s^2
	BodyRadius    float64 // km

	Sun []float64

	// Integrator
	Integrator string
	Tolerances Tolerances
	Substeps   int

	Output OutputConfig
}

// OutputConfig defines what is written at the end of a run.
type OutputConfig struct {
	Dir          string
	Name         string
	CSV          bool
	Trajectories bool
	SQLite       string // database path, empty to disable
	Metrics      string // prometheus text file, empty to disable
}

var defaultQuaternion = []float64{4 / math.Sqrt(30), 1 / math.Sqrt(30), 2 / math.Sqrt(30), 3 / math.Sqrt(30)}

// J2000 epoch, used when none is configured.
var defaultEpoch = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// DefaultConfig returns the reference scenario: a 400 km circular orbit rising
// above the horizon of a site at (0, 0), tumbling about the body Y axis.
func DefaultConfig() Config {
	tol := DefaultTolerances()
	return Config{
		Inertia:       []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Rotation:      "321",
		DT:            0.1,
		Pass:          400,
		Material:      Material{Specular: 0.7, Diffuse: 0.5, Phong: 10},
		CSun:          1361,
		Epoch:         defaultEpoch,
		AttitudeMode:  AttitudeQuaternion,
		Quaternion:    append([]float64(nil), defaultQuaternion...),
		Omega:         []float64{0, 0.1, 0},
		EulerAngles:   []float64{0, 0, 0},
		EulerRates:    []float64{0, 0.1, 0},
		OrbitAltitude: 400,
		Mu:            EarthMu,
		BodyRadius:    EarthRadius,
		Sun:           []float64{0, 1, 0},
		Integrator:    "rosenbrock23",
		Tolerances:    tol,
		Substeps:      10,
		Output:        OutputConfig{Dir: ".", Name: "lightcurve", CSV: true},
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("truth.inertia", def.Inertia)
	v.SetDefault("truth.measurement_variance", def.MeasurementVariance)
	v.SetDefault("simulation.rotation", def.Rotation)
	v.SetDefault("simulation.dt", def.DT)
	v.SetDefault("simulation.pass", def.Pass)
	v.SetDefault("simulation.latitude", def.Latitude)
	v.SetDefault("simulation.longitude", def.Longitude)
	v.SetDefault("simulation.altitude", def.SiteAltitude)
	v.SetDefault("simulation.r_specular", def.Material.Specular)
	v.SetDefault("simulation.r_diffusion", def.Material.Diffuse)
	v.SetDefault("simulation.n_phong", def.Material.Phong)
	v.SetDefault("simulation.c_sun", def.CSun)
	v.SetDefault("simulation.parallel", def.Parallel)
	v.SetDefault("attitude.mode", def.AttitudeMode)
	v.SetDefault("attitude.quaternion", def.Quaternion)
	v.SetDefault("attitude.omega", def.Omega)
	v.SetDefault("attitude.random", def.RandomAttitude)
	v.SetDefault("attitude.euler", def.EulerAngles)
	v.SetDefault("attitude.euler_rates", def.EulerRates)
	v.SetDefault("orbit.altitude", def.OrbitAltitude)
	v.SetDefault("orbit.mu", def.Mu)
	v.SetDefault("orbit.earth_radius", def.BodyRadius)
	v.SetDefault("sun.direction", def.Sun)
	v.SetDefault("integrator.method", def.Integrator)
	v.SetDefault("integrator.rtol", def.Tolerances.RelTol)
	v.SetDefault("integrator.atol", def.Tolerances.AbsTol)
	v.SetDefault("integrator.initial_step", def.Tolerances.InitialStep)
	v.SetDefault("integrator.max_step", def.Tolerances.MaxStep)
	v.SetDefault("integrator.max_steps", def.Tolerances.MaxSteps)
	v.SetDefault("integrator.substeps", def.Substeps)
	v.SetDefault("output.dir", def.Output.Dir)
	v.SetDefault("output.name", def.Output.Name)
	v.SetDefault("output.csv", def.Output.CSV)
	v.SetDefault("output.trajectories", def.Output.Trajectories)
	v.SetDefault("output.sqlite", def.Output.SQLite)
	v.SetDefault("output.metrics", def.Output.Metrics)
}

// LoadConfig reads a TOML scenario. Missing keys take the DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, path, err)
	}
	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (Config, error) {
	var err error
	floats := func(key string) []float64 {
		if err != nil {
			return nil
		}
		var vals []float64
		vals, err = floatSlice(v, key)
		return vals
	}
	cfg := Config{
		Inertia:             floats("truth.inertia"),
		MeasurementVariance: v.GetFloat64("truth.measurement_variance"),
		Rotation:            v.GetString("simulation.rotation"),
		DT:                  v.GetFloat64("simulation.dt"),
		Pass:                v.GetFloat64("simulation.pass"),
		Latitude:            v.GetFloat64("simulation.latitude"),
		Longitude:           v.GetFloat64("simulation.longitude"),
		SiteAltitude:        v.GetFloat64("simulation.altitude"),
		Material: Material{
			Specular: v.GetFloat64("simulation.r_specular"),
			Diffuse:  v.GetFloat64("simulation.r_diffusion"),
			Phong:    v.GetFloat64("simulation.n_phong"),
		},
		CSun:           v.GetFloat64("simulation.c_sun"),
		Parallel:       v.GetBool("simulation.parallel"),
		Epoch:          confReadJDEorTime(v, "simulation.epoch"),
		AttitudeMode:   v.GetString("attitude.mode"),
		Quaternion:     floats("attitude.quaternion"),
		Omega:          floats("attitude.omega"),
		RandomAttitude: v.GetBool("attitude.random"),
		EulerAngles:    floats("attitude.euler"),
		EulerRates:     floats("attitude.euler_rates"),
		OrbitAltitude:  v.GetFloat64("orbit.altitude"),
		Mu:             v.GetFloat64("orbit.mu"),
		BodyRadius:     v.GetFloat64("orbit.earth_radius"),
		Sun:            floats("sun.direction"),
		Integrator:     v.GetString("integrator.method"),
		Tolerances: Tolerances{
			RelTol:      v.GetFloat64("integrator.rtol"),
			AbsTol:      v.GetFloat64("integrator.atol"),
			InitialStep: v.GetFloat64("integrator.initial_step"),
			MaxStep:     v.GetFloat64("integrator.max_step"),
			MaxSteps:    v.GetInt("integrator.max_steps"),
		},
		Substeps: v.GetInt("integrator.substeps"),
		Output: OutputConfig{
			Dir:          v.GetString("output.dir"),
			Name:         v.GetString("output.name"),
			CSV:          v.GetBool("output.csv"),
			Trajectories: v.GetBool("output.trajectories"),
			SQLite:       v.GetString("output.sqlite"),
			Metrics:      v.GetString("output.metrics"),
		},
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// confReadJDEorTime reads a date either as a Julian date or as a time.
func confReadJDEorTime(v *viper.Viper, key string) (dt time.Time) {
	if !v.IsSet(key) {
		return defaultEpoch
	}
	jde := v.GetFloat64(key)
	if jde == 0 {
		dt = v.GetTime(key)
	} else {
		dt = julian.JDToTime(jde)
	}
	return
}

// floatSlice reads a TOML array of numbers.
func floatSlice(v *viper.Viper, key string) ([]float64, error) {
	switch raw := v.Get(key).(type) {
	case []float64:
		return append([]float64(nil), raw...), nil
	case []interface{}:
		vals := make([]float64, len(raw))
		for i, r := range raw {
			switch n := r.(type) {
			case float64:
				vals[i] = n
			case int64:
				vals[i] = float64(n)
			case int:
				vals[i] = float64(n)
			default:
				return nil, fmt.Errorf("%w: %s[%d] is not a number (%v)", ErrInvalidConfig, key, i, r)
			}
		}
		return vals, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s must be an array of numbers", ErrInvalidConfig, key)
	}
}

// Validate checks the configuration can be simulated. The norm of the initial
// quaternion is checked by the attitude propagation.
func (c Config) Validate() error {
	if !(c.DT > 0) {
		return fmt.Errorf("%w: dt must be positive (got %f)", ErrInvalidConfig, c.DT)
	}
	if !(c.Pass > 0) {
		return fmt.Errorf("%w: pass must be positive (got %f)", ErrInvalidConfig, c.Pass)
	}
	if err := ValidSequence(c.Rotation); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if len(c.Inertia) != 9 {
		return fmt.Errorf("%w: inertia must have 9 components (got %d)", ErrInvalidConfig, len(c.Inertia))
	}
	if c.MeasurementVariance < 0 {
		return fmt.Errorf("%w: negative measurement variance %f", ErrInvalidConfig, c.MeasurementVariance)
	}
	switch c.AttitudeMode {
	case AttitudeQuaternion:
		if !c.RandomAttitude && len(c.Quaternion) != 4 {
			return fmt.Errorf("%w: quaternion must have 4 components [η ε1 ε2 ε3] (got %d)", ErrInvalidConfig, len(c.Quaternion))
		}
		if len(c.Omega) != 3 {
			return fmt.Errorf("%w: omega must have 3 components (got %d)", ErrInvalidConfig, len(c.Omega))
		}
	case AttitudeEuler:
		if len(c.EulerAngles) != 3 || len(c.EulerRates) != 3 {
			return fmt.Errorf("%w: euler angles and rates must have 3 components", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown attitude mode `%s`", ErrInvalidConfig, c.AttitudeMode)
	}
	if len(c.Sun) != 3 || norm(c.Sun) == 0 {
		return fmt.Errorf("%w: sun direction must be a non zero 3-vector", ErrInvalidConfig)
	}
	if !(c.CSun >= 0) {
		return fmt.Errorf("%w: c_sun must not be negative", ErrInvalidConfig)
	}
	inte, err := IntegratorFromName(c.Integrator, c.Tolerances, c.Substeps)
	if err != nil {
		return err
	}
	if _, rk4 := inte.(RK4); rk4 && c.Substeps <= 0 {
		return fmt.Errorf("%w: rk4 needs at least one substep", ErrInvalidConfig)
	}
	return nil
}

// Grid returns the time grid of the pass.
func (c Config) Grid() (TimeGrid, error) {
	return NewTimeGrid(0, c.DT, c.Pass)
}

// Site returns the observation site.
func (c Config) Site() Site {
	return NewSiteOnBody("site", c.SiteAltitude, c.Latitude, c.Longitude, c.BodyRadius)
}

// NewLogger returns a logfmt go-kit logger writing to w.
func NewLogger(w io.Writer) kitlog.Logger {
	return kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
}
