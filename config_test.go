package lightcurve

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	grid, err := cfg.Grid()
	require.NoError(t, err)
	assert.Equal(t, 4000, grid.Len())
	assert.InDelta(t, 1, floats.Norm(cfg.Quaternion, 2), 1e-15)
	assert.InDelta(t, 4/math.Sqrt(30), cfg.Quaternion[0], 1e-15)
	site := cfg.Site()
	assert.Equal(t, []float64{EarthRadius, 0, 0}, site.R)
	// The default quaternion is not shared between configurations.
	cfg.Quaternion[0] = 0
	assert.NotEqual(t, 0.0, DefaultConfig().Quaternion[0])
}

func TestLoadConfig(t *testing.T) {
	path := writeScenario(t, `
[truth]
inertia = [10, 0, 0, 0, 20, 0, 0, 0, 30.5]
measurement_variance = 1e-30

[simulation]
rotation = "313"
dt = 1
pass = 300
latitude = 40
longitude = -105.2
parallel = true
epoch = 2451545.0
r_specular = 0.2

[attitude]
quaternion = [1, 0, 0, 0]
omega = [0.01, 0.02, 0.03]

[integrator]
method = "dopri5"
rtol = 1e-9

[output]
name = "scenario"
sqlite = "runs.db"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0, 0, 0, 20, 0, 0, 0, 30.5}, cfg.Inertia)
	assert.Equal(t, 1e-30, cfg.MeasurementVariance)
	assert.Equal(t, "313", cfg.Rotation)
	assert.Equal(t, 1.0, cfg.DT)
	assert.Equal(t, 300.0, cfg.Pass)
	assert.Equal(t, 40.0, cfg.Latitude)
	assert.Equal(t, -105.2, cfg.Longitude)
	assert.True(t, cfg.Parallel)
	assert.WithinDuration(t, defaultEpoch, cfg.Epoch, time.Second)
	assert.Equal(t, []float64{1, 0, 0, 0}, cfg.Quaternion)
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, cfg.Omega)
	assert.Equal(t, "dopri5", cfg.Integrator)
	assert.Equal(t, 1e-9, cfg.Tolerances.RelTol)
	assert.Equal(t, "scenario", cfg.Output.Name)
	assert.Equal(t, "runs.db", cfg.Output.SQLite)

	// Everything else is the default.
	def := DefaultConfig()
	assert.Equal(t, Material{Specular: 0.2, Diffuse: def.Material.Diffuse, Phong: def.Material.Phong}, cfg.Material)
	assert.Equal(t, def.CSun, cfg.CSun)
	assert.Equal(t, def.OrbitAltitude, cfg.OrbitAltitude)
	assert.Equal(t, def.Mu, cfg.Mu)
	assert.Equal(t, def.Sun, cfg.Sun)
	assert.Equal(t, def.Tolerances.AbsTol, cfg.Tolerances.AbsTol)
	assert.Equal(t, def.AttitudeMode, cfg.AttitudeMode)
	assert.Equal(t, def.Output.CSV, cfg.Output.CSV)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	for name, content := range map[string]string{
		"syntax":       "[simulation\ndt = 1",
		"inertia":      "[truth]\ninertia = [1, 0, 0, 0, 1, 0, 0, 0]",
		"not a number": "[attitude]\nquaternion = [\"a\", 0, 0, 0]",
		"not an array": "[attitude]\nomega = \"fast\"",
		"dt":           "[simulation]\ndt = 0",
		"sequence":     "[simulation]\nrotation = \"3X3\"",
		"integrator":   "[integrator]\nmethod = \"euler\"",
		"mode":         "[attitude]\nmode = \"mrp\"",
	} {
		_, err := LoadConfig(writeScenario(t, content))
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"negative dt":  func(c *Config) { c.DT = -0.1 },
		"zero pass":    func(c *Config) { c.Pass = 0 },
		"sequence":     func(c *Config) { c.Rotation = "32" },
		"inertia":      func(c *Config) { c.Inertia = c.Inertia[:3] },
		"variance":     func(c *Config) { c.MeasurementVariance = -1 },
		"quaternion":   func(c *Config) { c.Quaternion = []float64{1, 0, 0} },
		"omega":        func(c *Config) { c.Omega = nil },
		"euler":        func(c *Config) { c.AttitudeMode = AttitudeEuler; c.EulerRates = []float64{1} },
		"mode":         func(c *Config) { c.AttitudeMode = "" },
		"sun length":   func(c *Config) { c.Sun = []float64{0, 1} },
		"zero sun":     func(c *Config) { c.Sun = []float64{0, 0, 0} },
		"c_sun":        func(c *Config) { c.CSun = -1 },
		"integrator":   func(c *Config) { c.Integrator = "leapfrog" },
		"rk4 substeps": func(c *Config) { c.Integrator = "rk4"; c.Substeps = 0 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
	for name, mutate := range map[string]func(*Config){
		"random attitude": func(c *Config) { c.RandomAttitude = true; c.Quaternion = nil },
		"euler":           func(c *Config) { c.AttitudeMode = AttitudeEuler; c.Omega = nil },
		"rk4":             func(c *Config) { c.Integrator = "rk4" },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.NoError(t, cfg.Validate(), name)
	}
}

func TestShippedScenario(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("cmd", "lcsim", "scenario.toml"))
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.Inertia, cfg.Inertia)
	assert.InDeltaSlice(t, def.Quaternion, cfg.Quaternion, 1e-15)
	assert.Equal(t, def.Omega, cfg.Omega)
	assert.Equal(t, def.Material, cfg.Material)
	assert.Equal(t, def.DT, cfg.DT)
	assert.Equal(t, def.Pass, cfg.Pass)
	assert.True(t, cfg.Parallel)
	assert.True(t, cfg.Output.Trajectories)
}
