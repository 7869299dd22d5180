// Package store persists simulated lightcurves in a SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kent-Rush/lightcurve"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Models lists the tables of the schema.
var Models = []interface{}{
	&Run{},
	&Sample{},
}

// Run is one simulation.
type Run struct {
	gorm.Model
	Name         string    `json:"name" gorm:"size:200;index:idx_run_name"`
	Epoch        time.Time `json:"epoch"`
	Integrator   string    `json:"integrator" gorm:"size:64"`
	AttitudeMode string    `json:"attitudeMode" gorm:"size:32"`
	DT           float64   `json:"dt"`
	Pass         float64   `json:"pass"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Steps        int       `json:"steps"`
	Rejected     int       `json:"rejected"`
	NormDrift    float64   `json:"normDrift"`
	Elapsed      float64   `json:"elapsed"` // seconds
	Samples      []Sample  `json:"samples,omitempty"`
}

// Sample is one lightcurve sample of a run.
type Sample struct {
	ID       uint            `json:"-" gorm:"primarykey"`
	RunID    uint            `json:"-" gorm:"index:idx_sample_run"`
	Seq      int             `json:"seq"`
	Time     float64         `json:"time"`
	Power    float64         `json:"power"`
	Measured sql.NullFloat64 `json:"measured"`
	X        float64         `json:"x"` // spacecraft position, km
	Y        float64         `json:"y"`
	Z        float64         `json:"z"`
}

// Store is a lightcurve database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path. An empty path opens an in
// memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection, otherwise every connection sees its own memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(Models...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores a simulation result and returns the run ID.
func (s *Store) Save(name string, res *lightcurve.Result) (uint, error) {
	run := Run{
		Name:         name,
		Epoch:        res.Config.Epoch,
		Integrator:   res.Config.Integrator,
		AttitudeMode: res.Config.AttitudeMode,
		DT:           res.Grid.DT,
		Pass:         res.Config.Pass,
		Latitude:     res.Config.Latitude,
		Longitude:    res.Config.Longitude,
		Elapsed:      res.Elapsed.Seconds(),
	}
	if res.Attitude != nil {
		run.Steps = res.Attitude.Stats.Steps
		run.Rejected = res.Attitude.Stats.Rejected
		run.NormDrift = res.Attitude.MaxNormDrift()
	}
	if res.Orbit != nil {
		run.Steps += res.Orbit.Stats.Steps
		run.Rejected += res.Orbit.Stats.Rejected
	}
	run.Samples = make([]Sample, res.Lightcurve.Len())
	for k, p := range res.Lightcurve.Power {
		sample := Sample{Seq: k, Time: res.Lightcurve.Times[k], Power: p}
		if res.Measured != nil {
			sample.Measured = sql.NullFloat64{Float64: res.Measured[k], Valid: true}
		}
		if res.Orbit != nil && k < res.Orbit.Len() {
			r := res.Orbit.States[k].R
			sample.X, sample.Y, sample.Z = r[0], r[1], r[2]
		}
		run.Samples[k] = sample
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	}); err != nil {
		return 0, fmt.Errorf("save run %s: %w", name, err)
	}
	return run.ID, nil
}

// Load returns a run with its samples in order.
func (s *Store) Load(id uint) (*Run, error) {
	var run Run
	err := s.db.Preload("Samples", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns all runs, newest first, without their samples.
func (s *Store) List() ([]Run, error) {
	var runs []Run
	if err := s.db.Order("id DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Delete removes a run and its samples.
func (s *Store) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Sample{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Delete(&Run{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil
	})
}

// Lightcurve returns the stored lightcurve of the run.
func (r *Run) Lightcurve() lightcurve.Lightcurve {
	lc := lightcurve.Lightcurve{Times: make([]float64, len(r.Samples)), Power: make([]float64, len(r.Samples))}
	for i, s := range r.Samples {
		lc.Times[i] = s.Time
		lc.Power[i] = s.Power
	}
	return lc
}
