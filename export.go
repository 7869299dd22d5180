package lightcurve

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// InterpolatedState is one record of an xyzv trajectory file.
type InterpolatedState struct {
	JD       float64
	Position []float64
	Velocity []float64
}

// FromText initializes from text.
// The `record` parameter must be an array of seven items.
func (i *InterpolatedState) FromText(record []string) error {
	if len(record) != 7 {
		return fmt.Errorf("xyzv record has %d fields instead of 7", len(record))
	}
	vals := make([]float64, 7)
	for j, field := range record {
		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return err
		}
		vals[j] = val
	}
	i.JD = vals[0]
	i.Position = vals[1:4]
	i.Velocity = vals[4:7]
	return nil
}

// ToText converts to text for written output.
func (i *InterpolatedState) ToText() string {
	return fmt.Sprintf("%f %f %f %f %f %f %f", i.JD, i.Position[0], i.Position[1], i.Position[2], i.Velocity[0], i.Velocity[1], i.Velocity[2])
}

// ParseInterpolatedStates reads an xyzv trajectory.
func ParseInterpolatedStates(r io.Reader) ([]*InterpolatedState, error) {
	var states = []*InterpolatedState{}
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.Comment = '#'
	for {
		record, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		state := InterpolatedState{}
		if err := state.FromText(record); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
	return states, nil
}

// WriteInterpolatedStates writes the orbit as an xyzv trajectory, the time of
// each sample being the Julian date of epoch plus the sample time.
func WriteInterpolatedStates(w io.Writer, orbit *OrbitTrajectory, epoch time.Time) error {
	// Header
	if _, err := fmt.Fprintf(w, `# Creation date (UTC): %s
# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>
#   Time is a UTC Julian date
#   Position in km
#   Velocity in km/sec
#   Simulation time start (UTC): %s
`, time.Now().UTC(), epoch.UTC()); err != nil {
		return err
	}
	for k, st := range orbit.States {
		dt := epoch.Add(time.Duration(orbit.Times[k] * float64(time.Second)))
		rec := InterpolatedState{julian.TimeToJD(dt), st.R, st.V}
		if _, err := fmt.Fprintln(w, rec.ToText()); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteLightcurveCSV writes `time,power` and, when measured is not nil, the
// noisy measurement as a third column.
func WriteLightcurveCSV(w io.Writer, lc Lightcurve, measured []float64) error {
	if measured != nil && len(measured) != lc.Len() {
		return fmt.Errorf("%w: %d measurements for %d samples", ErrLengthMismatch, len(measured), lc.Len())
	}
	cw := csv.NewWriter(w)
	header := []string{"time", "power"}
	if measured != nil {
		header = append(header, "measured")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for k, p := range lc.Power {
		rec := []string{formatFloat(lc.Times[k]), formatFloat(p)}
		if measured != nil {
			rec = append(rec, formatFloat(measured[k]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttitudeCSV writes the attitude states as `time,eta,eps1,eps2,eps3,w1,w2,w3`.
func WriteAttitudeCSV(w io.Writer, traj *AttitudeTrajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "eta", "eps1", "eps2", "eps3", "w1", "w2", "w3"}); err != nil {
		return err
	}
	for k, st := range traj.States {
		rec := []string{formatFloat(traj.Times[k])}
		for _, v := range st.Vector() {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the configured output files of a run and returns their paths.
func Export(res *Result, conf OutputConfig) ([]string, error) {
	var files []string
	if !conf.CSV && !conf.Trajectories {
		return files, nil
	}
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(conf.Name)
	if name == "" {
		name = "lightcurve"
	}
	write := func(filename string, fn func(io.Writer) error) error {
		path := filepath.Join(conf.Dir, filename)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}
	if conf.CSV {
		if err := write(name+".csv", func(w io.Writer) error {
			return WriteLightcurveCSV(w, res.Lightcurve, res.Measured)
		}); err != nil {
			return files, err
		}
	}
	if conf.Trajectories {
		if res.Attitude != nil {
			if err := write(name+"-attitude.csv", func(w io.Writer) error {
				return WriteAttitudeCSV(w, res.Attitude)
			}); err != nil {
				return files, err
			}
		}
		if err := write("prop-"+name+".xyzv", func(w io.Writer) error {
			return WriteInterpolatedStates(w, res.Orbit, res.Config.Epoch)
		}); err != nil {
			return files, err
		}
	}
	return files, nil
}
