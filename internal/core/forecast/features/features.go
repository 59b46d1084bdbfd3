// Package features turns hourly observations into regression feature rows.
//
// A Row is derived from a window of observations ending at a reference hour:
// calendar fields, the current value of every meteorological variable, lagged
// values and trailing rolling means of the regressed variables. Nothing is
// interpolated or zero-filled. A row whose lookback is incomplete is not built.
package features

import (
	"fmt"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// Variable identifies one meteorological quantity of an Observation.
type Variable int

const (
	Temperature Variable = iota
	Humidity
	Pressure
	Precipitation
	WindSpeed
	CloudCover

	numVariables = 6
)

// Regressed lists the variables that get lag and rolling features and a
// trained model. Their order fixes the layout of Row.Lag and Row.Rolling.
var Regressed = [numRegressed]Variable{Temperature, Humidity, Pressure}

const numRegressed = 3

// Lags are the hour offsets of lag features.
var Lags = [numLags]int{1, 2, 3, 6, 12, 24}

// Windows are the lengths in hours of the trailing rolling means. A window
// includes the reference hour.
var Windows = [numWindows]int{6, 12, 24}

const (
	numLags    = 6
	numWindows = 3

	// MaxLookback is the furthest hour before the reference hour a row reads.
	MaxLookback = 24

	numCalendar = 4

	// NumFeatures is the length of Row.Vector.
	NumFeatures = numCalendar + numVariables + numRegressed*numLags + numRegressed*numWindows
)

var variableNames = [numVariables]string{
	"temperature", "humidity", "pressure", "precipitation", "wind_speed", "cloud_cover",
}

func (v Variable) String() string {
	if v < 0 || int(v) >= numVariables {
		return fmt.Sprintf("variable(%d)", int(v))
	}

	return variableNames[v]
}

// Value extracts v from an observation.
func Value(o domain.Observation, v Variable) float64 {
	switch v {
	case Temperature:
		return o.TemperatureC
	case Humidity:
		return o.HumidityPct
	case Pressure:
		return o.PressureHPa
	case Precipitation:
		return o.PrecipitationMm
	case WindSpeed:
		return o.WindSpeedKmh
	case CloudCover:
		return o.CloudCoverPct
	default:
		panic(fmt.Sprintf("features: unknown variable %d", int(v)))
	}
}

// Row is the feature set for one reference hour.
type Row struct {
	Time time.Time

	Hour      int
	DayOfYear int
	Month     int
	Weekday   int

	// Current holds every variable at the reference hour, indexed by Variable.
	Current [numVariables]float64

	// Lag[i][j] is Regressed[i] observed Lags[j] hours before the reference hour.
	Lag [numRegressed][numLags]float64

	// Rolling[i][j] is the mean of Regressed[i] over the Windows[j] hours
	// ending at the reference hour.
	Rolling [numRegressed][numWindows]float64
}

// LagOf returns the lag feature of v at the given hour offset.
func (r Row) LagOf(v Variable, hours int) (float64, bool) {
	i, ok := regressedIndex(v)
	if !ok {
		return 0, false
	}

	for j, lag := range Lags {
		if lag == hours {
			return r.Lag[i][j], true
		}
	}

	return 0, false
}

// RollingOf returns the rolling mean of v over the given window.
func (r Row) RollingOf(v Variable, window int) (float64, bool) {
	i, ok := regressedIndex(v)
	if !ok {
		return 0, false
	}

	for j, w := range Windows {
		if w == window {
			return r.Rolling[i][j], true
		}
	}

	return 0, false
}

// Vector flattens the row in the column order reported by Names.
func (r Row) Vector() []float64 {
	out := make([]float64, 0, NumFeatures)
	out = append(out, float64(r.Hour), float64(r.DayOfYear), float64(r.Month), float64(r.Weekday))
	out = append(out, r.Current[:]...)

	for i := range Regressed {
		out = append(out, r.Lag[i][:]...)
	}

	for i := range Regressed {
		out = append(out, r.Rolling[i][:]...)
	}

	return out
}

// Names returns the column names of Row.Vector.
func Names() []string {
	names := make([]string, 0, NumFeatures)
	names = append(names, "hour", "day_of_year", "month", "day_of_week")
	names = append(names, variableNames[:]...)

	for _, v := range Regressed {
		for _, lag := range Lags {
			names = append(names, fmt.Sprintf("%s_lag_%dh", v, lag))
		}
	}

	for _, v := range Regressed {
		for _, w := range Windows {
			names = append(names, fmt.Sprintf("%s_rolling_%dh", v, w))
		}
	}

	return names
}

func regressedIndex(v Variable) (int, bool) {
	for i, rv := range Regressed {
		if rv == v {
			return i, true
		}
	}

	return 0, false
}

// Build produces the row for reference hour at. It fails with
// domain.ErrInsufficientHistory when any input hour is absent from s.
func Build(s *Series, at time.Time) (Row, error) {
	cur, ok := s.At(at)
	if !ok {
		return Row{}, fmt.Errorf("%w: no observation at %s", domain.ErrInsufficientHistory, at.Format(time.RFC3339))
	}

	row := Row{
		Time:      cur.Time,
		Hour:      cur.Time.Hour(),
		DayOfYear: cur.Time.YearDay(),
		Month:     int(cur.Time.Month()),
		Weekday:   int(cur.Time.Weekday()),
	}

	for v := Variable(0); v < numVariables; v++ {
		row.Current[v] = Value(cur, v)
	}

	for i, v := range Regressed {
		for j, lag := range Lags {
			o, ok := s.At(at.Add(-time.Duration(lag) * time.Hour))
			if !ok {
				return Row{}, fmt.Errorf("%w: %s lag %dh missing at %s",
					domain.ErrInsufficientHistory, v, lag, at.Format(time.RFC3339))
			}

			row.Lag[i][j] = Value(o, v)
		}

		for j, w := range Windows {
			var sum float64

			for k := 0; k < w; k++ {
				o, ok := s.At(at.Add(-time.Duration(k) * time.Hour))
				if !ok {
					return Row{}, fmt.Errorf("%w: %s rolling %dh window incomplete at %s",
						domain.ErrInsufficientHistory, v, w, at.Format(time.RFC3339))
				}

				sum += Value(o, v)
			}

			row.Rolling[i][j] = sum / float64(w)
		}
	}

	return row, nil
}

// BuildWindow is Build over a plain observation slice.
func BuildWindow(obs []domain.Observation, at time.Time) (Row, error) {
	return Build(NewSeries(obs), at)
}

// Table is a training set: one row per usable hour and, per regressed
// variable, the value observed one hour after each row.
type Table struct {
	Rows    []Row
	Targets map[Variable][]float64
}

// Len returns the number of training rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Matrix returns the rows as feature vectors.
func (t *Table) Matrix() [][]float64 {
	m := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		m[i] = r.Vector()
	}

	return m
}

// BuildTable applies Build to every hour of obs whose lookback is complete
// and whose following hour exists. The first MaxLookback hours of a window
// never produce a row.
func BuildTable(obs []domain.Observation) *Table {
	s := NewSeries(obs)
	t := &Table{Targets: make(map[Variable][]float64, numRegressed)}

	for _, o := range s.obs {
		next, ok := s.At(o.Time.Add(time.Hour))
		if !ok {
			continue
		}

		row, err := Build(s, o.Time)
		if err != nil {
			continue
		}

		t.Rows = append(t.Rows, row)

		for _, v := range Regressed {
			t.Targets[v] = append(t.Targets[v], Value(next, v))
		}
	}

	return t
}
