// Package forecast runs the forecasting pipeline for one request: fetch the
// historical window, train one regression per variable, roll the models out
// hour by hour and summarise each day with a temperature and a WMO condition.
// When training is not possible the request is served from a seasonal
// climatology instead.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/forecast/conditions"
	"github.com/sean-rowe/forecast-service/internal/core/forecast/features"
	"github.com/sean-rowe/forecast-service/internal/core/forecast/model"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// State is a stage of a forecast run.
type State string

const (
	StateInitializing State = "initializing"
	StateTraining     State = "training"
	StateRollingOut   State = "rolling_out"
	StateDegraded     State = "degraded"
	StateDone         State = "done"
)

// Physical bounds applied to synthetic observations during rollout.
const (
	temperatureMarginC = 15.0
	minPressureHPa     = 870.0
	maxPressureHPa     = 1085.0
)

type predictor interface {
	Predict(x []float64) (float64, error)
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for GeneratedAt and for dating forecasts when
// no history exists.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// WithHistoryDays sets how many days of history are requested, capped at
// domain.MaxHistoryDays.
func WithHistoryDays(days int) Option {
	return func(d *Driver) {
		if days > 0 && days <= domain.MaxHistoryDays {
			d.historyDays = days
		}
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(d *Driver) {
		d.observe = fn
	}
}

// Driver produces forecasts. It holds no per-request state and is safe for
// concurrent use; each call works on its own run.
type Driver struct {
	source      ports.HistoricalDataSource
	rules       conditions.Engine
	logger      *zap.Logger
	now         func() time.Time
	historyDays int
	observe     func(State)
}

// NewDriver creates a driver reading history from source.
func NewDriver(source ports.HistoricalDataSource, logger *zap.Logger, opts ...Option) *Driver {
	d := &Driver{
		source:      source,
		logger:      logger,
		now:         time.Now,
		historyDays: domain.MaxHistoryDays,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Forecast returns days daily forecasts for coords. It fails only for invalid
// arguments, when the source fails without returning any observation, or on
// a model contract violation. Every other problem degrades the forecast.
func (d *Driver) Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}

	if days < 1 || days > domain.MaxHorizonDays {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d",
			domain.ErrInvalidHorizon, domain.MaxHorizonDays, days)
	}

	r := &run{
		driver: d,
		coords: coords,
		days:   days,
		logger: d.logger.With(
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Int("days", days),
		),
	}

	r.transition(StateInitializing)

	obs, err := d.source.FetchHistoricalObservations(ctx, coords, d.historyDays)
	history := usable(obs)

	if err != nil && len(history) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrHistoricalSourceUnavailable, err)
	}

	r.history = history
	r.climate = newClimatology(history, coords.Latitude)

	// a window cut short by a failed fetch is never trained on
	if err != nil {
		return r.degrade(fmt.Errorf("%w: %w", domain.ErrHistoricalSourceUnavailable, err))
	}

	if len(history) == 0 {
		return r.degrade(errors.New("no usable observations"))
	}

	r.transition(StateTraining)

	if err := r.train(); err != nil {
		return r.degrade(err)
	}

	r.transition(StateRollingOut)

	if err := r.rollout(); err != nil {
		if errors.Is(err, domain.ErrModelNotFitted) {
			return nil, err
		}

		return r.degrade(err)
	}

	r.transition(StateDone)

	return r.result(domain.ModeModel), nil
}

// run is the state of one forecast request. Only the run mutates its rollout
// buffer and output.
type run struct {
	driver *Driver
	coords domain.Coordinates
	days   int
	logger *zap.Logger
	state  State

	history      []domain.Observation
	climate      *climatology
	models       map[features.Variable]predictor
	trainingRows int
	tempMin      float64
	tempMax      float64

	series *features.Series
	out    []domain.DailyForecast
}

func (r *run) transition(s State) {
	r.state = s
	r.logger.Debug("forecast state", zap.String("state", string(s)))

	if r.driver.observe != nil {
		r.driver.observe(s)
	}
}

func (r *run) train() error {
	table := features.BuildTable(r.history)
	r.trainingRows = table.Len()

	x := table.Matrix()
	r.models = make(map[features.Variable]predictor, len(features.Regressed))

	for _, v := range features.Regressed {
		m := model.New()
		if err := m.Fit(x, table.Targets[v]); err != nil {
			return fmt.Errorf("fit %s model: %w", v, err)
		}

		r.models[v] = m
	}

	r.tempMin, r.tempMax = math.Inf(1), math.Inf(-1)
	for _, o := range r.history {
		r.tempMin = math.Min(r.tempMin, o.TemperatureC)
		r.tempMax = math.Max(r.tempMax, o.TemperatureC)
	}

	r.logger.Debug("models trained", zap.Int("rows", r.trainingRows))

	return nil
}

// rollout predicts every hour from the rollout anchor to the end of the
// horizon. Each prediction is appended to the series as a synthetic
// observation, so later hours see it through their lag and rolling features.
func (r *run) rollout() error {
	anchor, err := rolloutAnchor(r.history)
	if err != nil {
		return err
	}

	r.series = features.NewSeries(r.history[:anchor+1])
	first := r.firstDate()

	h := r.history[anchor].Time.Add(time.Hour)
	for ; h.Before(first); h = h.Add(time.Hour) {
		if _, err := r.step(h); err != nil {
			return err
		}
	}

	for i := 0; i < r.days; i++ {
		date := first.AddDate(0, 0, i)
		end := first.AddDate(0, 0, i+1)

		var sum float64
		var n int

		for ; h.Before(end); h = h.Add(time.Hour) {
			o, err := r.step(h)
			if err != nil {
				return err
			}

			sum += o.TemperatureC
			n++
		}

		r.appendDay(i, date, sum/float64(n))
	}

	return nil
}

// maxAnchorLookback bounds how far before the last observation the rollout
// may start when the most recent hours have gaps.
const maxAnchorLookback = 48 * time.Hour

// rolloutAnchor returns the index of the latest observation whose lag and
// rolling inputs are all present. Real observations after it are replaced by
// predictions, so a missing hour near the end of the window costs a few
// extra rollout steps instead of the model.
func rolloutAnchor(history []domain.Observation) (int, error) {
	series := features.NewSeries(history)
	cutoff := history[len(history)-1].Time.Add(-maxAnchorLookback)

	err := domain.ErrInsufficientHistory
	for i := len(history) - 1; i >= 0 && !history[i].Time.Before(cutoff); i-- {
		if _, err = features.Build(series, history[i].Time); err == nil {
			return i, nil
		}
	}

	return 0, fmt.Errorf("no complete feature row within %s of the last observation: %w", maxAnchorLookback, err)
}

// step predicts hour h from the features of the hour before it.
func (r *run) step(h time.Time) (domain.Observation, error) {
	row, err := features.Build(r.series, h.Add(-time.Hour))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("rollout at %s: %w", h.Format(time.RFC3339), err)
	}

	x := row.Vector()

	temp, err := r.predict(features.Temperature, x)
	if err != nil {
		return domain.Observation{}, err
	}

	hum, err := r.predict(features.Humidity, x)
	if err != nil {
		return domain.Observation{}, err
	}

	press, err := r.predict(features.Pressure, x)
	if err != nil {
		return domain.Observation{}, err
	}

	c := r.climate.around(h.YearDay())
	code, ok := conditions.Mode(c.codes)
	if !ok {
		code = -1
	}

	o := domain.Observation{
		Time:            h,
		Coordinates:     r.coords,
		TemperatureC:    clamp(temp, r.tempMin-temperatureMarginC, r.tempMax+temperatureMarginC),
		HumidityPct:     clamp(hum, 0, 100),
		PressureHPa:     clamp(press, minPressureHPa, maxPressureHPa),
		WindSpeedKmh:    c.windSpeedKmh,
		PrecipitationMm: c.precipitation,
		CloudCoverPct:   c.cloudCoverPct,
		WeatherCode:     code,
	}

	r.series.Append(o)

	return o, nil
}

func (r *run) predict(v features.Variable, x []float64) (float64, error) {
	m, ok := r.models[v]
	if !ok || m == nil {
		return 0, fmt.Errorf("%s: %w", v, domain.ErrModelNotFitted)
	}

	return m.Predict(x)
}

func (r *run) appendDay(i int, date time.Time, meanTemp float64) {
	c := r.climate.around(date.YearDay())
	j := dayJitter(r.coords, i)
	cloud, precip, wind := j.apply(c)
	temp := meanTemp + j.temperatureC

	code := r.driver.rules.Evaluate(conditions.Inputs{
		TemperatureC:    temp,
		PrecipitationMm: precip,
		WindSpeedKmh:    wind,
		CloudCoverPct:   cloud,
		DayOfYear:       date.YearDay(),
		Latitude:        r.coords.Latitude,
		History:         c.codes,
	})

	r.out = append(r.out, domain.DailyForecast{
		Date:                 date,
		TemperatureC:         temp,
		ConditionCode:        code,
		ConditionDescription: domain.DescribeWMO(code),
		CloudCoverPct:        cloud,
		PrecipitationMm:      precip,
		WindSpeedKmh:         wind,
	})
}

// degrade serves the whole horizon from the day-of-year climatology. It
// cannot fail.
func (r *run) degrade(reason error) (*domain.Forecast, error) {
	r.transition(StateDegraded)
	r.logger.Warn("forecast degraded to seasonal averages",
		zap.Int("observations", len(r.history)),
		zap.Error(reason))

	r.out = r.out[:0]
	r.trainingRows = 0
	first := r.firstDate()

	for i := 0; i < r.days; i++ {
		date := first.AddDate(0, 0, i)
		c := r.climate.around(date.YearDay())

		code, ok := conditions.Mode(c.codes)
		if !ok {
			code = r.driver.rules.Evaluate(conditions.Inputs{
				TemperatureC:    c.temperatureC,
				PrecipitationMm: c.precipitation,
				WindSpeedKmh:    c.windSpeedKmh,
				CloudCoverPct:   c.cloudCoverPct,
				DayOfYear:       date.YearDay(),
				Latitude:        r.coords.Latitude,
			})
		}

		r.out = append(r.out, domain.DailyForecast{
			Date:                 date,
			TemperatureC:         c.temperatureC,
			ConditionCode:        code,
			ConditionDescription: domain.DescribeWMO(code),
			CloudCoverPct:        c.cloudCoverPct,
			PrecipitationMm:      c.precipitation,
			WindSpeedKmh:         c.windSpeedKmh,
			Degraded:             true,
		})
	}

	r.transition(StateDone)

	return r.result(domain.ModeDegraded), nil
}

// firstDate is midnight of the day after the last observation, or of
// tomorrow (UTC) when there is no history.
func (r *run) firstDate() time.Time {
	ref := r.driver.now().UTC()
	if len(r.history) > 0 {
		ref = r.history[len(r.history)-1].Time
	}

	y, m, d := ref.Date()

	return time.Date(y, m, d+1, 0, 0, 0, 0, ref.Location())
}

func (r *run) result(mode domain.ForecastMode) *domain.Forecast {
	days := make([]domain.DailyForecast, len(r.out))
	copy(days, r.out)

	return &domain.Forecast{
		Coordinates:  r.coords,
		Days:         days,
		Mode:         mode,
		HistoryHours: len(r.history),
		TrainingRows: r.trainingRows,
		GeneratedAt:  r.driver.now(),
	}
}

// usable drops observations with non-finite values and returns the rest in
// chronological order with one observation per hour.
func usable(obs []domain.Observation) []domain.Observation {
	kept := make([]domain.Observation, 0, len(obs))

	for _, o := range obs {
		if finite(o.TemperatureC, o.HumidityPct, o.PressureHPa, o.WindSpeedKmh, o.PrecipitationMm, o.CloudCoverPct) {
			kept = append(kept, o)
		}
	}

	return features.NewSeries(kept).Observations()
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
