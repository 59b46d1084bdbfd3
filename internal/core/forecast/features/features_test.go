package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

var start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

// hourly returns n consecutive observations whose temperature equals the hour index.
func hourly(n int) []domain.Observation {
	obs := make([]domain.Observation, n)
	for i := range obs {
		obs[i] = domain.Observation{
			Time:            start.Add(time.Duration(i) * time.Hour),
			TemperatureC:    float64(i),
			HumidityPct:     50 + float64(i%10),
			PressureHPa:     1000 + float64(i%5),
			WindSpeedKmh:    3,
			PrecipitationMm: 0.1,
			CloudCoverPct:   40,
		}
	}

	return obs
}

func TestBuild_LagAndRollingValues(t *testing.T) {
	obs := hourly(30)
	at := start.Add(26 * time.Hour)

	row, err := BuildWindow(obs, at)
	require.NoError(t, err)

	assert.Equal(t, 2, row.Hour)
	assert.Equal(t, at.YearDay(), row.DayOfYear)
	assert.Equal(t, 3, row.Month)
	assert.Equal(t, int(at.Weekday()), row.Weekday)
	assert.Equal(t, 26.0, row.Current[Temperature])

	tests := []struct {
		lag      int
		expected float64
	}{
		{1, 25}, {2, 24}, {3, 23}, {6, 20}, {12, 14}, {24, 2},
	}

	for _, tt := range tests {
		v, ok := row.LagOf(Temperature, tt.lag)
		require.True(t, ok)
		assert.Equal(t, tt.expected, v, "lag %dh", tt.lag)
	}

	// mean of 21..26, 15..26, 3..26
	r6, _ := row.RollingOf(Temperature, 6)
	r12, _ := row.RollingOf(Temperature, 12)
	r24, _ := row.RollingOf(Temperature, 24)
	assert.InDelta(t, 23.5, r6, 1e-9)
	assert.InDelta(t, 20.5, r12, 1e-9)
	assert.InDelta(t, 14.5, r24, 1e-9)
}

func TestBuild_InsufficientHistory(t *testing.T) {
	obs := hourly(30)

	_, err := BuildWindow(obs, start.Add(23*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, err = BuildWindow(obs, start.Add(24*time.Hour))
	assert.NoError(t, err)

	_, err = BuildWindow(obs, start.Add(40*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestBuild_GapReducesLookback(t *testing.T) {
	obs := hourly(60)
	// drop hour 40; every row that reaches back over it is unavailable
	obs = append(obs[:40], obs[41:]...)

	_, err := BuildWindow(obs, start.Add(45*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, err = BuildWindow(obs, start.Add(39*time.Hour))
	assert.NoError(t, err)

	_, err = BuildWindow(obs, start.Add(55*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestBuildTable_BoundaryProducesNoRows(t *testing.T) {
	assert.Equal(t, 0, BuildTable(hourly(MaxLookback)).Len())
	assert.Equal(t, 0, BuildTable(nil).Len())

	// 26 hours: hour 24 has full lookback and hour 25 as its target
	table := BuildTable(hourly(MaxLookback + 2))
	require.Equal(t, 1, table.Len())
	assert.Equal(t, 25.0, table.Targets[Temperature][0])
}

func TestBuildTable_TargetsAreNextHour(t *testing.T) {
	table := BuildTable(hourly(100))

	require.Equal(t, 100-MaxLookback-1, table.Len())

	for _, v := range Regressed {
		assert.Len(t, table.Targets[v], table.Len())
	}

	for i, row := range table.Rows {
		assert.Equal(t, row.Current[Temperature]+1, table.Targets[Temperature][i])
	}

	m := table.Matrix()
	assert.Len(t, m, table.Len())
	assert.Len(t, m[0], NumFeatures)
	assert.Len(t, Names(), NumFeatures)
}

func TestSeries_DuplicateHourReplaced(t *testing.T) {
	obs := hourly(3)
	dup := obs[1]
	dup.TemperatureC = 99
	obs = append(obs, dup)

	s := NewSeries(obs)
	assert.Equal(t, 3, s.Len())

	o, ok := s.At(start.Add(time.Hour + 20*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 99.0, o.TemperatureC)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, start.Add(2*time.Hour), last.Time)
}

func TestSeries_FractionalOffsetZone(t *testing.T) {
	zone := time.FixedZone("IST", 5*3600+1800)
	obs := make([]domain.Observation, 30)

	for i := range obs {
		obs[i] = domain.Observation{
			Time:         time.Date(2024, 6, 1, 0, 0, 0, 0, zone).Add(time.Duration(i) * time.Hour),
			TemperatureC: float64(i),
		}
	}

	row, err := BuildWindow(obs, obs[27].Time)
	require.NoError(t, err)
	assert.Equal(t, 3, row.Hour)

	lag, _ := row.LagOf(Temperature, 24)
	assert.Equal(t, 3.0, lag)
}
