package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// midsummer in the northern hemisphere keeps the freezing point at 0 °C
const julyDay = 190

func TestEngine_RulePrecedence(t *testing.T) {
	engine := Engine{}

	tests := []struct {
		name     string
		in       Inputs
		expected int
	}{
		{"clear", Inputs{TemperatureC: 20, CloudCoverPct: 5}, domain.WMOClearSky},
		{"mainly clear", Inputs{TemperatureC: 20, CloudCoverPct: 30}, domain.WMOMainlyClear},
		{"partly cloudy", Inputs{TemperatureC: 20, CloudCoverPct: 60}, domain.WMOPartlyCloudy},
		{"overcast", Inputs{TemperatureC: 20, CloudCoverPct: 95}, domain.WMOOvercast},
		{"slight rain beats overcast", Inputs{TemperatureC: 20, CloudCoverPct: 95, PrecipitationMm: 0.3}, domain.WMOSlightRain},
		{"moderate rain", Inputs{TemperatureC: 20, PrecipitationMm: 1}, domain.WMOModerateRain},
		{"violent showers", Inputs{TemperatureC: 20, PrecipitationMm: 1, WindSpeedKmh: 12}, domain.WMOViolentShowers},
		{"heavy rain", Inputs{TemperatureC: 20, PrecipitationMm: 3}, domain.WMOHeavyRain},
		{"thunderstorm", Inputs{TemperatureC: 20, PrecipitationMm: 3, WindSpeedKmh: 12}, domain.WMOThunderstorm},
		{"thunderstorm with hail", Inputs{TemperatureC: 20, PrecipitationMm: 3, WindSpeedKmh: 20}, domain.WMOThunderstormHvHail},
		{"slight snow", Inputs{TemperatureC: -3, PrecipitationMm: 0.3}, domain.WMOSlightSnow},
		{"moderate snow", Inputs{TemperatureC: -3, PrecipitationMm: 1}, domain.WMOModerateSnow},
		{"heavy snow beats thunderstorm", Inputs{TemperatureC: -3, PrecipitationMm: 3, WindSpeedKmh: 20}, domain.WMOHeavySnow},
		{"cold and dry stays clear", Inputs{TemperatureC: -10, CloudCoverPct: 10}, domain.WMOClearSky},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.DayOfYear = julyDay
			tt.in.Latitude = 45
			assert.Equal(t, tt.expected, engine.Evaluate(tt.in))
		})
	}
}

func TestEngine_WinterRaisesFreezingPoint(t *testing.T) {
	engine := Engine{}
	in := Inputs{TemperatureC: 0.6, PrecipitationMm: 0.3, Latitude: 45}

	in.DayOfYear = 15
	assert.Equal(t, domain.WMOSlightSnow, engine.Evaluate(in))

	in.DayOfYear = julyDay
	assert.Equal(t, domain.WMOSlightRain, engine.Evaluate(in))

	// January is summer in the southern hemisphere
	in.DayOfYear = 15
	in.Latitude = -33
	assert.Equal(t, domain.WMOSlightRain, engine.Evaluate(in))
}

func TestEngine_Deterministic(t *testing.T) {
	engine := Engine{}
	in := Inputs{
		TemperatureC:    12.3,
		PrecipitationMm: 0.52,
		WindSpeedKmh:    9.8,
		CloudCoverPct:   79,
		DayOfYear:       100,
		Latitude:        51.5,
		History:         map[int]int{61: 10, 63: 10, 80: 4},
	}

	first := engine.Evaluate(in)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, engine.Evaluate(in))
	}
}

func TestEngine_TieResolvesToHistoricalCondition(t *testing.T) {
	engine := Engine{}
	// 51% cloud sits inside the tie band of the partly cloudy threshold
	in := Inputs{TemperatureC: 18, CloudCoverPct: 51, DayOfYear: julyDay, Latitude: 40}

	assert.Equal(t, domain.WMOPartlyCloudy, engine.Evaluate(in))

	in.History = map[int]int{domain.WMOMainlyClear: 30, domain.WMOPartlyCloudy: 5}
	assert.Equal(t, domain.WMOMainlyClear, engine.Evaluate(in))

	in.History = map[int]int{domain.WMOMainlyClear: 5, domain.WMOPartlyCloudy: 5}
	assert.Equal(t, domain.WMOPartlyCloudy, engine.Evaluate(in))

	// outside any tie band history does not matter
	in.CloudCoverPct = 65
	in.History = map[int]int{domain.WMOMainlyClear: 300}
	assert.Equal(t, domain.WMOPartlyCloudy, engine.Evaluate(in))
}

func TestSeasonOf(t *testing.T) {
	assert.Equal(t, Winter, SeasonOf(10, 50))
	assert.Equal(t, Spring, SeasonOf(100, 50))
	assert.Equal(t, Summer, SeasonOf(200, 50))
	assert.Equal(t, Autumn, SeasonOf(300, 50))
	assert.Equal(t, Winter, SeasonOf(360, 50))
	assert.Equal(t, Summer, SeasonOf(10, -35))
	assert.Equal(t, Winter, SeasonOf(200, -35))
	assert.Equal(t, "autumn", SeasonOf(100, -35).String())
}

func TestMode(t *testing.T) {
	code, ok := Mode(nil)
	assert.False(t, ok)
	assert.Equal(t, 0, code)

	code, ok = Mode(map[int]int{3: 4, 61: 9, 1: 2})
	assert.True(t, ok)
	assert.Equal(t, 61, code)

	code, _ = Mode(map[int]int{63: 5, 2: 5})
	assert.Equal(t, 2, code)
}

func TestEngine_RuleName(t *testing.T) {
	engine := Engine{}
	assert.Equal(t, "overcast", engine.Rule(Inputs{TemperatureC: 10, CloudCoverPct: 90, DayOfYear: julyDay}))
	assert.Equal(t, "clear sky", engine.Rule(Inputs{TemperatureC: 10, DayOfYear: julyDay}))
}
