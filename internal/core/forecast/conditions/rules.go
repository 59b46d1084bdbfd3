// Package conditions maps derived meteorological quantities to a WMO weather
// code with a fixed, ordered rule list. It is a pure function of its inputs and
// never looks at the regression models.
package conditions

import (
	"sort"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// Thresholds of the rule list. Precipitation is a mean hourly amount in mm,
// wind is km/h and cloud cover is percent.
const (
	HeavyPrecipitationMm    = 2.5
	ModeratePrecipitationMm = 0.5
	SlightPrecipitationMm   = 0.1

	StormWindKmh   = 15.0
	GustyWindKmh   = 10.0
	OvercastPct    = 80.0
	PartlyPct      = 50.0
	MainlyClearPct = 20.0

	// FreezingC is the snow threshold; winter raises it to FreezingWinterC.
	FreezingC       = 0.0
	FreezingWinterC = 1.0
)

// Tie bands: an input within this distance of a threshold is considered
// undecided and resolved against the historical record.
const (
	tieTemperatureC = 0.25
	tiePrecipMm     = 0.05
	tieWindKmh      = 0.5
	tieCloudPct     = 2.0
)

// Season is the astronomical season of the local hemisphere.
type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Autumn
)

func (s Season) String() string {
	switch s {
	case Winter:
		return "winter"
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	default:
		return "autumn"
	}
}

// SeasonOf returns the season for a day of year, flipped for the southern
// hemisphere.
func SeasonOf(dayOfYear int, latitude float64) Season {
	var s Season

	switch {
	case dayOfYear < 80 || dayOfYear >= 355:
		s = Winter
	case dayOfYear < 172:
		s = Spring
	case dayOfYear < 266:
		s = Summer
	default:
		s = Autumn
	}

	if latitude < 0 {
		s = (s + 2) % 4
	}

	return s
}

// Inputs are the derived quantities a condition is inferred from.
type Inputs struct {
	TemperatureC    float64
	PrecipitationMm float64
	WindSpeedKmh    float64
	CloudCoverPct   float64
	DayOfYear       int
	Latitude        float64

	// History counts the WMO codes observed around this calendar day in the
	// fetched years. It may be nil.
	History map[int]int
}

type rule struct {
	name    string
	code    int
	matches func(in Inputs, freezing float64) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{"heavy snow", domain.WMOHeavySnow, func(in Inputs, f float64) bool {
		return in.TemperatureC <= f && in.PrecipitationMm > HeavyPrecipitationMm
	}},
	{"moderate snow", domain.WMOModerateSnow, func(in Inputs, f float64) bool {
		return in.TemperatureC <= f && in.PrecipitationMm > ModeratePrecipitationMm
	}},
	{"slight snow", domain.WMOSlightSnow, func(in Inputs, f float64) bool {
		return in.TemperatureC <= f && in.PrecipitationMm > SlightPrecipitationMm
	}},
	{"thunderstorm with hail", domain.WMOThunderstormHvHail, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > HeavyPrecipitationMm && in.WindSpeedKmh > StormWindKmh
	}},
	{"thunderstorm", domain.WMOThunderstorm, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > HeavyPrecipitationMm && in.WindSpeedKmh > GustyWindKmh
	}},
	{"heavy rain", domain.WMOHeavyRain, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > HeavyPrecipitationMm
	}},
	{"violent showers", domain.WMOViolentShowers, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > ModeratePrecipitationMm && in.WindSpeedKmh > GustyWindKmh
	}},
	{"moderate rain", domain.WMOModerateRain, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > ModeratePrecipitationMm
	}},
	{"slight rain", domain.WMOSlightRain, func(in Inputs, _ float64) bool {
		return in.PrecipitationMm > SlightPrecipitationMm
	}},
	{"overcast", domain.WMOOvercast, func(in Inputs, _ float64) bool {
		return in.CloudCoverPct > OvercastPct
	}},
	{"partly cloudy", domain.WMOPartlyCloudy, func(in Inputs, _ float64) bool {
		return in.CloudCoverPct > PartlyPct
	}},
	{"mainly clear", domain.WMOMainlyClear, func(in Inputs, _ float64) bool {
		return in.CloudCoverPct > MainlyClearPct
	}},
}

// Engine evaluates the rule list. The zero value is ready to use.
type Engine struct{}

// Evaluate returns the WMO code for in.
func (Engine) Evaluate(in Inputs) int {
	base := firstMatch(in)

	if len(in.History) == 0 {
		return base
	}

	candidates := map[int]struct{}{base: {}}
	for _, nudged := range neighbours(in) {
		candidates[firstMatch(nudged)] = struct{}{}
	}

	if len(candidates) == 1 {
		return base
	}

	codes := make([]int, 0, len(candidates))
	for c := range candidates {
		codes = append(codes, c)
	}

	sort.Ints(codes)

	best, bestCount := base, in.History[base]
	for _, c := range codes {
		if in.History[c] > bestCount {
			best, bestCount = c, in.History[c]
		}
	}

	return best
}

// Rule returns the name of the rule that fires for in, ignoring tie resolution.
func (Engine) Rule(in Inputs) string {
	f := freezingPoint(in)

	for _, r := range rules {
		if r.matches(in, f) {
			return r.name
		}
	}

	return "clear sky"
}

func firstMatch(in Inputs) int {
	f := freezingPoint(in)

	for _, r := range rules {
		if r.matches(in, f) {
			return r.code
		}
	}

	return domain.WMOClearSky
}

func freezingPoint(in Inputs) float64 {
	if SeasonOf(in.DayOfYear, in.Latitude) == Winter {
		return FreezingWinterC
	}

	return FreezingC
}

func neighbours(in Inputs) []Inputs {
	out := make([]Inputs, 0, 8)

	for _, sign := range []float64{-1, 1} {
		n := in
		n.TemperatureC += sign * tieTemperatureC
		out = append(out, n)

		n = in
		n.PrecipitationMm += sign * tiePrecipMm
		out = append(out, n)

		n = in
		n.WindSpeedKmh += sign * tieWindKmh
		out = append(out, n)

		n = in
		n.CloudCoverPct += sign * tieCloudPct
		out = append(out, n)
	}

	return out
}

// Mode returns the most frequent code of a histogram, preferring the lower
// code on equal counts. ok is false for an empty histogram.
func Mode(history map[int]int) (code int, ok bool) {
	best, bestCount := 0, 0

	for c, n := range history {
		if n > bestCount || (n == bestCount && n > 0 && c < best) {
			best, bestCount = c, n
		}
	}

	return best, bestCount > 0
}
