package domain

import "fmt"

// WMO weather interpretation codes produced by the condition rules.
const (
	WMOClearSky           = 0
	WMOMainlyClear        = 1
	WMOPartlyCloudy       = 2
	WMOOvercast           = 3
	WMOSlightRain         = 61
	WMOModerateRain       = 63
	WMOHeavyRain          = 65
	WMOSlightSnow         = 71
	WMOModerateSnow       = 73
	WMOHeavySnow          = 75
	WMOViolentShowers     = 82
	WMOThunderstorm       = 95
	WMOThunderstormHvHail = 99
)

var wmoDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Freezing drizzle (light)",
	57: "Freezing drizzle (dense)",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Freezing rain (light)",
	67: "Freezing rain (heavy)",
	71: "Slight snowfall",
	73: "Moderate snowfall",
	75: "Heavy snowfall",
	77: "Snow grains",
	80: "Rain showers (slight)",
	81: "Rain showers (moderate)",
	82: "Rain showers (violent)",
	85: "Snow showers (slight)",
	86: "Snow showers (heavy)",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeWMO returns the description of a WMO code, or "Code N" for codes
// outside the table.
func DescribeWMO(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}

	return fmt.Sprintf("Code %d", code)
}
