package forecast

import (
	"math"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// seasonalWindowDays is the half-width of the day-of-year window used for
// climatology, matching days within ±7 calendar days in any fetched year.
const seasonalWindowDays = 7

// Defaults when no observation at all is available.
const (
	fallbackCloudPct = 50.0
	fallbackWindKmh  = 5.0
)

// climate is the aggregate of observations around one calendar day.
type climate struct {
	n             int
	temperatureC  float64
	humidityPct   float64
	pressureHPa   float64
	precipitation float64
	windSpeedKmh  float64
	cloudCoverPct float64
	codes         map[int]int
}

type daySums struct {
	n                                     int
	temp, hum, press, precip, wind, cloud float64
	codes                                 map[int]int
}

// climatology indexes observations by day of year.
type climatology struct {
	latitude float64
	days     [367]daySums
	all      daySums
}

func newClimatology(obs []domain.Observation, latitude float64) *climatology {
	c := &climatology{latitude: latitude}

	for _, o := range obs {
		d := &c.days[o.Time.YearDay()]
		d.add(o)
		c.all.add(o)
	}

	return c
}

func (d *daySums) add(o domain.Observation) {
	d.n++
	d.temp += o.TemperatureC
	d.hum += o.HumidityPct
	d.press += o.PressureHPa
	d.precip += o.PrecipitationMm
	d.wind += o.WindSpeedKmh
	d.cloud += o.CloudCoverPct

	if o.WeatherCode < 0 {
		return
	}

	if d.codes == nil {
		d.codes = make(map[int]int)
	}

	d.codes[o.WeatherCode]++
}

func (d *daySums) merge(other *daySums) {
	d.n += other.n
	d.temp += other.temp
	d.hum += other.hum
	d.press += other.press
	d.precip += other.precip
	d.wind += other.wind
	d.cloud += other.cloud

	for code, n := range other.codes {
		if d.codes == nil {
			d.codes = make(map[int]int)
		}

		d.codes[code] += n
	}
}

func (d *daySums) mean() climate {
	n := float64(d.n)

	return climate{
		n:             d.n,
		temperatureC:  d.temp / n,
		humidityPct:   d.hum / n,
		pressureHPa:   d.press / n,
		precipitation: d.precip / n,
		windSpeedKmh:  d.wind / n,
		cloudCoverPct: d.cloud / n,
		codes:         d.codes,
	}
}

// around returns the climate of the ±seasonalWindowDays window centred on
// dayOfYear, wrapping across the year end. It falls back to the whole record
// and then to a latitude-only estimate.
func (c *climatology) around(dayOfYear int) climate {
	var sums daySums

	for off := -seasonalWindowDays; off <= seasonalWindowDays; off++ {
		d := wrapDay(dayOfYear + off)
		sums.merge(&c.days[d])
	}

	if sums.n > 0 {
		return sums.mean()
	}

	if c.all.n > 0 {
		return c.all.mean()
	}

	return climate{
		temperatureC:  latitudeTemperature(c.latitude, dayOfYear),
		humidityPct:   70,
		pressureHPa:   1013.25,
		windSpeedKmh:  fallbackWindKmh,
		cloudCoverPct: fallbackCloudPct,
	}
}

func wrapDay(d int) int {
	for d < 1 {
		d += 366
	}

	for d > 366 {
		d -= 366
	}

	return d
}

// latitudeTemperature is a crude zonal-mean climatology: warm and flat near
// the equator, colder with a larger annual swing towards the poles, peaking
// in late July (north) or mid January (south).
func latitudeTemperature(latitude float64, dayOfYear int) float64 {
	abs := math.Abs(latitude)
	mean := 27 - 0.4*abs
	amplitude := math.Min(0.3*abs, 20)

	peak := 200.0
	if latitude < 0 {
		peak = 17
	}

	return mean + amplitude*math.Cos(2*math.Pi*(float64(dayOfYear)-peak)/365.25)
}
