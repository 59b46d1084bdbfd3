package forecast

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// Bounds of the per-day pseudo-variation. Temperature and cloud cover move
// additively, precipitation multiplicatively so that a dry day stays dry.
const (
	maxTemperatureJitterC = 0.5
	maxCloudJitterPct     = 5.0
	maxPrecipJitterRatio  = 0.2
	maxWindJitterKmh      = 1.0
)

// jitter is the variation applied to one forecast day.
type jitter struct {
	temperatureC float64
	cloudPct     float64
	precipRatio  float64
	windKmh      float64
}

// dayJitter derives the variation for day index i from the coordinate alone,
// so repeated requests for the same place return the same forecast.
func dayJitter(coords domain.Coordinates, day int) jitter {
	h := fnv.New64a()
	_, _ = h.Write([]byte(coords.Key()))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(day))
	_, _ = h.Write(buf[:])

	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	// uniform in [-1, 1)
	u := func() float64 { return 2*rng.Float64() - 1 }

	return jitter{
		temperatureC: maxTemperatureJitterC * u(),
		cloudPct:     maxCloudJitterPct * u(),
		precipRatio:  1 + maxPrecipJitterRatio*u(),
		windKmh:      maxWindJitterKmh * u(),
	}
}

func (j jitter) apply(c climate) (cloud, precip, wind float64) {
	cloud = math.Max(0, math.Min(100, c.cloudCoverPct+j.cloudPct))
	precip = math.Max(0, c.precipitation*j.precipRatio)
	wind = math.Max(0, c.windSpeedKmh+j.windKmh)

	return cloud, precip, wind
}
