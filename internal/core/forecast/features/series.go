package features

import (
	"sort"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// Series is an hour-indexed window of observations. Hours are keyed by
// absolute time, so zones with fractional-hour offsets index correctly.
type Series struct {
	obs   []domain.Observation
	index map[int64]int
}

// NewSeries copies obs into a chronological series. When two observations
// fall in the same hour the later one in obs wins.
func NewSeries(obs []domain.Observation) *Series {
	sorted := make([]domain.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	s := &Series{
		obs:   make([]domain.Observation, 0, len(sorted)),
		index: make(map[int64]int, len(sorted)),
	}

	for _, o := range sorted {
		s.Append(o)
	}

	return s
}

// Append adds o, replacing any observation already stored for its hour.
func (s *Series) Append(o domain.Observation) {
	k := hourKey(o.Time)

	if i, ok := s.index[k]; ok {
		s.obs[i] = o
		return
	}

	s.index[k] = len(s.obs)
	s.obs = append(s.obs, o)
}

// At returns the observation stored for the hour containing t.
func (s *Series) At(t time.Time) (domain.Observation, bool) {
	i, ok := s.index[hourKey(t)]
	if !ok {
		return domain.Observation{}, false
	}

	return s.obs[i], true
}

// Last returns the most recent observation.
func (s *Series) Last() (domain.Observation, bool) {
	if len(s.obs) == 0 {
		return domain.Observation{}, false
	}

	last := s.obs[0]
	for _, o := range s.obs[1:] {
		if o.Time.After(last.Time) {
			last = o
		}
	}

	return last, true
}

// Len returns the number of distinct hours stored.
func (s *Series) Len() int {
	return len(s.obs)
}

// Observations returns a copy of the stored observations in insertion order.
func (s *Series) Observations() []domain.Observation {
	out := make([]domain.Observation, len(s.obs))
	copy(out, s.obs)

	return out
}

func hourKey(t time.Time) int64 {
	u := t.Unix()
	k := u / 3600

	if u%3600 < 0 {
		k--
	}

	return k
}
