package core

import "math/rand"

// ErrorModel decides whether an incoming frame should be treated as
// bit-corrupted, independent of any FCS check.
type ErrorModel interface {
	ShouldCorrupt() bool
}

// BernoulliErrorModel corrupts a frame with fixed probability Rate,
// independently per call. A Rate of zero never corrupts.
type BernoulliErrorModel struct {
	Rate float64
	rng  *rand.Rand
}

// NewBernoulliErrorModel builds a model seeded deterministically from seed,
// so simulation runs are reproducible.
func NewBernoulliErrorModel(rate float64, seed int64) *BernoulliErrorModel {
	return &BernoulliErrorModel{Rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (m *BernoulliErrorModel) ShouldCorrupt() bool {
	if m == nil || m.Rate <= 0 {
		return false
	}
	return m.rng.Float64() < m.Rate
}
