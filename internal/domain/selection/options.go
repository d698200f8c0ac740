package selection

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithEpsilon sets the probability of returning a random candidate instead of
// the most informative one. Values outside [0, 1] are ignored.
func WithEpsilon(epsilon float64) Option {
	return func(p *Policy) {
		if epsilon >= 0 && epsilon <= 1 {
			p.epsilon = epsilon
		}
	}
}

// WithMinViews sets the visit count below which a judging instance is
// considered under-covered.
func WithMinViews(minViews int) Option {
	return func(p *Policy) {
		if minViews >= 0 {
			p.minViews = minViews
		}
	}
}

// WithBusyTimeout sets the liveness window after which a judge no longer
// holds their current project.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(p *Policy) {
		if timeout >= 0 {
			p.busyTimeout = timeout
		}
	}
}

// WithRandSource sets the random source used for shuffling and exploration.
func WithRandSource(src rand.Source) Option {
	return func(p *Policy) {
		if src != nil {
			p.rng = rand.New(src)
		}
	}
}

// WithSeed seeds the random source. Useful for reproducible simulations.
func WithSeed(seed int64) Option {
	return WithRandSource(rand.NewSource(seed))
}

// WithClock overrides the time source used for the liveness window.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}
