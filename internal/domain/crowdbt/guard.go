package crowdbt

import (
	"fmt"
	"math"
)

// MinSigma2 is the smallest variance a belief may be stored with.
const MinSigma2 = 1e-9

// GuardAction reports what Guard did to an outcome.
type GuardAction string

// Guard actions.
const (
	GuardPassed   GuardAction = "passed"
	GuardClamped  GuardAction = "clamped"
	GuardRejected GuardAction = "rejected"
)

// Guard checks an outcome before it is persisted. Finite variances below
// MinSigma2 are clamped up; non-finite values and non-positive alpha or beta
// are rejected with ErrNumericDegeneracy.
func Guard(o Outcome) (Outcome, GuardAction, error) {
	if !finite(o.Judge.Alpha) || !finite(o.Judge.Beta) || o.Judge.Alpha <= 0 || o.Judge.Beta <= 0 {
		return o, GuardRejected, fmt.Errorf("judge reliability (%g, %g): %w", o.Judge.Alpha, o.Judge.Beta, ErrNumericDegeneracy)
	}
	action := GuardPassed
	for _, b := range []*Belief{&o.Winner, &o.Loser} {
		if !finite(b.Mu) || !finite(b.Sigma2) {
			return o, GuardRejected, fmt.Errorf("belief (%g, %g): %w", b.Mu, b.Sigma2, ErrNumericDegeneracy)
		}
		if b.Sigma2 < MinSigma2 {
			b.Sigma2 = MinSigma2
			action = GuardClamped
		}
	}
	return o, action, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
