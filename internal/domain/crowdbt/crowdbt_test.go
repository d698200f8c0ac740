package crowdbt_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/jury/internal/domain/crowdbt"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_KnownValues(t *testing.T) {
	tests := []struct {
		name      string
		rel       crowdbt.Reliability
		winner    crowdbt.Belief
		loser     crowdbt.Belief
		want      crowdbt.Outcome
		tolerance float64
	}{
		{
			name:   "priors",
			rel:    crowdbt.PriorReliability(),
			winner: crowdbt.PriorBelief(),
			loser:  crowdbt.PriorBelief(),
			want: crowdbt.Outcome{
				Judge:     crowdbt.Reliability{Alpha: 10, Beta: 1},
				Winner:    crowdbt.Belief{Mu: 0.40909090909090906, Sigma2: 0.8326446280991735},
				Loser:     crowdbt.Belief{Mu: -0.40909090909090906, Sigma2: 0.8326446280991735},
				Agreement: 0.5,
			},
			tolerance: 1e-9,
		},
		{
			name:   "expected winner",
			rel:    crowdbt.Reliability{Alpha: 10, Beta: 1},
			winner: crowdbt.Belief{Mu: 1, Sigma2: 0.5},
			loser:  crowdbt.Belief{Mu: -1, Sigma2: 0.5},
			want: crowdbt.Outcome{
				Judge:     crowdbt.Reliability{Alpha: 10.753152990578851, Beta: 0.9974074954846286},
				Winner:    crowdbt.Belief{Mu: 1.0529250522167464, Sigma2: 0.47704523361189083},
				Loser:     crowdbt.Belief{Mu: -1.0529250522167464, Sigma2: 0.47704523361189083},
				Agreement: 0.778849313368023,
			},
			tolerance: 1e-9,
		},
		{
			name:   "unreliable judge",
			rel:    crowdbt.Reliability{Alpha: 1, Beta: 10},
			winner: crowdbt.PriorBelief(),
			loser:  crowdbt.PriorBelief(),
			want: crowdbt.Outcome{
				Judge:     crowdbt.Reliability{Alpha: 1, Beta: 10},
				Winner:    crowdbt.Belief{Mu: -0.40909090909090906, Sigma2: 0.8326446280991735},
				Loser:     crowdbt.Belief{Mu: 0.40909090909090906, Sigma2: 0.8326446280991735},
				Agreement: 0.5,
			},
			tolerance: 1e-9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := crowdbt.Update(tt.rel, tt.winner, tt.loser)
			assert.InDelta(t, tt.want.Judge.Alpha, got.Judge.Alpha, tt.tolerance)
			assert.InDelta(t, tt.want.Judge.Beta, got.Judge.Beta, tt.tolerance)
			assert.InDelta(t, tt.want.Winner.Mu, got.Winner.Mu, tt.tolerance)
			assert.InDelta(t, tt.want.Winner.Sigma2, got.Winner.Sigma2, tt.tolerance)
			assert.InDelta(t, tt.want.Loser.Mu, got.Loser.Mu, tt.tolerance)
			assert.InDelta(t, tt.want.Loser.Sigma2, got.Loser.Sigma2, tt.tolerance)
			assert.InDelta(t, tt.want.Agreement, got.Agreement, tt.tolerance)
		})
	}
}

func TestUpdate_VarianceStaysPositive(t *testing.T) {
	mus := []float64{-50, -5, -1, 0, 0.3, 2, 10, 50}
	sigmas := []float64{1e-6, 1e-3, 0.1, 0.5, 1, 2, 4}
	reliabilities := []crowdbt.Reliability{
		crowdbt.PriorReliability(),
		{Alpha: 1, Beta: 1},
		{Alpha: 1000, Beta: 1},
		{Alpha: 2, Beta: 30},
	}

	for _, rel := range reliabilities {
		for _, muW := range mus {
			for _, muL := range mus {
				for _, s2 := range sigmas {
					out := crowdbt.Update(rel, crowdbt.Belief{Mu: muW, Sigma2: s2}, crowdbt.Belief{Mu: muL, Sigma2: s2})
					require.Greater(t, out.Winner.Sigma2, 0.0, "winner sigma2 for mu=(%g,%g) s2=%g", muW, muL, s2)
					require.Greater(t, out.Loser.Sigma2, 0.0, "loser sigma2 for mu=(%g,%g) s2=%g", muW, muL, s2)
					require.False(t, math.IsNaN(out.Winner.Mu))
					require.False(t, math.IsNaN(out.Loser.Mu))
				}
			}
		}
	}
}

func TestUpdate_LargeMeansDoNotOverflow(t *testing.T) {
	out := crowdbt.Update(crowdbt.PriorReliability(),
		crowdbt.Belief{Mu: 800, Sigma2: 1},
		crowdbt.Belief{Mu: 799, Sigma2: 1})

	assert.False(t, math.IsNaN(out.Winner.Mu))
	assert.False(t, math.IsInf(out.Judge.Alpha, 0))
	assert.Greater(t, out.Winner.Mu, 800.0)
	assert.Less(t, out.Loser.Mu, 799.0)
}

func TestExpectedInformationGain_NonNegative(t *testing.T) {
	beliefs := []crowdbt.Belief{
		crowdbt.PriorBelief(),
		{Mu: 0, Sigma2: 1e-4},
		{Mu: 1.5, Sigma2: 0.2},
		{Mu: -3, Sigma2: 2},
		{Mu: 8, Sigma2: 0.01},
	}
	reliabilities := []crowdbt.Reliability{
		crowdbt.PriorReliability(),
		{Alpha: 1, Beta: 1},
		{Alpha: 500, Beta: 2},
		{Alpha: 1, Beta: 20},
	}

	for _, rel := range reliabilities {
		for _, a := range beliefs {
			for _, b := range beliefs {
				gain := crowdbt.ExpectedInformationGain(rel, a, b)
				assert.GreaterOrEqual(t, gain, 0.0, "rel=%+v a=%+v b=%+v", rel, a, b)
				assert.False(t, math.IsNaN(gain))
			}
		}
	}
}

func TestDivergences(t *testing.T) {
	Convey("Given identical distributions", t, func() {
		b := crowdbt.Belief{Mu: 0.7, Sigma2: 0.3}
		r := crowdbt.Reliability{Alpha: 4, Beta: 2}

		Convey("Then both divergences are zero", func() {
			So(crowdbt.DivergenceGaussian(b, b), ShouldAlmostEqual, 0, 1e-12)
			So(crowdbt.DivergenceBeta(r, r), ShouldAlmostEqual, 0, 1e-12)
		})
	})

	Convey("Given Gaussians with the same variance", t, func() {
		p := crowdbt.Belief{Mu: 1, Sigma2: 0.5}
		q := crowdbt.Belief{Mu: 0, Sigma2: 0.5}

		Convey("Then the divergence is the scaled squared mean distance", func() {
			So(crowdbt.DivergenceGaussian(p, q), ShouldAlmostEqual, 1.0, 1e-12)
		})
	})

	Convey("Given different Beta distributions", t, func() {
		Convey("Then the divergence is positive", func() {
			So(crowdbt.DivergenceBeta(crowdbt.Reliability{Alpha: 11, Beta: 1}, crowdbt.PriorReliability()), ShouldBeGreaterThan, 0)
		})
	})
}

func TestUpdate_Direction(t *testing.T) {
	Convey("Given two projects with equal means", t, func() {
		a := crowdbt.PriorBelief()
		b := crowdbt.PriorBelief()

		Convey("When a reliable judge prefers the first", func() {
			out := crowdbt.Update(crowdbt.PriorReliability(), a, b)

			Convey("Then the winner rises and the loser falls symmetrically", func() {
				So(out.Winner.Mu, ShouldBeGreaterThan, a.Mu)
				So(out.Loser.Mu, ShouldBeLessThan, b.Mu)
				So(out.Winner.Mu, ShouldAlmostEqual, -out.Loser.Mu, 1e-12)
				So(out.Winner.Sigma2, ShouldAlmostEqual, out.Loser.Sigma2, 1e-12)
			})

			Convey("And both variances shrink", func() {
				So(out.Winner.Sigma2, ShouldBeLessThan, a.Sigma2)
				So(out.Loser.Sigma2, ShouldBeLessThan, b.Sigma2)
			})
		})

		Convey("When a judge with alpha equal to beta votes", func() {
			out := crowdbt.Update(crowdbt.Reliability{Alpha: 3, Beta: 3}, a, b)

			Convey("Then the means do not move", func() {
				So(out.Winner.Mu, ShouldAlmostEqual, 0, 1e-12)
				So(out.Loser.Mu, ShouldAlmostEqual, 0, 1e-12)
			})
		})
	})

	Convey("Given an uncertain and a settled project", t, func() {
		uncertain := crowdbt.Belief{Mu: 0, Sigma2: 2}
		settled := crowdbt.Belief{Mu: 0, Sigma2: 0.1}

		Convey("Then the uncertain one moves further", func() {
			out := crowdbt.Update(crowdbt.PriorReliability(), uncertain, settled)
			So(math.Abs(out.Winner.Mu), ShouldBeGreaterThan, math.Abs(out.Loser.Mu))
		})
	})
}

func TestExpectedInformationGain_PrefersUncertainty(t *testing.T) {
	Convey("Given a leader and two candidates", t, func() {
		rel := crowdbt.PriorReliability()
		leader := crowdbt.Belief{Mu: 0, Sigma2: 0.5}

		Convey("Then the less certain candidate carries more information", func() {
			fresh := crowdbt.ExpectedInformationGain(rel, leader, crowdbt.Belief{Mu: 0, Sigma2: 1})
			settled := crowdbt.ExpectedInformationGain(rel, leader, crowdbt.Belief{Mu: 0, Sigma2: 0.05})
			So(fresh, ShouldBeGreaterThan, settled)
		})
	})
}

func TestGuard(t *testing.T) {
	valid := crowdbt.Update(crowdbt.PriorReliability(), crowdbt.PriorBelief(), crowdbt.PriorBelief())

	t.Run("passes a valid outcome", func(t *testing.T) {
		out, action, err := crowdbt.Guard(valid)
		require.NoError(t, err)
		assert.Equal(t, crowdbt.GuardPassed, action)
		assert.Equal(t, valid, out)
	})

	t.Run("clamps tiny variances", func(t *testing.T) {
		o := valid
		o.Loser.Sigma2 = 1e-15
		out, action, err := crowdbt.Guard(o)
		require.NoError(t, err)
		assert.Equal(t, crowdbt.GuardClamped, action)
		assert.Equal(t, crowdbt.MinSigma2, out.Loser.Sigma2)
		assert.Equal(t, valid.Winner, out.Winner)
	})

	t.Run("rejects degenerate values", func(t *testing.T) {
		cases := map[string]func(o *crowdbt.Outcome){
			"nan alpha":      func(o *crowdbt.Outcome) { o.Judge.Alpha = math.NaN() },
			"negative beta":  func(o *crowdbt.Outcome) { o.Judge.Beta = -1 },
			"zero alpha":     func(o *crowdbt.Outcome) { o.Judge.Alpha = 0 },
			"infinite mu":    func(o *crowdbt.Outcome) { o.Winner.Mu = math.Inf(1) },
			"nan sigma2":     func(o *crowdbt.Outcome) { o.Loser.Sigma2 = math.NaN() },
			"infinite sigma": func(o *crowdbt.Outcome) { o.Winner.Sigma2 = math.Inf(1) },
		}
		for name, mutate := range cases {
			o := valid
			mutate(&o)
			_, action, err := crowdbt.Guard(o)
			assert.True(t, errors.Is(err, crowdbt.ErrNumericDegeneracy), name)
			assert.Equal(t, crowdbt.GuardRejected, action, name)
		}
	})
}
