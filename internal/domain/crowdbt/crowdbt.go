// Package crowdbt implements the crowd-BT rating model: a Bradley-Terry
// pairwise comparison model extended with a Beta belief over annotator
// reliability. All functions are pure.
package crowdbt

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Model constants.
const (
	// Gamma weighs the reliability term of the expected information gain.
	Gamma = 0.1
	// Lambda is the regularisation constant of the reference model. Unused by
	// the update rules.
	Lambda = 1.0
	// Kappa floors the variance multiplier.
	Kappa = 1e-4
	// Epsilon is the exploration probability of the selection policy.
	Epsilon = 0.25
)

// Priors for new projects and judges.
const (
	MuPrior     = 0.0
	Sigma2Prior = 1.0
	AlphaPrior  = 10.0
	BetaPrior   = 1.0
)

// Belief is the Gaussian quality belief of a project in log-quality space.
type Belief struct {
	Mu     float64
	Sigma2 float64
}

// PriorBelief returns the belief assigned to a fresh judging instance.
func PriorBelief() Belief { return Belief{Mu: MuPrior, Sigma2: Sigma2Prior} }

// Reliability is the Beta belief over a judge's accuracy.
type Reliability struct {
	Alpha float64
	Beta  float64
}

// PriorReliability returns the reliability assigned to a fresh judge.
func PriorReliability() Reliability { return Reliability{Alpha: AlphaPrior, Beta: BetaPrior} }

// Outcome is the result of applying one vote.
type Outcome struct {
	Judge  Reliability
	Winner Belief
	Loser  Belief
	// Agreement is the model probability, before the update, that the judge
	// ranks the winner above the loser.
	Agreement float64
}

// Update applies the vote "winner beat loser" cast by a judge with the given
// reliability. Callers guarantee Sigma2 > 0 on both beliefs.
func Update(rel Reliability, winner, loser Belief) Outcome {
	judge, c := updatedAnnotator(rel, winner, loser)
	w, l := updatedMus(rel, winner, loser)
	sw, sl := updatedSigma2s(rel, winner, loser)
	return Outcome{
		Judge:     judge,
		Winner:    Belief{Mu: w, Sigma2: sw},
		Loser:     Belief{Mu: l, Sigma2: sl},
		Agreement: c,
	}
}

// ExpectedInformationGain returns the expected KL divergence between the
// posterior and prior beliefs if the judge compared a and b, weighting the
// "a wins" and "b wins" branches by their model probability. The result is
// never negative; round-off and degenerate inputs yield 0.
func ExpectedInformationGain(rel Reliability, a, b Belief) float64 {
	aWins := Update(rel, a, b)
	bWins := Update(rel, b, a)
	p := aWins.Agreement

	gainA := DivergenceGaussian(aWins.Winner, a) +
		DivergenceGaussian(aWins.Loser, b) +
		Gamma*DivergenceBeta(aWins.Judge, rel)
	gainB := DivergenceGaussian(bWins.Loser, a) +
		DivergenceGaussian(bWins.Winner, b) +
		Gamma*DivergenceBeta(bWins.Judge, rel)

	gain := p*gainA + (1-p)*gainB
	if !(gain > 0) {
		return 0
	}
	return gain
}

// DivergenceGaussian returns KL(p || q) for two univariate Gaussians.
func DivergenceGaussian(p, q Belief) float64 {
	ratio := p.Sigma2 / q.Sigma2
	d := p.Mu - q.Mu
	return d*d/(2*q.Sigma2) + (ratio-1-math.Log(ratio))/2
}

// DivergenceBeta returns KL(p || q) for two Beta distributions.
func DivergenceBeta(p, q Reliability) float64 {
	return mathext.Lbeta(q.Alpha, q.Beta) -
		mathext.Lbeta(p.Alpha, p.Beta) +
		(p.Alpha-q.Alpha)*mathext.Digamma(p.Alpha) +
		(p.Beta-q.Beta)*mathext.Digamma(p.Beta) +
		(q.Alpha-p.Alpha+q.Beta-p.Beta)*mathext.Digamma(p.Alpha+p.Beta)
}

// exps returns exp(muW) and exp(muL) shifted by the larger mean. Every
// expression below is a ratio homogeneous in the two exponentials, so the
// shift leaves results unchanged and keeps large means from overflowing.
func exps(winner, loser Belief) (float64, float64) {
	m := math.Max(winner.Mu, loser.Mu)
	return math.Exp(winner.Mu - m), math.Exp(loser.Mu - m)
}

// updatedAnnotator refits the judge's Beta belief by moment matching and
// returns it with the probability c that the judge ranks winner above loser.
func updatedAnnotator(rel Reliability, winner, loser Belief) (Reliability, float64) {
	ew, el := exps(winner, loser)
	alpha, beta := rel.Alpha, rel.Beta
	sum := ew + el

	c1 := ew/sum + 0.5*(winner.Sigma2+loser.Sigma2)*(ew*el*(el-ew))/(sum*sum*sum)
	c2 := 1 - c1
	c := (c1*alpha + c2*beta) / (alpha + beta)

	expt := (c1*(alpha+1)*alpha + c2*alpha*beta) /
		(c * (alpha + beta + 1) * (alpha + beta))
	exptSq := (c1*(alpha+2)*(alpha+1)*alpha + c2*(alpha+1)*alpha*beta) /
		(c * (alpha + beta + 2) * (alpha + beta + 1) * (alpha + beta))

	variance := exptSq - expt*expt
	return Reliability{
		Alpha: (expt - exptSq) * expt / variance,
		Beta:  (expt - exptSq) * (1 - expt) / variance,
	}, c
}

func updatedMus(rel Reliability, winner, loser Belief) (float64, float64) {
	ew, el := exps(winner, loser)
	aw, bl := rel.Alpha*ew, rel.Beta*el
	mult := aw/(aw+bl) - ew/(ew+el)
	return winner.Mu + winner.Sigma2*mult, loser.Mu - loser.Sigma2*mult
}

func updatedSigma2s(rel Reliability, winner, loser Belief) (float64, float64) {
	ew, el := exps(winner, loser)
	aw, bl := rel.Alpha*ew, rel.Beta*el
	mult := aw*bl/((aw+bl)*(aw+bl)) - ew*el/((ew+el)*(ew+el))
	return winner.Sigma2 * math.Max(1+winner.Sigma2*mult, Kappa),
		loser.Sigma2 * math.Max(1+loser.Sigma2*mult, Kappa)
}
