// Package selection picks the next project a judge should visit.
package selection

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/jury/internal/domain/crowdbt"
	"github.com/okian/jury/internal/domain/model"
)

// Default policy configuration.
const (
	DefaultMinViews    = 2
	DefaultBusyTimeout = 10 * time.Minute
)

// Source is the read side of the judging store the policy needs.
type Source interface {
	// CandidateProjects returns located projects whose ID is not in
	// excludeIDs, each carrying only its judging instances for prizeIDs.
	CandidateProjects(ctx context.Context, excludeIDs, prizeIDs []string) ([]model.ProjectWithInstances, error)
	// BusyProjectIDs returns the current projects of judges other than
	// excludeJudgeID that were active at or after since.
	BusyProjectIDs(ctx context.Context, since time.Time, excludeJudgeID string) ([]string, error)
}

// Strategy records how a project was chosen.
type Strategy string

// Strategies.
const (
	StrategyNone    Strategy = "none"
	StrategyExplore Strategy = "explore"
	StrategyExploit Strategy = "exploit"
)

// Decision is the outcome of one selection. Project is nil when the judge
// has nothing left to visit.
type Decision struct {
	Project  *model.ProjectWithInstances
	Strategy Strategy
	// Gain is the summed expected information gain of the chosen project.
	// Zero for explored picks.
	Gain float64
	// PoolSize is the number of candidates left after busy and coverage
	// filtering.
	PoolSize int
}

// Policy implements epsilon-greedy selection maximising expected information
// gain against each prize leader, after coverage and contention filtering.
// It is safe for concurrent use.
type Policy struct {
	epsilon     float64
	minViews    int
	busyTimeout time.Duration
	now         func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Policy with the given options.
func New(opts ...Option) *Policy {
	p := &Policy{
		epsilon:     crowdbt.Epsilon,
		minViews:    DefaultMinViews,
		busyTimeout: DefaultBusyTimeout,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next chooses the next project for the judge of session s.
func (p *Policy) Next(ctx context.Context, s model.JudgeSession, src Source) (Decision, error) {
	none := Decision{Strategy: StrategyNone}
	if len(s.Assignments) == 0 {
		return none, nil
	}

	found, err := src.CandidateProjects(ctx, s.IgnoredIDs, s.PrizeIDs())
	if err != nil {
		return none, fmt.Errorf("candidate projects: %w", err)
	}
	pool := eligible(found)
	if len(pool) == 0 {
		return none, nil
	}

	busy, err := src.BusyProjectIDs(ctx, p.now().Add(-p.busyTimeout), s.Judge.ID)
	if err != nil {
		return none, fmt.Errorf("busy projects: %w", err)
	}
	pool = withoutBusy(pool, busy)
	pool = p.underCovered(pool)

	p.mu.Lock()
	p.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	explore := p.rng.Float64() < p.epsilon
	p.mu.Unlock()

	if explore {
		return Decision{Project: &pool[0], Strategy: StrategyExplore, PoolSize: len(pool)}, nil
	}

	best, bestGain := 0, gain(s, pool[0])
	for i := 1; i < len(pool); i++ {
		if g := gain(s, pool[i]); g > bestGain {
			best, bestGain = i, g
		}
	}
	return Decision{Project: &pool[best], Strategy: StrategyExploit, Gain: bestGain, PoolSize: len(pool)}, nil
}

// eligible drops projects without a table or without any relevant instance.
func eligible(found []model.ProjectWithInstances) []model.ProjectWithInstances {
	pool := make([]model.ProjectWithInstances, 0, len(found))
	for _, c := range found {
		if c.Located() && len(c.Instances) > 0 {
			pool = append(pool, c)
		}
	}
	return pool
}

// withoutBusy removes projects held by live judges unless that would leave
// nothing to choose from.
func withoutBusy(pool []model.ProjectWithInstances, busy []string) []model.ProjectWithInstances {
	if len(busy) == 0 {
		return pool
	}
	held := make(map[string]struct{}, len(busy))
	for _, id := range busy {
		held[id] = struct{}{}
	}
	free := make([]model.ProjectWithInstances, 0, len(pool))
	for _, c := range pool {
		if _, ok := held[c.ID]; !ok {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return pool
	}
	return free
}

// underCovered keeps the candidates with the most instances visited fewer
// than minViews times, when any candidate has such an instance.
func (p *Policy) underCovered(pool []model.ProjectWithInstances) []model.ProjectWithInstances {
	deficits := make([]int, len(pool))
	maxDeficit := 0
	for i, c := range pool {
		for _, ji := range c.Instances {
			if ji.TimesVisited < p.minViews {
				deficits[i]++
			}
		}
		if deficits[i] > maxDeficit {
			maxDeficit = deficits[i]
		}
	}
	if maxDeficit == 0 {
		return pool
	}
	narrowed := make([]model.ProjectWithInstances, 0, len(pool))
	for i, c := range pool {
		if deficits[i] == maxDeficit {
			narrowed = append(narrowed, c)
		}
	}
	return narrowed
}

// gain sums the expected information gain of comparing the candidate with
// the judge's leader of each prize. Prizes without a leader, or whose leader
// was not entered for that prize, contribute nothing.
func gain(s model.JudgeSession, c model.ProjectWithInstances) float64 {
	rel := crowdbt.Reliability{Alpha: s.Judge.Alpha, Beta: s.Judge.Beta}
	total := 0.0
	for _, ji := range c.Instances {
		leader, ok := leaderInstance(s, ji.PrizeID)
		if !ok || leader.ProjectID == c.ID {
			continue
		}
		total += crowdbt.ExpectedInformationGain(rel,
			crowdbt.Belief{Mu: leader.Mu, Sigma2: leader.Sigma2},
			crowdbt.Belief{Mu: ji.Mu, Sigma2: ji.Sigma2})
	}
	return total
}

func leaderInstance(s model.JudgeSession, prizeID string) (model.JudgingInstance, bool) {
	for _, a := range s.Assignments {
		if a.PrizeID == prizeID && a.Leader != nil {
			return a.Leader.Instance(prizeID)
		}
	}
	return model.JudgingInstance{}, false
}
