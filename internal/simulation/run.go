package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
)

// Engine is the judging surface simulated judges drive.
type Engine interface {
	Current(ctx context.Context, externalID string) (*model.SessionView, error)
	ComputeNext(ctx context.Context, externalID string) (*model.SessionView, error)
	CompareMany(ctx context.Context, externalID, batchID string, cmps []model.Comparison) (*model.CompareReceipt, error)
}

// Stats holds run statistics.
type Stats struct {
	Visits      int64         `yaml:"visits"`
	Votes       int64         `yaml:"votes"`
	Agreements  int64         `yaml:"agreements"` // votes that matched hidden quality
	Exhausted   int64         `yaml:"exhausted"`  // judges that ran out of projects
	Duration    time.Duration `yaml:"duration"`
	VotesPerSec float64       `yaml:"votes_per_second"`
}

type counters struct {
	visits, votes, agreements, exhausted atomic.Int64
}

// Run lets every judge of the world walk the event concurrently until they
// run out of projects or reach MaxVotesPerJudge.
func Run(ctx context.Context, engine Engine, w *World, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	if len(w.JudgeIDs) == 0 {
		return Stats{}, ErrNoJudges
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.VotesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.VotesPerSecond), 1)
	}

	var c counters
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, id := range w.JudgeIDs {
		j := &simJudge{
			id:      id,
			world:   w,
			engine:  engine,
			limiter: limiter,
			rng:     rand.New(rand.NewSource(cfg.Seed + int64(i) + 1)),
			maxVote: cfg.MaxVotesPerJudge,
			c:       &c,
		}
		g.Go(func() error { return j.walk(gctx) })
	}
	err := g.Wait()

	stats := Stats{
		Visits:     c.visits.Load(),
		Votes:      c.votes.Load(),
		Agreements: c.agreements.Load(),
		Exhausted:  c.exhausted.Load(),
		Duration:   time.Since(start),
	}
	if stats.Duration > 0 {
		stats.VotesPerSec = float64(stats.Votes) / stats.Duration.Seconds()
	}
	if err != nil {
		return stats, fmt.Errorf("simulation run: %w", err)
	}

	logger.Get().Info(ctx, "simulation finished",
		logger.Int64("visits", stats.Visits),
		logger.Int64("votes", stats.Votes),
		logger.Int64("exhausted", stats.Exhausted),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

type simJudge struct {
	id      string
	world   *World
	engine  Engine
	limiter *rate.Limiter
	rng     *rand.Rand
	maxVote int
	votes   int
	c       *counters
}

func (j *simJudge) walk(ctx context.Context) error {
	view, err := j.engine.Current(ctx, j.id)
	if err != nil {
		return fmt.Errorf("judge %s: %w", j.id, err)
	}
	for view != nil {
		j.c.visits.Add(1)
		if view.Mode == model.ModeComparison {
			if err := j.vote(ctx, view); err != nil {
				return err
			}
			if j.maxVote > 0 && j.votes >= j.maxVote {
				return nil
			}
		}
		if view, err = j.engine.ComputeNext(ctx, j.id); err != nil {
			return fmt.Errorf("judge %s: %w", j.id, err)
		}
	}
	j.c.exhausted.Add(1)
	return nil
}

// vote compares the current project with the leader of every comparable
// prize, picking the better one with the judge's accuracy.
func (j *simJudge) vote(ctx context.Context, view *model.SessionView) error {
	var cmps []model.Comparison
	accuracy := j.world.Accuracy[j.id]
	for _, pv := range view.Prizes {
		if !pv.Comparable || pv.Leader == nil {
			continue
		}
		quality := j.world.Quality[pv.Prize.ID]
		better, worse := view.Project.ID, pv.Leader.ID
		if quality[worse] > quality[better] {
			better, worse = worse, better
		}
		winner, loser := better, worse
		if j.rng.Float64() >= accuracy {
			winner, loser = worse, better
		} else {
			j.c.agreements.Add(1)
		}
		cmps = append(cmps, model.Comparison{PrizeID: pv.Prize.ID, WinnerID: winner, LoserID: loser})
	}
	if len(cmps) == 0 {
		return nil
	}
	if err := j.limiter.WaitN(ctx, 1); err != nil {
		return fmt.Errorf("judge %s: %w", j.id, err)
	}
	if _, err := j.engine.CompareMany(ctx, j.id, uuid.NewString(), cmps); err != nil {
		return fmt.Errorf("judge %s: %w", j.id, err)
	}
	j.votes += len(cmps)
	j.c.votes.Add(int64(len(cmps)))
	return nil
}
