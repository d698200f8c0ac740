package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/okian/jury/internal/adapters/repository"
	"github.com/okian/jury/internal/domain/crowdbt"
	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
)

// World is the prepared judging event together with the hidden ground truth
// the simulated judges vote by.
type World struct {
	Prizes   []model.Prize
	Projects []model.Project
	// JudgeIDs are external judge identities.
	JudgeIDs []string
	// Accuracy is the probability each judge votes for the better project.
	Accuracy map[string]float64
	// Quality is the hidden quality per prize and project.
	Quality map[string]map[string]float64
}

// Prepare clears the store and populates it with prizes, judges and
// projects. Each project is entered for each prize with SubmitProbability
// and every judge is assigned to every prize.
func Prepare(ctx context.Context, admin repository.Admin, cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	w := &World{
		Accuracy: make(map[string]float64, cfg.Judges),
		Quality:  make(map[string]map[string]float64, cfg.Prizes),
	}

	if err := admin.Reset(ctx); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	for i := 0; i < cfg.Prizes; i++ {
		name := fmt.Sprintf("Prize %d", i)
		p := model.Prize{ExternalID: name, Name: name, Description: name}
		if err := admin.CreatePrize(ctx, &p); err != nil {
			return nil, fmt.Errorf("prepare prize %d: %w", i, err)
		}
		w.Prizes = append(w.Prizes, p)
		w.Quality[p.ID] = make(map[string]float64)
	}

	rel := crowdbt.PriorReliability()
	for i := 0; i < cfg.Judges; i++ {
		name := fmt.Sprintf("Judge %d", i)
		j := model.Judge{ExternalID: name, Email: name, Alpha: rel.Alpha, Beta: rel.Beta}
		if err := admin.CreateJudge(ctx, &j); err != nil {
			return nil, fmt.Errorf("prepare judge %d: %w", i, err)
		}
		accuracy := cfg.JudgeAccuracy
		if rng.Float64() < cfg.NoisyJudgeFraction {
			accuracy = cfg.NoisyAccuracy
		}
		w.JudgeIDs = append(w.JudgeIDs, name)
		w.Accuracy[name] = accuracy
		for _, prize := range w.Prizes {
			if _, err := admin.UpsertAssignment(ctx, j.ID, prize.ID); err != nil {
				return nil, fmt.Errorf("prepare assignment: %w", err)
			}
		}
	}

	prior := crowdbt.PriorBelief()
	for i := 0; i < cfg.Projects; i++ {
		table := i + 1
		p := model.Project{
			ExternalID:  fmt.Sprintf("Project %d", i),
			Name:        fmt.Sprintf("Project %d", i),
			Team:        fmt.Sprintf("Team %d", i),
			Description: fmt.Sprintf("Team %d", i),
			Location:    fmt.Sprintf("Table %d", i),
			TableNumber: &table,
		}
		if err := admin.CreateProject(ctx, &p); err != nil {
			return nil, fmt.Errorf("prepare project %d: %w", i, err)
		}
		w.Projects = append(w.Projects, p)
		for _, prize := range w.Prizes {
			if rng.Float64() >= cfg.SubmitProbability {
				continue
			}
			ji := model.JudgingInstance{ProjectID: p.ID, PrizeID: prize.ID, Mu: prior.Mu, Sigma2: prior.Sigma2}
			if err := admin.CreateJudgingInstance(ctx, &ji); err != nil {
				return nil, fmt.Errorf("prepare instance: %w", err)
			}
			w.Quality[prize.ID][p.ID] = rng.NormFloat64()
		}
	}

	logger.Get().Info(ctx, "simulation prepared",
		logger.Int("prizes", len(w.Prizes)),
		logger.Int("judges", len(w.JudgeIDs)),
		logger.Int("projects", len(w.Projects)))
	return w, nil
}
