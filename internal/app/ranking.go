package service

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
	"github.com/okian/jury/pkg/metrics"
)

// TopProjects returns the ranking of a prize: instances by mu descending,
// then sigma2 ascending, then project name. limit <= 0 returns every
// instance. Rankings are cached briefly and dropped when a vote touches the
// prize.
func (s *Service) TopProjects(ctx context.Context, prizeID string, limit int) (ranked []model.RankedInstance, err error) {
	ctx, span := s.tracer.Start(ctx, "Service.TopProjects")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("prize.id", prizeID), attribute.Int("limit", limit))

	all, err := s.ranking(ctx, prizeID)
	if err != nil {
		return nil, fmt.Errorf("top projects: %w", err)
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]model.RankedInstance, len(all))
	copy(out, all)
	return out, nil
}

func (s *Service) ranking(ctx context.Context, prizeID string) ([]model.RankedInstance, error) {
	if s.topCache != nil {
		if v, ok := s.topCache.Get(prizeID); ok {
			metrics.RecordTopCacheHit()
			return v.([]model.RankedInstance), nil
		}
		metrics.RecordTopCacheMiss()
	}
	ranked, err := s.store.RankedInstances(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	if s.topCache != nil {
		s.topCache.Set(prizeID, ranked, cache.DefaultExpiration)
	}
	return ranked, nil
}

func (s *Service) invalidateTop(prizeID string) {
	if s.topCache != nil {
		s.topCache.Delete(prizeID)
	}
}

// JudgingPrizes returns the prizes the judge is assigned to. Unknown judges
// have none.
func (s *Service) JudgingPrizes(ctx context.Context, externalID string) (prizes []model.Prize, err error) {
	ctx, span := s.startSpan(ctx, "Service.JudgingPrizes", externalID)
	defer func() { endSpan(span, err) }()

	judge, ok, err := s.judge(ctx, externalID)
	if err != nil || !ok {
		return nil, err
	}
	prizes, err = s.store.JudgePrizes(ctx, judge.ID)
	if err != nil {
		return nil, fmt.Errorf("judging prizes: %w", err)
	}
	return prizes, nil
}

// SyncJudgePrizes assigns every general prize to every judge and returns the
// number of assignments ensured. Existing assignments keep their leader.
func (s *Service) SyncJudgePrizes(ctx context.Context) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "Service.SyncJudgePrizes")
	defer func() { endSpan(span, err) }()

	prizes, err := s.store.Prizes(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync judge prizes: %w", err)
	}
	judges, err := s.store.Judges(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync judge prizes: %w", err)
	}
	for _, p := range prizes {
		if p.Category != model.PrizeCategoryGeneral {
			continue
		}
		for _, j := range judges {
			if _, err := s.store.UpsertAssignment(ctx, j.ID, p.ID); err != nil {
				return n, fmt.Errorf("sync judge prizes: %w", err)
			}
			n++
		}
	}
	span.SetAttributes(attribute.Int("judging.assignments", n))
	s.logger.Info(ctx, "judge prizes synced", logger.Int("assignments", n))
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	prizes, err := s.store.Prizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	judges, err := s.store.Judges(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	projects, err := s.store.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	comparisons, err := s.store.Comparisons(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	active, idle := 0, 0
	for _, j := range judges {
		if j.NextProjectID != nil {
			active++
		} else {
			idle++
		}
	}
	return map[string]interface{}{
		"prizes":          len(prizes),
		"judges":          len(judges),
		"judgesActive":    active,
		"judgesIdle":      idle,
		"projects":        len(projects),
		"comparisons":     len(comparisons),
		"dedupeSize":      s.deduper.Size(),
		"topCacheEnabled": s.topCache != nil,
	}, nil
}
