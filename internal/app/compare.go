package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/jury/internal/adapters/repository"
	"github.com/okian/jury/internal/domain/crowdbt"
	"github.com/okian/jury/internal/domain/dedupe"
	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
	"github.com/okian/jury/pkg/metrics"
)

// Batch results reported to metrics.
const (
	batchApplied   = "applied"
	batchDuplicate = "duplicate"
	batchRejected  = "rejected"
	batchFailed    = "failed"
	batchInFlight  = "in_flight"
)

// CompareMany applies a batch of votes in one transaction: for each vote the
// rating model is updated, an audit row is written, and when the judge's
// leader for the prize lost, the winner becomes the leader. The judge is not
// advanced. Every instance of the batch is locked up front in a fixed order.
// A non-empty batchID makes retries of an applied batch no-ops; a retry that
// arrives while the first attempt is still running fails with
// ErrBatchInFlight. A nil receipt means the judge is unknown.
func (s *Service) CompareMany(ctx context.Context, externalID, batchID string, cmps []model.Comparison) (receipt *model.CompareReceipt, err error) {
	ctx, span := s.startSpan(ctx, "Service.CompareMany", externalID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("judging.comparisons", len(cmps)), attribute.String("judging.batch_id", batchID))

	for i, c := range cmps {
		if err := s.validate.Struct(c); err != nil {
			return nil, fmt.Errorf("comparison %d: %w: %w", i, ErrInvalidComparison, err)
		}
	}
	judge, ok, err := s.judge(ctx, externalID)
	if err != nil || !ok {
		return nil, err
	}

	if batchID != "" {
		switch s.deduper.Begin(ctx, judge.ID, batchID) {
		case dedupe.StatusDone:
			metrics.RecordBatch(batchDuplicate)
			s.logger.Info(ctx, "duplicate comparison batch ignored",
				logger.String("judge_id", judge.ID),
				logger.String("batch_id", batchID),
			)
			return &model.CompareReceipt{BatchID: batchID, Duplicate: true}, nil
		case dedupe.StatusPending:
			metrics.RecordBatch(batchInFlight)
			return nil, fmt.Errorf("batch %s: %w", batchID, ErrBatchInFlight)
		}
	}

	touched := newInstanceSet()
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.LockJudgingInstances(ctx, batchRefs(cmps)); err != nil {
			return err
		}
		for i, c := range cmps {
			winner, loser, err := s.compare(ctx, tx, judge.ID, c)
			if err != nil {
				return fmt.Errorf("comparison %d: %w", i, err)
			}
			touched.add(winner)
			touched.add(loser)
		}
		return nil
	})
	if err != nil {
		if batchID != "" {
			s.deduper.Unrecord(ctx, judge.ID, batchID)
		}
		for _, c := range cmps {
			s.invalidateTop(c.PrizeID)
		}
		if errors.Is(err, crowdbt.ErrNumericDegeneracy) {
			metrics.RecordBatch(batchRejected)
		} else {
			metrics.RecordBatch(batchFailed)
		}
		s.logger.Warn(ctx, "comparison batch rolled back",
			logger.String("judge_id", judge.ID),
			logger.String("batch_id", batchID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("compare many: %w", err)
	}
	if batchID != "" {
		s.deduper.Commit(ctx, judge.ID, batchID)
	}

	metrics.RecordBatch(batchApplied)
	metrics.RecordComparisons(len(cmps))
	for _, prizeID := range touched.prizeIDs() {
		s.invalidateTop(prizeID)
	}
	return &model.CompareReceipt{BatchID: batchID, Applied: len(cmps), Instances: touched.list()}, nil
}

// compare applies one vote inside tx. Judge reliability and both instances
// are re-read so that votes of one batch touching the same rows compound.
func (s *Service) compare(ctx context.Context, tx repository.Store, judgeID string, c model.Comparison) (winner, loser model.JudgingInstance, err error) {
	judge, err := tx.Judge(ctx, judgeID)
	if err != nil {
		return winner, loser, err
	}
	if _, err := tx.Prize(ctx, c.PrizeID); err != nil {
		return winner, loser, err
	}
	// Read in the same order the batch locked them.
	first, second := c.WinnerID, c.LoserID
	if second < first {
		first, second = second, first
	}
	a, err := tx.JudgingInstance(ctx, c.PrizeID, first)
	if err != nil {
		return winner, loser, err
	}
	b, err := tx.JudgingInstance(ctx, c.PrizeID, second)
	if err != nil {
		return winner, loser, err
	}
	winner, loser = a, b
	if a.ProjectID != c.WinnerID {
		winner, loser = b, a
	}

	start := time.Now()
	out := crowdbt.Update(
		crowdbt.Reliability{Alpha: judge.Alpha, Beta: judge.Beta},
		crowdbt.Belief{Mu: winner.Mu, Sigma2: winner.Sigma2},
		crowdbt.Belief{Mu: loser.Mu, Sigma2: loser.Sigma2},
	)
	out, action, err := crowdbt.Guard(out)
	metrics.RecordRatingUpdateLatency(sinceMs(start))
	metrics.RecordGuardAction(string(action))
	if err != nil {
		return winner, loser, fmt.Errorf("prize %s: %w", c.PrizeID, err)
	}
	if action == crowdbt.GuardClamped {
		s.logger.Warn(ctx, "variance clamped",
			logger.String("prize_id", c.PrizeID),
			logger.String("winner_id", c.WinnerID),
			logger.String("loser_id", c.LoserID),
		)
	}

	now := s.now()
	if err := tx.AppendComparison(ctx, model.ComparisonResult{
		JudgeID:          judgeID,
		PrizeID:          c.PrizeID,
		WinningProjectID: c.WinnerID,
		LosingProjectID:  c.LoserID,
		CreatedAt:        now,
	}); err != nil {
		return winner, loser, err
	}
	if err := tx.UpdateJudgeReliability(ctx, judgeID, out.Judge.Alpha, out.Judge.Beta, now); err != nil {
		return winner, loser, err
	}

	winner.Mu, winner.Sigma2 = out.Winner.Mu, out.Winner.Sigma2
	winner.TimesJudged++
	loser.Mu, loser.Sigma2 = out.Loser.Mu, out.Loser.Sigma2
	loser.TimesJudged++
	if err := tx.UpdateJudgingInstance(ctx, winner); err != nil {
		return winner, loser, err
	}
	if err := tx.UpdateJudgingInstance(ctx, loser); err != nil {
		return winner, loser, err
	}

	return winner, loser, s.moveLeader(ctx, tx, judgeID, c)
}

// batchRefs returns the distinct instances a batch touches in (prize,
// project) order.
func batchRefs(cmps []model.Comparison) []repository.InstanceRef {
	seen := make(map[repository.InstanceRef]struct{}, 2*len(cmps))
	refs := make([]repository.InstanceRef, 0, 2*len(cmps))
	for _, c := range cmps {
		for _, projectID := range []string{c.WinnerID, c.LoserID} {
			r := repository.InstanceRef{PrizeID: c.PrizeID, ProjectID: projectID}
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			refs = append(refs, r)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].PrizeID != refs[j].PrizeID {
			return refs[i].PrizeID < refs[j].PrizeID
		}
		return refs[i].ProjectID < refs[j].ProjectID
	})
	return refs
}

// moveLeader hands the judge's leadership of the prize to the winner when the
// current leader lost.
func (s *Service) moveLeader(ctx context.Context, tx repository.Store, judgeID string, c model.Comparison) error {
	a, err := tx.Assignment(ctx, judgeID, c.PrizeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if a.LeadingProjectID == nil || *a.LeadingProjectID != c.LoserID {
		return nil
	}
	return tx.SetLeader(ctx, a.ID, c.WinnerID)
}

// instanceSet keeps the latest state of each instance in first-touch order.
type instanceSet struct {
	order []string
	byID  map[string]model.JudgingInstance
}

func newInstanceSet() *instanceSet {
	return &instanceSet{byID: make(map[string]model.JudgingInstance)}
}

func (s *instanceSet) add(ji model.JudgingInstance) {
	if _, ok := s.byID[ji.ID]; !ok {
		s.order = append(s.order, ji.ID)
	}
	s.byID[ji.ID] = ji
}

func (s *instanceSet) list() []model.JudgingInstance {
	out := make([]model.JudgingInstance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *instanceSet) prizeIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range s.order {
		p := s.byID[id].PrizeID
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
