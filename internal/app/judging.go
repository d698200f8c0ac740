package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/jury/internal/adapters/repository"
	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
	"github.com/okian/jury/pkg/metrics"
)

// Current returns the project the judge is visiting, assigning one when the
// judge has none. Repeated calls return the same project until the judge
// advances. A nil view means the judge is unknown or has nothing left to judge.
func (s *Service) Current(ctx context.Context, externalID string) (view *model.SessionView, err error) {
	ctx, span := s.startSpan(ctx, "Service.Current", externalID)
	defer func() { endSpan(span, err) }()

	judge, ok, err := s.judge(ctx, externalID)
	if err != nil || !ok {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.JudgeSession(ctx, judge.ID)
		if err != nil {
			return err
		}
		if session.Next == nil {
			next, err := s.assign(ctx, tx, session)
			if err != nil || next == nil {
				return err
			}
			if session, err = tx.JudgeSession(ctx, judge.ID); err != nil {
				return err
			}
		}
		view = model.NewSessionView(session)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("current project: %w", err)
	}
	return view, nil
}

// ComputeNext advances the judge. Prizes still without a leader adopt the
// current project when it was entered for them; then a new project is
// assigned. A nil view means judging is complete for this judge.
func (s *Service) ComputeNext(ctx context.Context, externalID string) (view *model.SessionView, err error) {
	ctx, span := s.startSpan(ctx, "Service.ComputeNext", externalID)
	defer func() { endSpan(span, err) }()

	judge, ok, err := s.judge(ctx, externalID)
	if err != nil || !ok {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.JudgeSession(ctx, judge.ID)
		if err != nil {
			return err
		}
		promoted, err := s.promoteLeaders(ctx, tx, session)
		if err != nil {
			return err
		}
		if promoted > 0 {
			span.SetAttributes(attribute.Int("judging.promoted", promoted))
			if session, err = tx.JudgeSession(ctx, judge.ID); err != nil {
				return err
			}
		}
		next, err := s.assign(ctx, tx, session)
		if err != nil || next == nil {
			return err
		}
		if session, err = tx.JudgeSession(ctx, judge.ID); err != nil {
			return err
		}
		view = model.NewSessionView(session)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute next: %w", err)
	}
	return view, nil
}

// SkipProject ignores projectID for the judge without a vote. When it is the
// judge's current project a replacement is assigned at once; leaders are
// never promoted from a skipped project.
func (s *Service) SkipProject(ctx context.Context, externalID, projectID string) (view *model.SessionView, err error) {
	ctx, span := s.startSpan(ctx, "Service.SkipProject", externalID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("project.id", projectID))

	if projectID == "" {
		return nil, fmt.Errorf("skip project: empty project id: %w", ErrInvalidProject)
	}
	judge, ok, err := s.judge(ctx, externalID)
	if err != nil || !ok {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.AddIgnored(ctx, judge.ID, projectID); err != nil {
			return err
		}
		session, err := tx.JudgeSession(ctx, judge.ID)
		if err != nil {
			return err
		}
		if session.Next != nil && session.Next.ID == projectID {
			next, err := s.assign(ctx, tx, session)
			if err != nil || next == nil {
				return err
			}
			if session, err = tx.JudgeSession(ctx, judge.ID); err != nil {
				return err
			}
		}
		view = model.NewSessionView(session)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("skip project: %w", err)
	}
	metrics.RecordSkip()
	s.logger.Debug(ctx, "project skipped",
		logger.String("judge_id", judge.ID),
		logger.String("project_id", projectID),
	)
	return view, nil
}

// promoteLeaders points every leaderless assignment whose prize the current
// project was entered for at the current project.
func (s *Service) promoteLeaders(ctx context.Context, tx repository.Store, session model.JudgeSession) (int, error) {
	if session.Next == nil {
		return 0, nil
	}
	promoted := 0
	for _, a := range session.Assignments {
		if a.HasLeader() {
			continue
		}
		if _, entered := session.Next.Instance(a.PrizeID); !entered {
			continue
		}
		if err := tx.SetLeader(ctx, a.ID, session.Next.ID); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// assign asks the policy for the judge's next project and records it as
// current, ignored and visited. When the pool is exhausted the judge's
// current project is cleared and nil is returned.
func (s *Service) assign(ctx context.Context, tx repository.Store, session model.JudgeSession) (*model.ProjectWithInstances, error) {
	start := time.Now()
	d, err := s.policy.Next(ctx, session, tx)
	metrics.RecordSelectionLatency(sinceMs(start))
	if err != nil {
		return nil, fmt.Errorf("select next project: %w", err)
	}

	judgeID := session.Judge.ID
	if d.Project == nil {
		metrics.RecordPoolExhausted()
		s.logger.Info(ctx, "no projects left for judge", logger.String("judge_id", judgeID))
		if session.Next == nil {
			return nil, nil
		}
		return nil, tx.AssignNextProject(ctx, judgeID, nil, s.now())
	}

	metrics.RecordAssignment(string(d.Strategy))
	metrics.RecordSelectionPoolSize(d.PoolSize)

	projectID := d.Project.ID
	if err := tx.AssignNextProject(ctx, judgeID, &projectID, s.now()); err != nil {
		return nil, err
	}
	if err := tx.AddIgnored(ctx, judgeID, projectID); err != nil {
		return nil, err
	}
	if err := tx.RecordVisit(ctx, projectID, session.PrizeIDs()); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "project assigned",
		logger.String("judge_id", judgeID),
		logger.String("project_id", projectID),
		logger.String("strategy", string(d.Strategy)),
		logger.Float64("gain", d.Gain),
		logger.Int("pool", d.PoolSize),
	)
	return d.Project, nil
}
