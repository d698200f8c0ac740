package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

type instanceKey struct {
	prizeID   string
	projectID string
}

type assignmentKey struct {
	judgeID string
	prizeID string
}

// memState holds every row. Methods do no locking.
type memState struct {
	projects      map[string]model.Project
	prizes        map[string]model.Prize
	judges        map[string]model.Judge
	instances     map[instanceKey]model.JudgingInstance
	assignments   map[string]model.JudgePrizeAssignment
	assignmentIDs map[assignmentKey]string
	ignored       map[string]map[string]struct{}
	comparisons   []model.ComparisonResult
}

func newMemState() *memState {
	return &memState{
		projects:      make(map[string]model.Project),
		prizes:        make(map[string]model.Prize),
		judges:        make(map[string]model.Judge),
		instances:     make(map[instanceKey]model.JudgingInstance),
		assignments:   make(map[string]model.JudgePrizeAssignment),
		assignmentIDs: make(map[assignmentKey]string),
		ignored:       make(map[string]map[string]struct{}),
	}
}

// clone copies the state for a transaction. Rows are values apart from the
// pointer fields, which are never mutated in place.
func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.projects {
		c.projects[k] = v
	}
	for k, v := range st.prizes {
		c.prizes[k] = v
	}
	for k, v := range st.judges {
		c.judges[k] = v
	}
	for k, v := range st.instances {
		c.instances[k] = v
	}
	for k, v := range st.assignments {
		c.assignments[k] = v
	}
	for k, v := range st.assignmentIDs {
		c.assignmentIDs[k] = v
	}
	for judgeID, set := range st.ignored {
		cs := make(map[string]struct{}, len(set))
		for id := range set {
			cs[id] = struct{}{}
		}
		c.ignored[judgeID] = cs
	}
	c.comparisons = append([]model.ComparisonResult(nil), st.comparisons...)
	return c
}

type memCore struct {
	txMu sync.Mutex   // serialises transactions and writes outside them
	mu   sync.RWMutex // guards st
	st   *memState    // committed state

	metricsUpdateInterval time.Duration
}

// MemStore is an in-memory Backend. Transactions are serialised; each works
// on a private copy of the state that replaces the committed state only when
// it succeeds, so readers outside a transaction never see uncommitted rows.
type MemStore struct {
	core *memCore
	work *memState // non-nil inside a transaction
}

// NewMemStore creates an empty MemStore. Store gauges are published until ctx
// is cancelled.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{core: &memCore{
		st:                    newMemState(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close implements Backend.
func (s *MemStore) Close() error { return nil }

func (s *MemStore) read(op string, fn func(st *memState) error) error {
	start := time.Now()
	var err error
	if s.work != nil {
		err = fn(s.work)
	} else {
		s.core.mu.RLock()
		err = fn(s.core.st)
		s.core.mu.RUnlock()
	}
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
	return err
}

func (s *MemStore) write(op string, fn func(st *memState) error) error {
	start := time.Now()
	var err error
	if s.work != nil {
		err = fn(s.work)
	} else {
		s.core.txMu.Lock()
		s.core.mu.Lock()
		err = fn(s.core.st)
		s.core.mu.Unlock()
		s.core.txMu.Unlock()
	}
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
	return err
}

// InTx implements Store.
func (s *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.work != nil {
		return fn(ctx, s)
	}
	s.core.txMu.Lock()
	defer s.core.txMu.Unlock()

	s.core.mu.RLock()
	work := s.core.st.clone()
	s.core.mu.RUnlock()

	if err := fn(ctx, &MemStore{core: s.core, work: work}); err != nil {
		return err
	}
	s.core.mu.Lock()
	s.core.st = work
	s.core.mu.Unlock()
	return nil
}

// JudgeByExternalID implements Store.
func (s *MemStore) JudgeByExternalID(_ context.Context, externalID string) (model.Judge, error) {
	var out model.Judge
	err := s.read("judge_by_external_id", func(st *memState) error {
		for _, j := range st.judges {
			if j.ExternalID == externalID {
				out = j
				return nil
			}
		}
		return fmt.Errorf("judge %q: %w", externalID, ErrNotFound)
	})
	return out, err
}

// Judge implements Store.
func (s *MemStore) Judge(_ context.Context, judgeID string) (model.Judge, error) {
	var out model.Judge
	err := s.read("judge", func(st *memState) error {
		j, ok := st.judges[judgeID]
		if !ok {
			return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
		}
		out = j
		return nil
	})
	return out, err
}

// JudgeSession implements Store.
func (s *MemStore) JudgeSession(_ context.Context, judgeID string) (model.JudgeSession, error) {
	var out model.JudgeSession
	err := s.read("judge_session", func(st *memState) error {
		j, ok := st.judges[judgeID]
		if !ok {
			return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
		}
		out.Judge = j

		var prizeIDs []string
		for _, a := range st.assignments {
			if a.JudgeID == judgeID {
				prizeIDs = append(prizeIDs, a.PrizeID)
			}
		}
		for _, a := range st.assignments {
			if a.JudgeID != judgeID {
				continue
			}
			d := model.AssignmentDetail{JudgePrizeAssignment: a, Prize: st.prizes[a.PrizeID]}
			if a.LeadingProjectID != nil {
				if p, ok := st.projects[*a.LeadingProjectID]; ok {
					leader := st.withInstances(p, prizeIDs)
					d.Leader = &leader
				}
			}
			out.Assignments = append(out.Assignments, d)
		}
		sortAssignments(out.Assignments)

		for id := range st.ignored[judgeID] {
			out.IgnoredIDs = append(out.IgnoredIDs, id)
		}
		sort.Strings(out.IgnoredIDs)

		if j.NextProjectID != nil {
			if p, ok := st.projects[*j.NextProjectID]; ok {
				next := st.withInstances(p, prizeIDs)
				out.Next = &next
			}
		}
		return nil
	})
	return out, err
}

func sortAssignments(as []model.AssignmentDetail) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].Prize.Name != as[j].Prize.Name {
			return as[i].Prize.Name < as[j].Prize.Name
		}
		return as[i].PrizeID < as[j].PrizeID
	})
}

func (st *memState) withInstances(p model.Project, prizeIDs []string) model.ProjectWithInstances {
	out := model.ProjectWithInstances{Project: p}
	for _, prizeID := range prizeIDs {
		if ji, ok := st.instances[instanceKey{prizeID: prizeID, projectID: p.ID}]; ok {
			out.Instances = append(out.Instances, ji)
		}
	}
	sort.Slice(out.Instances, func(i, j int) bool { return out.Instances[i].PrizeID < out.Instances[j].PrizeID })
	return out
}

// CandidateProjects implements Store.
func (s *MemStore) CandidateProjects(_ context.Context, excludeIDs, prizeIDs []string) ([]model.ProjectWithInstances, error) {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	var out []model.ProjectWithInstances
	err := s.read("candidate_projects", func(st *memState) error {
		for _, p := range st.projects {
			if _, ok := excluded[p.ID]; ok || !p.Located() {
				continue
			}
			out = append(out, st.withInstances(p, prizeIDs))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// BusyProjectIDs implements Store.
func (s *MemStore) BusyProjectIDs(_ context.Context, since time.Time, excludeJudgeID string) ([]string, error) {
	var out []string
	err := s.read("busy_project_ids", func(st *memState) error {
		for _, j := range st.judges {
			if j.ID == excludeJudgeID || j.NextProjectID == nil || j.UpdatedAt.Before(since) {
				continue
			}
			out = append(out, *j.NextProjectID)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Prize implements Store.
func (s *MemStore) Prize(_ context.Context, prizeID string) (model.Prize, error) {
	var out model.Prize
	err := s.read("prize", func(st *memState) error {
		p, ok := st.prizes[prizeID]
		if !ok {
			return fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
		}
		out = p
		return nil
	})
	return out, err
}

// JudgingInstance implements Store.
func (s *MemStore) JudgingInstance(_ context.Context, prizeID, projectID string) (model.JudgingInstance, error) {
	var out model.JudgingInstance
	err := s.read("judging_instance", func(st *memState) error {
		ji, ok := st.instances[instanceKey{prizeID: prizeID, projectID: projectID}]
		if !ok {
			return fmt.Errorf("judging instance of project %s for prize %s: %w", projectID, prizeID, ErrNotFound)
		}
		out = ji
		return nil
	})
	return out, err
}

// LockJudgingInstances implements Store. Transactions are already
// serialised, so there is nothing to lock.
func (s *MemStore) LockJudgingInstances(_ context.Context, _ []InstanceRef) error {
	return nil
}

// RankedInstances implements Store.
func (s *MemStore) RankedInstances(_ context.Context, prizeID string) ([]model.RankedInstance, error) {
	var out []model.RankedInstance
	err := s.read("ranked_instances", func(st *memState) error {
		if _, ok := st.prizes[prizeID]; !ok {
			return fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
		}
		for k, ji := range st.instances {
			if k.prizeID == prizeID {
				out = append(out, model.RankedInstance{JudgingInstance: ji, Project: st.projects[k.projectID]})
			}
		}
		return nil
	})
	SortRanked(out)
	return out, err
}

// SortRanked orders instances by mu desc, sigma2 asc, then project name.
func SortRanked(rs []model.RankedInstance) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Mu != b.Mu {
			return a.Mu > b.Mu
		}
		if a.Sigma2 != b.Sigma2 {
			return a.Sigma2 < b.Sigma2
		}
		if a.Project.Name != b.Project.Name {
			return a.Project.Name < b.Project.Name
		}
		return a.ProjectID < b.ProjectID
	})
}

// JudgePrizes implements Store.
func (s *MemStore) JudgePrizes(_ context.Context, judgeID string) ([]model.Prize, error) {
	var out []model.Prize
	err := s.read("judge_prizes", func(st *memState) error {
		for _, a := range st.assignments {
			if a.JudgeID == judgeID {
				out = append(out, st.prizes[a.PrizeID])
			}
		}
		return nil
	})
	sortPrizes(out)
	return out, err
}

func sortPrizes(ps []model.Prize) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

// Assignment implements Store.
func (s *MemStore) Assignment(_ context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error) {
	var out model.JudgePrizeAssignment
	err := s.read("assignment", func(st *memState) error {
		id, ok := st.assignmentIDs[assignmentKey{judgeID: judgeID, prizeID: prizeID}]
		if !ok {
			return fmt.Errorf("assignment of judge %s to prize %s: %w", judgeID, prizeID, ErrNotFound)
		}
		out = st.assignments[id]
		return nil
	})
	return out, err
}

// AssignNextProject implements Store.
func (s *MemStore) AssignNextProject(_ context.Context, judgeID string, projectID *string, at time.Time) error {
	return s.write("assign_next_project", func(st *memState) error {
		j, ok := st.judges[judgeID]
		if !ok {
			return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
		}
		if projectID != nil {
			id := *projectID
			j.NextProjectID = &id
		} else {
			j.NextProjectID = nil
		}
		j.UpdatedAt = at.UTC()
		st.judges[judgeID] = j
		return nil
	})
}

// AddIgnored implements Store.
func (s *MemStore) AddIgnored(_ context.Context, judgeID, projectID string) error {
	return s.write("add_ignored", func(st *memState) error {
		set, ok := st.ignored[judgeID]
		if !ok {
			set = make(map[string]struct{})
			st.ignored[judgeID] = set
		}
		set[projectID] = struct{}{}
		return nil
	})
}

// RecordVisit implements Store.
func (s *MemStore) RecordVisit(_ context.Context, projectID string, prizeIDs []string) error {
	return s.write("record_visit", func(st *memState) error {
		for _, prizeID := range prizeIDs {
			k := instanceKey{prizeID: prizeID, projectID: projectID}
			if ji, ok := st.instances[k]; ok {
				ji.TimesVisited++
				st.instances[k] = ji
			}
		}
		return nil
	})
}

// SetLeader implements Store.
func (s *MemStore) SetLeader(_ context.Context, assignmentID, projectID string) error {
	return s.write("set_leader", func(st *memState) error {
		a, ok := st.assignments[assignmentID]
		if !ok {
			return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
		}
		id := projectID
		a.LeadingProjectID = &id
		st.assignments[assignmentID] = a
		return nil
	})
}

// UpdateJudgeReliability implements Store.
func (s *MemStore) UpdateJudgeReliability(_ context.Context, judgeID string, alpha, beta float64, at time.Time) error {
	return s.write("update_judge_reliability", func(st *memState) error {
		j, ok := st.judges[judgeID]
		if !ok {
			return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
		}
		j.Alpha, j.Beta, j.UpdatedAt = alpha, beta, at.UTC()
		st.judges[judgeID] = j
		return nil
	})
}

// UpdateJudgingInstance implements Store.
func (s *MemStore) UpdateJudgingInstance(_ context.Context, ji model.JudgingInstance) error {
	return s.write("update_judging_instance", func(st *memState) error {
		k := instanceKey{prizeID: ji.PrizeID, projectID: ji.ProjectID}
		cur, ok := st.instances[k]
		if !ok {
			return fmt.Errorf("judging instance %s: %w", ji.ID, ErrNotFound)
		}
		cur.Mu, cur.Sigma2, cur.TimesJudged = ji.Mu, ji.Sigma2, ji.TimesJudged
		st.instances[k] = cur
		return nil
	})
}

// AppendComparison implements Store.
func (s *MemStore) AppendComparison(_ context.Context, r model.ComparisonResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return s.write("append_comparison", func(st *memState) error {
		st.comparisons = append(st.comparisons, r)
		return nil
	})
}

// Reset implements Admin.
func (s *MemStore) Reset(_ context.Context) error {
	return s.write("reset", func(st *memState) error {
		*st = *newMemState()
		return nil
	})
}

// CreatePrize implements Admin.
func (s *MemStore) CreatePrize(_ context.Context, p *model.Prize) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = model.PrizeCategoryGeneral
	}
	return s.write("create_prize", func(st *memState) error {
		if _, ok := st.prizes[p.ID]; ok {
			return fmt.Errorf("prize %s: %w", p.ID, ErrAlreadyExists)
		}
		st.prizes[p.ID] = *p
		return nil
	})
}

// CreateJudge implements Admin.
func (s *MemStore) CreateJudge(_ context.Context, j *model.Judge) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	j.UpdatedAt = j.UpdatedAt.UTC()
	return s.write("create_judge", func(st *memState) error {
		if _, ok := st.judges[j.ID]; ok {
			return fmt.Errorf("judge %s: %w", j.ID, ErrAlreadyExists)
		}
		for _, other := range st.judges {
			if j.ExternalID != "" && other.ExternalID == j.ExternalID {
				return fmt.Errorf("judge %q: %w", j.ExternalID, ErrAlreadyExists)
			}
		}
		st.judges[j.ID] = *j
		return nil
	})
}

// CreateProject implements Admin.
func (s *MemStore) CreateProject(_ context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.write("create_project", func(st *memState) error {
		if _, ok := st.projects[p.ID]; ok {
			return fmt.Errorf("project %s: %w", p.ID, ErrAlreadyExists)
		}
		st.projects[p.ID] = *p
		return nil
	})
}

// CreateJudgingInstance implements Admin.
func (s *MemStore) CreateJudgingInstance(_ context.Context, ji *model.JudgingInstance) error {
	if ji.ID == "" {
		ji.ID = uuid.NewString()
	}
	return s.write("create_judging_instance", func(st *memState) error {
		if _, ok := st.projects[ji.ProjectID]; !ok {
			return fmt.Errorf("project %s: %w", ji.ProjectID, ErrNotFound)
		}
		if _, ok := st.prizes[ji.PrizeID]; !ok {
			return fmt.Errorf("prize %s: %w", ji.PrizeID, ErrNotFound)
		}
		k := instanceKey{prizeID: ji.PrizeID, projectID: ji.ProjectID}
		if _, ok := st.instances[k]; ok {
			return fmt.Errorf("judging instance of project %s for prize %s: %w", ji.ProjectID, ji.PrizeID, ErrAlreadyExists)
		}
		st.instances[k] = *ji
		return nil
	})
}

// UpsertAssignment implements Admin.
func (s *MemStore) UpsertAssignment(_ context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error) {
	var out model.JudgePrizeAssignment
	err := s.write("upsert_assignment", func(st *memState) error {
		if _, ok := st.judges[judgeID]; !ok {
			return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
		}
		if _, ok := st.prizes[prizeID]; !ok {
			return fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
		}
		k := assignmentKey{judgeID: judgeID, prizeID: prizeID}
		if id, ok := st.assignmentIDs[k]; ok {
			out = st.assignments[id]
			return nil
		}
		out = model.JudgePrizeAssignment{ID: uuid.NewString(), JudgeID: judgeID, PrizeID: prizeID}
		st.assignments[out.ID] = out
		st.assignmentIDs[k] = out.ID
		return nil
	})
	return out, err
}

// Prizes implements Admin.
func (s *MemStore) Prizes(_ context.Context) ([]model.Prize, error) {
	var out []model.Prize
	err := s.read("prizes", func(st *memState) error {
		for _, p := range st.prizes {
			out = append(out, p)
		}
		return nil
	})
	sortPrizes(out)
	return out, err
}

// Judges implements Admin.
func (s *MemStore) Judges(_ context.Context) ([]model.Judge, error) {
	var out []model.Judge
	err := s.read("judges", func(st *memState) error {
		for _, j := range st.judges {
			out = append(out, j)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, err
}

// Projects implements Admin.
func (s *MemStore) Projects(_ context.Context) ([]model.Project, error) {
	var out []model.Project
	err := s.read("projects", func(st *memState) error {
		for _, p := range st.projects {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// Comparisons implements Admin.
func (s *MemStore) Comparisons(_ context.Context) ([]model.ComparisonResult, error) {
	var out []model.ComparisonResult
	err := s.read("comparisons", func(st *memState) error {
		out = append(out, st.comparisons...)
		return nil
	})
	return out, err
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.core.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemStore) updateMetrics() {
	s.core.mu.RLock()
	st := s.core.st
	counts := map[string]int{
		"projects":    len(st.projects),
		"prizes":      len(st.prizes),
		"judges":      len(st.judges),
		"instances":   len(st.instances),
		"assignments": len(st.assignments),
		"comparisons": len(st.comparisons),
	}
	s.core.mu.RUnlock()
	for kind, n := range counts {
		metrics.UpdateStoreRecords(kind, n)
	}
}
