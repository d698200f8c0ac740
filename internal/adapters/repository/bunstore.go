package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/metrics"
)

// Storage drivers accepted by OpenBun.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// BunStore is a Backend on PostgreSQL or SQLite through bun. On PostgreSQL,
// judge and judging instance reads inside a transaction take row locks.
type BunStore struct {
	db   *bun.DB
	idb  bun.IDB
	inTx bool
}

// OpenBun connects to the database, creates the schema when missing and
// returns the store.
func OpenBun(ctx context.Context, driver, dsn string, debug bool) (*BunStore, error) {
	var db *bun.DB
	switch driver {
	case DriverPostgres:
		db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
		maxOpenConns := 4 * runtime.GOMAXPROCS(0)
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
		// SQLite allows a single writer; one connection serialises transactions.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	s, err := NewBunStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewBunStore wraps an open bun.DB and creates the schema when missing.
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	s := &BunStore{db: db, idb: db}
	if err := s.createSchema(ctx); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *BunStore) createSchema(ctx context.Context) error {
	for _, m := range bunModels {
		if _, err := s.db.NewCreateTable().IfNotExists().Model(m).Exec(ctx); err != nil {
			return err
		}
	}
	for _, idx := range bunUniqueIndexes {
		if _, err := s.db.NewCreateIndex().IfNotExists().Unique().
			Model(idx.model).Index(idx.name).Column(idx.columns...).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Backend.
func (s *BunStore) Close() error { return s.db.Close() }

func observe(op string, start time.Time) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func affected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return nil
}

// lock adds FOR UPDATE to reads inside a PostgreSQL transaction.
func (s *BunStore) lock(q *bun.SelectQuery) *bun.SelectQuery {
	if s.inTx && s.db.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

// InTx implements Store.
func (s *BunStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &BunStore{db: s.db, idb: tx, inTx: true})
	})
}

// JudgeByExternalID implements Store.
func (s *BunStore) JudgeByExternalID(ctx context.Context, externalID string) (model.Judge, error) {
	defer observe("judge_by_external_id", time.Now())
	var row judgeRow
	if err := s.idb.NewSelect().Model(&row).Where("external_id = ?", externalID).Limit(1).Scan(ctx); err != nil {
		return model.Judge{}, notFound(err, "judge %q", externalID)
	}
	return row.toModel(), nil
}

// Judge implements Store.
func (s *BunStore) Judge(ctx context.Context, judgeID string) (model.Judge, error) {
	defer observe("judge", time.Now())
	var row judgeRow
	if err := s.lock(s.idb.NewSelect().Model(&row).Where("id = ?", judgeID)).Scan(ctx); err != nil {
		return model.Judge{}, notFound(err, "judge %s", judgeID)
	}
	return row.toModel(), nil
}

// JudgeSession implements Store.
func (s *BunStore) JudgeSession(ctx context.Context, judgeID string) (model.JudgeSession, error) {
	defer observe("judge_session", time.Now())
	var out model.JudgeSession

	var judge judgeRow
	if err := s.idb.NewSelect().Model(&judge).Where("id = ?", judgeID).Scan(ctx); err != nil {
		return out, notFound(err, "judge %s", judgeID)
	}
	out.Judge = judge.toModel()

	var assignments []assignmentRow
	if err := s.idb.NewSelect().Model(&assignments).Where("judge_id = ?", judgeID).Scan(ctx); err != nil {
		return out, fmt.Errorf("assignments of judge %s: %w", judgeID, err)
	}
	prizeIDs := make([]string, 0, len(assignments))
	projectIDs := make([]string, 0, len(assignments)+1)
	for _, a := range assignments {
		prizeIDs = append(prizeIDs, a.PrizeID)
		if a.LeadingProjectID != nil {
			projectIDs = append(projectIDs, *a.LeadingProjectID)
		}
	}
	if judge.NextProjectID != nil {
		projectIDs = append(projectIDs, *judge.NextProjectID)
	}

	prizes, err := s.prizesByID(ctx, prizeIDs)
	if err != nil {
		return out, err
	}
	projects, err := s.projectsWithInstances(ctx, projectIDs, prizeIDs)
	if err != nil {
		return out, err
	}

	for _, a := range assignments {
		d := model.AssignmentDetail{JudgePrizeAssignment: a.toModel(), Prize: prizes[a.PrizeID]}
		if a.LeadingProjectID != nil {
			if p, ok := projects[*a.LeadingProjectID]; ok {
				leader := p
				d.Leader = &leader
			}
		}
		out.Assignments = append(out.Assignments, d)
	}
	sortAssignments(out.Assignments)

	var ignored []ignoredRow
	if err := s.idb.NewSelect().Model(&ignored).Where("judge_id = ?", judgeID).Order("project_id ASC").Scan(ctx); err != nil {
		return out, fmt.Errorf("ignored projects of judge %s: %w", judgeID, err)
	}
	for _, r := range ignored {
		out.IgnoredIDs = append(out.IgnoredIDs, r.ProjectID)
	}

	if judge.NextProjectID != nil {
		if p, ok := projects[*judge.NextProjectID]; ok {
			next := p
			out.Next = &next
		}
	}
	return out, nil
}

func (s *BunStore) prizesByID(ctx context.Context, ids []string) (map[string]model.Prize, error) {
	out := make(map[string]model.Prize, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []prizeRow
	if err := s.idb.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("prizes: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.toModel()
	}
	return out, nil
}

func (s *BunStore) projectsWithInstances(ctx context.Context, projectIDs, prizeIDs []string) (map[string]model.ProjectWithInstances, error) {
	out := make(map[string]model.ProjectWithInstances, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	var rows []projectRow
	if err := s.idb.NewSelect().Model(&rows).Where("id IN (?)", bun.In(projectIDs)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = model.ProjectWithInstances{Project: r.toModel()}
	}
	if len(prizeIDs) == 0 {
		return out, nil
	}
	var instances []instanceRow
	if err := s.idb.NewSelect().Model(&instances).
		Where("project_id IN (?)", bun.In(projectIDs)).
		Where("prize_id IN (?)", bun.In(prizeIDs)).
		Order("prize_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("judging instances: %w", err)
	}
	for _, ji := range instances {
		p := out[ji.ProjectID]
		p.Instances = append(p.Instances, ji.toModel())
		out[ji.ProjectID] = p
	}
	return out, nil
}

// CandidateProjects implements Store.
func (s *BunStore) CandidateProjects(ctx context.Context, excludeIDs, prizeIDs []string) ([]model.ProjectWithInstances, error) {
	defer observe("candidate_projects", time.Now())
	var rows []projectRow
	q := s.idb.NewSelect().Model(&rows).Where("table_number IS NOT NULL").Order("id ASC")
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(excludeIDs))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("candidate projects: %w", err)
	}

	byProject := make(map[string][]model.JudgingInstance)
	if len(prizeIDs) > 0 {
		var instances []instanceRow
		if err := s.idb.NewSelect().Model(&instances).
			Where("prize_id IN (?)", bun.In(prizeIDs)).
			Order("prize_id ASC").
			Scan(ctx); err != nil {
			return nil, fmt.Errorf("candidate instances: %w", err)
		}
		for _, ji := range instances {
			byProject[ji.ProjectID] = append(byProject[ji.ProjectID], ji.toModel())
		}
	}

	out := make([]model.ProjectWithInstances, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ProjectWithInstances{Project: r.toModel(), Instances: byProject[r.ID]})
	}
	return out, nil
}

// BusyProjectIDs implements Store.
func (s *BunStore) BusyProjectIDs(ctx context.Context, since time.Time, excludeJudgeID string) ([]string, error) {
	defer observe("busy_project_ids", time.Now())
	var rows []judgeRow
	if err := s.idb.NewSelect().Model(&rows).
		Where("id <> ?", excludeJudgeID).
		Where("next_project_id IS NOT NULL").
		Where("updated_at >= ?", since.UTC()).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("busy projects: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.NextProjectID)
	}
	sort.Strings(out)
	return out, nil
}

// Prize implements Store.
func (s *BunStore) Prize(ctx context.Context, prizeID string) (model.Prize, error) {
	defer observe("prize", time.Now())
	var row prizeRow
	if err := s.idb.NewSelect().Model(&row).Where("id = ?", prizeID).Scan(ctx); err != nil {
		return model.Prize{}, notFound(err, "prize %s", prizeID)
	}
	return row.toModel(), nil
}

// JudgingInstance implements Store.
func (s *BunStore) JudgingInstance(ctx context.Context, prizeID, projectID string) (model.JudgingInstance, error) {
	defer observe("judging_instance", time.Now())
	var row instanceRow
	q := s.idb.NewSelect().Model(&row).Where("prize_id = ?", prizeID).Where("project_id = ?", projectID)
	if err := s.lock(q).Scan(ctx); err != nil {
		return model.JudgingInstance{}, notFound(err, "judging instance of project %s for prize %s", projectID, prizeID)
	}
	return row.toModel(), nil
}

// LockJudgingInstances implements Store. Rows are locked by one ordered
// SELECT ... FOR UPDATE so that transactions touching overlapping instances
// acquire them in the same order.
func (s *BunStore) LockJudgingInstances(ctx context.Context, refs []InstanceRef) error {
	if !s.inTx || s.db.Dialect().Name() != dialect.PG || len(refs) == 0 {
		return nil
	}
	defer observe("lock_judging_instances", time.Now())
	var ids []string
	err := s.idb.NewSelect().Model((*instanceRow)(nil)).Column("id").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, r := range refs {
				q = q.WhereOr("(prize_id = ? AND project_id = ?)", r.PrizeID, r.ProjectID)
			}
			return q
		}).
		OrderExpr("prize_id ASC, project_id ASC").
		For("UPDATE").
		Scan(ctx, &ids)
	if err != nil {
		return fmt.Errorf("lock judging instances: %w", err)
	}
	return nil
}

// RankedInstances implements Store.
func (s *BunStore) RankedInstances(ctx context.Context, prizeID string) ([]model.RankedInstance, error) {
	defer observe("ranked_instances", time.Now())
	exists, err := s.idb.NewSelect().Model((*prizeRow)(nil)).Where("id = ?", prizeID).Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("prize %s: %w", prizeID, err)
	}
	if !exists {
		return nil, fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
	}

	var instances []instanceRow
	if err := s.idb.NewSelect().Model(&instances).Where("prize_id = ?", prizeID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("ranked instances: %w", err)
	}
	ids := make([]string, 0, len(instances))
	for _, ji := range instances {
		ids = append(ids, ji.ProjectID)
	}
	projects, err := s.projectsWithInstances(ctx, ids, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.RankedInstance, 0, len(instances))
	for _, ji := range instances {
		out = append(out, model.RankedInstance{JudgingInstance: ji.toModel(), Project: projects[ji.ProjectID].Project})
	}
	SortRanked(out)
	return out, nil
}

// JudgePrizes implements Store.
func (s *BunStore) JudgePrizes(ctx context.Context, judgeID string) ([]model.Prize, error) {
	defer observe("judge_prizes", time.Now())
	var rows []prizeRow
	if err := s.idb.NewSelect().Model(&rows).
		Where("id IN (?)", s.idb.NewSelect().Model((*assignmentRow)(nil)).Column("prize_id").Where("judge_id = ?", judgeID)).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("prizes of judge %s: %w", judgeID, err)
	}
	out := make([]model.Prize, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	sortPrizes(out)
	return out, nil
}

// Assignment implements Store.
func (s *BunStore) Assignment(ctx context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error) {
	defer observe("assignment", time.Now())
	var row assignmentRow
	q := s.idb.NewSelect().Model(&row).Where("judge_id = ?", judgeID).Where("prize_id = ?", prizeID)
	if err := s.lock(q).Scan(ctx); err != nil {
		return model.JudgePrizeAssignment{}, notFound(err, "assignment of judge %s to prize %s", judgeID, prizeID)
	}
	return row.toModel(), nil
}

// AssignNextProject implements Store.
func (s *BunStore) AssignNextProject(ctx context.Context, judgeID string, projectID *string, at time.Time) error {
	defer observe("assign_next_project", time.Now())
	res, err := s.idb.NewUpdate().Model((*judgeRow)(nil)).
		Set("next_project_id = ?", projectID).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", judgeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("assign next project: %w", err)
	}
	return affected(res, "judge %s", judgeID)
}

// AddIgnored implements Store.
func (s *BunStore) AddIgnored(ctx context.Context, judgeID, projectID string) error {
	defer observe("add_ignored", time.Now())
	row := &ignoredRow{JudgeID: judgeID, ProjectID: projectID}
	if _, err := s.idb.NewInsert().Model(row).On("CONFLICT (judge_id, project_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("add ignored: %w", err)
	}
	return nil
}

// RecordVisit implements Store.
func (s *BunStore) RecordVisit(ctx context.Context, projectID string, prizeIDs []string) error {
	defer observe("record_visit", time.Now())
	if len(prizeIDs) == 0 {
		return nil
	}
	refs := make([]InstanceRef, len(prizeIDs))
	for i, prizeID := range prizeIDs {
		refs[i] = InstanceRef{PrizeID: prizeID, ProjectID: projectID}
	}
	if err := s.LockJudgingInstances(ctx, refs); err != nil {
		return err
	}
	if _, err := s.idb.NewUpdate().Model((*instanceRow)(nil)).
		Set("times_visited = times_visited + 1").
		Where("project_id = ?", projectID).
		Where("prize_id IN (?)", bun.In(prizeIDs)).
		Exec(ctx); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// SetLeader implements Store.
func (s *BunStore) SetLeader(ctx context.Context, assignmentID, projectID string) error {
	defer observe("set_leader", time.Now())
	res, err := s.idb.NewUpdate().Model((*assignmentRow)(nil)).
		Set("leading_project_id = ?", projectID).
		Where("id = ?", assignmentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set leader: %w", err)
	}
	return affected(res, "assignment %s", assignmentID)
}

// UpdateJudgeReliability implements Store.
func (s *BunStore) UpdateJudgeReliability(ctx context.Context, judgeID string, alpha, beta float64, at time.Time) error {
	defer observe("update_judge_reliability", time.Now())
	res, err := s.idb.NewUpdate().Model((*judgeRow)(nil)).
		Set("alpha = ?", alpha).
		Set("beta = ?", beta).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", judgeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update judge reliability: %w", err)
	}
	return affected(res, "judge %s", judgeID)
}

// UpdateJudgingInstance implements Store.
func (s *BunStore) UpdateJudgingInstance(ctx context.Context, ji model.JudgingInstance) error {
	defer observe("update_judging_instance", time.Now())
	res, err := s.idb.NewUpdate().Model((*instanceRow)(nil)).
		Set("mu = ?", ji.Mu).
		Set("sigma2 = ?", ji.Sigma2).
		Set("times_judged = ?", ji.TimesJudged).
		Where("prize_id = ?", ji.PrizeID).
		Where("project_id = ?", ji.ProjectID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update judging instance: %w", err)
	}
	return affected(res, "judging instance %s", ji.ID)
}

// AppendComparison implements Store.
func (s *BunStore) AppendComparison(ctx context.Context, r model.ComparisonResult) error {
	defer observe("append_comparison", time.Now())
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	row := &comparisonRow{
		ID:               r.ID,
		JudgeID:          r.JudgeID,
		PrizeID:          r.PrizeID,
		WinningProjectID: r.WinningProjectID,
		LosingProjectID:  r.LosingProjectID,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append comparison: %w", err)
	}
	return nil
}

// Reset implements Admin.
func (s *BunStore) Reset(ctx context.Context) error {
	defer observe("reset", time.Now())
	return s.InTx(ctx, func(ctx context.Context, tx Store) error {
		idb := tx.(*BunStore).idb
		for i := len(bunModels) - 1; i >= 0; i-- {
			if _, err := idb.NewDelete().Model(bunModels[i]).Where("1 = 1").Exec(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}

// CreatePrize implements Admin.
func (s *BunStore) CreatePrize(ctx context.Context, p *model.Prize) error {
	defer observe("create_prize", time.Now())
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = model.PrizeCategoryGeneral
	}
	row := &prizeRow{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Name:        p.Name,
		Description: p.Description,
		Provider:    p.Provider,
		Category:    string(p.Category),
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create prize: %w", err)
	}
	return nil
}

// CreateJudge implements Admin.
func (s *BunStore) CreateJudge(ctx context.Context, j *model.Judge) error {
	defer observe("create_judge", time.Now())
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	j.UpdatedAt = j.UpdatedAt.UTC()
	exists, err := s.idb.NewSelect().Model((*judgeRow)(nil)).Where("external_id = ?", j.ExternalID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("create judge: %w", err)
	}
	if exists {
		return fmt.Errorf("judge %q: %w", j.ExternalID, ErrAlreadyExists)
	}
	row := &judgeRow{
		ID:            j.ID,
		ExternalID:    j.ExternalID,
		Email:         j.Email,
		Alpha:         j.Alpha,
		Beta:          j.Beta,
		NextProjectID: j.NextProjectID,
		UpdatedAt:     j.UpdatedAt,
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create judge: %w", err)
	}
	return nil
}

// CreateProject implements Admin.
func (s *BunStore) CreateProject(ctx context.Context, p *model.Project) error {
	defer observe("create_project", time.Now())
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := &projectRow{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Name:        p.Name,
		Team:        p.Team,
		Description: p.Description,
		Location:    p.Location,
		TableNumber: p.TableNumber,
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// CreateJudgingInstance implements Admin.
func (s *BunStore) CreateJudgingInstance(ctx context.Context, ji *model.JudgingInstance) error {
	defer observe("create_judging_instance", time.Now())
	if ji.ID == "" {
		ji.ID = uuid.NewString()
	}
	if err := s.mustExist(ctx, (*projectRow)(nil), ji.ProjectID, "project"); err != nil {
		return err
	}
	if err := s.mustExist(ctx, (*prizeRow)(nil), ji.PrizeID, "prize"); err != nil {
		return err
	}
	row := &instanceRow{
		ID:           ji.ID,
		ProjectID:    ji.ProjectID,
		PrizeID:      ji.PrizeID,
		Mu:           ji.Mu,
		Sigma2:       ji.Sigma2,
		TimesJudged:  ji.TimesJudged,
		TimesVisited: ji.TimesVisited,
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("create judging instance: %w", err)
	}
	return nil
}

func (s *BunStore) mustExist(ctx context.Context, m any, id, kind string) error {
	exists, err := s.idb.NewSelect().Model(m).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// UpsertAssignment implements Admin.
func (s *BunStore) UpsertAssignment(ctx context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error) {
	defer observe("upsert_assignment", time.Now())
	if err := s.mustExist(ctx, (*judgeRow)(nil), judgeID, "judge"); err != nil {
		return model.JudgePrizeAssignment{}, err
	}
	if err := s.mustExist(ctx, (*prizeRow)(nil), prizeID, "prize"); err != nil {
		return model.JudgePrizeAssignment{}, err
	}
	row := &assignmentRow{ID: uuid.NewString(), JudgeID: judgeID, PrizeID: prizeID}
	if _, err := s.idb.NewInsert().Model(row).On("CONFLICT (judge_id, prize_id) DO NOTHING").Exec(ctx); err != nil {
		return model.JudgePrizeAssignment{}, fmt.Errorf("upsert assignment: %w", err)
	}
	var existing assignmentRow
	if err := s.idb.NewSelect().Model(&existing).
		Where("judge_id = ?", judgeID).
		Where("prize_id = ?", prizeID).
		Scan(ctx); err != nil {
		return model.JudgePrizeAssignment{}, notFound(err, "assignment of judge %s to prize %s", judgeID, prizeID)
	}
	return existing.toModel(), nil
}

// Prizes implements Admin.
func (s *BunStore) Prizes(ctx context.Context) ([]model.Prize, error) {
	defer observe("prizes", time.Now())
	var rows []prizeRow
	if err := s.idb.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("prizes: %w", err)
	}
	out := make([]model.Prize, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	sortPrizes(out)
	return out, nil
}

// Judges implements Admin.
func (s *BunStore) Judges(ctx context.Context) ([]model.Judge, error) {
	defer observe("judges", time.Now())
	var rows []judgeRow
	if err := s.idb.NewSelect().Model(&rows).Order("external_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("judges: %w", err)
	}
	out := make([]model.Judge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Projects implements Admin.
func (s *BunStore) Projects(ctx context.Context) ([]model.Project, error) {
	defer observe("projects", time.Now())
	var rows []projectRow
	if err := s.idb.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	out := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Comparisons implements Admin.
func (s *BunStore) Comparisons(ctx context.Context) ([]model.ComparisonResult, error) {
	defer observe("comparisons", time.Now())
	var rows []comparisonRow
	if err := s.idb.NewSelect().Model(&rows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("comparisons: %w", err)
	}
	out := make([]model.ComparisonResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
