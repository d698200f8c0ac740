// Package repository defines the judging store interfaces, errors and their
// in-memory and SQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/jury/internal/domain/model"
)

// InstanceRef names the judging instance of a project for a prize.
type InstanceRef struct {
	PrizeID   string
	ProjectID string
}

// Store provides read/write access to the judging state. Implementations
// serialise concurrent read-modify-write of the same rows inside InTx.
type Store interface {
	// JudgeByExternalID resolves the identity supplied by the auth layer.
	// Returns ErrNotFound if no judge has that external ID.
	JudgeByExternalID(ctx context.Context, externalID string) (model.Judge, error)
	// Judge returns a judge by ID. Inside a transaction the row is locked
	// where the backend supports it.
	Judge(ctx context.Context, judgeID string) (model.Judge, error)
	// JudgeSession returns the judge with assignments, leaders, ignore list
	// and current project. Projects carry only instances of the judge's prizes.
	JudgeSession(ctx context.Context, judgeID string) (model.JudgeSession, error)
	// CandidateProjects returns located projects not in excludeIDs, each with
	// its judging instances restricted to prizeIDs.
	CandidateProjects(ctx context.Context, excludeIDs, prizeIDs []string) ([]model.ProjectWithInstances, error)
	// BusyProjectIDs returns the current projects of judges other than
	// excludeJudgeID updated at or after since.
	BusyProjectIDs(ctx context.Context, since time.Time, excludeJudgeID string) ([]string, error)
	Prize(ctx context.Context, prizeID string) (model.Prize, error)
	// JudgingInstance returns the instance of projectID for prizeID. Inside a
	// transaction the row is locked where the backend supports it.
	JudgingInstance(ctx context.Context, prizeID, projectID string) (model.JudgingInstance, error)
	// LockJudgingInstances locks the named instances in (prize, project)
	// order where the backend supports row locks. Missing instances are
	// skipped. Outside a transaction it does nothing.
	LockJudgingInstances(ctx context.Context, refs []InstanceRef) error
	// RankedInstances returns the instances of a prize ordered by mu desc,
	// sigma2 asc, then project name.
	RankedInstances(ctx context.Context, prizeID string) ([]model.RankedInstance, error)
	// JudgePrizes returns the prizes a judge is assigned to.
	JudgePrizes(ctx context.Context, judgeID string) ([]model.Prize, error)
	// Assignment returns the assignment of judgeID to prizeID.
	Assignment(ctx context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error)

	// AssignNextProject sets (or clears, when projectID is nil) the judge's
	// current project and marks the judge active at the given time.
	AssignNextProject(ctx context.Context, judgeID string, projectID *string, at time.Time) error
	// AddIgnored appends projectID to the judge's ignore list. Idempotent.
	AddIgnored(ctx context.Context, judgeID, projectID string) error
	// RecordVisit increments timesVisited of the project's instances for prizeIDs.
	RecordVisit(ctx context.Context, projectID string, prizeIDs []string) error
	// SetLeader points an assignment at a new leading project.
	SetLeader(ctx context.Context, assignmentID, projectID string) error
	// UpdateJudgeReliability stores a judge's refitted alpha and beta.
	UpdateJudgeReliability(ctx context.Context, judgeID string, alpha, beta float64, at time.Time) error
	// UpdateJudgingInstance stores mu, sigma2 and timesJudged of an instance.
	UpdateJudgingInstance(ctx context.Context, ji model.JudgingInstance) error
	// AppendComparison writes an audit row. The ID is generated when empty.
	AppendComparison(ctx context.Context, r model.ComparisonResult) error

	// InTx runs fn atomically. Changes made through tx are discarded when fn
	// returns an error. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Admin seeds and inspects the judging state. It backs the prize sync, the
// simulation harness and tests.
type Admin interface {
	// Reset removes every row.
	Reset(ctx context.Context) error
	// CreatePrize inserts a prize, generating its ID when empty.
	CreatePrize(ctx context.Context, p *model.Prize) error
	// CreateJudge inserts a judge, generating its ID when empty.
	CreateJudge(ctx context.Context, j *model.Judge) error
	// CreateProject inserts a project, generating its ID when empty.
	CreateProject(ctx context.Context, p *model.Project) error
	// CreateJudgingInstance enters a project for a prize.
	CreateJudgingInstance(ctx context.Context, ji *model.JudgingInstance) error
	// UpsertAssignment assigns a judge to a prize, returning the existing
	// assignment when there is one.
	UpsertAssignment(ctx context.Context, judgeID, prizeID string) (model.JudgePrizeAssignment, error)

	Prizes(ctx context.Context) ([]model.Prize, error)
	Judges(ctx context.Context) ([]model.Judge, error)
	Projects(ctx context.Context) ([]model.Project, error)
	Comparisons(ctx context.Context) ([]model.ComparisonResult, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	Store
	Admin
	Close() error
}
