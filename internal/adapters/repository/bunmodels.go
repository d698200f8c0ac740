package repository

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/jury/internal/domain/model"
)

type projectRow struct {
	bun.BaseModel `bun:"table:projects"`

	ID          string `bun:"id,pk"`
	ExternalID  string `bun:"external_id"`
	Name        string `bun:"name"`
	Team        string `bun:"team"`
	Description string `bun:"description"`
	Location    string `bun:"location"`
	TableNumber *int   `bun:"table_number"`
}

func (r projectRow) toModel() model.Project {
	return model.Project{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Team:        r.Team,
		Description: r.Description,
		Location:    r.Location,
		TableNumber: r.TableNumber,
	}
}

type prizeRow struct {
	bun.BaseModel `bun:"table:prizes"`

	ID          string `bun:"id,pk"`
	ExternalID  string `bun:"external_id"`
	Name        string `bun:"name"`
	Description string `bun:"description"`
	Provider    string `bun:"provider"`
	Category    string `bun:"category"`
}

func (r prizeRow) toModel() model.Prize {
	return model.Prize{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Description: r.Description,
		Provider:    r.Provider,
		Category:    model.PrizeCategory(r.Category),
	}
}

type instanceRow struct {
	bun.BaseModel `bun:"table:judging_instances"`

	ID           string  `bun:"id,pk"`
	ProjectID    string  `bun:"project_id,notnull"`
	PrizeID      string  `bun:"prize_id,notnull"`
	Mu           float64 `bun:"mu"`
	Sigma2       float64 `bun:"sigma2"`
	TimesJudged  int     `bun:"times_judged"`
	TimesVisited int     `bun:"times_visited"`
}

func (r instanceRow) toModel() model.JudgingInstance {
	return model.JudgingInstance{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		PrizeID:      r.PrizeID,
		Mu:           r.Mu,
		Sigma2:       r.Sigma2,
		TimesJudged:  r.TimesJudged,
		TimesVisited: r.TimesVisited,
	}
}

type judgeRow struct {
	bun.BaseModel `bun:"table:judges"`

	ID            string    `bun:"id,pk"`
	ExternalID    string    `bun:"external_id,notnull"`
	Email         string    `bun:"email"`
	Alpha         float64   `bun:"alpha"`
	Beta          float64   `bun:"beta"`
	NextProjectID *string   `bun:"next_project_id"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (r judgeRow) toModel() model.Judge {
	return model.Judge{
		ID:            r.ID,
		ExternalID:    r.ExternalID,
		Email:         r.Email,
		Alpha:         r.Alpha,
		Beta:          r.Beta,
		NextProjectID: r.NextProjectID,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type assignmentRow struct {
	bun.BaseModel `bun:"table:judge_prize_assignments"`

	ID               string  `bun:"id,pk"`
	JudgeID          string  `bun:"judge_id,notnull"`
	PrizeID          string  `bun:"prize_id,notnull"`
	LeadingProjectID *string `bun:"leading_project_id"`
}

func (r assignmentRow) toModel() model.JudgePrizeAssignment {
	return model.JudgePrizeAssignment{
		ID:               r.ID,
		JudgeID:          r.JudgeID,
		PrizeID:          r.PrizeID,
		LeadingProjectID: r.LeadingProjectID,
	}
}

type ignoredRow struct {
	bun.BaseModel `bun:"table:ignored_projects"`

	JudgeID   string `bun:"judge_id,pk"`
	ProjectID string `bun:"project_id,pk"`
}

type comparisonRow struct {
	bun.BaseModel `bun:"table:comparison_results"`

	ID               string    `bun:"id,pk"`
	JudgeID          string    `bun:"judge_id,notnull"`
	PrizeID          string    `bun:"prize_id,notnull"`
	WinningProjectID string    `bun:"winning_project_id,notnull"`
	LosingProjectID  string    `bun:"losing_project_id,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

func (r comparisonRow) toModel() model.ComparisonResult {
	return model.ComparisonResult{
		ID:               r.ID,
		JudgeID:          r.JudgeID,
		PrizeID:          r.PrizeID,
		WinningProjectID: r.WinningProjectID,
		LosingProjectID:  r.LosingProjectID,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

var bunModels = []any{
	(*projectRow)(nil),
	(*prizeRow)(nil),
	(*instanceRow)(nil),
	(*judgeRow)(nil),
	(*assignmentRow)(nil),
	(*ignoredRow)(nil),
	(*comparisonRow)(nil),
}

type bunIndex struct {
	model   any
	name    string
	columns []string
}

var bunUniqueIndexes = []bunIndex{
	{(*instanceRow)(nil), "judging_instances_prize_project_idx", []string{"prize_id", "project_id"}},
	{(*assignmentRow)(nil), "judge_prize_assignments_judge_prize_idx", []string{"judge_id", "prize_id"}},
	{(*judgeRow)(nil), "judges_external_id_idx", []string{"external_id"}},
}
