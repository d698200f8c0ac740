// Package model contains domain models passed between layers.
package model

import "time"

// PrizeCategory distinguishes prizes every judge covers from sponsor prizes
// with dedicated judges.
type PrizeCategory string

// Prize categories.
const (
	PrizeCategoryGeneral PrizeCategory = "general"
	PrizeCategorySponsor PrizeCategory = "sponsor"
)

// Project is a hackathon submission.
type Project struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Team        string `json:"team"`
	Description string `json:"description"`
	Location    string `json:"location"`
	TableNumber *int   `json:"table_number,omitempty"` // nil until a table is assigned; unlocated projects are never served
}

// Located reports whether the project has a table and can be visited.
func (p Project) Located() bool { return p.TableNumber != nil }

// Prize is a category projects are submitted for and judged in.
type Prize struct {
	ID          string        `json:"id"`
	ExternalID  string        `json:"external_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Provider    string        `json:"provider,omitempty"`
	Category    PrizeCategory `json:"category"`
}

// JudgingInstance is the quality belief of one project for one prize.
type JudgingInstance struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	PrizeID      string  `json:"prize_id"`
	Mu           float64 `json:"mu"`
	Sigma2       float64 `json:"sigma2"`
	TimesJudged  int     `json:"times_judged"`
	TimesVisited int     `json:"times_visited"`
}

// Judge carries the reliability belief of a judge and their current project.
type Judge struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Email         string    `json:"email"`
	Alpha         float64   `json:"alpha"`
	Beta          float64   `json:"beta"`
	NextProjectID *string   `json:"next_project_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JudgePrizeAssignment makes a judge responsible for a prize. LeadingProjectID
// is nil until the judge has seen a project entered for the prize.
type JudgePrizeAssignment struct {
	ID               string
	JudgeID          string
	PrizeID          string
	LeadingProjectID *string
}

// HasLeader reports whether the assignment left the NO_LEADER state.
func (a JudgePrizeAssignment) HasLeader() bool { return a.LeadingProjectID != nil }

// IgnoredProject excludes a project from a judge's future candidates.
type IgnoredProject struct {
	JudgeID   string
	ProjectID string
}

// ComparisonResult is the write-once audit row of a single vote.
type ComparisonResult struct {
	ID               string
	JudgeID          string
	PrizeID          string
	WinningProjectID string
	LosingProjectID  string
	CreatedAt        time.Time
}

// Comparison is one pairwise vote submitted by a judge.
type Comparison struct {
	PrizeID  string `json:"prize_id" validate:"required"`
	WinnerID string `json:"winner_id" validate:"required"`
	LoserID  string `json:"loser_id" validate:"required,nefield=WinnerID"`
}
