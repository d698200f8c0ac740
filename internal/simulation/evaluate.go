package simulation

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/okian/jury/internal/domain/model"
)

// Ranker returns the ranking of a prize.
type Ranker interface {
	TopProjects(ctx context.Context, prizeID string, limit int) ([]model.RankedInstance, error)
}

// PrizeReport measures how well one prize's ranking recovers hidden quality.
type PrizeReport struct {
	PrizeID string `yaml:"prize_id"`
	Name    string `yaml:"name"`
	Entries int    `yaml:"entries"`
	// KendallTau is the rank correlation between the engine's mu and hidden
	// quality. 1 is a perfect ranking.
	KendallTau float64 `yaml:"kendall_tau"`
	// TopCorrect reports whether the truly best project ranks first.
	TopCorrect bool   `yaml:"top_correct"`
	Leader     string `yaml:"leader,omitempty"`
}

// Report is the outcome of a simulation.
type Report struct {
	Config         Config        `yaml:"config"`
	Stats          Stats         `yaml:"stats"`
	Prizes         []PrizeReport `yaml:"prizes"`
	MeanKendallTau float64       `yaml:"mean_kendall_tau"`
	TopCorrect     int           `yaml:"top_correct"`
}

// Evaluate compares the engine's ranking of every prize with the hidden
// quality of the world. Prizes with fewer than two entries are skipped.
func Evaluate(ctx context.Context, ranker Ranker, w *World) ([]PrizeReport, error) {
	reports := make([]PrizeReport, 0, len(w.Prizes))
	for _, prize := range w.Prizes {
		ranked, err := ranker.TopProjects(ctx, prize.ID, 0)
		if err != nil {
			return nil, fmt.Errorf("evaluate prize %s: %w", prize.ID, err)
		}
		if len(ranked) < 2 {
			continue
		}
		quality := w.Quality[prize.ID]
		mus := make([]float64, len(ranked))
		truth := make([]float64, len(ranked))
		for i, r := range ranked {
			mus[i] = r.Mu
			truth[i] = quality[r.ProjectID]
		}
		reports = append(reports, PrizeReport{
			PrizeID:    prize.ID,
			Name:       prize.Name,
			Entries:    len(ranked),
			KendallTau: stat.Kendall(mus, truth, nil),
			TopCorrect: ranked[0].ProjectID == best(quality),
			Leader:     ranked[0].Project.Name,
		})
	}
	return reports, nil
}

// best returns the project with the highest hidden quality.
func best(quality map[string]float64) string {
	ids := make([]string, 0, len(quality))
	for id := range quality {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var top string
	for _, id := range ids {
		if top == "" || quality[id] > quality[top] {
			top = id
		}
	}
	return top
}

// NewReport summarises a run and its evaluation.
func NewReport(cfg Config, stats Stats, prizes []PrizeReport) Report {
	r := Report{Config: cfg, Stats: stats, Prizes: prizes}
	if len(prizes) == 0 {
		return r
	}
	taus := make([]float64, len(prizes))
	for i, p := range prizes {
		taus[i] = p.KendallTau
		if p.TopCorrect {
			r.TopCorrect++
		}
	}
	r.MeanKendallTau = stat.Mean(taus, nil)
	return r
}

// WriteYAML writes the report as YAML.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return enc.Close()
}
