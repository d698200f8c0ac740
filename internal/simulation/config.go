// Package simulation runs synthetic judging rounds against the engine and
// measures how well the resulting rankings recover hidden project quality.
package simulation

import (
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"
)

// Defaults mirror a mid-sized hackathon.
const (
	DefaultJudges            = 50
	DefaultPrizes            = 10
	DefaultProjects          = 100
	DefaultSubmitProbability = 0.5
	DefaultJudgeAccuracy     = 0.9
	DefaultNoisyAccuracy     = 0.6
	DefaultNoisyJudges       = 0.1
)

// Config holds configuration for a simulation.
type Config struct {
	Judges   int `yaml:"judges" validate:"gt=0"`
	Prizes   int `yaml:"prizes" validate:"gt=0"`
	Projects int `yaml:"projects" validate:"gt=1"`
	// SubmitProbability is the chance a project is entered for each prize.
	SubmitProbability float64 `yaml:"submit_probability" validate:"gt=0,lte=1"`

	JudgeAccuracy      float64 `yaml:"judge_accuracy" validate:"gte=0,lte=1"`
	NoisyAccuracy      float64 `yaml:"noisy_accuracy" validate:"gte=0,lte=1"`
	NoisyJudgeFraction float64 `yaml:"noisy_judge_fraction" validate:"gte=0,lte=1"`

	Workers          int     `yaml:"workers" validate:"gt=0"`
	MaxVotesPerJudge int     `yaml:"max_votes_per_judge" validate:"gte=0"` // 0 runs every judge to exhaustion
	VotesPerSecond   float64 `yaml:"votes_per_second" validate:"gte=0"`    // 0 disables pacing
	Seed             int64   `yaml:"seed"`
}

// DefaultConfig returns the default simulation configuration.
func DefaultConfig() Config {
	return Config{
		Judges:             DefaultJudges,
		Prizes:             DefaultPrizes,
		Projects:           DefaultProjects,
		SubmitProbability:  DefaultSubmitProbability,
		JudgeAccuracy:      DefaultJudgeAccuracy,
		NoisyAccuracy:      DefaultNoisyAccuracy,
		NoisyJudgeFraction: DefaultNoisyJudges,
		Workers:            runtime.NumCPU(),
		Seed:               1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
