package simulation

import "errors"

// Sentinel errors for simulation runs.
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrNoJudges      = errors.New("no judges prepared")
)
