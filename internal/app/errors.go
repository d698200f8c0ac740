package service

import "errors"

// Sentinel errors returned by the service. Store errors such as
// repository.ErrNotFound and crowdbt.ErrNumericDegeneracy are wrapped, not
// replaced.
var (
	ErrInvalidComparison = errors.New("invalid comparison")
	ErrInvalidProject    = errors.New("invalid project")
	// ErrBatchInFlight reports a retry of a batch whose first attempt has
	// not finished. The client should retry later.
	ErrBatchInFlight = errors.New("comparison batch in flight")
)
