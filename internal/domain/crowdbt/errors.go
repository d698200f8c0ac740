package crowdbt

import "errors"

// ErrNumericDegeneracy is returned when an update produces a belief that
// cannot be persisted: non-finite values or non-positive Beta parameters.
var ErrNumericDegeneracy = errors.New("numeric degeneracy in rating update")
