package audit

import (
	"errors"
	"fmt"
)

// ErrNoActiveCount indicates no item has been resolved in this session yet.
var ErrNoActiveCount = errors.New("audit: no active count in session")

// ErrUnknownBranch indicates a branch re-selection did not match any fetched
// candidate.
var ErrUnknownBranch = errors.New("audit: branch not among resolved candidates")

// ValidationError blocks a submission until the operator fixes the input.
// Recoverable; session state is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("audit: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
