package inventory

import (
	"errors"
	"fmt"
)

// ErrEmptyCode indicates a lookup was attempted without a decoded code.
var ErrEmptyCode = errors.New("inventory: empty item code")

// NotFoundError indicates a decoded code resolved to no inventory record.
// Recoverable; the operator should re-scan.
type NotFoundError struct {
	Code       string
	BranchCode string
}

func (e *NotFoundError) Error() string {
	if e.BranchCode != "" {
		return fmt.Sprintf("inventory: item %q not found at branch %s", e.Code, e.BranchCode)
	}
	return fmt.Sprintf("inventory: item %q not found", e.Code)
}

// RateLimitError indicates the audit store rejected a submission because the
// same item was submitted again inside its cooldown window. Recoverable; the
// caller should wait and retry.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("inventory: submission rate limited: %s", e.Message)
	}
	return "inventory: submission rate limited"
}

// NetworkError wraps a transport-level failure on any remote call. The agent
// never auto-retries; the caller retries manually.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("inventory: %s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError carries a non-2xx response that is neither a not-found nor a
// rate-limit rejection.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("inventory: %s: remote error %d: %s", e.Op, e.Status, e.Message)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
