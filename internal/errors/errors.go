// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure kinds that abort an extraction run.
var (
	// ErrUnauthorized is returned when the API rejects the credential (401/403).
	ErrUnauthorized = errors.New("github: unauthorized")

	// ErrNotFound is returned when the repository does not exist or is not visible to the credential.
	ErrNotFound = errors.New("github: not found")

	// ErrRateLimited is returned when the API quota is exhausted.
	ErrRateLimited = errors.New("github: rate limit exceeded")
)

// ErrInvalidRepoFormat is returned when a repository identifier is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// RateLimitError carries the reset time of an exhausted quota.
type RateLimitError struct {
	ResetAt time.Time
	Limit   int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// APIError is a non-2xx response from the API that is not covered by a sentinel.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: github API error %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel kind (if any) so callers can use errors.Is.
func (e *APIError) Unwrap() error { return e.Kind }

// IsRateLimited reports whether err was caused by quota exhaustion.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnauthorized reports whether err was caused by a rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err was caused by a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
