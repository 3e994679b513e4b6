package agent

import (
	"errors"
	"fmt"

	"github.com/askbridge/askbridge/internal/ratelimit"
)

var (
	// ErrEmptyQuestion rejects blank input before any pipeline runs.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrPipeline wraps failures inside a pipeline so the API can map them
	// to a generic server error.
	ErrPipeline = errors.New("pipeline failed")
)

// QuotaError is returned when the caller's daily quota is exhausted. It
// carries the quota state so the API can include usage in the 429 body.
type QuotaError struct {
	Info ratelimit.Result
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily interaction limit of %d reached", e.Info.Limit)
}
