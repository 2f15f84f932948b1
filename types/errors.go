package types

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed querier configuration. It is raised at
// construction time and is never retryable.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Source, e.Reason)
}

// ExtractionError reports a row that cannot produce an offset, usually a
// missing or null watermark column.
type ExtractionError struct {
	Source string
	Column string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract offset column[%s] for %s: %s", e.Column, e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a database failure while connecting, preparing,
// executing or iterating. The committed offset is untouched and the poll may be
// retried.
type ExecutionError struct {
	Source string
	Op     string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to %s for %s: %s", e.Op, e.Source, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an execution fault
func IsRetryable(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
