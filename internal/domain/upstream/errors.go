// internal/domain/upstream/errors.go

// Package upstream holds the error taxonomy shared by the remote API adapters
// and the call policy that classifies their failures.
package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned by adapters when the remote answers with an empty body
	ErrEmptyResponse = errors.New("upstream: empty response")

	// ErrRetriesExhausted matches RetriesExhaustedError
	ErrRetriesExhausted = errors.New("upstream: retries exhausted")

	// ErrQuotaExceeded is returned when the remote refuses further calls for the day
	ErrQuotaExceeded = errors.New("upstream: quota exceeded")
)

// StatusError is an error reported by the remote with a numeric code
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error %d", e.Code)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

// StatusCode returns the remote's numeric code
func (e *StatusError) StatusCode() int {
	return e.Code
}

// RetriesExhaustedError is returned after the retry budget of a transient failure is spent
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// UnclassifiedError wraps a failure the call policy has no rule for
type UnclassifiedError struct {
	Op  string
	Err error
}

func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("%s: unclassified upstream error: %v", e.Op, e.Err)
}

func (e *UnclassifiedError) Unwrap() error {
	return e.Err
}

// FatalError wraps a failure the call policy must not retry or downgrade
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
