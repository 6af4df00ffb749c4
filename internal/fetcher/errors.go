package fetcher

import (
	"fmt"

	"github.com/quaff-io/quaff/pkg/assembly"
)

// StallError is returned when a range made no progress for the configured
// number of consecutive requests: the server keeps answering with zero
// bytes. It is fatal for that range; whether it is fatal for the run
// depends on whether gap resolution later gets the range unstuck.
type StallError struct {
	Range    assembly.Range
	Attempts int
}

func (e *StallError) Error() string {
	return fmt.Sprintf("fetcher: range %v stalled after %d zero-byte responses", e.Range, e.Attempts)
}

// GapError is returned when gap resolution stops converging: the total
// uncovered size failed to shrink for the configured number of passes.
// It wraps the last per-gap error, typically a *StallError.
type GapError struct {
	Passes    int
	Remaining int64
	Err       error
}

func (e *GapError) Error() string {
	return fmt.Sprintf("fetcher: gap resolution failed after %d passes, %d bytes uncovered", e.Passes, e.Remaining)
}

func (e *GapError) Unwrap() error {
	return e.Err
}

// FailedRange records a worker range that was not fetched during the
// parallel phase and was left for gap resolution.
type FailedRange struct {
	Range assembly.Range
	Err   error
}
