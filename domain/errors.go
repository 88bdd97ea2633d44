package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing task, project or user at persistence time.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict signals an etag mismatch on a conditional update.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// PartialFailureError reports a batch reorder where some tuples were applied
// and later ones failed. Clients must treat their local view as suspect and
// re-fetch the full task list rather than repair piecemeal.
type PartialFailureError struct {
	Applied int
	Failed  []string
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("batch reorder partially applied: %d applied, failed ids [%s]: %v",
		e.Applied, strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
