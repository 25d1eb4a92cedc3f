// Package store persists run records and per-iteration traces.
package store

// Store defines the interface for run record persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveRun atomically saves a record, overwriting any earlier record
	// with the same RunID.
	SaveRun(record *RunRecord) error

	// LoadRun returns ErrNotFound if no record exists for runID.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns all readable records. The slice may be empty.
	ListRuns() ([]*RunRecord, error)

	// DeleteRun removes a run and all its artifacts (record, trace,
	// exports written under the run directory).
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
