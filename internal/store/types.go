package store

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Outcome is the coarse result of a run.
type Outcome string

const (
	// OutcomeSuccess: the engine ended in an optimal or feasible state.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure: an expected "no solution" outcome (infeasible,
	// unbounded, incomplete, interrupted).
	OutcomeFailure Outcome = "failure"
	// OutcomeError: the run broke (engine call, precondition, I/O).
	OutcomeError Outcome = "error"
)

// RunSettings holds the controller settings a run was started with.
type RunSettings struct {
	BasePath         string `json:"basePath"`
	IterationLimit   int    `json:"iterationLimit,omitempty"`
	TimeLimit        string `json:"timeLimit,omitempty"`
	ProgressInterval int    `json:"progressInterval"`
	Policies         string `json:"policies,omitempty"` // e.g. "rounds=10,convergence=5"
	Population       int    `json:"population"`
	Seed             int64  `json:"seed"`
}

// RunRecord is the persisted summary of one controller execution.
type RunRecord struct {
	// RunID is the unique identifier for this run
	RunID string `json:"runId"`

	// Problem is the problem name, Objective the objective function it used
	Problem   string `json:"problem"`
	Objective string `json:"objective"`

	Outcome Outcome `json:"outcome"`

	// Reason is the failure reason for OutcomeFailure (e.g. "infeasible")
	Reason string `json:"reason,omitempty"`

	// Status is the engine status the run ended in
	Status string `json:"status"`

	// Iterations is the iteration number the controller stopped at
	Iterations int `json:"iterations"`

	// BestObjective and BestPosition describe the best point found, if any
	BestObjective *float64  `json:"bestObjective,omitempty"`
	BestPosition  []float64 `json:"bestPosition,omitempty"`

	// Error is the error text for OutcomeFailure and OutcomeError
	Error string `json:"error,omitempty"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	Settings RunSettings `json:"settings"`
}

// RunInfo is the listing view of a RunRecord without the solution vector.
type RunInfo struct {
	RunID         string    `json:"runId"`
	Problem       string    `json:"problem"`
	Outcome       Outcome   `json:"outcome"`
	Status        string    `json:"status"`
	Iterations    int       `json:"iterations"`
	BestObjective *float64  `json:"bestObjective,omitempty"`
	EndTime       time.Time `json:"endTime"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRunRecord starts a record for a run beginning now.
func NewRunRecord(runID, problem, objective string, settings RunSettings) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		Problem:   problem,
		Objective: objective,
		StartTime: time.Now(),
		Settings:  settings,
	}
}

// Duration is the wall-clock time the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// ToInfo converts a full RunRecord to RunInfo.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:         r.RunID,
		Problem:       r.Problem,
		Outcome:       r.Outcome,
		Status:        r.Status,
		Iterations:    r.Iterations,
		BestObjective: r.BestObjective,
		EndTime:       r.EndTime,
	}
}

// Validate checks that a finished record is complete enough to persist.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if _, err := uuid.Parse(r.RunID); err != nil {
		return &ValidationError{Field: "RunID", Reason: "must be a UUID"}
	}
	switch r.Outcome {
	case OutcomeSuccess:
		if r.Error != "" {
			return &ValidationError{Field: "Error", Reason: "must be empty for a successful run"}
		}
	case OutcomeFailure:
		if r.Reason == "" {
			return &ValidationError{Field: "Reason", Reason: "cannot be empty for a failed run"}
		}
	case OutcomeError:
		if r.Error == "" {
			return &ValidationError{Field: "Error", Reason: "cannot be empty for an errored run"}
		}
	default:
		return &ValidationError{Field: "Outcome", Reason: "unknown outcome " + string(r.Outcome)}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if r.BestObjective != nil && math.IsNaN(*r.BestObjective) {
		return &ValidationError{Field: "BestObjective", Reason: "cannot be NaN"}
	}
	if r.StartTime.IsZero() {
		return &ValidationError{Field: "StartTime", Reason: "cannot be zero"}
	}
	if r.EndTime.Before(r.StartTime) {
		return &ValidationError{Field: "EndTime", Reason: "cannot be before StartTime"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
