package solve

import "fmt"

// Status is the engine's own indicator of solve progress or outcome.
// The set of known codes is closed; anything else reported by an engine is a bug.
type Status int

const (
	// StatusNeutral is the initial code: no solve attempted yet.
	StatusNeutral Status = iota
	// StatusBounded means the engine has an incumbent but has not finished.
	StatusBounded
	StatusOptimal
	// StatusFeasible is a usable, not proven optimal, solution.
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
	StatusInfeasibleOrUnbounded
	// StatusError is the engine's internal error state.
	StatusError
)

var statusNames = map[Status]string{
	StatusNeutral:               "neutral",
	StatusBounded:               "bounded",
	StatusOptimal:               "optimal",
	StatusFeasible:              "feasible",
	StatusInfeasible:            "infeasible",
	StatusUnbounded:             "unbounded",
	StatusInfeasibleOrUnbounded: "infeasible_or_unbounded",
	StatusError:                 "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}
