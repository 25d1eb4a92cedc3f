package solve

import (
	"errors"
	"fmt"
)

// Reason names one of the expected "no usable solution" outcomes.
type Reason int

const (
	ReasonUnbounded Reason = iota + 1
	ReasonInfeasible
	ReasonUnboundedOrInfeasible
	ReasonIncomplete
	ReasonInterrupted
)

func (r Reason) String() string {
	switch r {
	case ReasonUnbounded:
		return "unbounded"
	case ReasonInfeasible:
		return "infeasible"
	case ReasonUnboundedOrInfeasible:
		return "unbounded_or_infeasible"
	case ReasonIncomplete:
		return "incomplete"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Operation names attached to failures.
const (
	OpValidateContinuable = "validate_continuable"
	OpValidateTerminal    = "validate_terminal"
	OpSetParam            = "set_param"
	OpSolve               = "solve"
)

// Failure is returned by Execute when the run finished without a usable
// solution. It is an expected outcome, not a bug: callers may adjust
// settings and try again.
//
// Use errors.Is(err, ErrInfeasible) and friends to test for a reason, or
// errors.As to get the iteration the failure was detected at.
type Failure struct {
	Reason    Reason
	Iteration int
	Op        string
}

func (f *Failure) Error() string {
	if f.Iteration == 0 {
		return "solve failed: " + f.Reason.String()
	}
	return fmt.Sprintf("solve failed at iteration %d (%s): %s", f.Iteration, f.Op, f.Reason)
}

// Is matches another *Failure with the same reason, ignoring context.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Reason == f.Reason
}

var (
	ErrUnbounded             = &Failure{Reason: ReasonUnbounded}
	ErrInfeasible            = &Failure{Reason: ReasonInfeasible}
	ErrUnboundedOrInfeasible = &Failure{Reason: ReasonUnboundedOrInfeasible}
	ErrIncomplete            = &Failure{Reason: ReasonIncomplete}
	ErrInterrupted           = &Failure{Reason: ReasonInterrupted}
)

// IsFailure reports whether err carries one of the five failure outcomes.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// PreconditionError reports a controller or engine handle that was reused.
type PreconditionError struct {
	Reason string
}

// ErrPrecondition matches any *PreconditionError.
var ErrPrecondition = &PreconditionError{}

func (e *PreconditionError) Error() string {
	if e.Reason == "" {
		return "precondition violated"
	}
	return "precondition violated: " + e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	_, ok := target.(*PreconditionError)
	return ok
}

// ConfigError reports invalid settings found while copying a Config.
type ConfigError struct {
	Field  string
	Reason string
}

// ErrConfig matches any *ConfigError.
var ErrConfig = &ConfigError{}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration"
	}
	return "invalid configuration: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// EngineCallError wraps an unexpected low-level error from the engine.
// The run is aborted and not retried.
type EngineCallError struct {
	Op        string
	Iteration int
	Err       error
}

// ErrEngineCall matches any *EngineCallError.
var ErrEngineCall = &EngineCallError{}

func (e *EngineCallError) Error() string {
	return fmt.Sprintf("engine call %s failed at iteration %d: %v", e.Op, e.Iteration, e.Err)
}

func (e *EngineCallError) Unwrap() error {
	return e.Err
}

func (e *EngineCallError) Is(target error) bool {
	_, ok := target.(*EngineCallError)
	return ok
}

// InvariantViolation is the panic value raised when an engine reports a
// status outside the known set or its internal error state. It signals a
// bug and is never recovered by this package.
type InvariantViolation struct {
	Status Status
	Op     string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in %s: unexpected engine status %s", v.Op, v.Status)
}
