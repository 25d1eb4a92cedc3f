package solve

// Class is the coarse classification of an engine status.
type Class int

const (
	Continuable Class = iota
	TerminalSuccess
	TerminalFailure
)

func (c Class) String() string {
	switch c {
	case Continuable:
		return "continuable"
	case TerminalSuccess:
		return "terminal_success"
	case TerminalFailure:
		return "terminal_failure"
	default:
		return "unknown"
	}
}

// Verdict is the result of validating a status. Reason is set only for
// TerminalFailure.
type Verdict struct {
	Class  Class
	Reason Reason
}

// ValidateContinuable classifies a status observed inside the loop. Codes
// that carry no result yet still allow another iteration.
//
// It panics with *InvariantViolation for StatusError and unknown codes.
func ValidateContinuable(s Status) Verdict {
	return classify(s, OpValidateContinuable)
}

// ValidateTerminal classifies the status left when the loop has ended. At
// that point a missing result is a reportable failure (ReasonIncomplete),
// never a silent success.
//
// It panics with *InvariantViolation for StatusError and unknown codes.
func ValidateTerminal(s Status) Verdict {
	return classify(s, OpValidateTerminal)
}

func classify(s Status, op string) Verdict {
	switch s {
	case StatusNeutral, StatusBounded:
		if op == OpValidateContinuable {
			return Verdict{Class: Continuable}
		}
		return Verdict{Class: TerminalFailure, Reason: ReasonIncomplete}
	case StatusOptimal, StatusFeasible:
		return Verdict{Class: TerminalSuccess}
	case StatusInfeasible:
		return Verdict{Class: TerminalFailure, Reason: ReasonInfeasible}
	case StatusUnbounded:
		return Verdict{Class: TerminalFailure, Reason: ReasonUnbounded}
	case StatusInfeasibleOrUnbounded:
		return Verdict{Class: TerminalFailure, Reason: ReasonUnboundedOrInfeasible}
	case StatusError:
		panic(&InvariantViolation{Status: s, Op: op})
	default:
		// Unreachable for a well-behaved engine.
		panic(&InvariantViolation{Status: s, Op: op})
	}
}
