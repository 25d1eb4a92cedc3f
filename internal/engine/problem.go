package engine

import (
	"fmt"
	"math"
)

// Objective names a built-in objective function.
type Objective string

const (
	ObjectiveSphere     Objective = "sphere"
	ObjectiveRastrigin  Objective = "rastrigin"
	ObjectiveRosenbrock Objective = "rosenbrock"
	ObjectiveAckley     Objective = "ackley"
	ObjectiveLinear     Objective = "linear"
)

// Defaults applied by Problem.Normalize.
const (
	DefaultPopulation         = 20
	DefaultIterations         = 100
	DefaultFeasibilityRounds  = 1
	DefaultUnboundedThreshold = 1e20
	DefaultPenaltyWeight      = 1e6

	// MinPopulation is the smallest population mayfly accepts.
	MinPopulation = 20
)

// Constraint is a linear inequality Coefficients·x <= Bound.
type Constraint struct {
	Coefficients []float64 `yaml:"coefficients" json:"coefficients"`
	Bound        float64   `yaml:"bound" json:"bound"`
}

// Problem describes a box-bounded minimization problem. Constraints are
// handled with a quadratic penalty on their violation.
type Problem struct {
	Name         string       `yaml:"name,omitempty" json:"name,omitempty"`
	Objective    Objective    `yaml:"objective" json:"objective"`
	Dimension    int          `yaml:"dimension" json:"dimension"`
	Lower        float64      `yaml:"lower" json:"lower"`
	Upper        float64      `yaml:"upper" json:"upper"`
	Coefficients []float64    `yaml:"coefficients,omitempty" json:"coefficients,omitempty"` // linear objective only
	Target       *float64     `yaml:"target,omitempty" json:"target,omitempty"`
	Tolerance    float64      `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Constraints  []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`

	PenaltyWeight      float64 `yaml:"penalty_weight,omitempty" json:"penaltyWeight,omitempty"`
	Population         int     `yaml:"population,omitempty" json:"population,omitempty"`
	Seed               int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
	Iterations         int     `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	FeasibilityRounds  int     `yaml:"feasibility_rounds,omitempty" json:"feasibilityRounds,omitempty"`
	UnboundedThreshold float64 `yaml:"unbounded_threshold,omitempty" json:"unboundedThreshold,omitempty"`
}

// Normalize fills zero-valued tuning fields with their defaults.
func (p *Problem) Normalize() {
	if p.Population == 0 {
		p.Population = DefaultPopulation
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultIterations
	}
	if p.FeasibilityRounds == 0 {
		p.FeasibilityRounds = DefaultFeasibilityRounds
	}
	if p.UnboundedThreshold == 0 {
		p.UnboundedThreshold = DefaultUnboundedThreshold
	}
	if p.PenaltyWeight == 0 {
		p.PenaltyWeight = DefaultPenaltyWeight
	}
}

// Validate checks the problem definition. Call Normalize first.
func (p *Problem) Validate() error {
	if _, ok := objectives[p.Objective]; !ok {
		return &ProblemError{Field: "objective", Reason: fmt.Sprintf("unknown objective %q", p.Objective)}
	}
	if p.Dimension <= 0 {
		return &ProblemError{Field: "dimension", Reason: "must be positive"}
	}
	if p.Objective == ObjectiveRosenbrock && p.Dimension < 2 {
		return &ProblemError{Field: "dimension", Reason: "rosenbrock needs at least 2 dimensions"}
	}
	if math.IsNaN(p.Lower) || math.IsNaN(p.Upper) || p.Lower >= p.Upper {
		return &ProblemError{Field: "bounds", Reason: fmt.Sprintf("lower %g must be below upper %g", p.Lower, p.Upper)}
	}
	if p.Objective == ObjectiveLinear && len(p.Coefficients) != p.Dimension {
		return &ProblemError{Field: "coefficients", Reason: fmt.Sprintf("expected %d coefficients, got %d", p.Dimension, len(p.Coefficients))}
	}
	if p.Tolerance < 0 {
		return &ProblemError{Field: "tolerance", Reason: "cannot be negative"}
	}
	for i, c := range p.Constraints {
		if len(c.Coefficients) != p.Dimension {
			return &ProblemError{
				Field:  fmt.Sprintf("constraints[%d]", i),
				Reason: fmt.Sprintf("expected %d coefficients, got %d", p.Dimension, len(c.Coefficients)),
			}
		}
	}
	if p.PenaltyWeight < 0 {
		return &ProblemError{Field: "penalty_weight", Reason: "cannot be negative"}
	}
	if p.Population < MinPopulation {
		return &ProblemError{Field: "population", Reason: fmt.Sprintf("must be at least %d", MinPopulation)}
	}
	if p.Iterations <= 0 {
		return &ProblemError{Field: "iterations", Reason: "must be positive"}
	}
	if p.FeasibilityRounds <= 0 {
		return &ProblemError{Field: "feasibility_rounds", Reason: "must be positive"}
	}
	if p.UnboundedThreshold <= 0 {
		return &ProblemError{Field: "unbounded_threshold", Reason: "must be positive"}
	}
	return nil
}

// ProblemError reports an invalid problem field.
type ProblemError struct {
	Field  string
	Reason string
}

func (e *ProblemError) Error() string {
	return "invalid problem: " + e.Field + " " + e.Reason
}

// violation returns the largest amount by which x exceeds any constraint.
func (p *Problem) violation(x []float64) float64 {
	var worst float64
	for _, c := range p.Constraints {
		if over := dot(c.Coefficients, x) - c.Bound; over > worst {
			worst = over
		}
	}
	return worst
}

// penalty sums the squared violation of every constraint.
func (p *Problem) penalty(x []float64) float64 {
	var sum float64
	for _, c := range p.Constraints {
		if over := dot(c.Coefficients, x) - c.Bound; over > 0 {
			sum += over * over
		}
	}
	return p.PenaltyWeight * sum
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
