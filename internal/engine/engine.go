// Package engine implements solve.Engine on top of the mayfly metaheuristic.
// Each Solve call runs one mayfly optimization round and keeps the best
// point seen across all rounds.
package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/solvectl/internal/solve"
)

// Version is reported through the engine_version property.
const Version = "mayfly v0.1.0"

// Extra parameters understood by SetParam besides the solve limits.
const (
	ParamPopulation = "population"
	ParamSeed       = "seed"
)

// PropMaxViolation is the largest constraint violation of the best point.
const PropMaxViolation = "max_violation"

// feasibilityTolerance is the constraint slack still counted as satisfied.
const feasibilityTolerance = 1e-6

// ErrUnknownParam is returned by SetParam and Property for names the engine
// does not know.
var ErrUnknownParam = errors.New("unknown parameter")

// Engine is a mayfly-backed solve.Engine. It is not safe for concurrent use.
type Engine struct {
	problem   Problem
	objective objectiveFunc
	status    solve.Status

	iterationLimit int
	timeLimit      time.Duration
	population     int
	seed           int64

	rounds      int
	iterations  int
	evaluations int

	best          []float64
	bestObjective float64
	bestViolation float64
	lastObjective float64
	hasBest       bool
}

// New validates problem and returns an engine in StatusNeutral.
func New(problem Problem) (*Engine, error) {
	problem.Normalize()
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	problem.Coefficients = append([]float64(nil), problem.Coefficients...)
	constraints := make([]Constraint, len(problem.Constraints))
	for i, c := range problem.Constraints {
		constraints[i] = Constraint{Coefficients: append([]float64(nil), c.Coefficients...), Bound: c.Bound}
	}
	problem.Constraints = constraints

	return &Engine{
		problem:        problem,
		objective:      objectives[problem.Objective],
		status:         solve.StatusNeutral,
		iterationLimit: problem.Iterations,
		population:     problem.Population,
		seed:           problem.Seed,
	}, nil
}

// Problem returns the normalized problem definition.
func (e *Engine) Problem() Problem {
	return e.problem
}

func (e *Engine) Status() solve.Status {
	return e.status
}

// Best returns the best point found so far and its objective value.
func (e *Engine) Best() ([]float64, float64, bool) {
	if !e.hasBest {
		return nil, 0, false
	}
	return append([]float64(nil), e.best...), e.bestObjective, true
}

// Solve runs one mayfly round. The round's seed is derived from the base
// seed and the round number, so a run is reproducible as a whole. A mayfly
// failure leaves the engine in StatusError and is returned.
func (e *Engine) Solve() (bool, error) {
	e.rounds++

	var deadline time.Time
	if e.timeLimit > 0 {
		deadline = time.Now().Add(e.timeLimit)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		// Past the deadline every candidate is rejected so the round winds down.
		if !deadline.IsZero() && time.Now().After(deadline) {
			return math.Inf(1)
		}
		e.evaluations++
		return e.objective(&e.problem, x) + e.problem.penalty(x)
	}
	config.ProblemSize = e.problem.Dimension
	config.MaxIterations = e.iterationLimit
	config.NPop = e.population
	config.LowerBound = e.problem.Lower
	config.UpperBound = e.problem.Upper
	config.Rand = rand.New(rand.NewSource(e.seed + int64(e.rounds-1)))

	result, err := mayfly.Optimize(config)
	if err != nil {
		e.status = solve.StatusError
		return false, fmt.Errorf("mayfly round %d failed: %w", e.rounds, err)
	}
	e.iterations += e.iterationLimit

	position := append([]float64(nil), result.GlobalBest.Position...)
	objective := e.objective(&e.problem, position)
	violation := e.problem.violation(position)
	e.lastObjective = objective
	e.absorb(position, objective, violation)

	e.status = statusFor(&e.problem, e.rounds, e.bestObjective, e.bestViolation)
	return e.found(), nil
}

// absorb keeps candidate if it beats the current best. Feasible points beat
// infeasible ones; among infeasible points the smaller violation wins.
func (e *Engine) absorb(position []float64, objective, violation float64) {
	if math.IsNaN(objective) {
		return
	}
	if e.hasBest && !better(objective, violation, e.bestObjective, e.bestViolation) {
		return
	}
	e.best = position
	e.bestObjective = objective
	e.bestViolation = violation
	e.hasBest = true
}

func better(obj, viol, bestObj, bestViol float64) bool {
	feasible := viol <= feasibilityTolerance
	bestFeasible := bestViol <= feasibilityTolerance
	switch {
	case feasible && !bestFeasible:
		return true
	case !feasible && bestFeasible:
		return false
	case !feasible:
		return viol < bestViol
	default:
		return obj < bestObj
	}
}

func (e *Engine) found() bool {
	return e.hasBest &&
		e.bestViolation <= feasibilityTolerance &&
		!math.IsInf(e.bestObjective, 0)
}

// statusFor maps the best point after rounds to an engine status.
func statusFor(p *Problem, rounds int, objective, violation float64) solve.Status {
	switch {
	case math.IsNaN(objective) || math.IsInf(objective, 1):
		return solve.StatusInfeasibleOrUnbounded
	case objective < -p.UnboundedThreshold:
		return solve.StatusUnbounded
	case violation > feasibilityTolerance:
		if rounds >= p.FeasibilityRounds {
			return solve.StatusInfeasible
		}
		return solve.StatusBounded
	case p.Target != nil:
		if objective <= *p.Target+p.Tolerance {
			return solve.StatusOptimal
		}
		return solve.StatusBounded
	default:
		return solve.StatusFeasible
	}
}

// SetParam sets an engine parameter for the next Solve call.
func (e *Engine) SetParam(name string, value any) error {
	switch name {
	case solve.ParamIterationLimit:
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, n)
		}
		e.iterationLimit = n
	case solve.ParamTimeLimit:
		var d time.Duration
		switch v := value.(type) {
		case float64:
			d = time.Duration(v * float64(time.Second))
		case time.Duration:
			d = v
		default:
			return fmt.Errorf("%s: unsupported type %T", name, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
		e.timeLimit = d
	case ParamPopulation:
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if n < MinPopulation {
			return fmt.Errorf("%s must be at least %d, got %d", name, MinPopulation, n)
		}
		e.population = n
	case ParamSeed:
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		e.seed = int64(n)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return nil
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer, got %g", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

// Property reads a model or run property. Objective properties are nil
// until a round has produced a point.
func (e *Engine) Property(name string) (any, error) {
	switch name {
	case solve.PropEngineVersion:
		return Version, nil
	case solve.PropVariables:
		return e.problem.Dimension, nil
	case solve.PropRows:
		// Objective row plus one row per constraint.
		return len(e.problem.Constraints) + 1, nil
	case solve.PropConstraints:
		return len(e.problem.Constraints), nil
	case solve.PropBestObjective:
		if !e.hasBest {
			return nil, nil
		}
		return e.bestObjective, nil
	case solve.PropLastObjective:
		if e.rounds == 0 {
			return nil, nil
		}
		return e.lastObjective, nil
	case PropMaxViolation:
		if !e.hasBest {
			return nil, nil
		}
		return e.bestViolation, nil
	case solve.PropRounds:
		return e.rounds, nil
	case solve.PropIterations:
		return e.iterations, nil
	case solve.PropEvaluations:
		return e.evaluations, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
}
