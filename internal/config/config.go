// Package config loads run files. A run file describes the problem handed to
// the engine, the controller settings and the continuation policies, in YAML
// or HCL.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/solvectl/internal/engine"
	"github.com/cwbudde/solvectl/internal/solve"
)

// ErrConfigEmpty is returned when a run file has no content.
var ErrConfigEmpty = errors.New("config file is empty")

// File is a decoded run file.
type File struct {
	Run     *RunBlock    `yaml:"run" hcl:"run,block"`
	Problem ProblemBlock `yaml:"problem" hcl:"problem,block"`
	Policy  *PolicyBlock `yaml:"policy" hcl:"policy,block"`

	// dir is the directory of the file, used to resolve relative paths.
	dir string
}

// RunBlock holds controller settings. Durations use time.ParseDuration syntax.
type RunBlock struct {
	BasePath         string `yaml:"base_path" hcl:"base_path,optional"`
	ModelExport      string `yaml:"model_export" hcl:"model_export,optional"`
	ParamsExport     string `yaml:"params_export" hcl:"params_export,optional"`
	SolutionExport   string `yaml:"solution_export" hcl:"solution_export,optional"`
	ProgressInterval int    `yaml:"progress_interval" hcl:"progress_interval,optional"`
	IterationLimit   int    `yaml:"iteration_limit" hcl:"iteration_limit,optional"`
	TimeLimit        string `yaml:"time_limit" hcl:"time_limit,optional"`
}

// ProblemBlock mirrors engine.Problem.
type ProblemBlock struct {
	Name         string            `yaml:"name" hcl:"name,optional"`
	Objective    string            `yaml:"objective" hcl:"objective"`
	Dimension    int               `yaml:"dimension" hcl:"dimension"`
	Lower        float64           `yaml:"lower" hcl:"lower"`
	Upper        float64           `yaml:"upper" hcl:"upper"`
	Coefficients []float64         `yaml:"coefficients" hcl:"coefficients,optional"`
	Target       *float64          `yaml:"target" hcl:"target,optional"`
	Tolerance    float64           `yaml:"tolerance" hcl:"tolerance,optional"`
	Constraints  []ConstraintBlock `yaml:"constraints" hcl:"constraint,block"`

	PenaltyWeight      float64 `yaml:"penalty_weight" hcl:"penalty_weight,optional"`
	Population         int     `yaml:"population" hcl:"population,optional"`
	Seed               int64   `yaml:"seed" hcl:"seed,optional"`
	Iterations         int     `yaml:"iterations" hcl:"iterations,optional"`
	FeasibilityRounds  int     `yaml:"feasibility_rounds" hcl:"feasibility_rounds,optional"`
	UnboundedThreshold float64 `yaml:"unbounded_threshold" hcl:"unbounded_threshold,optional"`
}

// ConstraintBlock is one linear inequality coefficients·x <= bound.
type ConstraintBlock struct {
	Coefficients []float64 `yaml:"coefficients" hcl:"coefficients"`
	Bound        float64   `yaml:"bound" hcl:"bound"`
}

// PolicyBlock selects the continuation policies. With no policy block a run
// makes exactly one solve attempt.
type PolicyBlock struct {
	// Rounds caps the number of iterations
	Rounds int `yaml:"rounds" hcl:"rounds,optional"`

	// Patience and Threshold enable stall detection when Patience > 0
	Patience  int     `yaml:"patience" hcl:"patience,optional"`
	Threshold float64 `yaml:"threshold" hcl:"threshold,optional"`

	// Deadline is a wall-clock budget across all iterations
	Deadline string `yaml:"deadline" hcl:"deadline,optional"`

	// Trace writes a per-iteration trace next to the run record
	Trace bool `yaml:"trace" hcl:"trace,optional"`
}

// ValidationError reports an invalid run file field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + " " + e.Reason
}

// Dir returns the directory the file was loaded from.
func (f *File) Dir() string {
	return f.dir
}

// Validate checks the fields the engine and controller do not check
// themselves.
func (f *File) Validate() error {
	if f.Problem.Objective == "" {
		return &ValidationError{Field: "problem.objective", Reason: "is required"}
	}
	if f.Run != nil && f.Run.TimeLimit != "" {
		if _, err := parseDuration(f.Run.TimeLimit); err != nil {
			return &ValidationError{Field: "run.time_limit", Reason: err.Error()}
		}
	}
	if p := f.Policy; p != nil {
		if p.Rounds < 0 {
			return &ValidationError{Field: "policy.rounds", Reason: "cannot be negative"}
		}
		if p.Patience < 0 {
			return &ValidationError{Field: "policy.patience", Reason: "cannot be negative"}
		}
		if p.Threshold < 0 {
			return &ValidationError{Field: "policy.threshold", Reason: "cannot be negative"}
		}
		if p.Deadline != "" {
			if _, err := parseDuration(p.Deadline); err != nil {
				return &ValidationError{Field: "policy.deadline", Reason: err.Error()}
			}
		}
	}
	return nil
}

// ToProblem converts the problem block for engine.New.
func (f *File) ToProblem() engine.Problem {
	b := f.Problem
	p := engine.Problem{
		Name:               b.Name,
		Objective:          engine.Objective(b.Objective),
		Dimension:          b.Dimension,
		Lower:              b.Lower,
		Upper:              b.Upper,
		Coefficients:       b.Coefficients,
		Target:             b.Target,
		Tolerance:          b.Tolerance,
		PenaltyWeight:      b.PenaltyWeight,
		Population:         b.Population,
		Seed:               b.Seed,
		Iterations:         b.Iterations,
		FeasibilityRounds:  b.FeasibilityRounds,
		UnboundedThreshold: b.UnboundedThreshold,
	}
	for _, c := range b.Constraints {
		p.Constraints = append(p.Constraints, engine.Constraint{Coefficients: c.Coefficients, Bound: c.Bound})
	}
	return p
}

// ToConfig builds the controller configuration from the run block. The
// delegate is left unset. defaultBase is used when the file names no base
// path.
func (f *File) ToConfig(defaultBase string) (*solve.Config, error) {
	cfg := solve.NewConfig().SetBasePath(defaultBase)
	r := f.Run
	if r == nil {
		return cfg, nil
	}

	if r.BasePath != "" {
		cfg.SetBasePath(r.BasePath)
	}
	if r.ModelExport != "" {
		cfg.SetModelExportPath(r.ModelExport)
	}
	if r.ParamsExport != "" {
		cfg.SetParamsExportPath(r.ParamsExport)
	}
	if r.SolutionExport != "" {
		cfg.SetSolutionExportPath(r.SolutionExport)
	}
	if r.ProgressInterval != 0 {
		cfg.SetProgressInterval(r.ProgressInterval)
	}
	if r.IterationLimit != 0 {
		cfg.SetIterationLimit(r.IterationLimit)
	}
	if r.TimeLimit != "" {
		d, err := parseDuration(r.TimeLimit)
		if err != nil {
			return nil, &ValidationError{Field: "run.time_limit", Reason: err.Error()}
		}
		cfg.SetTimeLimit(d)
	}
	return cfg, nil
}

// DeadlineDuration returns the parsed policy deadline, or 0 when unset.
func (p *PolicyBlock) DeadlineDuration() time.Duration {
	if p == nil || p.Deadline == "" {
		return 0
	}
	d, _ := parseDuration(p.Deadline)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}
