package solve

// Engine is the external optimization engine driven by a Controller.
//
// An Engine is handed over by the model builder in StatusNeutral and is
// owned exclusively by one Controller for the duration of Execute. The
// Controller never disposes it; callers read the solution from it after a
// successful run.
type Engine interface {
	// Status returns the engine's current status code.
	Status() Status

	// Solve runs one blocking solve step and reports whether a solution
	// was found. It cannot be interrupted.
	Solve() (bool, error)

	// Property returns a named engine or model property for telemetry.
	Property(name string) (any, error)

	// SetParam sets a named engine parameter.
	SetParam(name string, value any) error

	ExportModel(path string) error
	ExportParams(path string) error
	ExportSolution(path string) error
}

// Parameter names applied by the controller before each solve.
const (
	// ParamIterationLimit takes an int.
	ParamIterationLimit = "iteration_limit"
	// ParamTimeLimit takes a float64 number of seconds.
	ParamTimeLimit = "time_limit"
)

// Property names read by the telemetry reporter and the stock policies.
const (
	PropEngineVersion = "engine_version"
	PropVariables     = "variables"
	PropRows          = "rows"
	PropConstraints   = "constraints"
	PropBestObjective = "best_objective"
	PropLastObjective = "last_objective"
	PropRounds        = "rounds"
	PropIterations    = "iterations"
	PropEvaluations   = "evaluations"
)
