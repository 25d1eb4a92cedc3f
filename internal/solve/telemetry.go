package solve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// dumpedProperties are logged in full on the first iteration and every
// progress interval after it.
var dumpedProperties = []string{
	PropEngineVersion,
	PropVariables,
	PropRows,
	PropConstraints,
	PropBestObjective,
	PropLastObjective,
	PropRounds,
	PropIterations,
	PropEvaluations,
}

// progressProperties are logged on every other iteration.
var progressProperties = []string{
	PropBestObjective,
	PropIterations,
}

// Telemetry writes engine and model properties to a structured logger
// around each solve call.
type Telemetry struct {
	logger   *slog.Logger
	interval int
}

// NewTelemetry creates a reporter. interval must be positive.
func NewTelemetry(logger *slog.Logger, interval int) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{logger: logger, interval: interval}
}

// dumpDue reports whether iteration gets a full property dump.
func (t *Telemetry) dumpDue(iteration int) bool {
	return iteration == 1 || iteration%t.interval == 0
}

// BeforeSolve logs the engine state ahead of the solve call for iteration.
// Properties that cannot be read are skipped and reported in the returned
// error; the properties that could be read are still logged.
func (t *Telemetry) BeforeSolve(ctx context.Context, engine Engine, iteration int) error {
	props := progressProperties
	if t.dumpDue(iteration) {
		props = dumpedProperties
	}
	attrs, err := readProperties(engine, props)
	attrs = append(attrs, slog.Int("iteration", iteration), slog.String("status", engine.Status().String()))
	t.logger.LogAttrs(ctx, slog.LevelDebug, "Starting solve", attrs...)
	return err
}

// AfterSolve logs the outcome of one solve call.
func (t *Telemetry) AfterSolve(ctx context.Context, engine Engine, rec IterationRecord) error {
	level := slog.LevelDebug
	props := progressProperties
	if t.dumpDue(rec.Iteration) {
		level = slog.LevelInfo
		props = dumpedProperties
	}
	attrs, err := readProperties(engine, props)
	attrs = append(attrs,
		slog.Int("iteration", rec.Iteration),
		slog.String("status", rec.Status.String()),
		slog.Bool("solution_found", rec.Found),
	)
	t.logger.LogAttrs(ctx, level, "Solve finished", attrs...)
	return err
}

func readProperties(engine Engine, names []string) ([]slog.Attr, error) {
	attrs := make([]slog.Attr, 0, len(names)+3)
	var errs []error
	for _, name := range names {
		value, err := engine.Property(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read property %s: %w", name, err))
			continue
		}
		attrs = append(attrs, slog.Any(name, value))
	}
	return attrs, errors.Join(errs...)
}
