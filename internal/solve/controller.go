package solve

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Controller drives one engine through a sequence of solve attempts until
// a terminal outcome is reached.
//
// A Controller runs at most once. It is not safe for concurrent use and
// assumes exclusive ownership of its engine for the duration of Execute.
type Controller struct {
	engine    Engine
	config    Snapshot
	logger    *slog.Logger
	telemetry *Telemetry
	exporter  *Exporter
	observer  func(IterationRecord)
	executed  bool
}

// NewController copies cfg and binds it to engine. Invalid settings are
// reported as *ConfigError before anything runs.
func NewController(engine Engine, cfg *Config, logger *slog.Logger) (*Controller, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	snapshot, err := NewSnapshot(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		engine:    engine,
		config:    snapshot,
		logger:    logger,
		telemetry: NewTelemetry(logger, snapshot.ProgressInterval()),
		exporter:  NewExporter(logger),
	}, nil
}

// Config returns the snapshot the controller runs with.
func (c *Controller) Config() Snapshot {
	return c.config
}

// OnIteration registers fn to receive a record after every solve call.
// It is called on the controller's goroutine.
func (c *Controller) OnIteration(fn func(IterationRecord)) {
	c.observer = fn
}

// Execute runs the solve loop.
//
// It returns nil when the engine ended in a usable state; the solution is
// then read from the engine. Otherwise it returns a *Failure for an
// expected "no solution" outcome, a *PreconditionError when the controller
// or engine was reused, or an *EngineCallError when the engine failed.
//
// Cancelling ctx is cooperative: it is checked once per iteration, before
// the solve call, and never interrupts a solve in progress.
func (c *Controller) Execute(ctx context.Context) error {
	if c.executed {
		return &PreconditionError{Reason: "controller already executed"}
	}
	c.executed = true

	// A terminal failure reported up front (detected while the model was
	// built) is left to the loop to classify. Any other non-neutral status
	// means the engine already holds a result from an earlier run.
	if status := c.engine.Status(); status != StatusNeutral && ValidateContinuable(status).Class != TerminalFailure {
		return &PreconditionError{Reason: fmt.Sprintf("engine status is %s, want %s", status, StatusNeutral)}
	}

	delegate := c.config.Delegate()
	start := time.Now()
	cancelled := false
	solves := 0
	n := 1

	c.logger.Info("Starting execution", "delegate", delegate != nil, "progress_interval", c.config.ProgressInterval())

loop:
	for {
		if delegate != nil && !delegate.BeforeIteration(c.engine, n, c.config) {
			c.logger.Info("Delegate stopped execution", "iteration", n, "phase", "before")
			break
		}

		switch v := ValidateContinuable(c.engine.Status()); v.Class {
		case TerminalFailure:
			c.logger.Warn("Execution failed", "iteration", n, "reason", v.Reason.String())
			return &Failure{Reason: v.Reason, Iteration: n, Op: OpValidateContinuable}
		case TerminalSuccess:
			c.logger.Debug("Engine reached terminal status", "iteration", n, "status", c.engine.Status().String())
			break loop
		}

		if ctx.Err() != nil {
			c.logger.Info("Execution cancelled", "iteration", n)
			cancelled = true
			break
		}

		if err := c.applyParams(n); err != nil {
			return err
		}

		rec, err := c.iterate(ctx, n)
		if err != nil {
			return err
		}
		solves++
		if c.observer != nil {
			c.observer(rec)
		}

		if delegate == nil {
			break
		}
		if !delegate.AfterIteration(c.engine, n, c.config) {
			c.logger.Info("Delegate stopped execution", "iteration", n, "phase", "after")
			break
		}
		n++
	}

	status := c.engine.Status()
	v := ValidateTerminal(status)
	if v.Class == TerminalFailure {
		reason := v.Reason
		if cancelled && reason == ReasonIncomplete {
			reason = ReasonInterrupted
		}
		c.logger.Warn("Execution failed",
			"iteration", n,
			"status", status.String(),
			"reason", reason.String(),
			"solves", solves,
			"elapsed", time.Since(start),
		)
		return &Failure{Reason: reason, Iteration: n, Op: OpValidateTerminal}
	}

	c.logger.Info("Execution complete",
		"iterations", n,
		"status", status.String(),
		"solves", solves,
		"elapsed", time.Since(start),
	)
	return nil
}

// applyParams pushes the per-iteration limits to the engine.
func (c *Controller) applyParams(n int) error {
	if limit, ok := c.config.IterationLimit(); ok {
		if err := c.engine.SetParam(ParamIterationLimit, limit); err != nil {
			return &EngineCallError{Op: OpSetParam, Iteration: n, Err: fmt.Errorf("%s: %w", ParamIterationLimit, err)}
		}
	}
	if limit, ok := c.config.TimeLimit(); ok {
		if err := c.engine.SetParam(ParamTimeLimit, limit.Seconds()); err != nil {
			return &EngineCallError{Op: OpSetParam, Iteration: n, Err: fmt.Errorf("%s: %w", ParamTimeLimit, err)}
		}
	}
	return nil
}

// iterate runs the solve call for iteration n with its best-effort side
// effects around it.
func (c *Controller) iterate(ctx context.Context, n int) (IterationRecord, error) {
	c.bestEffort("export_model", n, func() error {
		return c.exporter.ExportModel(c.engine, c.config)
	})
	c.bestEffort("export_params", n, func() error {
		return c.exporter.ExportParams(c.engine, c.config)
	})
	c.bestEffort("telemetry_before", n, func() error {
		return c.telemetry.BeforeSolve(ctx, c.engine, n)
	})

	found, err := c.engine.Solve()
	if err != nil {
		c.logger.Error("Engine solve failed", "iteration", n, "error", err)
		return IterationRecord{}, &EngineCallError{Op: OpSolve, Iteration: n, Err: err}
	}

	rec := IterationRecord{Iteration: n, Status: c.engine.Status(), Found: found}

	c.bestEffort("telemetry_after", n, func() error {
		return c.telemetry.AfterSolve(ctx, c.engine, rec)
	})
	if found {
		c.bestEffort("export_solution", n, func() error {
			return c.exporter.ExportSolution(c.engine, c.config)
		})
	}
	return rec, nil
}

// bestEffort runs fn and downgrades any error or panic to a warning.
func (c *Controller) bestEffort(op string, n int, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Best-effort step panicked", "operation", op, "iteration", n, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		c.logger.Warn("Best-effort step failed", "operation", op, "iteration", n, "error", err)
	}
}
