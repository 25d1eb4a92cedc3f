package policy

import (
	"log/slog"
	"time"

	"github.com/cwbudde/solvectl/internal/solve"
	"github.com/cwbudde/solvectl/internal/store"
)

// Trace writes one store.TraceEntry per iteration. It is registered with
// Controller.OnIteration rather than as a delegate, so it never influences
// when the run stops.
type Trace struct {
	writer *store.TraceWriter
	engine solve.Engine
	logger *slog.Logger
}

func NewTrace(writer *store.TraceWriter, engine solve.Engine, logger *slog.Logger) *Trace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trace{writer: writer, engine: engine, logger: logger}
}

// Observe appends rec to the trace. Write errors are logged and dropped.
func (t *Trace) Observe(rec solve.IterationRecord) {
	entry := store.TraceEntry{
		Iteration: rec.Iteration,
		Status:    rec.Status.String(),
		Found:     rec.Found,
		Timestamp: time.Now(),
	}
	if value, err := t.engine.Property(solve.PropBestObjective); err == nil {
		if objective, ok := value.(float64); ok {
			entry.Objective = &objective
		}
	}

	if err := t.writer.Write(entry); err != nil {
		t.logger.Warn("Failed to write trace entry", "iteration", rec.Iteration, "error", err)
	}
}
