// Package policy provides stock continuation delegates for solve.Controller.
package policy

import (
	"log/slog"
	"time"

	"github.com/cwbudde/solvectl/internal/solve"
)

// Rounds stops the run after Max iterations.
type Rounds struct {
	Max int
}

func (r Rounds) BeforeIteration(solve.Engine, int, solve.Snapshot) bool {
	return true
}

func (r Rounds) AfterIteration(_ solve.Engine, iteration int, _ solve.Snapshot) bool {
	return iteration < r.Max
}

// Deadline refuses new iterations once Budget has elapsed since the first
// one started. A solve in progress is never cut short.
type Deadline struct {
	budget time.Duration
	now    func() time.Time
	start  time.Time
	logger *slog.Logger
}

// NewDeadline creates a wall-clock budget across all iterations of a run.
func NewDeadline(budget time.Duration, logger *slog.Logger) *Deadline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deadline{budget: budget, now: time.Now, logger: logger}
}

func (d *Deadline) BeforeIteration(_ solve.Engine, iteration int, _ solve.Snapshot) bool {
	now := d.now()
	if d.start.IsZero() {
		d.start = now
		return true
	}
	if elapsed := now.Sub(d.start); elapsed >= d.budget {
		d.logger.Info("Deadline reached", "iteration", iteration, "elapsed", elapsed, "budget", d.budget)
		return false
	}
	return true
}

func (d *Deadline) AfterIteration(solve.Engine, int, solve.Snapshot) bool {
	return true
}

// All combines delegates. Each hook asks the delegates in order and the
// first refusal stops the run; later delegates are not consulted.
func All(delegates ...solve.Delegate) solve.Delegate {
	return all(delegates)
}

type all []solve.Delegate

func (a all) BeforeIteration(engine solve.Engine, iteration int, cfg solve.Snapshot) bool {
	for _, d := range a {
		if !d.BeforeIteration(engine, iteration, cfg) {
			return false
		}
	}
	return true
}

func (a all) AfterIteration(engine solve.Engine, iteration int, cfg solve.Snapshot) bool {
	for _, d := range a {
		if !d.AfterIteration(engine, iteration, cfg) {
			return false
		}
	}
	return true
}
