package policy

import (
	"log/slog"
	"math"

	"github.com/cwbudde/solvectl/internal/solve"
)

// ConvergenceConfig defines when a run counts as stalled.
type ConvergenceConfig struct {
	// Patience is the number of iterations without significant improvement
	// before the run stops
	Patience int

	// Threshold is the minimum relative improvement that counts as progress.
	// Example: 0.001 = 0.1% improvement required
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for stall detection.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Patience:  3,
		Threshold: 0.001,
	}
}

// Convergence stops the run once the engine's best objective stops
// improving. It reads solve.PropBestObjective after every iteration.
type Convergence struct {
	config          ConvergenceConfig
	logger          *slog.Logger
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergence creates a stall detector with the given config.
func NewConvergence(config ConvergenceConfig, logger *slog.Logger) *Convergence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Convergence{
		config:          config,
		logger:          logger,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

func (c *Convergence) BeforeIteration(solve.Engine, int, solve.Snapshot) bool {
	return true
}

// AfterIteration records the best objective. Iterations that produced no
// objective yet are not counted.
func (c *Convergence) AfterIteration(engine solve.Engine, iteration int, _ solve.Snapshot) bool {
	value, err := engine.Property(solve.PropBestObjective)
	if err != nil {
		c.logger.Warn("Failed to read best objective", "iteration", iteration, "error", err)
		return true
	}
	objective, ok := value.(float64)
	if !ok {
		return true
	}
	return !c.Update(objective)
}

// Update records a new objective value and reports whether the run has
// converged.
func (c *Convergence) Update(objective float64) bool {
	c.history = append(c.history, objective)
	if objective < c.best {
		c.best = objective
	}

	if len(c.history) == 1 {
		c.lastSignificant = objective
		return false
	}

	improvement := relativeImprovement(c.lastSignificant, objective)
	if improvement >= c.config.Threshold {
		c.lastSignificant = objective
		c.staleCount = 0
		c.logger.Debug("Objective improvement detected",
			"objective", objective,
			"relative_improvement", improvement,
		)
		return false
	}

	c.staleCount++
	c.logger.Debug("No significant objective improvement",
		"objective", objective,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		c.logger.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_objective", c.best,
		)
		return true
	}
	return false
}

// relativeImprovement measures the drop from prev to cur relative to |prev|.
// Near zero the absolute drop is used instead.
func relativeImprovement(prev, cur float64) float64 {
	scale := math.Abs(prev)
	if scale < 1e-12 {
		return prev - cur
	}
	return (prev - cur) / scale
}

// Best returns the best objective seen so far.
func (c *Convergence) Best() float64 {
	return c.best
}

// History returns a copy of the recorded objectives.
func (c *Convergence) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the number of iterations since the last significant
// improvement.
func (c *Convergence) StaleCount() int {
	return c.staleCount
}
