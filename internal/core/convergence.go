package core

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a run counts as converged.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of evaluations with no improvement before stopping
	Patience int

	// Threshold is the minimum decrease of the best score that counts as progress.
	// Scores are minimized; maximized objectives are negated before tracking.
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  10,
		Threshold: 1e-6,
	}
}

// ConvergenceTracker follows the best score of a run and reports when it
// has stopped improving.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64 // Best score ever seen
	lastSignificant float64 // Last best score that was a significant improvement
	staleCount      int     // Evaluations without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		history:         []float64{},
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new score and returns true if convergence is detected.
// Non-finite scores (infeasible points) only count as stale evaluations.
func (c *ConvergenceTracker) Update(score float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, score)
	if score < c.best {
		c.best = score
	}

	// First finite score initializes the reference
	if math.IsInf(c.lastSignificant, 1) {
		if !math.IsInf(c.best, 1) {
			c.lastSignificant = c.best
		}
		return false
	}

	improvement := c.lastSignificant - c.best
	if improvement > c.config.Threshold {
		c.lastSignificant = c.best
		c.staleCount = 0
		slog.Debug("Score improvement detected", "best", c.best, "improvement", improvement)
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best", c.best,
		)
		return true
	}
	return false
}

// Best returns the best score seen so far
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns every recorded score
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of evaluations without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.history = []float64{}
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
