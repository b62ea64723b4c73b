package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Mayfly variants selectable through generator params.
const (
	VariantStandard = "standard"
	VariantDESMA    = "desma"
	VariantOLCE     = "olce"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	variant  string
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return NewMayflyVariant(VariantStandard, maxIters, popSize, seed)
}

// NewMayflyVariant creates a Mayfly adapter using one of the library variants.
// Unknown variants fall back to the standard algorithm.
func NewMayflyVariant(variant string, maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		variant:  variant,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library only supports scalar bounds, so the search runs in the unit
// cube and points are mapped onto [lower[i], upper[i]] before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	scale := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = lower[i] + u[i]*(upper[i]-lower[i])
		}
		return x
	}

	var config *mayfly.Config
	switch m.variant {
	case VariantDESMA:
		config = mayfly.NewDESMAConfig()
	case VariantOLCE:
		config = mayfly.NewOLCEConfig()
	default:
		config = mayfly.NewDefaultConfig()
	}

	config.ObjectiveFunc = func(u []float64) float64 { return eval(scale(u)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.NPopF = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the centre of the box
		slog.Warn("Mayfly optimization failed, using box centre", "error", err)
		centre := make([]float64, dim)
		for i := range centre {
			centre[i] = 0.5
		}
		x := scale(centre)
		return x, eval(x)
	}

	return scale(result.GlobalBest.Position), result.GlobalBest.Cost
}
