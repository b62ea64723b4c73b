package generator

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/michaellans/Badger/internal/opt"
	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

var bayesDefaults = map[string]any{
	"n_initial":      3,
	"length_scale":   0.2,
	"noise":          1e-6,
	"optimizer":      opt.VariantStandard,
	"max_iterations": 50,
	"population":     20,
	"seed":           nil,
}

func init() {
	ucb := MergeParams(bayesDefaults, map[string]any{"beta": 2.0})
	Register("upper_confidence_bound", Factory{
		Description: "Single-objective Bayesian optimization with the upper confidence bound acquisition.",
		Defaults:    ucb,
		New: func(v *vocs.VOCS, params map[string]any) (Generator, error) {
			beta, err := floatParam(params, "beta")
			if err != nil {
				return nil, fmt.Errorf("generator upper_confidence_bound: %w", err)
			}
			return NewBayesian("upper_confidence_bound", v, params, upperConfidenceBound(beta))
		},
	})

	ei := MergeParams(bayesDefaults, map[string]any{"xi": 0.01})
	Register("expected_improvement", Factory{
		Description: "Single-objective Bayesian optimization with the expected improvement acquisition.",
		Defaults:    ei,
		New: func(v *vocs.VOCS, params map[string]any) (Generator, error) {
			xi, err := floatParam(params, "xi")
			if err != nil {
				return nil, fmt.Errorf("generator expected_improvement: %w", err)
			}
			return NewBayesian("expected_improvement", v, params, expectedImprovement(xi))
		},
	})
}

// Bayesian fits a Gaussian process to the observed objective and proposes
// the minimizer of an acquisition function. Until n_initial feasible points
// exist it samples uniformly.
type Bayesian struct {
	base
	acq         acquisition
	rng         *rand.Rand
	nInitial    int
	lengthScale float64
	noise       float64
	optimizer   string
	maxIters    int
	population  int
}

// NewBayesian builds a Bayesian generator for a single-objective VOCS.
func NewBayesian(name string, v *vocs.VOCS, params map[string]any, acq acquisition) (*Bayesian, error) {
	if len(v.Objectives) != 1 {
		return nil, fmt.Errorf("generator %s: exactly one objective is required, got %d", name, len(v.Objectives))
	}

	rng, err := newRand(params)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	g := &Bayesian{base: newBase(name, v), acq: acq, rng: rng}

	if g.nInitial, err = intParam(params, "n_initial", 3); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.lengthScale, err = floatParam(params, "length_scale"); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.noise, err = floatParam(params, "noise"); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.optimizer, err = stringParam(params, "optimizer", opt.VariantStandard); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.maxIters, err = intParam(params, "max_iterations", 50); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.population, err = intParam(params, "population", 20); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	if g.lengthScale <= 0 {
		return nil, fmt.Errorf("generator %s: length_scale must be positive", name)
	}
	// mayfly needs at least 20 mayflies per population
	if g.population < 20 {
		g.population = 20
	}
	return g, nil
}

// Generate proposes n points. Batches beyond the first point use the
// kriging believer: each chosen point is added with its predicted value
// before the next one is searched.
func (g *Bayesian) Generate(n int) (*table.Table, error) {
	if n < 1 {
		return nil, fmt.Errorf("generator %s: n must be positive, got %d", g.name, n)
	}

	names := g.vocs.VariableNames()
	out := table.New(names...)

	x, y := g.trainingSet()
	if len(x) < g.nInitial || len(x) == 0 {
		for i := 0; i < n; i++ {
			if err := out.AppendRecord(g.randomPoint(g.rng)); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	dim := len(names)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1
	}

	for i := 0; i < n; i++ {
		gp := newGaussianProcess(g.lengthScale, g.noise)
		if err := gp.fit(x, y); err != nil {
			return nil, fmt.Errorf("generator %s: fit surrogate: %w", g.name, err)
		}
		best := minFloat(y)

		search := opt.NewMayflyVariant(g.optimizer, g.maxIters, g.population, g.rng.Int63())
		u, score := search.Run(func(p []float64) float64 {
			mean, std := gp.predict(p)
			return g.acq(mean, std, best)
		}, lower, upper, dim)
		slog.Debug("Acquisition optimized", "generator", g.name, "score", score, "points", len(x))

		if err := out.AppendRecord(g.fromUnit(u)); err != nil {
			return nil, err
		}

		mean, _ := gp.predict(u)
		x = append(x, u)
		y = append(y, mean)
	}
	return out, nil
}

// trainingSet returns data rows scaled to the unit cube and the minimized
// objective. Infeasible rows get the worst observed value.
func (g *Bayesian) trainingSet() ([][]float64, []float64) {
	obj := g.vocs.Objectives[0]
	sign := 1.0
	if obj.Direction == vocs.Maximize {
		sign = -1
	}

	var (
		x          [][]float64
		y          []float64
		infeasible []int
	)
	worst := math.Inf(-1)
	for _, r := range g.data.Records() {
		v, ok := r[obj.Name]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x = append(x, g.toUnit(r))
		y = append(y, sign*v)
		if !g.vocs.Feasible(r) {
			infeasible = append(infeasible, len(y)-1)
			continue
		}
		worst = math.Max(worst, sign*v)
	}
	for _, i := range infeasible {
		if !math.IsInf(worst, -1) {
			y[i] = math.Max(y[i], worst)
		}
	}
	return x, y
}

func (g *Bayesian) toUnit(r table.Record) []float64 {
	u := make([]float64, len(g.vocs.Variables))
	for i, v := range g.vocs.Variables {
		if w := v.Bounds.Width(); w > 0 {
			u[i] = (r[v.Name] - v.Bounds.Lo()) / w
		}
	}
	return u
}

func (g *Bayesian) fromUnit(u []float64) table.Record {
	r := make(table.Record, len(u))
	for i, v := range g.vocs.Variables {
		r[v.Name] = v.Bounds.Clamp(v.Bounds.Lo() + u[i]*v.Bounds.Width())
	}
	return r
}

func minFloat(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}
