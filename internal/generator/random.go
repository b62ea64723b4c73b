package generator

import (
	"fmt"
	"math/rand"

	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

func init() {
	Register("random", Factory{
		Description: "Uniform random sampling inside the variable bounds.",
		Defaults:    map[string]any{"seed": nil},
		New: func(v *vocs.VOCS, params map[string]any) (Generator, error) {
			return NewRandom(v, params)
		},
	})
}

// Random draws candidates uniformly inside the variable bounds.
type Random struct {
	base
	rng *rand.Rand
}

// NewRandom creates a random generator. A "seed" param makes it reproducible.
func NewRandom(v *vocs.VOCS, params map[string]any) (*Random, error) {
	rng, err := newRand(params)
	if err != nil {
		return nil, fmt.Errorf("generator random: %w", err)
	}
	return &Random{base: newBase("random", v), rng: rng}, nil
}

// Generate draws n uniform points.
func (r *Random) Generate(n int) (*table.Table, error) {
	if n < 1 {
		return nil, fmt.Errorf("generator random: n must be positive, got %d", n)
	}
	out := table.New(r.vocs.VariableNames()...)
	for i := 0; i < n; i++ {
		if err := out.AppendRecord(r.randomPoint(r.rng)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
