package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

// base keeps the schema and the data every generator accumulates.
type base struct {
	name string
	vocs *vocs.VOCS
	data *table.Table
}

func newBase(name string, v *vocs.VOCS) base {
	return base{name: name, vocs: v, data: table.New()}
}

func (b *base) Name() string       { return b.name }
func (b *base) VOCS() *vocs.VOCS   { return b.vocs }
func (b *base) Data() *table.Table { return b.data.Clone() }

// AddData appends evaluated rows. Rows must carry every variable and objective.
func (b *base) AddData(data *table.Table) error {
	if data.IsEmpty() {
		return nil
	}
	required := append(b.vocs.VariableNames(), b.vocs.ObjectiveNames()...)
	if !data.HasColumns(required...) {
		return fmt.Errorf("generator %s: data must contain columns %v, got %v", b.name, required, data.Columns)
	}
	return b.data.Append(data)
}

// ParetoFront ranks the accumulated data with the generator's VOCS.
func (b *base) ParetoFront() (*table.Table, error) {
	return b.vocs.ParetoFront(b.data)
}

// randomPoint draws a uniform point inside the variable bounds.
func (b *base) randomPoint(rng *rand.Rand) table.Record {
	r := make(table.Record, len(b.vocs.Variables))
	for _, x := range b.vocs.Variables {
		r[x.Name] = x.Bounds.Lo() + rng.Float64()*x.Bounds.Width()
	}
	return r
}

// newRand returns a seeded source; a nil seed picks one from the clock.
func newRand(params map[string]any) (*rand.Rand, error) {
	seed, err := intParam(params, "seed", -1)
	if err != nil {
		return nil, err
	}
	if params["seed"] == nil || seed < 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano())), nil
	}
	return rand.New(rand.NewSource(int64(seed))), nil
}

func floatParam(params map[string]any, name string) (float64, error) {
	switch v := params[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("param %s is required", name)
	default:
		return 0, fmt.Errorf("param %s: expected a number, got %T", name, v)
	}
}

func intParam(params map[string]any, name string, def int) (int, error) {
	switch v := params[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("param %s: expected an integer, got %v", name, v)
		}
		return int(v), nil
	case nil:
		return def, nil
	default:
		return 0, fmt.Errorf("param %s: expected an integer, got %T", name, v)
	}
}

func stringParam(params map[string]any, name, def string) (string, error) {
	switch v := params[name].(type) {
	case string:
		return v, nil
	case nil:
		return def, nil
	default:
		return "", fmt.Errorf("param %s: expected a string, got %T", name, v)
	}
}
