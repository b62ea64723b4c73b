package builtin

import (
	"fmt"
	"sync"

	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/plugin"
)

var simPlugin = &plugin.InterfacePlugin{
	Fields: []plugin.Field{
		{Name: "initial", Type: "map"},
	},
	New: func(params map[string]any) (env.Interface, error) {
		return NewSim(params)
	},
}

// Sim is an in-memory interface. Unwritten channels read as their initial
// value, or 0.
type Sim struct {
	mu     sync.RWMutex
	values map[string]float64
	writes int
}

// NewSim builds a Sim. The optional "initial" param maps channels to values.
func NewSim(params map[string]any) (*Sim, error) {
	s := &Sim{values: make(map[string]float64)}

	initial, _ := params["initial"].(map[string]any)
	for ch, v := range initial {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("sim: initial %s: %w", ch, err)
		}
		s.values[ch] = f
	}
	return s, nil
}

func (s *Sim) GetValues(channels []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(channels))
	for _, ch := range channels {
		out[ch] = s.values[ch]
	}
	return out, nil
}

func (s *Sim) SetValues(values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch, v := range values {
		s.values[ch] = v
	}
	s.writes++
	return nil
}

// Writes returns how many SetValues calls the interface received.
func (s *Sim) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
