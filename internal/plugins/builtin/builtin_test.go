package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaellans/Badger/internal/plugin"
)

func TestInstall(t *testing.T) {
	root := t.TempDir()
	written, err := Install(root, false)
	require.NoError(t, err)
	assert.NotEmpty(t, written)

	for _, p := range []string{
		"interfaces/sim/.plugin",
		"environments/test/configs.yaml",
		"generators/random_search/README.md",
	} {
		assert.FileExists(t, filepath.Join(root, p))
	}

	// existing files are kept unless overwrite is set
	custom := filepath.Join(root, "environments", "test", "README.md")
	require.NoError(t, os.WriteFile(custom, []byte("# mine\n"), 0644))
	_, err = Install(root, false)
	require.NoError(t, err)
	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestTestEnvironmentThroughRegistry(t *testing.T) {
	root := t.TempDir()
	_, err := Install(root, false)
	require.NoError(t, err)

	r := plugin.NewRegistry(root)
	p, cfg, err := r.GetEnvironment("test")
	require.NoError(t, err)

	assert.Equal(t, []map[string][]float64{
		{"x0": {-1, 1}}, {"x1": {-1, 1}}, {"x2": {-1, 1}}, {"x3": {-1, 1}},
	}, cfg.Variables)
	assert.Equal(t, []string{"f", "g"}, cfg.Observations)
	assert.Equal(t, map[string]any{"offset": 0.0}, cfg.Params)

	intf, err := r.NewInterface("sim", nil)
	require.NoError(t, err)
	e, err := p.New(intf, cfg.Params)
	require.NoError(t, err)

	require.NoError(t, e.SetVariables(map[string]float64{"x0": 0.5, "x1": 0.5, "x2": 0.5, "x3": 0.5}))
	obs, err := e.GetObservables([]string{"f", "g"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, obs["f"], 1e-12)
	assert.InDelta(t, 2.0, obs["g"], 1e-12)

	// values went through the interface
	ch, err := intf.GetValues([]string{"x0"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, ch["x0"])
	assert.Equal(t, 1, intf.(*Sim).Writes())
}

func TestTestEnvironmentRejectsUnknownNames(t *testing.T) {
	e, err := NewTestEnv(nil, map[string]any{"offset": 1})
	require.NoError(t, err)

	assert.Error(t, e.SetVariables(map[string]float64{"x9": 1}))
	_, err = e.GetObservables([]string{"h"})
	assert.Error(t, err)

	obs, err := e.GetObservables([]string{"f"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, obs["f"])
}

func TestSimInitialValues(t *testing.T) {
	s, err := NewSim(map[string]any{"initial": map[string]any{"x0": 0.25, "x1": 1}})
	require.NoError(t, err)
	v, err := s.GetValues([]string{"x0", "x1", "x2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x0": 0.25, "x1": 1, "x2": 0}, v)

	_, err = NewSim(map[string]any{"initial": map[string]any{"x0": "high"}})
	assert.Error(t, err)
}

func TestRandomSearchLocalGenerator(t *testing.T) {
	root := t.TempDir()
	_, err := Install(root, false)
	require.NoError(t, err)

	r := plugin.NewRegistry(root, plugin.WithLocalGenerators(true))
	names, err := r.List(plugin.KindGenerator)
	require.NoError(t, err)
	assert.Equal(t, []string{"random_search"}, names)

	_, cfg, err := r.Generator("random_search")
	require.NoError(t, err)
	assert.Contains(t, cfg.Params, "seed")
}
