package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/vocs"
)

// spanInterface reports a single channel "span".
type spanInterface struct{ span float64 }

func (s *spanInterface) GetValues(channels []string) (map[string]float64, error) {
	return map[string]float64{"span": s.span}, nil
}

func (s *spanInterface) SetValues(map[string]float64) error { return nil }

// spanEnvironment bounds every variable by [-span, span] read from its
// interface, or [0, 1] without one.
type spanEnvironment struct {
	env.Base
	names []string
}

func (e *spanEnvironment) Variables() []string   { return e.names }
func (e *spanEnvironment) Observables() []string { return []string{"y"} }

func (e *spanEnvironment) GetBounds(names []string) (map[string]vocs.Bounds, error) {
	b := vocs.Bounds{0, 1}
	if e.Interface != nil {
		v, err := e.Interface.GetValues([]string{"span"})
		if err != nil {
			return nil, err
		}
		b = vocs.Bounds{-v["span"], v["span"]}
	}
	all := map[string]vocs.Bounds{}
	for _, n := range e.names {
		all[n] = b
	}
	return env.StaticBounds(all, names)
}

func (e *spanEnvironment) GetVariables(names []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}
func (e *spanEnvironment) SetVariables(map[string]float64) error { return nil }
func (e *spanEnvironment) GetObservables(names []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func init() {
	RegisterInterface("sample_intf", &InterfacePlugin{
		Fields: []Field{
			{Name: "span", Type: "float", Default: 2.0},
			{Name: "host", Type: "string"},
		},
		New: func(params map[string]any) (env.Interface, error) {
			return &spanInterface{span: params["span"].(float64)}, nil
		},
	})
	RegisterInterface("failing_intf", &InterfacePlugin{
		New: func(map[string]any) (env.Interface, error) {
			return nil, errors.New("hardware offline")
		},
	})

	newSpan := func(intf env.Interface, params map[string]any) (env.Environment, error) {
		return &spanEnvironment{Base: env.Base{Interface: intf, Params: params}, names: []string{"q2", "q1", "q3"}}, nil
	}
	fields := []Field{
		{Name: "interface", Type: "list"},
		{Name: "gain", Type: "float", Default: 0.5},
		{Name: "tolerances", Type: "map", Default: map[string]any{"q1": 0.1}},
	}
	RegisterEnvironment("sample_env", &EnvironmentPlugin{Fields: fields, Variables: []string{"q2", "q1", "q3"}, Observables: []string{"y"}, New: newSpan})
	RegisterEnvironment("orphan_env", &EnvironmentPlugin{Fields: fields, Variables: []string{"q1"}, Observables: []string{"y"}, New: newSpan})
	RegisterEnvironment("needy_env", &EnvironmentPlugin{Fields: fields, Variables: []string{"q1"}, New: newSpan})

	RegisterGenerator("sample_gen", &GeneratorPlugin{
		Fields: []Field{{Name: "seed", Default: 4}},
		New: func(v *vocs.VOCS, params map[string]any) (generator.Generator, error) {
			return generator.New("random", v, params)
		},
	})
	Provide("numpy")
}

func writePlugin(t *testing.T, root string, kind Kind, name, declaration string) string {
	t.Helper()
	dir := filepath.Join(root, kind.Dir(), name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), nil, 0644))
	if declaration != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, DeclarationFile), []byte(declaration), 0644))
	}
	return dir
}

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePlugin(t, root, KindInterface, "sample_intf", "name: sample_intf\ndescription: sample\nversion: '1.0'\ndependencies: [numpy]\n")
	writePlugin(t, root, KindInterface, "failing_intf", "name: failing_intf\nversion: '0.1'\n")
	writePlugin(t, root, KindEnvironment, "sample_env", "name: sample_env\ndescription: sample environment\nversion: '1.0'\ninterface: [sample_intf]\n")
	writePlugin(t, root, KindEnvironment, "orphan_env", "name: orphan_env\ninterface: failing_intf\n")
	writePlugin(t, root, KindEnvironment, "needy_env", "name: needy_env\ndependencies: [epics]\n")
	writePlugin(t, root, KindEnvironment, "ghost_env", "name: ghost_env\nversion: '2.0'\n")
	writePlugin(t, root, KindEnvironment, "empty_env", "")
	writePlugin(t, root, KindGenerator, "sample_gen", "name: sample_gen\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, KindEnvironment.Dir(), "empty_env", DeclarationFile), nil, 0644))

	// directory without marker is not a plugin
	require.NoError(t, os.MkdirAll(filepath.Join(root, KindEnvironment.Dir(), "notes"), 0755))
	return root
}

func TestScan(t *testing.T) {
	root := testRoot(t)

	idx := Scan(root, false)
	assert.Len(t, idx[KindInterface], 2)
	assert.Contains(t, idx[KindEnvironment], "sample_env")
	assert.NotContains(t, idx[KindEnvironment], "notes")
	assert.Empty(t, idx[KindGenerator])

	idx = Scan(root, true)
	assert.Contains(t, idx[KindGenerator], "sample_gen")
}

func TestScanMissingRoot(t *testing.T) {
	idx := Scan(filepath.Join(t.TempDir(), "nope"), true)
	for _, kind := range Kinds() {
		assert.NotNil(t, idx[kind])
		assert.Empty(t, idx[kind])
	}
}

func TestGetUnknownPlugin(t *testing.T) {
	r := NewRegistry(testRoot(t))
	_, _, err := r.Get(KindEnvironment, "missing")
	var notFound *PluginNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestGetInvalidKind(t *testing.T) {
	r := NewRegistry(testRoot(t))
	_, _, err := r.Get(Kind("extension"), "sample_env")
	var invalid *InvalidPluginKindError
	assert.ErrorAs(t, err, &invalid)

	_, err = ParseKind("extension")
	assert.ErrorAs(t, err, &invalid)
}

func TestInterfaceParams(t *testing.T) {
	r := NewRegistry(testRoot(t))
	_, cfg, err := r.GetInterface("sample_intf")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"span": 2.0, "host": nil}, cfg.Params)
	assert.Equal(t, "1.0", cfg.Version)
}

func TestEnvironmentConfig(t *testing.T) {
	r := NewRegistry(testRoot(t))
	_, cfg, err := r.GetEnvironment("sample_env")
	require.NoError(t, err)

	assert.NotContains(t, cfg.Params, "interface")
	assert.Equal(t, 0.5, cfg.Params["gain"])
	// declaration order, bounds from the live interface
	assert.Equal(t, []map[string][]float64{
		{"q2": {-2, 2}},
		{"q1": {-2, 2}},
		{"q3": {-2, 2}},
	}, cfg.Variables)
	assert.Equal(t, []string{"y"}, cfg.Observations)
	assert.Equal(t, Names{"sample_intf"}, cfg.Interface)
}

func TestEnvironmentBoundsWithoutInterface(t *testing.T) {
	r := NewRegistry(testRoot(t))
	_, cfg, err := r.GetEnvironment("orphan_env")
	require.NoError(t, err)
	assert.Equal(t, []map[string][]float64{{"q1": {0, 1}}}, cfg.Variables)
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	r := NewRegistry(testRoot(t))

	a1, first, err := r.Get(KindEnvironment, "sample_env")
	require.NoError(t, err)
	a2, second, err := r.Get(KindEnvironment, "sample_env")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)

	second.Params["gain"] = 9.0
	second.Params["tolerances"].(map[string]any)["q1"] = 7.0
	second.Variables[0]["q2"][0] = -100
	second.Interface[0] = "other"

	_, third, err := r.Get(KindEnvironment, "sample_env")
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, 0.5, third.Params["gain"])
	assert.Equal(t, 0.1, third.Params["tolerances"].(map[string]any)["q1"])
}

func TestMissingDeclaration(t *testing.T) {
	root := testRoot(t)
	require.NoError(t, os.Remove(filepath.Join(root, "environments", "sample_env", DeclarationFile)))

	_, _, err := NewRegistry(root).Get(KindEnvironment, "sample_env")
	var invalid *InvalidPluginError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, invalid.Unavailable())
	assert.Nil(t, invalid.Config)
}

func TestEmptyDeclaration(t *testing.T) {
	_, _, err := NewRegistry(testRoot(t)).Get(KindEnvironment, "empty_env")
	var invalid *InvalidPluginError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, invalid.Unavailable())
}

func TestMalformedDeclaration(t *testing.T) {
	root := testRoot(t)
	writePlugin(t, root, KindEnvironment, "sample_env", "name: [unterminated\n")

	_, _, err := NewRegistry(root).Get(KindEnvironment, "sample_env")
	var invalid *InvalidPluginError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestUnavailablePlugins(t *testing.T) {
	r := NewRegistry(testRoot(t))

	for _, name := range []string{"ghost_env", "needy_env"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := r.Get(KindEnvironment, name)
			var invalid *InvalidPluginError
			require.ErrorAs(t, err, &invalid)
			assert.True(t, invalid.Unavailable())
			assert.ErrorIs(t, err, ErrUnavailable)
			require.NotNil(t, invalid.Config)
			assert.Equal(t, name, invalid.Config.Name)
		})
	}
}

func TestEveryScannedPluginResolves(t *testing.T) {
	r := NewRegistry(testRoot(t), WithLocalGenerators(true))
	for _, kind := range Kinds() {
		names, err := r.List(kind)
		require.NoError(t, err)
		for _, name := range names {
			a, cfg, err := r.Get(kind, name)
			if err != nil {
				var invalid *InvalidPluginError
				var notFound *PluginNotFoundError
				assert.True(t, errors.As(err, &invalid) || errors.As(err, &notFound), "%s %s: %v", kind, name, err)
				continue
			}
			assert.NotNil(t, a, fmt.Sprintf("%s %s", kind, name))
			assert.NotNil(t, cfg)
		}
	}
}

func TestLibraryGenerators(t *testing.T) {
	r := NewRegistry(testRoot(t), WithExcludedGenerators([]string{"expected_improvement"}))

	names, err := r.List(KindGenerator)
	require.NoError(t, err)
	assert.Contains(t, names, "random")
	assert.Contains(t, names, "upper_confidence_bound")
	assert.NotContains(t, names, "expected_improvement")
	assert.NotContains(t, names, "sample_gen")

	_, _, err = r.Generator("expected_improvement")
	assert.ErrorIs(t, err, &PluginNotFoundError{})

	p, cfg, err := r.Generator("upper_confidence_bound")
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Params["beta"])

	g, err := p.New(&vocs.VOCS{
		Variables:  []vocs.Variable{{Name: "x", Bounds: vocs.Bounds{0, 1}}},
		Objectives: []vocs.Objective{{Name: "f", Direction: vocs.Minimize}},
	}, cfg.Params)
	require.NoError(t, err)
	assert.Equal(t, "upper_confidence_bound", g.Name())
}

func TestLocalGenerators(t *testing.T) {
	r := NewRegistry(testRoot(t), WithLocalGenerators(true))

	names, err := r.List(KindGenerator)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_gen"}, names)

	_, cfg, err := r.Generator("sample_gen")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"seed": 4}, cfg.Params)

	_, _, err = r.Generator("random")
	assert.ErrorIs(t, err, &PluginNotFoundError{})
}

func TestSummaries(t *testing.T) {
	r := NewRegistry(testRoot(t))
	summaries, err := r.Summaries(KindEnvironment)
	require.NoError(t, err)

	byName := map[string]Summary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}
	assert.True(t, byName["sample_env"].Available)
	assert.False(t, byName["ghost_env"].Available)
	assert.Equal(t, "2.0", byName["ghost_env"].Version)
	assert.NotEmpty(t, byName["empty_env"].Error)
}

func TestNamesAcceptsScalar(t *testing.T) {
	cfg, err := parseConfig([]byte("name: x\ninterface: sim\n"))
	require.NoError(t, err)
	assert.Equal(t, Names{"sim"}, cfg.Interface)
}
