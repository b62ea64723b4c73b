package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "./data", s.DataDir)
	assert.False(t, s.LoadLocalGenerators)
	assert.ElementsMatch(t, DefaultExcludedGenerators, s.ExcludedGenerators)

	// The default denylist must not alias the package variable
	s.ExcludedGenerators[0] = "changed"
	assert.Equal(t, "bayesian_exploration", DefaultExcludedGenerators[0])
}

func TestLoad_FileAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "badger.yaml")
	content := `
plugin_root: /from/file
data_dir: /data/file
excluded_generators: [nsga2]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv(EnvPluginRoot, tmpDir)
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLoadLocalGenerators, "true")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, tmpDir, s.PluginRoot, "env overrides file")
	assert.Equal(t, "/data/file", s.DataDir)
	assert.True(t, s.LoadLocalGenerators)
	assert.Equal(t, []string{"nsga2"}, s.ExcludedGenerators)
	assert.True(t, s.IsExcluded("nsga2"))
	assert.False(t, s.IsExcluded("upper_confidence_bound"))
}

func TestLoad_InvalidBoolean(t *testing.T) {
	t.Setenv(EnvLoadLocalGenerators, "maybe")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestValidate(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) { s.PluginRoot = tmpDir }, false},
		{"unset plugin root", func(s *Settings) { s.PluginRoot = "" }, true},
		{"missing plugin root", func(s *Settings) { s.PluginRoot = filepath.Join(tmpDir, "nope") }, true},
		{"plugin root is a file", func(s *Settings) { s.PluginRoot = file }, true},
		{"empty data dir", func(s *Settings) { s.PluginRoot = tmpDir; s.DataDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(s)
			err := s.Validate()
			if tt.wantErr {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvPluginRoot, "")
	path := filepath.Join(t.TempDir(), "nested", "badger.yaml")
	s := Default()
	s.PluginRoot = "/plugins"

	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/plugins", loaded.PluginRoot)
}
