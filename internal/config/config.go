// Package config provides process-wide settings for Badger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values read from the settings file.
const (
	EnvPluginRoot          = "BADGER_PLUGIN_ROOT"
	EnvDataDir             = "BADGER_DATA_DIR"
	EnvLoadLocalGenerators = "BADGER_LOAD_LOCAL_GENERATORS"
)

// DefaultExcludedGenerators lists generator names from the generator library
// that are not wired into routines (multi-objective, time-dependent and
// multi-fidelity variants).
var DefaultExcludedGenerators = []string{
	"bayesian_exploration",
	"cnsga",
	"mggpo",
	"time_dependent_upper_confidence_bound",
	"multi_fidelity",
	"nsga2",
}

// Settings holds the process-wide configuration.
type Settings struct {
	// PluginRoot is the directory holding interfaces/, environments/ and generators/
	PluginRoot string `yaml:"plugin_root"`
	// DataDir is where routines, runs and traces are persisted
	DataDir string `yaml:"data_dir"`
	// LoadLocalGenerators scans PluginRoot/generators instead of using the generator library
	LoadLocalGenerators bool `yaml:"load_local_generators"`
	// ExcludedGenerators filters generator library names in library-only mode
	ExcludedGenerators []string `yaml:"excluded_generators"`
	// ServerAddr is the listen address of the run monitor
	ServerAddr string `yaml:"server_addr"`
}

// Default returns Settings with sensible defaults.
func Default() *Settings {
	excluded := make([]string, len(DefaultExcludedGenerators))
	copy(excluded, DefaultExcludedGenerators)

	return &Settings{
		DataDir:            "./data",
		ExcludedGenerators: excluded,
		ServerAddr:         ":8080",
	}
}

// Load reads settings from path (optional, may be empty) and applies
// environment overrides. The result is not validated.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Key: "config", Reason: fmt.Sprintf("failed to read %s: %v", path, err)}
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, &ConfigError{Key: "config", Reason: fmt.Sprintf("failed to parse %s: %v", path, err)}
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvPluginRoot); v != "" {
		s.PluginRoot = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv(EnvLoadLocalGenerators); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Key: EnvLoadLocalGenerators, Reason: fmt.Sprintf("invalid boolean %q", v)}
		}
		s.LoadLocalGenerators = b
	}
	return nil
}

// Validate checks that the settings can be used to start Badger.
// A missing plugin root is fatal.
func (s *Settings) Validate() error {
	if s.PluginRoot == "" {
		return &ConfigError{Key: EnvPluginRoot, Reason: "please set the " + EnvPluginRoot + " env var"}
	}
	info, err := os.Stat(s.PluginRoot)
	if err != nil {
		return &ConfigError{Key: EnvPluginRoot, Reason: fmt.Sprintf("the plugin root %s does not exist", s.PluginRoot)}
	}
	if !info.IsDir() {
		return &ConfigError{Key: EnvPluginRoot, Reason: fmt.Sprintf("the plugin root %s is not a directory", s.PluginRoot)}
	}
	if s.DataDir == "" {
		return &ConfigError{Key: "data_dir", Reason: "cannot be empty"}
	}
	return nil
}

// Save writes the settings to path as YAML.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// IsExcluded reports whether a generator library name is denylisted.
func (s *Settings) IsExcluded(name string) bool {
	for _, n := range s.ExcludedGenerators {
		if n == name {
			return true
		}
	}
	return false
}

// ConfigError represents missing or invalid process-wide configuration.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config error: " + e.Reason
	}
	return "config error: " + e.Key + ": " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// ErrConfig matches any ConfigError with errors.Is.
var ErrConfig = &ConfigError{}
