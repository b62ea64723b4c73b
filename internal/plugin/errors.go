package plugin

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks plugins whose declaration is valid but whose code or
// dependencies are not part of this binary.
var ErrUnavailable = errors.New("plugin unavailable")

// InvalidPluginError reports a plugin that could not be loaded. Config is
// set when the declaration parsed, so callers can still show metadata.
type InvalidPluginError struct {
	Kind   Kind
	Name   string
	Reason string
	Config *Config
	Err    error
}

func (e *InvalidPluginError) Error() string {
	msg := fmt.Sprintf("error loading plugin %s %s: %s", e.Kind, e.Name, e.Reason)
	if e.Err != nil && !errors.Is(e.Err, ErrUnavailable) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidPluginError) Unwrap() error { return e.Err }

// Unavailable reports whether the plugin is well formed but cannot run here.
func (e *InvalidPluginError) Unavailable() bool {
	return errors.Is(e.Err, ErrUnavailable)
}

func (e *InvalidPluginError) Is(target error) bool {
	_, ok := target.(*InvalidPluginError)
	return ok
}

// PluginNotFoundError is returned for names the registry never indexed.
type PluginNotFoundError struct {
	Kind Kind
	Name string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("error loading plugin %s %s: plugin not found", e.Kind, e.Name)
}

func (e *PluginNotFoundError) Is(target error) bool {
	_, ok := target.(*PluginNotFoundError)
	return ok
}

// InvalidPluginKindError is returned for kinds other than interface,
// environment and generator.
type InvalidPluginKindError struct {
	Kind string
}

func (e *InvalidPluginKindError) Error() string {
	return fmt.Sprintf("invalid plugin kind %q", e.Kind)
}

// InvalidDocsError is returned when a plugin's documentation cannot be found.
type InvalidDocsError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *InvalidDocsError) Error() string {
	return fmt.Sprintf("error loading docs for %s %s: docs not found", e.Kind, e.Name)
}

func (e *InvalidDocsError) Unwrap() error { return e.Err }
