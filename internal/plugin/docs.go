package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/michaellans/Badger/internal/generator"
)

// ReadmeFile is the optional documentation of a plugin.
const ReadmeFile = "README.md"

// Docs returns the README of a plugin without its leading front matter.
// A plugin without a README gets a placeholder. Library generators are
// documented by their description.
func (r *Registry) Docs(kind Kind, name string) (string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return "", err
	}

	if kind == KindGenerator && !r.localGenerators {
		f, ok := generator.Lookup(name)
		if !ok || r.excluded[name] {
			return "", &InvalidDocsError{Kind: kind, Name: name, Err: &PluginNotFoundError{Kind: kind, Name: name}}
		}
		return fmt.Sprintf("# %s\n\n%s\n", name, f.Description), nil
	}

	if _, ok := r.entries[kind][name]; !ok {
		return "", &InvalidDocsError{Kind: kind, Name: name, Err: &PluginNotFoundError{Kind: kind, Name: name}}
	}

	data, err := os.ReadFile(filepath.Join(r.root, kind.Dir(), name, ReadmeFile))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("# %s\nNo readme found.\n", name), nil
	}
	if err != nil {
		return "", &InvalidDocsError{Kind: kind, Name: name, Err: err}
	}
	return StripFrontMatter(string(data)), nil
}

// StripFrontMatter removes the block enclosed by the first two `---` lines.
func StripFrontMatter(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	skip := false
	seen := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" && seen < 2 {
			skip = !skip
			seen++
			continue
		}
		if !skip {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
