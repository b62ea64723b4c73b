// Package builtin registers the plugins shipped with Badger and can install
// their declarations into a plugin root.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/michaellans/Badger/internal/plugin"
)

//go:embed all:root
var files embed.FS

func init() {
	plugin.RegisterInterface("sim", simPlugin)
	plugin.RegisterEnvironment("test", testPlugin)
	plugin.RegisterGenerator("random_search", randomSearchPlugin)
}

// Install writes the bundled plugin directories into root. Existing files
// are only replaced when overwrite is set.
func Install(root string, overwrite bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(files, "root", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("root", path)
		if err != nil {
			return err
		}
		dst := filepath.Join(root, rel)

		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if _, err := os.Stat(dst); err == nil && !overwrite {
			return nil
		}

		data, err := files.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
		written = append(written, dst)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to install builtin plugins: %w", err)
	}
	return written, nil
}
