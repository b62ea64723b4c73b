package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFrontMatter(t *testing.T) {
	in := "---\ntitle: sample\nsidebar: 2\n---\n# Sample\n\nBody\n---\nkept\n"
	assert.Equal(t, "# Sample\n\nBody\n---\nkept\n", StripFrontMatter(in))
	assert.Equal(t, "# Plain\n", StripFrontMatter("# Plain\n"))
}

func TestDocs(t *testing.T) {
	root := testRoot(t)
	readme := "---\ntitle: sample\n---\n# Sample environment\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "environments", "sample_env", ReadmeFile), []byte(readme), 0644))
	r := NewRegistry(root)

	doc, err := r.Docs(KindEnvironment, "sample_env")
	require.NoError(t, err)
	assert.Equal(t, "# Sample environment\n", doc)

	doc, err = r.Docs(KindEnvironment, "orphan_env")
	require.NoError(t, err)
	assert.Contains(t, doc, "No readme found")

	_, err = r.Docs(KindEnvironment, "missing")
	var invalid *InvalidDocsError
	assert.ErrorAs(t, err, &invalid)

	doc, err = r.Docs(KindGenerator, "random")
	require.NoError(t, err)
	assert.Contains(t, doc, "# random")
}
