package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRoutineStore(t *testing.T) *FSRoutineStore {
	t.Helper()
	s, err := NewFSRoutineStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRoutineSaveAssignsID(t *testing.T) {
	s := setupRoutineStore(t)

	spec := testSpec("", "beam tuning")
	require.NoError(t, s.Save(&spec))
	assert.NotEmpty(t, spec.ID)
	assert.False(t, spec.Created.IsZero())

	loaded, ts, err := s.Load(spec.ID)
	require.NoError(t, err)
	assert.Equal(t, "beam tuning", loaded.Name)
	assert.Equal(t, spec.ID, loaded.ID)
	assert.False(t, ts.IsZero())
}

func TestRoutineSaveRejectsInvalid(t *testing.T) {
	s := setupRoutineStore(t)

	spec := testSpec("", "")
	assert.Error(t, s.Save(&spec))
	assert.Error(t, s.Save(nil))
}

func TestRoutineLoadAndRemoveNotFound(t *testing.T) {
	s := setupRoutineStore(t)

	_, _, err := s.Load("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Remove("nope"), ErrNotFound))
}

func TestRoutineIDsStayInsideStore(t *testing.T) {
	s := setupRoutineStore(t)

	spec := testSpec("", "outside")
	require.NoError(t, s.Save(&spec))
	require.NoError(t, os.Rename(s.routinePath(spec.ID), filepath.Join(s.baseDir, "secret.yaml")))

	for _, id := range []string{"../secret", "../../secret", "/etc/passwd", `..\secret`, "a/b", ".."} {
		_, _, err := s.Load(id)
		assert.ErrorIs(t, err, ErrNotFound, "load %q", id)
		assert.ErrorIs(t, s.Remove(id), ErrNotFound, "remove %q", id)
	}
	assert.FileExists(t, filepath.Join(s.baseDir, "secret.yaml"))

	escaping := testSpec("../escaped", "escaping")
	assert.Error(t, s.Save(&escaping))
	assert.NoFileExists(t, filepath.Join(s.baseDir, "escaped.yaml"))
}

func TestRoutineListFilters(t *testing.T) {
	s := setupRoutineStore(t)

	specs := []struct {
		name string
		tags []string
	}{
		{"Beam Tuning", []string{"linac", "daily"}},
		{"beam scan", []string{"linac"}},
		{"orbit fix", []string{"ring"}},
	}
	for _, sp := range specs {
		spec := testSpec("", sp.name)
		spec.Tags = sp.tags
		require.NoError(t, s.Save(&spec))
	}

	all, err := s.List("", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	beam, err := s.List("BEAM", nil)
	require.NoError(t, err)
	assert.Len(t, beam, 2)

	glob, err := s.List("*fix", nil)
	require.NoError(t, err)
	require.Len(t, glob, 1)
	assert.Equal(t, "orbit fix", glob[0].Name)

	tagged, err := s.List("beam", []string{"daily"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "Beam Tuning", tagged[0].Name)

	_, err = s.List("[", nil)
	assert.Error(t, err)
}

func TestRoutineListNewestFirst(t *testing.T) {
	s := setupRoutineStore(t)

	first := testSpec("first", "first")
	require.NoError(t, s.Save(&first))
	// mtime resolution on some filesystems is coarse
	time.Sleep(20 * time.Millisecond)
	second := testSpec("second", "second")
	require.NoError(t, s.Save(&second))

	infos, err := s.List("", nil)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "second", infos[0].ID)
}

func TestRoutineExportImport(t *testing.T) {
	src := setupRoutineStore(t)
	a := testSpec("", "a")
	b := testSpec("", "b")
	require.NoError(t, src.Save(&a))
	require.NoError(t, src.Save(&b))

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, src.Export(path, []string{a.ID, b.ID}))

	dst := setupRoutineStore(t)
	imported, err := dst.Import(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, imported)

	// a second import skips existing IDs
	again, err := dst.Import(path)
	require.NoError(t, err)
	assert.Empty(t, again)

	assert.True(t, errors.Is(src.Export(path, []string{"missing"}), ErrNotFound))
}

func TestRoutineConcurrentSave(t *testing.T) {
	s := setupRoutineStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spec := testSpec("", "concurrent")
			assert.NoError(t, s.Save(&spec))
		}()
	}
	wg.Wait()

	infos, err := s.List("concurrent", nil)
	require.NoError(t, err)
	assert.Len(t, infos, 10)
}
