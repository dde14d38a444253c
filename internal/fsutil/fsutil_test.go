package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "sub", "vocab.json")
	require.NoError(t, WriteFileAtomic(filePath, []byte(`{"a":0}`)))
	require.NoError(t, WriteFileAtomic(filePath, []byte(`{"b":0}`)))

	contents, err := ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, `{"b":0}`, string(contents))

	// No temporary files left behind.
	entries, err := os.ReadDir(filepath.Dir(filePath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	exists, err := FileExists(filePath)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteFileAtomicError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	// A file can't be used as a directory.
	err := WriteFileAtomic(filepath.Join(blocker, "vocab.json"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIO))

	_, err = ReadFile(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, errs.ErrIO))
}
