package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o644))
}

func TestMeasureSkipsConfiguredDirs(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "notes.md"), 100)
	writeBytes(t, filepath.Join(root, "data", "prices.csv"), 50)
	writeBytes(t, filepath.Join(root, ".git", "objects", "pack"), 1000)
	writeBytes(t, filepath.Join(root, "app", "node_modules", "dep.js"), 1000)

	s := &Sizer{Root: root, DataDir: filepath.Join(root, "data"), Skip: []string{".git", "node_modules"}}
	got, err := s.Measure(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(150), got.WorkspaceBytes)
	assert.Equal(t, int64(50), got.DataBytes)
}

func TestDirSizeMissingRoot(t *testing.T) {
	n, err := DirSize(context.Background(), filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDirSizeCancelled(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "a"), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DirSize(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
