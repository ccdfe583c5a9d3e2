package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupPagesDir creates a temporary directory holding the given page files,
// keyed by relative path. Intermediate directories are created as needed.
// It returns the absolute path and fails the test immediately on error.
func SetupPagesDir(t *testing.T, files map[string]string) string {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	for name, content := range files {
		WritePage(t, absPath, name, content)
	}
	return absPath
}

// WritePage writes one page file under dir.
func WritePage(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "Failed to create page dir")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write page %s", name)
}
