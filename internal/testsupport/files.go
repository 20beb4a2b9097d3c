package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a small file under the test's temp dir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
