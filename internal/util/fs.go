package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the artifact directory and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins name under root, discarding any directory components so a
// case number or file name from outside input cannot escape the root.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}
