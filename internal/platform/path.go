package platform

import (
	"fmt"
	"path/filepath"
)

// Realpath returns the absolute path of name with every symlink resolved.
func Realpath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", name, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
