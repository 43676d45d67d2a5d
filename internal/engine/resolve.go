package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ValidateSource checks that src exists (following symlinks) and is not a
// directory. A dangling symlink counts as missing.
func ValidateSource(src string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError(SourceNotFound, "stat", src, nil)
		}
		return newError(SourceNotFound, "stat", src, err)
	}
	if info.IsDir() {
		return newError(SourceIsDirectory, "", src, nil)
	}
	return nil
}

// ResolveDestination computes the absolute path that will hold the copy.
// If dst is an existing directory, or ends in a separator, the source's base
// name is appended. Resolving to the source itself is rejected.
func ResolveDestination(src, dst string) (string, error) {
	if dst == "" {
		return "", newError(EmptyDestination, "", "", nil)
	}

	resolved := dst
	if strings.HasSuffix(dst, string(filepath.Separator)) || isDir(dst) {
		resolved = filepath.Join(dst, filepath.Base(src))
	}

	absDst, err := filepath.Abs(resolved)
	if err != nil {
		return "", newError(InvalidDestination, "abs", resolved, err)
	}
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", newError(InvalidDestination, "abs", src, err)
	}

	if absDst == absSrc {
		return "", newError(InvalidDestination, "copy onto itself", absDst, nil)
	}
	if isDir(absDst) {
		return "", newError(InvalidDestination, "destination is a directory", absDst, nil)
	}
	return absDst, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
