package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Provisioner creates the missing ancestors of a destination and remembers
// the shallowest one it created. Everything beneath that marker is new, so
// removing the marker's subtree restores the original directory state.
type Provisioner struct {
	marker string
	// created is called once per directory made.
	created func(dir string)
}

// Marker returns the shallowest directory created, or "" if none were.
func (p *Provisioner) Marker() string { return p.marker }

// Provision ensures dir exists, walking from the root down.
func (p *Provisioner) Provision(dir string) error {
	for _, d := range ancestors(dir) {
		info, err := os.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return p.fail(d, errors.New("not a directory"))
			}
			continue
		}
		if !os.IsNotExist(err) {
			return p.fail(d, err)
		}

		if err := os.Mkdir(d, 0o755); err != nil {
			if os.IsExist(err) && isDir(d) {
				continue // created by someone else in the meantime; not ours
			}
			return p.fail(d, err)
		}
		if p.marker == "" {
			p.marker = d
		}
		if p.created != nil {
			p.created(d)
		}
	}
	return nil
}

// Rollback removes the provisioned subtree. It is a no-op without a marker.
func (p *Provisioner) Rollback() error {
	if p.marker == "" {
		return nil
	}
	if err := os.RemoveAll(p.marker); err != nil {
		return fmt.Errorf("remove provisioned %s: %w", p.marker, err)
	}
	slog.Debug("removed provisioned directories", "dir", p.marker)
	p.marker = ""
	return nil
}

func (p *Provisioner) fail(dir string, cause error) error {
	if rbErr := p.Rollback(); rbErr != nil {
		slog.Warn("cleanup after directory creation failure", "error", rbErr)
	}
	return newError(DirectoryCreationFailed, "mkdir", dir, cause)
}

// ancestors returns dir and each of its parents, root first. dir must be
// absolute and clean.
func ancestors(dir string) []string {
	dir = filepath.Clean(dir)
	vol := filepath.VolumeName(dir)
	rest := strings.TrimPrefix(dir[len(vol):], string(filepath.Separator))
	if rest == "" {
		return nil
	}

	parts := strings.Split(rest, string(filepath.Separator))
	out := make([]string, 0, len(parts))
	cur := vol + string(filepath.Separator)
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		out = append(out, cur)
	}
	return out
}
