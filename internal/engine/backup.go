package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Backup preserves a pre-existing destination as a hidden hardlink sibling
// (".<name>.bk") while the destination is being replaced.
type Backup struct {
	Path    string // backup sibling path
	dst     string
	created bool
	link    func(oldname, newname string) error
}

// NewBackup returns the backup record for dst. Nothing is touched on disk.
func NewBackup(dst string) *Backup {
	return &Backup{
		Path: BackupPath(dst),
		dst:  dst,
		link: os.Link,
	}
}

// BackupPath returns the hidden sibling name used to back up dst.
func BackupPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".bk")
}

// Exists reports whether the backup has been created and not yet removed.
func (b *Backup) Exists() bool { return b.created }

// Create links the current destination entry to the backup path. An existing
// file at the backup path is left alone and reported as BackupCreationFailed.
func (b *Backup) Create() error {
	if err := b.link(b.dst, b.Path); err != nil {
		return newError(BackupCreationFailed, "link", b.Path, err)
	}
	b.created = true
	slog.Debug("created backup", "dst", b.dst, "backup", b.Path)
	return nil
}

// Discard removes the backup after a successful commit.
func (b *Backup) Discard() error {
	if !b.created {
		return nil
	}
	if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove backup %s: %w", b.Path, err)
	}
	b.created = false
	return nil
}

// Restore puts the backed-up entry back under the destination name and then
// removes the backup. dstRemoved tells whether the original destination entry
// was already unlinked; if it was not, only the backup needs to go.
//
// If the destination cannot be re-linked the backup is left in place and a
// RollbackFailed error naming it is returned.
func (b *Backup) Restore(dstRemoved bool) error {
	if !b.created {
		return nil
	}

	if dstRemoved {
		if err := os.Remove(b.dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return newError(RollbackFailed, "remove partial destination", b.Path, err)
		}
		if err := b.link(b.Path, b.dst); err != nil {
			return newError(RollbackFailed, "restore destination from backup", b.Path, err)
		}
		slog.Debug("restored destination from backup", "dst", b.dst, "backup", b.Path)
	}

	if err := b.Discard(); err != nil {
		// The destination is intact; only the extra link remains.
		return newError(RollbackFailed, "remove backup", b.Path, err)
	}
	return nil
}
