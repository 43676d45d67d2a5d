package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a raw descriptor holding an exclusive advisory lock for as long as
// it is open. Read and Write issue exactly one syscall each and return the
// unwrapped errno so callers can decide what is retryable.
type File struct {
	fd   int
	path string
	stat unix.Stat_t
}

// OpenLocked opens path with flag and perm, takes an exclusive flock on the
// descriptor and records its fstat.
func OpenLocked(path string, flag int, perm uint32) (*File, error) {
	fd, err := openRetry(path, flag|unix.O_CLOEXEC, perm)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	f := &File{fd: fd, path: path}
	if err := flockRetry(fd, unix.LOCK_EX); err != nil {
		_ = unix.Close(fd)
		return nil, &os.PathError{Op: "flock", Path: path, Err: err}
	}
	if err := unix.Fstat(fd, &f.stat); err != nil {
		_ = f.Close()
		return nil, &os.PathError{Op: "fstat", Path: path, Err: err}
	}
	return f, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.path }

// Fd returns the raw descriptor.
func (f *File) Fd() int { return f.fd }

// Size returns the size recorded when the file was opened.
func (f *File) Size() int64 { return f.stat.Size }

// Perm returns the permission bits recorded when the file was opened.
func (f *File) Perm() uint32 { return uint32(f.stat.Mode) & 0o777 }

// Read performs a single read(2).
func (f *File) Read(p []byte) (int, error) {
	n, err := unix.Read(f.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write performs a single write(2).
func (f *File) Write(p []byte) (int, error) {
	n, err := unix.Write(f.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Chmod sets the permission bits on the open descriptor, independent of umask.
func (f *File) Chmod(perm uint32) error {
	if err := unix.Fchmod(f.fd, perm&0o777); err != nil {
		return &os.PathError{Op: "fchmod", Path: f.path, Err: err}
	}
	return nil
}

// Preallocate reserves size bytes for the file where the platform supports it.
func (f *File) Preallocate(size int64) {
	preallocate(f.fd, size)
}

// Close releases the lock and the descriptor. It is safe to call twice.
func (f *File) Close() error {
	if f.fd < 0 {
		return nil
	}
	//nolint:errcheck // the lock is released by close(2) regardless
	unix.Flock(f.fd, unix.LOCK_UN)
	err := unix.Close(f.fd)
	f.fd = -1
	if err != nil {
		return fmt.Errorf("close %s: %w", f.path, err)
	}
	return nil
}

func openRetry(path string, flag int, perm uint32) (int, error) {
	for {
		fd, err := unix.Open(path, flag, perm)
		if err == unix.EINTR {
			continue
		}
		return fd, err
	}
}

func flockRetry(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
