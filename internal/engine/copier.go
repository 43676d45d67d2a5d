package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/safecp/internal/event"
	"github.com/bamsammich/safecp/internal/platform"
	"github.com/bamsammich/safecp/internal/stats"
)

const (
	// DefaultChunkSize is the read/write unit of the byte copy.
	DefaultChunkSize = 4 << 10
	// MaxChunkSize bounds the copy buffer. Larger values are clamped.
	MaxChunkSize = 64 << 20
)

// chunkReader and chunkWriter are single-syscall I/O: a call may transfer
// fewer bytes than asked and may fail with a retryable errno.
type chunkReader interface {
	Read(p []byte) (int, error)
}

type chunkWriter interface {
	Write(p []byte) (int, error)
}

// CopierConfig controls strategy selection and the byte copy.
type CopierConfig struct {
	ChunkSize  int
	NoHardlink bool          // always byte-copy regular files
	Limiter    *rate.Limiter // optional bandwidth cap
	Stats      stats.Writer
	Events     chan<- event.Event
}

// Copier picks between symlink recreation, hardlinking and a chunked byte
// copy, in that order.
type Copier struct {
	cfg        CopierConfig
	link       func(oldname, newname string) error
	symlink    func(oldname, newname string) error
	wrapWriter func(chunkWriter) chunkWriter
}

// NewCopier creates a Copier using the real link/symlink primitives.
func NewCopier(cfg CopierConfig) *Copier {
	switch {
	case cfg.ChunkSize <= 0:
		cfg.ChunkSize = DefaultChunkSize
	case cfg.ChunkSize > MaxChunkSize:
		slog.Warn("chunk size too large; clamping", "chunk_size", cfg.ChunkSize, "max", MaxChunkSize)
		cfg.ChunkSize = MaxChunkSize
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	return &Copier{
		cfg:     cfg,
		link:    os.Link,
		symlink: os.Symlink,
	}
}

// Copy creates dst from src. dst must not exist.
func (c *Copier) Copy(ctx context.Context, src, dst string) (platform.CopyResult, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return platform.CopyResult{}, newError(SourceNotFound, "lstat", src, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if err := c.copySymlink(src, dst); err != nil {
			return platform.CopyResult{}, err
		}
		return platform.CopyResult{Method: platform.Symlink}, nil
	}

	if !c.cfg.NoHardlink {
		err := c.link(src, dst)
		if err == nil {
			slog.Info("created hardlink", "src", src, "dst", dst)
			emitEvent(c.cfg.Events, event.Event{Type: event.HardlinkCreated, Path: dst, Target: src})
			return platform.CopyResult{Method: platform.Hardlink}, nil
		}
		if !platform.IsCrossDevice(err) {
			return platform.CopyResult{}, newError(LinkCreationFailed, "link", dst, err)
		}
		slog.Info("source and destination are on different filesystems; copying bytes",
			"src", src, "dst", dst)
		emitEvent(c.cfg.Events, event.Event{Type: event.CrossDevice, Path: dst, Target: src})
	}

	n, err := c.copyBytes(ctx, src, dst)
	return platform.CopyResult{BytesWritten: n, Method: platform.ReadWrite}, err
}

func (c *Copier) copySymlink(src, dst string) error {
	target, err := platform.Realpath(src)
	if err != nil {
		return newError(SymlinkResolutionFailed, "resolve", src, err)
	}
	if err := c.symlink(target, dst); err != nil {
		return newError(SymlinkCreationFailed, "symlink", dst, err)
	}
	slog.Info("source is a symlink; created symlink", "dst", dst, "target", target)
	emitEvent(c.cfg.Events, event.Event{Type: event.SymlinkCreated, Path: dst, Target: target})
	return nil
}

func (c *Copier) copyBytes(ctx context.Context, src, dst string) (int64, error) {
	in, err := platform.OpenLocked(src, unix.O_RDONLY, 0)
	if err != nil {
		return 0, newError(IOFailure, "open source", src, err)
	}
	defer in.Close()

	size := in.Size()
	perm := in.Perm()

	out, err := platform.OpenLocked(dst, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL, perm)
	if err != nil {
		return 0, newError(IOFailure, "open destination", dst, err)
	}
	defer out.Close()

	if err := out.Chmod(perm); err != nil {
		return 0, newError(IOFailure, "chmod destination", dst, err)
	}
	out.Preallocate(size)

	c.cfg.Stats.SetBytesTotal(size)
	emitEvent(c.cfg.Events, event.Event{Type: event.CopyStarted, Path: dst, Total: size})

	var w chunkWriter = out
	if c.wrapWriter != nil {
		w = c.wrapWriter(w)
	}

	n, err := c.pump(ctx, in, w, size, src, dst)
	if err != nil {
		return n, err
	}

	if err := out.Close(); err != nil {
		return n, newError(IOFailure, "close destination", dst, err)
	}
	emitEvent(c.cfg.Events, event.Event{Type: event.CopyCompleted, Path: dst, Size: n, Total: size})
	return n, nil
}

// pump moves exactly size bytes from r to w in chunks. The source size is
// the one recorded at open; running out early means the source shrank.
func (c *Copier) pump(
	ctx context.Context,
	r chunkReader,
	w chunkWriter,
	size int64,
	src, dst string,
) (int64, error) {
	buf := c.chunkBuffer(size)

	var copied int64
	for copied < size {
		want := int(min(int64(len(buf)), size-copied))
		chunk := buf[:want]

		if err := c.readChunk(r, chunk, copied, size, src); err != nil {
			return copied, err
		}
		if err := c.writeChunk(w, chunk, copied, size, dst); err != nil {
			return copied, err
		}

		copied += int64(want)
		c.cfg.Stats.AddBytesCopied(int64(want))
		emitEvent(c.cfg.Events, event.Event{
			Type:  event.CopyProgress,
			Path:  dst,
			Size:  copied,
			Total: size,
		})

		if c.cfg.Limiter != nil {
			if err := waitBandwidth(ctx, c.cfg.Limiter, want); err != nil {
				return copied, newError(Cancelled, "copy", dst, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return copied, newError(Cancelled, "copy", dst, err)
		}
	}
	return copied, nil
}

// chunkBuffer never allocates more than the file needs.
func (c *Copier) chunkBuffer(size int64) []byte {
	return make([]byte, min(int64(c.cfg.ChunkSize), max(size, 1)))
}

// readChunk fills p completely. offset is where p starts in the source.
func (c *Copier) readChunk(r chunkReader, p []byte, offset, size int64, path string) error {
	filled := 0
	for filled < len(p) {
		n, err := r.Read(p[filled:])
		if err != nil && !errors.Is(err, io.EOF) {
			if platform.IsRetryable(err) {
				c.cfg.Stats.AddRetries(1)
				continue
			}
			return newError(IOFailure, "read source", path, err)
		}
		if n == 0 {
			return truncatedError(SourceTruncated, path, offset+int64(filled), size)
		}
		if want := len(p) - filled; n < want {
			slog.Debug("short read", "path", path, "got", n, "want", want)
			c.cfg.Stats.AddShortReads(1)
			emitEvent(c.cfg.Events, event.Event{Type: event.ShortRead, Path: path, Size: int64(n)})
		}
		filled += n
	}
	return nil
}

// writeChunk drains p completely. offset is where p starts in the destination.
func (c *Copier) writeChunk(w chunkWriter, p []byte, offset, size int64, path string) error {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		if err != nil {
			if platform.IsRetryable(err) {
				c.cfg.Stats.AddRetries(1)
				continue
			}
			return newError(IOFailure, "write destination", path, err)
		}
		if n == 0 {
			return truncatedError(DestinationTruncated, path, offset+int64(written), size)
		}
		if want := len(p) - written; n < want {
			slog.Debug("short write", "path", path, "wrote", n, "want", want)
			c.cfg.Stats.AddShortWrites(1)
			emitEvent(c.cfg.Events, event.Event{Type: event.ShortWrite, Path: path, Size: int64(n)})
		}
		written += n
	}
	return nil
}
