package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/safecp/internal/event"
	"github.com/bamsammich/safecp/internal/platform"
	"github.com/bamsammich/safecp/internal/stats"
)

// scriptedReader replays a sequence of read results before serving data.
type scriptedReader struct {
	data   []byte
	limit  int     // max bytes per read, 0 = unlimited
	errs   []error // returned (one per call) before any data
	closed bool    // return EOF once data runs out
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return 0, err
	}
	if len(r.data) == 0 {
		if r.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := len(p)
	if r.limit > 0 && n > r.limit {
		n = r.limit
	}
	n = copy(p, r.data[:min(n, len(r.data))])
	r.data = r.data[n:]
	return n, nil
}

// scriptedWriter accepts at most limit bytes per call and can fail on demand.
type scriptedWriter struct {
	buf   bytes.Buffer
	limit int
	errs  []error
	zero  bool // report zero progress
}

func (w *scriptedWriter) Write(p []byte) (int, error) {
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return 0, err
	}
	if w.zero {
		return 0, nil
	}
	n := len(p)
	if w.limit > 0 && n > w.limit {
		n = w.limit
	}
	return w.buf.Write(p[:n])
}

func newTestCopier(chunk int) (*Copier, *stats.Collector) {
	s := stats.NewCollector()
	return NewCopier(CopierConfig{ChunkSize: chunk, Stats: s}), s
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestPump_ShortReadsAndWritesAreLooped(t *testing.T) {
	c, s := newTestCopier(64)
	data := randomBytes(t, 1000)

	r := &scriptedReader{data: data, limit: 10}
	w := &scriptedWriter{limit: 7}

	n, err := c.pump(context.Background(), r, w, int64(len(data)), "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, w.buf.Bytes())

	snap := s.Snapshot()
	assert.Equal(t, int64(len(data)), snap.BytesCopied)
	assert.Positive(t, snap.ShortReads)
	assert.Positive(t, snap.ShortWrites)
}

func TestPump_RetriesTransientErrors(t *testing.T) {
	c, s := newTestCopier(DefaultChunkSize)
	data := []byte("retry me")

	r := &scriptedReader{data: data, errs: []error{unix.EINTR, unix.EAGAIN}}
	w := &scriptedWriter{errs: []error{unix.EINTR}}

	n, err := c.pump(context.Background(), r, w, int64(len(data)), "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, w.buf.Bytes())
	assert.Equal(t, int64(3), s.Snapshot().Retries)
}

func TestPump_SourceTruncated(t *testing.T) {
	for _, closed := range []bool{false, true} {
		c, _ := newTestCopier(16)
		r := &scriptedReader{data: []byte("only twenty bytes!!!"), closed: closed}
		w := &scriptedWriter{}

		n, err := c.pump(context.Background(), r, w, 100, "src", "dst")
		require.Error(t, err)
		assert.ErrorIs(t, err, SourceTruncated)
		assert.Equal(t, int64(16), n, "only whole chunks are counted as copied")
		assert.Contains(t, err.Error(), "current size 20, expected size 100")
	}
}

func TestPump_ReadFailure(t *testing.T) {
	c, _ := newTestCopier(16)
	r := &scriptedReader{errs: []error{unix.EIO}}

	_, err := c.pump(context.Background(), r, &scriptedWriter{}, 10, "src", "dst")
	require.Error(t, err)
	assert.ErrorIs(t, err, IOFailure)
	assert.ErrorIs(t, err, unix.EIO)
	assert.Contains(t, err.Error(), "read source")
}

func TestPump_WriteFailure(t *testing.T) {
	c, _ := newTestCopier(16)
	w := &scriptedWriter{errs: []error{unix.ENOSPC}}

	_, err := c.pump(context.Background(), &scriptedReader{data: []byte("abc")}, w, 3, "src", "dst")
	require.Error(t, err)
	assert.ErrorIs(t, err, IOFailure)
	assert.ErrorIs(t, err, unix.ENOSPC)
}

func TestPump_ZeroProgressWrite(t *testing.T) {
	c, _ := newTestCopier(16)
	w := &scriptedWriter{zero: true}

	_, err := c.pump(context.Background(), &scriptedReader{data: []byte("abc")}, w, 3, "src", "dst")
	require.Error(t, err)
	assert.ErrorIs(t, err, DestinationTruncated)
}

func TestPump_Cancelled(t *testing.T) {
	c, _ := newTestCopier(8)
	data := randomBytes(t, 64)
	ctx, cancel := context.WithCancel(context.Background())

	w := &cancelWriter{w: &scriptedWriter{}, cancel: cancel}
	n, err := c.pump(ctx, &scriptedReader{data: data}, w, int64(len(data)), "src", "dst")
	require.Error(t, err)
	assert.ErrorIs(t, err, Cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(8), n, "cancellation is observed at the first chunk boundary")
}

func TestPump_EmitsProgress(t *testing.T) {
	events := make(chan event.Event, 64)
	c := NewCopier(CopierConfig{ChunkSize: 4, Events: events})

	_, err := c.pump(context.Background(), &scriptedReader{data: []byte("0123456789")}, &scriptedWriter{}, 10, "src", "dst")
	require.NoError(t, err)
	close(events)

	var progress []int64
	for ev := range events {
		if ev.Type == event.CopyProgress {
			progress = append(progress, ev.Size)
			assert.Equal(t, int64(10), ev.Total)
		}
	}
	assert.Equal(t, []int64{4, 8, 10}, progress)
}

// cancelWriter cancels its context after the first successful write.
type cancelWriter struct {
	w      chunkWriter
	cancel context.CancelFunc
}

func (c *cancelWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.cancel()
	return n, err
}

func TestCopy_HardlinkSameFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("linked"), 0o644))

	c, _ := newTestCopier(0)
	res, err := c.Copy(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, platform.Hardlink, res.Method)
	assert.Zero(t, res.BytesWritten)

	assertSameFile(t, src, dst)
}

func TestCopy_CrossDeviceFallsBackToBytes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	data := randomBytes(t, 10*1024+17)
	require.NoError(t, os.WriteFile(src, data, 0o600))
	require.NoError(t, os.Chmod(src, 0o751))

	c, _ := newTestCopier(0)
	c.link = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: unix.EXDEV}
	}

	res, err := c.Copy(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, platform.ReadWrite, res.Method)
	assert.Equal(t, int64(len(data)), res.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.False(t, os.SameFile(srcInfo, dstInfo), "byte copy must produce a distinct inode")
	assert.Equal(t, os.FileMode(0o751), dstInfo.Mode().Perm())
}

func TestCopy_NoHardlinkForcesByteCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	c := NewCopier(CopierConfig{NoHardlink: true})
	c.link = func(string, string) error {
		t.Fatal("link must not be attempted")
		return nil
	}

	res, err := c.Copy(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, platform.ReadWrite, res.Method)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestCopy_OtherLinkErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	c, _ := newTestCopier(0)
	c.link = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: unix.EPERM}
	}

	_, err := c.Copy(context.Background(), src, dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, LinkCreationFailed)
	assert.NoFileExists(t, dst)
}

func TestCopy_SymlinkRecreatedWithAbsoluteTarget(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	realFile := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(realFile, []byte("content"), 0o644))
	src := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink("real.txt", src)) // relative target
	dst := filepath.Join(dir, "copy")

	c, _ := newTestCopier(0)
	res, err := c.Copy(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, platform.Symlink, res.Method)

	target, err := os.Readlink(dst)
	require.NoError(t, err)
	assert.Equal(t, realFile, target)
}

func TestCopy_SymlinkCreationFailure(t *testing.T) {
	dir := t.TempDir()
	realFile := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(realFile, nil, 0o644))
	src := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(realFile, src))

	c, _ := newTestCopier(0)
	c.symlink = func(string, string) error { return errors.New("no symlinks here") }

	_, err := c.Copy(context.Background(), src, filepath.Join(dir, "copy"))
	assert.ErrorIs(t, err, SymlinkCreationFailed)
}

func TestCopy_DanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), src))

	c, _ := newTestCopier(0)
	_, err := c.Copy(context.Background(), src, filepath.Join(dir, "copy"))
	assert.ErrorIs(t, err, SymlinkResolutionFailed)
}

func assertSameFile(t *testing.T, a, b string) {
	t.Helper()
	ai, err := os.Stat(a)
	require.NoError(t, err)
	bi, err := os.Stat(b)
	require.NoError(t, err)
	assert.True(t, os.SameFile(ai, bi), "%s and %s should share an inode", a, b)
}

func TestNewCopier_ChunkSizeBounds(t *testing.T) {
	tests := []struct {
		name  string
		chunk int
		want  int
	}{
		{"zero uses default", 0, DefaultChunkSize},
		{"negative uses default", -1, DefaultChunkSize},
		{"in range kept", 1 << 20, 1 << 20},
		{"ceiling kept", MaxChunkSize, MaxChunkSize},
		{"huge clamped", math.MaxInt, MaxChunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCopier(tt.chunk)
			assert.Equal(t, tt.want, c.cfg.ChunkSize)
		})
	}
}

func TestChunkBuffer_SizedToFile(t *testing.T) {
	c, _ := newTestCopier(MaxChunkSize)
	assert.Len(t, c.chunkBuffer(10), 10, "small file gets a small buffer")
	assert.Len(t, c.chunkBuffer(0), 1, "empty file still gets a usable buffer")
	assert.Len(t, c.chunkBuffer(1<<40), MaxChunkSize)

	c, _ = newTestCopier(16)
	assert.Len(t, c.chunkBuffer(1000), 16)
}

func TestPump_LargeChunkSmallFile(t *testing.T) {
	c, _ := newTestCopier(math.MaxInt)
	data := randomBytes(t, 300)
	w := &scriptedWriter{}

	n, err := c.pump(context.Background(), &scriptedReader{data: data}, w, int64(len(data)), "src", "dst")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, w.buf.Bytes())
}
