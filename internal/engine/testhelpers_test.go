package engine

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/safecp/internal/event"
)

func hashFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	h := blake3.Sum256(data)
	return h[:]
}

// collectEvents creates a buffered event channel that records all events.
// The getter closes the channel and waits for the drain goroutine, so it is
// safe to read the slice. It may be called at most once.
func collectEvents(t *testing.T) (chan<- event.Event, func() []event.Event) {
	t.Helper()
	ch := make(chan event.Event, 4096)
	var collected []event.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			collected = append(collected, ev)
		}
	}()
	var once sync.Once
	drain := func() {
		once.Do(func() { close(ch) })
		<-done
	}
	t.Cleanup(drain)
	return ch, func() []event.Event {
		drain()
		return collected
	}
}

func eventTypes(events []event.Event) []event.Type {
	types := make([]event.Type, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

// listTree returns every path under root, relative and sorted, so a test can
// assert that a failed run left the directory exactly as it found it.
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// failAfter passes writes through until limit bytes have been written, then
// fails every call with err.
type failAfter struct {
	w       chunkWriter
	limit   int
	written int
	err     error
}

func (f *failAfter) Write(p []byte) (int, error) {
	if f.written >= f.limit {
		return 0, f.err
	}
	n, err := f.w.Write(p)
	f.written += n
	return n, err
}

func failWritesAfter(limit int, err error) func(chunkWriter) chunkWriter {
	return func(w chunkWriter) chunkWriter {
		return &failAfter{w: w, limit: limit, err: err}
	}
}

// corruptWriter flips the first byte of every chunk it passes on.
type corruptWriter struct{ w chunkWriter }

func (c corruptWriter) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	if len(buf) > 0 {
		buf[0] ^= 0xff
	}
	return c.w.Write(buf)
}
