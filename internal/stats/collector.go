package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Writer is the subset of Collector the engine records into.
type Writer interface {
	SetBytesTotal(n int64)
	AddBytesCopied(n int64)
	AddShortReads(n int64)
	AddShortWrites(n int64)
	AddRetries(n int64)
	AddDirsCreated(n int64)
}

// Reader is the subset of Collector presenters read from.
type Reader interface {
	Snapshot() Snapshot
}

// ReadTicker is a Reader that also maintains the throughput ring buffer.
type ReadTicker interface {
	Reader
	Tick()
	RollingSpeed(seconds int) float64
	ETA() time.Duration
}

// Collector tracks copy statistics using lock-free atomic counters. The
// engine writes from the copy loop while the presenter reads concurrently.
type Collector struct {
	bytesCopied atomic.Int64
	bytesTotal  atomic.Int64
	shortReads  atomic.Int64
	shortWrites atomic.Int64
	retries     atomic.Int64
	dirsCreated atomic.Int64
	startTime   time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // how many samples have been written (capped at ringSize)
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BytesCopied int64
	BytesTotal  int64
	ShortReads  int64
	ShortWrites int64
	Retries     int64
	DirsCreated int64
	Elapsed     time.Duration
}

func (c *Collector) SetBytesTotal(n int64)  { c.bytesTotal.Store(n) }
func (c *Collector) AddBytesCopied(n int64) { c.bytesCopied.Add(n) }
func (c *Collector) AddShortReads(n int64)  { c.shortReads.Add(n) }
func (c *Collector) AddShortWrites(n int64) { c.shortWrites.Add(n) }
func (c *Collector) AddRetries(n int64)     { c.retries.Add(n) }
func (c *Collector) AddDirsCreated(n int64) { c.dirsCreated.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BytesCopied: c.bytesCopied.Load(),
		BytesTotal:  c.bytesTotal.Load(),
		ShortReads:  c.shortReads.Load(),
		ShortWrites: c.shortWrites.Load(),
		Retries:     c.retries.Load(),
		DirsCreated: c.dirsCreated.Load(),
		Elapsed:     c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"bytes=%d/%d short_reads=%d short_writes=%d retries=%d dirs=%d",
		s.BytesCopied, s.BytesTotal, s.ShortReads, s.ShortWrites, s.Retries, s.DirsCreated,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
