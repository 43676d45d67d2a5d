package engine

import (
	"context"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps copy throughput to
// bytesPerSec. The burst is capped at 1 MB so a large chunk size does not
// turn into one long stall.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// waitBandwidth blocks until n bytes may pass. WaitN rejects requests larger
// than the burst, so big chunks are admitted in burst-sized pieces.
func waitBandwidth(ctx context.Context, lim *rate.Limiter, n int) error {
	burst := max(lim.Burst(), 1)
	for n > 0 {
		step := min(n, burst)
		if err := lim.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
