package ui

import (
	"fmt"

	"github.com/bamsammich/safecp/internal/stats"
)

// completionSummary builds a final summary line from a snapshot.
// Format: done ✓  size 2.1 GiB  avg 641.0 MiB/s  time 3s  dirs 1
func completionSummary(snap stats.Snapshot, committed bool) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if !committed {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  size %s  avg %s  time %s",
		icon,
		stats.FormatBytes(snap.BytesCopied),
		formatRate(avgSpeed),
		formatElapsed(snap.Elapsed),
	)
	if snap.DirsCreated > 0 {
		base += fmt.Sprintf("  dirs %d", snap.DirsCreated)
	}
	if snap.ShortReads > 0 || snap.ShortWrites > 0 || snap.Retries > 0 {
		base += fmt.Sprintf("  short reads %d  short writes %d  retries %d",
			snap.ShortReads, snap.ShortWrites, snap.Retries)
	}
	return base
}
