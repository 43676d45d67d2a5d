package ui

import (
	"strings"
	"time"

	"github.com/bamsammich/safecp/internal/stats"
)

// formatRate uses the same binary units as sizes so "12.0 MiB / 40.0 MiB
// (3.0 MiB/s)" reads consistently.
func formatRate(bytesPerSec float64) string {
	if bytesPerSec < 1 {
		return "0 B/s"
	}
	return stats.FormatBytes(int64(bytesPerSec)) + "/s"
}

// formatElapsed keeps millisecond precision below one second; most local
// copies finish that fast.
func formatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func formatETA(d time.Duration) string {
	switch {
	case d <= 0:
		return "--"
	case d < time.Second:
		return "<1s"
	default:
		return d.Round(time.Second).String()
	}
}

// percent of total copied, clamped to [0, 100].
func percent(copied, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(float64(copied) / float64(total) * 100)
	return min(max(pct, 0), 100)
}

// progressBar renders "[####......]" in exactly width columns, brackets
// included. Widths too small to hold any fill return "".
func progressBar(copied, total int64, width int) string {
	if width < 3 || total <= 0 {
		return ""
	}
	inner := width - 2
	copied = min(max(copied, 0), total)
	filled := int(float64(inner) * float64(copied) / float64(total))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", inner-filled) + "]"
}
