package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bamsammich/safecp/internal/stats"
)

const (
	// plainInterval is how often a non-TTY progress line is printed.
	plainInterval = 5 * time.Second
	// redrawInterval throttles the TTY progress line.
	redrawInterval = 100 * time.Millisecond
)

// plainPresenter prints one line per lifecycle event to w. Progress goes to
// errW: a single carriage-return line on a TTY, periodic lines otherwise.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      stats.ReadTicker
	tty        bool
	width      int
	noProgress bool

	copying  bool
	drawn    bool // a \r progress line is on screen
	lastDraw time.Time
	ticks    int
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearLine()
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.ticks++
			if !p.tty && p.copying && p.ticks%int(plainInterval/time.Second) == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case DirCreated:
		p.println("created directory: %s", ev.Path)
	case BackupCreated:
		p.println("backed up %s to %s", ev.Path, ev.Target)
	case SymlinkCreated:
		p.println("source is a symlink; created symlink %s -> %s", ev.Path, ev.Target)
	case HardlinkCreated:
		p.println("created hardlink %s", ev.Path)
	case CrossDevice:
		p.println("different filesystems; copying full file...")
	case CopyStarted:
		p.copying = true
	case CopyProgress:
		if p.tty && !p.noProgress {
			p.drawProgress(ev.Size, ev.Total)
		}
	case CopyCompleted:
		if p.tty && !p.noProgress {
			p.drawProgress(ev.Size, ev.Total)
		}
		p.clearLine()
		p.copying = false
	case VerifyOK:
		p.println("verified %s", ev.Path)
	case VerifyFailed:
		p.println("MISMATCH: %s", ev.Path)
	case BackupRestored:
		p.println("restored %s from backup", ev.Path)
	case RolledBack:
		p.copying = false
		p.println("rolled back")
	}
}

// println ends any in-place progress line before printing.
func (p *plainPresenter) println(format string, args ...any) {
	p.clearLine()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *plainPresenter) clearLine() {
	if p.drawn {
		fmt.Fprintln(p.errW)
		p.drawn = false
	}
}

func (p *plainPresenter) drawProgress(copied, total int64) {
	now := time.Now()
	if copied < total && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now

	line := fmt.Sprintf("%s / %s (%s)",
		stats.FormatBytes(copied), stats.FormatBytes(total), formatRate(p.rate()))
	if barWidth := p.width - len(line) - 6; barWidth >= 12 && total > 0 {
		line = fmt.Sprintf("%s %3d%% %s",
			progressBar(copied, total, min(barWidth, 42)), percent(copied, total), line)
	}
	if p.width > 0 && len(line) > p.width-1 {
		line = line[:p.width-1]
	}
	fmt.Fprintf(p.errW, "\r%s%s", line, strings.Repeat(" ", max(0, p.width-1-len(line))))
	p.drawn = true
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		fmt.Fprintf(p.errW, "progress: %d%% %s/%s %s eta %s\n",
			percent(snap.BytesCopied, snap.BytesTotal),
			stats.FormatBytes(snap.BytesCopied), stats.FormatBytes(snap.BytesTotal),
			formatRate(p.rate()),
			formatETA(p.stats.ETA()),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s copied\n", stats.FormatBytes(snap.BytesCopied))
}

// rate prefers the rolling speed and falls back to the run average before
// the first sample.
func (p *plainPresenter) rate() float64 {
	if speed := p.stats.RollingSpeed(5); speed > 0 {
		return speed
	}
	snap := p.stats.Snapshot()
	if snap.Elapsed <= 0 {
		return 0
	}
	return float64(snap.BytesCopied) / snap.Elapsed.Seconds()
}

func (p *plainPresenter) Summary(committed bool) string {
	return completionSummary(p.stats.Snapshot(), committed)
}
