package ui

import (
	"io"

	"github.com/bamsammich/safecp/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line, or "" if nothing should be
	// printed. committed is the engine's verdict, not inferred from events.
	Summary(committed bool) string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer // lifecycle lines
	ErrWriter  io.Writer // progress
	Stats      stats.ReadTicker
	IsTTY      bool
	Width      int // terminal columns, 0 = unknown
	Quiet      bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory returns the interface
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	return &plainPresenter{
		w:          cfg.Writer,
		errW:       cfg.ErrWriter,
		stats:      cfg.Stats,
		tty:        cfg.IsTTY,
		width:      cfg.Width,
		noProgress: cfg.NoProgress,
	}
}
