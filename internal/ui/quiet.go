package ui

import "github.com/bamsammich/safecp/internal/stats"

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats stats.Reader
}

func (p *quietPresenter) Run(events <-chan Event) error {
	//nolint:revive // empty-block: draining keeps the engine's sends non-blocking
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary(bool) string {
	return ""
}
