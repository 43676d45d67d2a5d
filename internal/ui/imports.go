package ui

import "github.com/bamsammich/safecp/internal/event"

// Event aliases event.Event so presenters read naturally.
type Event = event.Event

// Re-export event types for convenience.
const (
	DirCreated      = event.DirCreated
	BackupCreated   = event.BackupCreated
	BackupRestored  = event.BackupRestored
	SymlinkCreated  = event.SymlinkCreated
	HardlinkCreated = event.HardlinkCreated
	CrossDevice     = event.CrossDevice
	CopyStarted     = event.CopyStarted
	CopyProgress    = event.CopyProgress
	CopyCompleted   = event.CopyCompleted
	VerifyOK        = event.VerifyOK
	VerifyFailed    = event.VerifyFailed
	Committed       = event.Committed
	RolledBack      = event.RolledBack
)
