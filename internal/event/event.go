package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	PhaseChanged Type = iota + 1
	DirCreated
	BackupCreated
	BackupRestored
	BackupDiscarded
	SymlinkCreated
	HardlinkCreated
	CrossDevice
	CopyStarted
	CopyProgress
	ShortRead
	ShortWrite
	CopyCompleted
	VerifyOK
	VerifyFailed
	Committed
	RolledBack
)

var typeNames = [...]string{
	PhaseChanged:    "PhaseChanged",
	DirCreated:      "DirCreated",
	BackupCreated:   "BackupCreated",
	BackupRestored:  "BackupRestored",
	BackupDiscarded: "BackupDiscarded",
	SymlinkCreated:  "SymlinkCreated",
	HardlinkCreated: "HardlinkCreated",
	CrossDevice:     "CrossDevice",
	CopyStarted:     "CopyStarted",
	CopyProgress:    "CopyProgress",
	ShortRead:       "ShortRead",
	ShortWrite:      "ShortWrite",
	CopyCompleted:   "CopyCompleted",
	VerifyOK:        "VerifyOK",
	VerifyFailed:    "VerifyFailed",
	Committed:       "Committed",
	RolledBack:      "RolledBack",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Droppable reports whether an event of this type may be discarded when the
// consumer falls behind. Only progress and short-I/O notices qualify; every
// lifecycle event is delivered.
func (t Type) Droppable() bool {
	switch t {
	case CopyProgress, ShortRead, ShortWrite:
		return true
	}
	return false
}

// Event represents a single lifecycle or progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // the path the event concerns
	Target    string // link target or backup path, when relevant
	Phase     string // new phase name (PhaseChanged)
	Size      int64  // bytes so far, or bytes in a short read/write
	Total     int64  // expected total bytes
	Error     error
}
