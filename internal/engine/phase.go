package engine

// Phase is the transaction state. Each phase records what rollback has to
// undo if a later step fails.
type Phase int

const (
	Init Phase = iota
	PathResolved
	DirectoriesProvisioned
	BackupPhaseComplete
	Copying
	Committed
	RolledBack
)

var phaseNames = [...]string{
	Init:                   "Init",
	PathResolved:           "PathResolved",
	DirectoriesProvisioned: "DirectoriesProvisioned",
	BackupPhaseComplete:    "BackupPhaseComplete",
	Copying:                "Copying",
	Committed:              "Committed",
	RolledBack:             "RolledBack",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "Unknown"
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == Committed || p == RolledBack
}
