// Package engine implements the transactional single-file copy: the
// destination either ends up holding a complete copy of the source or is
// left as it was before the run, including after an interrupt.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bamsammich/safecp/internal/event"
	"github.com/bamsammich/safecp/internal/platform"
	"github.com/bamsammich/safecp/internal/stats"
)

// Config describes a copy operation.
type Config struct {
	Src        string
	Dst        string
	ChunkSize  int
	NoHardlink bool
	Verify     bool
	Hash       HashAlgo
	BWLimit    int64              // bytes/sec, 0 = unlimited
	Events     chan<- event.Event // must be drained until Run returns
	Stats      *stats.Collector

	// Test hooks. Nil means the real primitive.
	link       func(oldname, newname string) error
	backupLink func(oldname, newname string) error
	wrapWriter func(chunkWriter) chunkWriter
}

// Result is the outcome of a copy operation.
type Result struct {
	ID       string
	Resolved string
	Phase    Phase
	Method   platform.CopyMethod
	Stats    stats.Snapshot
	// Err is the failure that ended the transaction. It is never replaced by
	// a rollback problem.
	Err error
	// RollbackErr is set when cleanup after Err did not complete. Its Kind
	// is RollbackFailed and its Path names what was left on disk (the
	// backup, when one exists).
	RollbackErr error
}

// Run executes a copy operation, blocking until it commits or rolls back.
// Cancelling ctx is observed at phase boundaries and between chunks of a
// byte copy, and rolls back like any other failure.
func Run(ctx context.Context, cfg Config) Result {
	tx := newTransaction(cfg)
	err := tx.execute(ctx)
	return Result{
		ID:          tx.id,
		Resolved:    tx.resolved,
		Phase:       tx.phase,
		Method:      tx.method,
		Stats:       tx.stats.Snapshot(),
		Err:         err,
		RollbackErr: tx.rollbackErr,
	}
}

type transaction struct {
	cfg    Config
	id     string
	log    *slog.Logger
	stats  *stats.Collector
	copier *Copier

	phase      Phase
	resolved   string
	prov       *Provisioner
	backup     *Backup
	dstRemoved bool // pre-existing destination entry was unlinked
	dstTouched bool // a copy strategy may have created the destination
	method     platform.CopyMethod

	rollbackErr error
}

func newTransaction(cfg Config) *transaction {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	id := uuid.New().String()[:8]
	tx := &transaction{
		cfg:   cfg,
		id:    id,
		log:   slog.Default().With("txn", id),
		stats: cfg.Stats,
	}

	var limiter *rate.Limiter
	if cfg.BWLimit > 0 {
		limiter = NewBWLimiter(cfg.BWLimit)
	}
	tx.copier = NewCopier(CopierConfig{
		ChunkSize:  cfg.ChunkSize,
		NoHardlink: cfg.NoHardlink,
		Limiter:    limiter,
		Stats:      cfg.Stats,
		Events:     cfg.Events,
	})
	if cfg.link != nil {
		tx.copier.link = cfg.link
	}
	tx.copier.wrapWriter = cfg.wrapWriter

	tx.prov = &Provisioner{created: func(dir string) {
		tx.stats.AddDirsCreated(1)
		tx.log.Info("created directory", "dir", dir)
		tx.emit(event.Event{Type: event.DirCreated, Path: dir})
	}}
	return tx
}

// execute drives the state machine. Once the paths are validated, the
// deferred guard rolls back on every exit path, panics included, until commit
// disarms it.
func (tx *transaction) execute(ctx context.Context) (err error) {
	src, dst := tx.cfg.Src, tx.cfg.Dst
	tx.log.Debug("starting copy", "src", src, "dst", dst)

	// Validation failures leave the transaction in Init: nothing to undo.
	if err := ValidateSource(src); err != nil {
		return err
	}
	resolved, err := ResolveDestination(src, dst)
	if err != nil {
		return err
	}

	armed := true
	defer func() {
		if armed {
			tx.rollback(err)
		}
	}()

	tx.resolved = resolved
	tx.setPhase(PathResolved)
	if err := tx.checkpoint(ctx); err != nil {
		return err
	}

	if err := tx.prov.Provision(filepath.Dir(resolved)); err != nil {
		return err
	}
	tx.setPhase(DirectoriesProvisioned)
	if err := tx.checkpoint(ctx); err != nil {
		return err
	}

	if err := tx.backupDestination(); err != nil {
		return err
	}
	tx.setPhase(BackupPhaseComplete)
	if err := tx.checkpoint(ctx); err != nil {
		return err
	}

	if tx.backup != nil {
		if err := os.Remove(resolved); err != nil {
			return newError(IOFailure, "remove destination", resolved, err)
		}
		tx.dstRemoved = true
	}
	tx.setPhase(Copying)
	tx.dstTouched = true

	result, err := tx.copier.Copy(ctx, tx.cfg.Src, resolved)
	tx.method = result.Method
	if err != nil {
		return err
	}
	if err := tx.checkpoint(ctx); err != nil {
		return err
	}

	if tx.cfg.Verify && result.Method == platform.ReadWrite {
		if err := verifyCopy(src, resolved, tx.cfg.Hash); err != nil {
			tx.emit(event.Event{Type: event.VerifyFailed, Path: resolved, Error: err})
			return err
		}
		tx.emit(event.Event{Type: event.VerifyOK, Path: resolved})
	}

	armed = false
	tx.setPhase(Committed)
	if tx.backup != nil {
		if err := tx.backup.Discard(); err != nil {
			tx.log.Warn("committed, but the backup could not be removed", "error", err)
		} else {
			tx.emit(event.Event{Type: event.BackupDiscarded, Path: resolved, Target: tx.backup.Path})
		}
	}
	tx.log.Info("copy committed",
		"dst", resolved,
		"method", result.Method.String(),
		"bytes", result.BytesWritten,
	)
	tx.emit(event.Event{Type: event.Committed, Path: resolved, Size: result.BytesWritten})
	return nil
}

// backupDestination links a pre-existing destination entry aside.
func (tx *transaction) backupDestination() error {
	if _, err := os.Lstat(tx.resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError(IOFailure, "lstat destination", tx.resolved, err)
	}

	b := NewBackup(tx.resolved)
	if tx.cfg.backupLink != nil {
		b.link = tx.cfg.backupLink
	}
	if err := b.Create(); err != nil {
		return err
	}
	tx.backup = b
	tx.emit(event.Event{Type: event.BackupCreated, Path: tx.resolved, Target: b.Path})
	return nil
}

// rollback undoes exactly what the recorded state implies. A provisioned
// subtree contains everything this run could have created, so removing it is
// sufficient on its own.
func (tx *transaction) rollback(cause error) {
	var rbErr error
	switch {
	case tx.prov.Marker() != "":
		marker := tx.prov.Marker()
		if err := tx.prov.Rollback(); err != nil {
			rbErr = newError(RollbackFailed, "remove provisioned directories", marker, err)
		}
	case tx.backup != nil && tx.backup.Exists():
		if err := tx.backup.Restore(tx.dstRemoved); err != nil {
			rbErr = err
		} else if tx.dstRemoved {
			tx.emit(event.Event{Type: event.BackupRestored, Path: tx.resolved, Target: tx.backup.Path})
		}
	case tx.dstTouched:
		if err := os.Remove(tx.resolved); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rbErr = newError(RollbackFailed, "remove partial destination", tx.resolved, err)
		}
	}

	tx.setPhase(RolledBack)
	tx.rollbackErr = rbErr
	if rbErr != nil {
		tx.log.Warn("rollback incomplete; manual recovery may be required", "error", rbErr)
	}
	if cause != nil {
		tx.log.Debug("rolled back", "cause", cause)
	}
	tx.emit(event.Event{Type: event.RolledBack, Path: tx.resolved, Error: cause})
}

func (tx *transaction) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return newError(Cancelled, "interrupted at "+tx.phase.String(), tx.resolved, err)
	}
	return nil
}

func (tx *transaction) setPhase(p Phase) {
	tx.phase = p
	tx.log.Debug("phase", "phase", p.String())
	tx.emit(event.Event{Type: event.PhaseChanged, Path: tx.resolved, Phase: p.String()})
}

func (tx *transaction) emit(e event.Event) {
	emitEvent(tx.cfg.Events, e)
}

// emitEvent delivers e to ch. Progress notices are dropped when the consumer
// is behind; lifecycle events block until received, so ch must be drained
// until Run returns.
func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	if !e.Type.Droppable() {
		ch <- e
		return
	}
	select {
	case ch <- e:
	default:
	}
}
