package undo

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

// Renamer is the part of the file store the ledger drives.
type Renamer interface {
	Rename(ctx context.Context, fileID, newName string) error
}

// Ledger applies rename batches behind a write-ahead undo log.
type Ledger struct {
	store  repository.UndoRepository
	files  Renamer
	logger *slog.Logger
	now    func() time.Time
}

func NewLedger(store repository.UndoRepository, files Renamer, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, files: files, logger: logger, now: time.Now}
}

// Apply persists the undo log for ops, then renames in order. A failing rename stops
// the batch: the applied prefix is recorded, the log stays as written and a
// *common.PartialApplyError names the failing op.
func (l *Ledger) Apply(ctx context.Context, jobID string, ops []entity.RenameOp) error {
	if len(ops) == 0 {
		return common.ValidationError{Field: "ops", Message: "nothing to apply"}
	}
	logger := common.LoggerWith(ctx, l.logger).With("job_id", jobID)
	at := l.now()

	undoLog := entity.UndoLog{JobID: jobID, CreatedAt: at, Ops: append([]entity.RenameOp(nil), ops...)}
	if err := l.store.SaveUndoLog(ctx, undoLog); err != nil {
		logger.Error("rename.apply.undo_log_failed", "error", err)
		return err
	}
	logger.Info("rename.apply.start", "ops", len(ops))

	for i, op := range ops {
		if err := l.files.Rename(ctx, op.FileID, op.NewName); err != nil {
			cerr := common.NewCapabilityError(common.CapFileStore, "rename", op.FileID, err)
			if len(ops[:i]) > 0 {
				if serr := l.store.SaveAppliedRenames(ctx, jobID, ops[:i], at); serr != nil {
					logger.Error("rename.apply.record_prefix_failed", "error", serr)
				}
			}
			logger.Error("rename.apply.partial", "index", i, "file_id", op.FileID, "applied", i, "error", err)
			return &common.PartialApplyError{
				JobID:     jobID,
				Op:        "apply",
				Index:     i,
				FileID:    op.FileID,
				Done:      fileIDs(ops[:i]),
				Remaining: fileIDs(ops[i:]),
				Err:       cerr,
			}
		}
		logger.Debug("rename.apply.op", "index", i, "file_id", op.FileID, "new_name", op.NewName)
	}

	if err := l.store.SaveAppliedRenames(ctx, jobID, ops, at); err != nil {
		logger.Error("rename.apply.record_failed", "error", err)
		return err
	}
	logger.Info("rename.apply.ok", "ops", len(ops))
	return nil
}

// Undo renames every op of the job's last log back to its old name, newest first.
// The log is cleared only when every reversion succeeded; after a partial undo only
// the applied records of the reverted files are dropped.
func (l *Ledger) Undo(ctx context.Context, jobID string) ([]entity.RenameOp, error) {
	logger := common.LoggerWith(ctx, l.logger).With("job_id", jobID)
	undoLog, err := l.store.GetUndoLog(ctx, jobID)
	if err != nil {
		return nil, err
	}

	reversed := make([]entity.RenameOp, 0, len(undoLog.Ops))
	for i := len(undoLog.Ops) - 1; i >= 0; i-- {
		reversed = append(reversed, undoLog.Ops[i])
	}

	logger.Info("rename.undo.start", "ops", len(reversed))
	for k, op := range reversed {
		if err := l.files.Rename(ctx, op.FileID, op.OldName); err != nil {
			logger.Error("rename.undo.partial", "index", k, "file_id", op.FileID, "error", err)
			if k > 0 {
				if derr := l.store.DeleteAppliedRenames(ctx, jobID, fileIDs(reversed[:k])); derr != nil {
					logger.Error("rename.undo.record_prefix_failed", "error", derr)
				}
			}
			return reversed[:k], &common.PartialApplyError{
				JobID:     jobID,
				Op:        "undo",
				Index:     k,
				FileID:    op.FileID,
				Done:      fileIDs(reversed[:k]),
				Remaining: fileIDs(reversed[k:]),
				Err:       common.NewCapabilityError(common.CapFileStore, "rename", op.FileID, err),
			}
		}
	}

	if err := l.store.ClearUndoLog(ctx, jobID); err != nil {
		return reversed, err
	}
	if err := l.store.ClearAppliedRenames(ctx, jobID); err != nil {
		return reversed, err
	}
	logger.Info("rename.undo.ok", "ops", len(reversed))
	return reversed, nil
}

func fileIDs(ops []entity.RenameOp) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.FileID)
	}
	return out
}
