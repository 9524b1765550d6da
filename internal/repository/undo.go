package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// UndoRepository stores the single live undo log per job and the renames that
// reached the file store.
type UndoRepository interface {
	SaveUndoLog(ctx context.Context, log entity.UndoLog) error
	GetUndoLog(ctx context.Context, jobID string) (*entity.UndoLog, error)
	ClearUndoLog(ctx context.Context, jobID string) error
	SaveAppliedRenames(ctx context.Context, jobID string, ops []entity.RenameOp, appliedAt time.Time) error
	ListAppliedRenames(ctx context.Context, jobID string) ([]entity.AppliedRename, error)
	// DeleteAppliedRenames drops the applied records of the given files only.
	DeleteAppliedRenames(ctx context.Context, jobID string, fileIDs []string) error
	ClearAppliedRenames(ctx context.Context, jobID string) error
}

type undoRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewUndoRepository(db *DB, logger *slog.Logger) UndoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &undoRepo{db: db, logger: logger}
}

// SaveUndoLog overwrites any prior log for the job.
func (r *undoRepo) SaveUndoLog(ctx context.Context, log entity.UndoLog) error {
	ops, err := toJSON(log.Ops)
	if err != nil {
		return err
	}
	insert := r.db.builder().Insert("undo_logs").
		Columns("job_id", "created_at", "ops_json").
		Values(log.JobID, fmtTime(log.CreatedAt), ops).
		OnConflict(entsql.ConflictColumns("job_id"), entsql.ResolveWithNewValues())
	_, err = r.db.exec(ctx, r.db.sql, insert)
	if err != nil {
		r.logger.Error("failed to save undo log", "job_id", log.JobID, "error", err)
		return common.WrapError(err, "save undo log")
	}
	return nil
}

func (r *undoRepo) GetUndoLog(ctx context.Context, jobID string) (*entity.UndoLog, error) {
	var createdAt, ops string
	b := r.db.builder()
	sel := b.Select("created_at", "ops_json").From(b.Table("undo_logs")).Where(entsql.EQ("job_id", jobID))
	err := r.db.queryRow(ctx, r.db.sql, sel).Scan(&createdAt, &ops)
	if isNoRows(err) {
		return nil, common.NewNotFound("undo log", jobID)
	}
	if err != nil {
		r.logger.Error("failed to get undo log", "job_id", jobID, "error", err)
		return nil, err
	}
	log := &entity.UndoLog{JobID: jobID, CreatedAt: parseTime(createdAt)}
	if err := fromJSON(ops, &log.Ops); err != nil {
		return nil, common.WrapError(err, "decode undo log")
	}
	return log, nil
}

func (r *undoRepo) ClearUndoLog(ctx context.Context, jobID string) error {
	del := r.db.builder().Delete("undo_logs").Where(entsql.EQ("job_id", jobID))
	if _, err := r.db.exec(ctx, r.db.sql, del); err != nil {
		r.logger.Error("failed to clear undo log", "job_id", jobID, "error", err)
		return err
	}
	return nil
}

func (r *undoRepo) SaveAppliedRenames(ctx context.Context, jobID string, ops []entity.RenameOp, appliedAt time.Time) error {
	at := fmtTime(appliedAt)
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			insert := r.db.builder().Insert("applied_renames").
				Columns("job_id", "file_id", "old_name", "new_name", "applied_at").
				Values(jobID, op.FileID, op.OldName, op.NewName, at).
				OnConflict(entsql.ConflictColumns("job_id", "file_id"), entsql.ResolveWithNewValues())
			if _, err := r.db.exec(ctx, tx, insert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to save applied renames", "job_id", jobID, "count", len(ops), "error", err)
		return common.WrapError(err, "save applied renames")
	}
	return nil
}

func (r *undoRepo) ListAppliedRenames(ctx context.Context, jobID string) ([]entity.AppliedRename, error) {
	b := r.db.builder()
	sel := b.Select("file_id", "old_name", "new_name", "applied_at").
		From(b.Table("applied_renames")).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy("file_id")
	rows, err := r.db.query(ctx, r.db.sql, sel)
	if err != nil {
		r.logger.Error("failed to list applied renames", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.AppliedRename
	for rows.Next() {
		ar := entity.AppliedRename{JobID: jobID}
		var at string
		if err := rows.Scan(&ar.FileID, &ar.OldName, &ar.NewName, &at); err != nil {
			return nil, err
		}
		ar.AppliedAt = parseTime(at)
		out = append(out, ar)
	}
	return out, rows.Err()
}

func (r *undoRepo) DeleteAppliedRenames(ctx context.Context, jobID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	ids := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		ids[i] = id
	}
	del := r.db.builder().Delete("applied_renames").
		Where(entsql.And(entsql.EQ("job_id", jobID), entsql.In("file_id", ids...)))
	if _, err := r.db.exec(ctx, r.db.sql, del); err != nil {
		r.logger.Error("failed to delete applied renames", "job_id", jobID, "count", len(fileIDs), "error", err)
		return common.WrapError(err, "delete applied renames")
	}
	return nil
}

func (r *undoRepo) ClearAppliedRenames(ctx context.Context, jobID string) error {
	del := r.db.builder().Delete("applied_renames").Where(entsql.EQ("job_id", jobID))
	if _, err := r.db.exec(ctx, r.db.sql, del); err != nil {
		r.logger.Error("failed to clear applied renames", "job_id", jobID, "error", err)
		return err
	}
	return nil
}
