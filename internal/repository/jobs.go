package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job, files []entity.JobFile) error
	Get(ctx context.Context, jobID string) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]entity.Job, error)
	ListFiles(ctx context.Context, jobID string) ([]entity.JobFile, error)
	ReplaceFiles(ctx context.Context, jobID string, files []entity.JobFile) error
	SetStatus(ctx context.Context, jobID string, status constants.JobStatus) error
	SetReportFileID(ctx context.Context, jobID, fileID string) error
}

type jobRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{db: db, logger: logger}
}

var jobColumns = []string{"job_id", "folder_id", "created_at", "status", "report_file_id"}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job, files []entity.JobFile) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		insert := r.db.builder().Insert("jobs").
			Columns(jobColumns...).
			Values(job.ID, job.FolderID, fmtTime(job.CreatedAt), string(job.Status), job.ReportFileID)
		if _, err := r.db.exec(ctx, tx, insert); err != nil {
			return err
		}
		return r.insertFiles(ctx, tx, job.ID, files)
	})
	if err != nil {
		r.logger.Error("failed to create job", "job_id", job.ID, "folder_id", job.FolderID, "error", err)
		return common.WrapError(err, "create job")
	}
	return nil
}

func (r *jobRepo) insertFiles(ctx context.Context, tx *sql.Tx, jobID string, files []entity.JobFile) error {
	if len(files) == 0 {
		return nil
	}
	insert := r.db.builder().Insert("job_files").Columns("job_id", "file_id", "name", "mime_type", "sort_index")
	for _, f := range files {
		insert.Values(jobID, f.FileID, f.Name, f.MimeType, f.SortIndex)
	}
	_, err := r.db.exec(ctx, tx, insert)
	return err
}

func (r *jobRepo) Get(ctx context.Context, jobID string) (*entity.Job, error) {
	var (
		job       entity.Job
		createdAt string
		status    string
	)
	b := r.db.builder()
	sel := b.Select(jobColumns...).From(b.Table("jobs")).Where(entsql.EQ("job_id", jobID))
	err := r.db.queryRow(ctx, r.db.sql, sel).Scan(&job.ID, &job.FolderID, &createdAt, &status, &job.ReportFileID)
	if isNoRows(err) {
		return nil, common.NewNotFound("job", jobID)
	}
	if err != nil {
		r.logger.Error("failed to get job", "job_id", jobID, "error", err)
		return nil, err
	}
	job.CreatedAt = parseTime(createdAt)
	job.Status = constants.JobStatus(status)
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, limit int) ([]entity.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.db.builder()
	sel := b.Select(jobColumns...).From(b.Table("jobs")).
		OrderBy(entsql.Desc("created_at"), "job_id").
		Limit(limit)
	rows, err := r.db.query(ctx, r.db.sql, sel)
	if err != nil {
		r.logger.Error("failed to list jobs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Job
	for rows.Next() {
		var (
			job       entity.Job
			createdAt string
			status    string
		)
		if err := rows.Scan(&job.ID, &job.FolderID, &createdAt, &status, &job.ReportFileID); err != nil {
			return nil, err
		}
		job.CreatedAt = parseTime(createdAt)
		job.Status = constants.JobStatus(status)
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *jobRepo) ListFiles(ctx context.Context, jobID string) ([]entity.JobFile, error) {
	b := r.db.builder()
	sel := b.Select("file_id", "name", "mime_type", "sort_index").From(b.Table("job_files")).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy("sort_index", "name", "file_id")
	rows, err := r.db.query(ctx, r.db.sql, sel)
	if err != nil {
		r.logger.Error("failed to list job files", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.JobFile
	for rows.Next() {
		var f entity.JobFile
		if err := rows.Scan(&f.FileID, &f.Name, &f.MimeType, &f.SortIndex); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *jobRepo) ReplaceFiles(ctx context.Context, jobID string, files []entity.JobFile) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		del := r.db.builder().Delete("job_files").Where(entsql.EQ("job_id", jobID))
		if _, err := r.db.exec(ctx, tx, del); err != nil {
			return err
		}
		return r.insertFiles(ctx, tx, jobID, files)
	})
	if err != nil {
		r.logger.Error("failed to replace job files", "job_id", jobID, "error", err)
		return common.WrapError(err, "replace job files")
	}
	return nil
}

func (r *jobRepo) SetStatus(ctx context.Context, jobID string, status constants.JobStatus) error {
	return r.updateOne(ctx, jobID, "status", string(status))
}

func (r *jobRepo) SetReportFileID(ctx context.Context, jobID, fileID string) error {
	return r.updateOne(ctx, jobID, "report_file_id", fileID)
}

func (r *jobRepo) updateOne(ctx context.Context, jobID, column string, value any) error {
	upd := r.db.builder().Update("jobs").Set(column, value).Where(entsql.EQ("job_id", jobID))
	res, err := r.db.exec(ctx, r.db.sql, upd)
	if err != nil {
		r.logger.Error("failed to update job", "job_id", jobID, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFound("job", jobID)
	}
	return nil
}
