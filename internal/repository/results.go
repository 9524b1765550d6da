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

// ResultRepository stores the per (job, file) outputs of each stage.
// Every Save overwrites the previous record for the same key.
type ResultRepository interface {
	SaveOCR(ctx context.Context, res entity.OCRResult) error
	GetOCR(ctx context.Context, jobID, fileID string) (*entity.OCRResult, error)
	ListOCR(ctx context.Context, jobID string) (map[string]entity.OCRResult, error)

	SaveMatch(ctx context.Context, m entity.LabelMatch) error
	ListMatches(ctx context.Context, jobID string) (map[string]entity.LabelMatch, error)

	SetOverride(ctx context.Context, o entity.Override) error
	ClearOverride(ctx context.Context, jobID, fileID string) error
	ListOverrides(ctx context.Context, jobID string) (map[string]entity.Override, error)

	SaveExtraction(ctx context.Context, res entity.ExtractionResult) error
	GetExtraction(ctx context.Context, jobID, fileID string) (*entity.ExtractionResult, error)
	ListExtractions(ctx context.Context, jobID string) (map[string]entity.ExtractionResult, error)

	SaveFallback(ctx context.Context, res entity.LLMFallbackResult) error
	ListFallbacks(ctx context.Context, jobID string) (map[string]entity.LLMFallbackResult, error)

	// SaveTimings merges non-nil stage durations into the stored row.
	SaveTimings(ctx context.Context, t entity.FileTimings) error
	ListTimings(ctx context.Context, jobID string) (map[string]entity.FileTimings, error)
}

type resultRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepo{db: db, logger: logger}
}

// upsert inserts one (job_id, file_id) keyed row, replacing every column on conflict.
func (r *resultRepo) upsert(ctx context.Context, table string, columns []string, values ...any) error {
	insert := r.db.builder().Insert(table).
		Columns(columns...).
		Values(values...).
		OnConflict(entsql.ConflictColumns("job_id", "file_id"), entsql.ResolveWithNewValues())
	_, err := r.db.exec(ctx, r.db.sql, insert)
	return err
}

// selectJob selects columns of table restricted to one job, and to one file when fileID is set.
func (r *resultRepo) selectJob(table, jobID, fileID string, columns ...string) *entsql.Selector {
	b := r.db.builder()
	sel := b.Select(columns...).From(b.Table(table))
	if fileID == "" {
		return sel.Where(entsql.EQ("job_id", jobID))
	}
	return sel.Where(entsql.And(entsql.EQ("job_id", jobID), entsql.EQ("file_id", fileID)))
}

func (r *resultRepo) SaveOCR(ctx context.Context, res entity.OCRResult) error {
	err := r.upsert(ctx, "ocr_results",
		[]string{"job_id", "file_id", "text", "confidence", "engine", "updated_at"},
		res.JobID, res.FileID, res.Text, res.Confidence, res.Engine, fmtTime(res.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to save ocr result", "job_id", res.JobID, "file_id", res.FileID, "error", err)
		return common.WrapError(err, "save ocr result")
	}
	return nil
}

func (r *resultRepo) GetOCR(ctx context.Context, jobID, fileID string) (*entity.OCRResult, error) {
	res := entity.OCRResult{JobID: jobID, FileID: fileID}
	var at string
	sel := r.selectJob("ocr_results", jobID, fileID, "text", "confidence", "engine", "updated_at")
	err := r.db.queryRow(ctx, r.db.sql, sel).Scan(&res.Text, &res.Confidence, &res.Engine, &at)
	if isNoRows(err) {
		return nil, common.NewNotFound("ocr result", fileID)
	}
	if err != nil {
		return nil, err
	}
	res.UpdatedAt = parseTime(at)
	return &res, nil
}

func (r *resultRepo) ListOCR(ctx context.Context, jobID string) (map[string]entity.OCRResult, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		r.selectJob("ocr_results", jobID, "", "file_id", "text", "confidence", "engine", "updated_at"))
	if err != nil {
		r.logger.Error("failed to list ocr results", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.OCRResult)
	for rows.Next() {
		res := entity.OCRResult{JobID: jobID}
		var at string
		if err := rows.Scan(&res.FileID, &res.Text, &res.Confidence, &res.Engine, &at); err != nil {
			return nil, err
		}
		res.UpdatedAt = parseTime(at)
		out[res.FileID] = res
	}
	return out, rows.Err()
}

func (r *resultRepo) SaveMatch(ctx context.Context, m entity.LabelMatch) error {
	err := r.upsert(ctx, "label_matches",
		[]string{"job_id", "file_id", "label_id", "score", "status", "mode", "rationale", "updated_at"},
		m.JobID, m.FileID, m.LabelID, m.Score, string(m.Status), string(m.Mode), m.Rationale, fmtTime(m.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to save label match", "job_id", m.JobID, "file_id", m.FileID, "error", err)
		return common.WrapError(err, "save label match")
	}
	return nil
}

func (r *resultRepo) ListMatches(ctx context.Context, jobID string) (map[string]entity.LabelMatch, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		r.selectJob("label_matches", jobID, "", "file_id", "label_id", "score", "status", "mode", "rationale", "updated_at"))
	if err != nil {
		r.logger.Error("failed to list label matches", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.LabelMatch)
	for rows.Next() {
		m := entity.LabelMatch{JobID: jobID}
		var status, mode, at string
		if err := rows.Scan(&m.FileID, &m.LabelID, &m.Score, &status, &mode, &m.Rationale, &at); err != nil {
			return nil, err
		}
		m.Status = constants.MatchStatus(status)
		m.Mode = constants.SimilarityMode(mode)
		m.UpdatedAt = parseTime(at)
		out[m.FileID] = m
	}
	return out, rows.Err()
}

func (r *resultRepo) SetOverride(ctx context.Context, o entity.Override) error {
	err := r.upsert(ctx, "label_overrides", []string{"job_id", "file_id", "label_id"}, o.JobID, o.FileID, o.LabelID)
	if err != nil {
		r.logger.Error("failed to set override", "job_id", o.JobID, "file_id", o.FileID, "error", err)
		return common.WrapError(err, "set override")
	}
	return nil
}

func (r *resultRepo) ClearOverride(ctx context.Context, jobID, fileID string) error {
	del := r.db.builder().Delete("label_overrides").
		Where(entsql.And(entsql.EQ("job_id", jobID), entsql.EQ("file_id", fileID)))
	_, err := r.db.exec(ctx, r.db.sql, del)
	return err
}

func (r *resultRepo) ListOverrides(ctx context.Context, jobID string) (map[string]entity.Override, error) {
	rows, err := r.db.query(ctx, r.db.sql, r.selectJob("label_overrides", jobID, "", "file_id", "label_id"))
	if err != nil {
		r.logger.Error("failed to list overrides", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.Override)
	for rows.Next() {
		o := entity.Override{JobID: jobID}
		if err := rows.Scan(&o.FileID, &o.LabelID); err != nil {
			return nil, err
		}
		out[o.FileID] = o
	}
	return out, rows.Err()
}

func (r *resultRepo) SaveExtraction(ctx context.Context, res entity.ExtractionResult) error {
	schema, err := toJSON(res.Schema)
	if err != nil {
		return err
	}
	fields, err := toJSON(res.Fields)
	if err != nil {
		return err
	}
	conf, err := toJSON(res.Confidences)
	if err != nil {
		return err
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warn, err := toJSON(warnings)
	if err != nil {
		return err
	}
	err = r.upsert(ctx, "extraction_results",
		[]string{"job_id", "file_id", "label_id", "schema_json", "fields_json", "confidences_json", "needs_review", "warnings_json", "updated_at"},
		res.JobID, res.FileID, res.LabelID, schema, fields, conf, res.NeedsReview, warn, fmtTime(res.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to save extraction result", "job_id", res.JobID, "file_id", res.FileID, "error", err)
		return common.WrapError(err, "save extraction result")
	}
	return nil
}

var extractionColumns = []string{"file_id", "label_id", "schema_json", "fields_json", "confidences_json", "needs_review", "warnings_json", "updated_at"}

func (r *resultRepo) GetExtraction(ctx context.Context, jobID, fileID string) (*entity.ExtractionResult, error) {
	row := r.db.queryRow(ctx, r.db.sql, r.selectJob("extraction_results", jobID, fileID, extractionColumns...))
	res, err := scanExtraction(row, jobID)
	if isNoRows(err) {
		return nil, common.NewNotFound("extraction result", fileID)
	}
	return res, err
}

func (r *resultRepo) ListExtractions(ctx context.Context, jobID string) (map[string]entity.ExtractionResult, error) {
	rows, err := r.db.query(ctx, r.db.sql, r.selectJob("extraction_results", jobID, "", extractionColumns...))
	if err != nil {
		r.logger.Error("failed to list extraction results", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.ExtractionResult)
	for rows.Next() {
		res, err := scanExtraction(rows, jobID)
		if err != nil {
			return nil, err
		}
		out[res.FileID] = *res
	}
	return out, rows.Err()
}

func scanExtraction(row rowScanner, jobID string) (*entity.ExtractionResult, error) {
	res := entity.ExtractionResult{JobID: jobID}
	var schema, fields, conf, warn, at string
	if err := row.Scan(&res.FileID, &res.LabelID, &schema, &fields, &conf, &res.NeedsReview, &warn, &at); err != nil {
		return nil, err
	}
	parsed, err := entity.ParseSchema(schema)
	if err != nil {
		return nil, common.WrapError(err, "decode extraction schema")
	}
	res.Schema = parsed
	if err := fromJSON(fields, &res.Fields); err != nil {
		return nil, common.WrapError(err, "decode extraction fields")
	}
	if err := fromJSON(conf, &res.Confidences); err != nil {
		return nil, common.WrapError(err, "decode extraction confidences")
	}
	if err := fromJSON(warn, &res.Warnings); err != nil {
		return nil, common.WrapError(err, "decode extraction warnings")
	}
	res.UpdatedAt = parseTime(at)
	return &res, nil
}

func (r *resultRepo) SaveFallback(ctx context.Context, res entity.LLMFallbackResult) error {
	signals := res.Signals
	if signals == nil {
		signals = []string{}
	}
	sig, err := toJSON(signals)
	if err != nil {
		return err
	}
	err = r.upsert(ctx, "llm_fallback_results",
		[]string{"job_id", "file_id", "label_name", "confidence", "signals_json", "updated_at"},
		res.JobID, res.FileID, res.LabelName, res.Confidence, sig, fmtTime(res.UpdatedAt))
	if err != nil {
		r.logger.Error("failed to save fallback result", "job_id", res.JobID, "file_id", res.FileID, "error", err)
		return common.WrapError(err, "save fallback result")
	}
	return nil
}

func (r *resultRepo) ListFallbacks(ctx context.Context, jobID string) (map[string]entity.LLMFallbackResult, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		r.selectJob("llm_fallback_results", jobID, "", "file_id", "label_name", "confidence", "signals_json", "updated_at"))
	if err != nil {
		r.logger.Error("failed to list fallback results", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.LLMFallbackResult)
	for rows.Next() {
		res := entity.LLMFallbackResult{JobID: jobID}
		var sig, at string
		if err := rows.Scan(&res.FileID, &res.LabelName, &res.Confidence, &sig, &at); err != nil {
			return nil, err
		}
		if err := fromJSON(sig, &res.Signals); err != nil {
			return nil, common.WrapError(err, "decode fallback signals")
		}
		res.UpdatedAt = parseTime(at)
		out[res.FileID] = res
	}
	return out, rows.Err()
}

func (r *resultRepo) SaveTimings(ctx context.Context, t entity.FileTimings) error {
	insert := r.db.builder().Insert("file_timings").
		Columns("job_id", "file_id", "ocr_ms", "classify_ms", "extract_ms", "updated_at").
		Values(t.JobID, t.FileID, nullInt64(t.OCRMs), nullInt64(t.ClassifyMs), nullInt64(t.ExtractMs), fmtTime(t.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("job_id", "file_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range []string{"ocr_ms", "classify_ms", "extract_ms"} {
					u.Set(c, entsql.Expr("COALESCE(excluded."+c+", file_timings."+c+")"))
				}
				u.SetExcluded("updated_at")
			}),
		)
	_, err := r.db.exec(ctx, r.db.sql, insert)
	if err != nil {
		r.logger.Error("failed to save file timings", "job_id", t.JobID, "file_id", t.FileID, "error", err)
		return common.WrapError(err, "save file timings")
	}
	return nil
}

func (r *resultRepo) ListTimings(ctx context.Context, jobID string) (map[string]entity.FileTimings, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		r.selectJob("file_timings", jobID, "", "file_id", "ocr_ms", "classify_ms", "extract_ms", "updated_at"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]entity.FileTimings)
	for rows.Next() {
		t := entity.FileTimings{JobID: jobID}
		var ocr, cls, ext sql.NullInt64
		var at string
		if err := rows.Scan(&t.FileID, &ocr, &cls, &ext, &at); err != nil {
			return nil, err
		}
		t.OCRMs, t.ClassifyMs, t.ExtractMs = int64Ptr(ocr), int64Ptr(cls), int64Ptr(ext)
		t.UpdatedAt = parseTime(at)
		out[t.FileID] = t
	}
	return out, rows.Err()
}

// LoadFileLabels gathers overrides, matches and fallback suggestions of a job by file id.
func LoadFileLabels(ctx context.Context, results ResultRepository, jobID string) (map[string]entity.FileLabels, error) {
	overrides, err := results.ListOverrides(ctx, jobID)
	if err != nil {
		return nil, err
	}
	matches, err := results.ListMatches(ctx, jobID)
	if err != nil {
		return nil, err
	}
	fallbacks, err := results.ListFallbacks(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.FileLabels)
	for id, o := range overrides {
		fl := out[id]
		fl.Override = &o
		out[id] = fl
	}
	for id, m := range matches {
		fl := out[id]
		fl.Match = &m
		out[id] = fl
	}
	for id, f := range fallbacks {
		fl := out[id]
		fl.Fallback = &f
		out[id] = fl
	}
	return out, nil
}
