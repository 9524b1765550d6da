package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func seedJob(t *testing.T, db *DB, jobID string, files ...entity.JobFile) {
	t.Helper()
	jobs := NewJobRepository(db, nil)
	require.NoError(t, jobs.Create(context.Background(), &entity.Job{
		ID: jobID, FolderID: "folder-1", CreatedAt: time.Now(), Status: constants.JobStatusCreated,
	}, files))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://localhost/db"))
	assert.Equal(t, DialectSQLite, DialectFor("./app.db"))
}

func TestBuilderPlaceholders(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    []string
		notWant string
	}{
		{dialect: DialectPostgres, want: []string{"$1", "$2"}, notWant: "?"},
		{dialect: DialectSQLite, want: []string{"?"}, notWant: "$1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			db := &DB{dialect: tt.dialect}
			b := db.builder()
			sel := b.Select("job_id").From(b.Table("jobs")).
				Where(entsql.And(entsql.EQ("folder_id", "f"), entsql.EQ("status", "CREATED")))
			query, args := sel.Query()
			for _, w := range tt.want {
				assert.Contains(t, query, w)
			}
			assert.NotContains(t, query, tt.notWant)
			assert.Equal(t, []any{"f", "CREATED"}, args)
		})
	}
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	jobs := NewJobRepository(db, nil)

	seedJob(t, db, "job-1",
		entity.JobFile{FileRef: entity.FileRef{FileID: "b", Name: "b.pdf", MimeType: "application/pdf"}, SortIndex: 1},
		entity.JobFile{FileRef: entity.FileRef{FileID: "a", Name: "a.pdf", MimeType: "application/pdf"}, SortIndex: 0},
	)

	job, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", job.FolderID)
	assert.Equal(t, constants.JobStatusCreated, job.Status)

	files, err := jobs.ListFiles(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].FileID)

	require.NoError(t, jobs.SetStatus(ctx, "job-1", constants.JobStatusOCRDone))
	require.NoError(t, jobs.SetReportFileID(ctx, "job-1", "report-1"))
	job, err = jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusOCRDone, job.Status)
	assert.Equal(t, "report-1", job.ReportFileID)

	require.NoError(t, jobs.ReplaceFiles(ctx, "job-1", []entity.JobFile{
		{FileRef: entity.FileRef{FileID: "c", Name: "c.png"}, SortIndex: 0},
	}))
	files, err = jobs.ListFiles(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "c", files[0].FileID)

	_, err = jobs.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, errors.Is(jobs.SetStatus(ctx, "missing", constants.JobStatusApplied), common.ErrNotFound))
}

func TestUndoRepository_OverwriteAndClear(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedJob(t, db, "job-1")
	undo := NewUndoRepository(db, nil)

	_, err := undo.GetUndoLog(ctx, "job-1")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	first := entity.UndoLog{JobID: "job-1", CreatedAt: time.Now(), Ops: []entity.RenameOp{{FileID: "a", OldName: "a", NewName: "b"}}}
	require.NoError(t, undo.SaveUndoLog(ctx, first))
	second := entity.UndoLog{JobID: "job-1", CreatedAt: time.Now(), Ops: []entity.RenameOp{
		{FileID: "x", OldName: "x1", NewName: "x2"},
		{FileID: "y", OldName: "y1", NewName: "y2"},
	}}
	require.NoError(t, undo.SaveUndoLog(ctx, second))

	got, err := undo.GetUndoLog(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, second.Ops, got.Ops)

	require.NoError(t, undo.SaveAppliedRenames(ctx, "job-1", second.Ops, time.Now()))
	applied, err := undo.ListAppliedRenames(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "x2", applied[0].NewName)

	require.NoError(t, undo.DeleteAppliedRenames(ctx, "job-1", []string{"y"}))
	require.NoError(t, undo.DeleteAppliedRenames(ctx, "job-1", nil))
	applied, err = undo.ListAppliedRenames(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "x", applied[0].FileID)
	log, err := undo.GetUndoLog(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, log.Ops, 2)

	require.NoError(t, undo.ClearUndoLog(ctx, "job-1"))
	require.NoError(t, undo.ClearAppliedRenames(ctx, "job-1"))
	_, err = undo.GetUndoLog(ctx, "job-1")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	applied, err = undo.ListAppliedRenames(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestLabelRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	labels := NewLabelRepository(db, nil)

	inv := &entity.Label{
		ID: "l-inv", Name: "Invoice", IsActive: true, CreatedAt: time.Now(),
		Schema:         entity.Schema{{Name: "vendor", Type: entity.FieldString}, {Name: "amount", Type: entity.FieldNumber}},
		NamingTemplate: "Invoice_{vendor}", FallbackInstructions: "bills from suppliers",
	}
	require.NoError(t, labels.Create(ctx, inv))
	require.NoError(t, labels.Create(ctx, &entity.Label{ID: "l-rec", Name: "Receipt", IsActive: true, CreatedAt: time.Now()}))

	err := labels.Create(ctx, &entity.Label{ID: "l-dup", Name: "invoice", IsActive: true})
	assert.True(t, errors.Is(err, common.ErrConflict))

	got, err := labels.Get(ctx, "l-inv")
	require.NoError(t, err)
	assert.Equal(t, inv.Schema, got.Schema)
	assert.Equal(t, "bills from suppliers", got.FallbackInstructions)

	require.NoError(t, labels.SetActive(ctx, "l-rec", false))
	active, err := labels.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := labels.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := labels.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got.NamingTemplate = "INV_{amount}"
	require.NoError(t, labels.Update(ctx, got))
	got, err = labels.GetByName(ctx, " INVOICE ")
	require.NoError(t, err)
	assert.Equal(t, "INV_{amount}", got.NamingTemplate)
}

func TestLabelRepository_ExamplesAndProfiles(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	labels := NewLabelRepository(db, nil)
	require.NoError(t, labels.Create(ctx, &entity.Label{ID: "l1", Name: "Invoice", IsActive: true}))
	require.NoError(t, labels.Create(ctx, &entity.Label{ID: "l2", Name: "Receipt", IsActive: true}))

	ex := &entity.LabelExample{ID: "e1", LabelID: "l1", FileID: "f1", Filename: "inv.pdf"}
	require.NoError(t, labels.AttachExample(ctx, ex))

	again := &entity.LabelExample{ID: "e-new", LabelID: "l1", FileID: "f1", Filename: "inv2.pdf"}
	require.NoError(t, labels.AttachExample(ctx, again))
	assert.Equal(t, "e1", again.ID)

	err := labels.AttachExample(ctx, &entity.LabelExample{ID: "e2", LabelID: "l2", FileID: "f1", Filename: "x"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	require.NoError(t, labels.SaveFeature(ctx, entity.LabelFeature{
		ExampleID: "e1", Text: "invoice total", Tokens: []string{"invoice", "total"}, Embedding: []float32{0.5, 0.5},
	}))
	require.NoError(t, labels.SaveFeature(ctx, entity.LabelFeature{ExampleID: "e1", Text: "invoice due", Tokens: []string{"due", "invoice"}}))

	f, err := labels.GetFeature(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "invoice due", f.Text)
	assert.Nil(t, f.Embedding)

	profiles, err := labels.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Invoice", profiles[0].Label.Name)
	require.Len(t, profiles[0].Features, 1)
	assert.Equal(t, []string{"due", "invoice"}, profiles[0].Features[0].Tokens)
	assert.Empty(t, profiles[1].Features)

	examples, err := labels.ListExamples(ctx, "")
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "inv2.pdf", examples[0].Filename)
}

func TestResultRepository_Overwrites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	results := NewResultRepository(db, nil)

	require.NoError(t, results.SaveOCR(ctx, entity.OCRResult{JobID: "j", FileID: "f", Text: "one", Confidence: 0.4}))
	require.NoError(t, results.SaveOCR(ctx, entity.OCRResult{JobID: "j", FileID: "f", Text: "two", Confidence: 0.9, Engine: "tesseract"}))
	ocr, err := results.GetOCR(ctx, "j", "f")
	require.NoError(t, err)
	assert.Equal(t, "two", ocr.Text)
	_, err = results.GetOCR(ctx, "j", "nope")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	require.NoError(t, results.SaveMatch(ctx, entity.LabelMatch{JobID: "j", FileID: "f", LabelID: "l1", Score: 0.8, Status: constants.MatchStatusMatched, Mode: constants.ModeLexical}))
	matches, err := results.ListMatches(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusMatched, matches["f"].Status)

	require.NoError(t, results.SetOverride(ctx, entity.Override{JobID: "j", FileID: "f", LabelID: "l1"}))
	require.NoError(t, results.SetOverride(ctx, entity.Override{JobID: "j", FileID: "f", LabelID: "l2"}))
	overrides, err := results.ListOverrides(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, "l2", overrides["f"].LabelID)
	require.NoError(t, results.ClearOverride(ctx, "j", "f"))
	overrides, err = results.ListOverrides(ctx, "j")
	require.NoError(t, err)
	assert.Empty(t, overrides)

	conf := 0.7
	require.NoError(t, results.SaveExtraction(ctx, entity.ExtractionResult{
		JobID: "j", FileID: "f", LabelID: "l1",
		Schema:      entity.Schema{{Name: "amount", Type: entity.FieldNumber}, {Name: "vendor", Type: entity.FieldString}},
		Fields:      map[string]any{"amount": 12.5, "vendor": "UNKNOWN"},
		Confidences: map[string]*float64{"amount": &conf, "vendor": nil},
		NeedsReview: true,
		Warnings:    []string{"Missing required field: vendor"},
	}))
	ext, err := results.GetExtraction(ctx, "j", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "vendor"}, ext.Schema.Keys())
	assert.Equal(t, 12.5, ext.Fields["amount"])
	assert.Nil(t, ext.Confidences["vendor"])
	assert.True(t, ext.NeedsReview)

	require.NoError(t, results.SaveFallback(ctx, entity.LLMFallbackResult{JobID: "j", FileID: "f", Confidence: 0, Signals: []string{"LLM_CLASSIFICATION_FAILED"}}))
	fb, err := results.ListFallbacks(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, []string{"LLM_CLASSIFICATION_FAILED"}, fb["f"].Signals)
}

func TestResultRepository_TimingsMerge(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	results := NewResultRepository(db, nil)

	ocr, cls := int64(120), int64(8)
	require.NoError(t, results.SaveTimings(ctx, entity.FileTimings{JobID: "j", FileID: "f", OCRMs: &ocr}))
	require.NoError(t, results.SaveTimings(ctx, entity.FileTimings{JobID: "j", FileID: "f", ClassifyMs: &cls}))

	timings, err := results.ListTimings(ctx, "j")
	require.NoError(t, err)
	got := timings["f"]
	require.NotNil(t, got.OCRMs)
	require.NotNil(t, got.ClassifyMs)
	assert.Equal(t, int64(120), *got.OCRMs)
	assert.Equal(t, int64(8), *got.ClassifyMs)
	assert.Nil(t, got.ExtractMs)
}
