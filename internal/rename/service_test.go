package rename

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/undo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenamer struct {
	names map[string]string
}

func (f *fakeRenamer) Rename(_ context.Context, fileID, newName string) error {
	f.names[fileID] = newName
	return nil
}

type fixture struct {
	svc     *Service
	jobs    repository.JobRepository
	labels  repository.LabelRepository
	results repository.ResultRepository
	files   *fakeRenamer
}

func newFixture(t *testing.T, files ...entity.JobFile) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "r.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	jobs := repository.NewJobRepository(db, nil)
	labels := repository.NewLabelRepository(db, nil)
	results := repository.NewResultRepository(db, nil)
	undos := repository.NewUndoRepository(db, nil)
	store := &fakeRenamer{names: map[string]string{}}
	for _, f := range files {
		store.names[f.FileID] = f.Name
	}
	require.NoError(t, jobs.Create(ctx, &entity.Job{ID: "job", FolderID: "folder", CreatedAt: time.Now(), Status: constants.JobStatusCreated}, files))

	svc := NewService(jobs, labels, results, undos, undo.NewLedger(undos, store, nil), nil)
	return fixture{svc: svc, jobs: jobs, labels: labels, results: results, files: store}
}

func TestService_ManualPreviewApplyUndo(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t,
		jf(0, "a", "a.jpg", "image/jpeg"),
		jf(1, "b", "b.jpg", "image/jpeg"),
		jf(2, "c", "Invoice.jpg", "image/jpeg"),
	)

	ops, err := fx.svc.PreviewManual(ctx, "job", map[string]string{"a": "Invoice "})
	require.NoError(t, err)
	require.Equal(t, []entity.RenameOp{{FileID: "a", OldName: "a.jpg", NewName: "Invoice_01.jpg"}}, ops)

	require.NoError(t, fx.svc.Apply(ctx, "job", ops))
	assert.Equal(t, "Invoice_01.jpg", fx.files.names["a"])
	job, err := fx.jobs.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusApplied, job.Status)

	current, err := fx.svc.CurrentFiles(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "Invoice_01.jpg", current[0].Name)

	_, err = fx.svc.Undo(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", fx.files.names["a"])

	current, err = fx.svc.CurrentFiles(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", current[0].Name)

	_, err = fx.svc.Undo(ctx, "job")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestService_ApplyValidatesOps(t *testing.T) {
	tests := []struct {
		name    string
		ops     []entity.RenameOp
		wantErr int
	}{
		{
			name: "unknown file, unsanitized name and collision",
			ops: []entity.RenameOp{
				{FileID: "zzz", OldName: "x", NewName: "ok.jpg"},
				{FileID: "a", OldName: "a.jpg", NewName: "bad/name.jpg"},
				{FileID: "b", OldName: "b.jpg", NewName: "ok.jpg"},
			},
			wantErr: 3,
		},
		{
			name:    "old name differs from current name",
			ops:     []entity.RenameOp{{FileID: "a", OldName: "stale.jpg", NewName: "Invoice.jpg"}},
			wantErr: 1,
		},
		{
			name: "one stale op rejects the whole batch",
			ops: []entity.RenameOp{
				{FileID: "a", OldName: "a.jpg", NewName: "Invoice.jpg"},
				{FileID: "b", OldName: "a.jpg", NewName: "Receipt.jpg"},
			},
			wantErr: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, jf(0, "a", "a.jpg", "image/jpeg"), jf(1, "b", "b.jpg", "image/jpeg"))

			err := fx.svc.Apply(ctx, "job", tt.ops)
			var verrs common.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Len(t, verrs, tt.wantErr)
			assert.Equal(t, "a.jpg", fx.files.names["a"])
			assert.Equal(t, "b.jpg", fx.files.names["b"])
		})
	}
}

func TestService_ApplyAfterRenameUsesAppliedName(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, jf(0, "a", "a.jpg", "image/jpeg"))

	require.NoError(t, fx.svc.Apply(ctx, "job", []entity.RenameOp{{FileID: "a", OldName: "a.jpg", NewName: "Invoice.jpg"}}))

	err := fx.svc.Apply(ctx, "job", []entity.RenameOp{{FileID: "a", OldName: "a.jpg", NewName: "Receipt.jpg"}})
	var verrs common.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	require.NoError(t, fx.svc.Apply(ctx, "job", []entity.RenameOp{{FileID: "a", OldName: "Invoice.jpg", NewName: "Receipt.jpg"}}))
	assert.Equal(t, "Receipt.jpg", fx.files.names["a"])
}

func TestService_ApplyStatusMovesForwardOnly(t *testing.T) {
	tests := []struct {
		from constants.JobStatus
		want constants.JobStatus
	}{
		{from: constants.JobStatusCreated, want: constants.JobStatusApplied},
		{from: constants.JobStatusExtracted, want: constants.JobStatusApplied},
		{from: constants.JobStatusApplied, want: constants.JobStatusApplied},
		{from: constants.JobStatusReported, want: constants.JobStatusReported},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, jf(0, "a", "a.jpg", "image/jpeg"))
			require.NoError(t, fx.jobs.SetStatus(ctx, "job", tt.from))

			require.NoError(t, fx.svc.Apply(ctx, "job", []entity.RenameOp{{FileID: "a", OldName: "a.jpg", NewName: "Invoice.jpg"}}))
			job, err := fx.jobs.Get(ctx, "job")
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Status)
		})
	}
}

func TestService_PreviewLabels_OverrideWinsAndTemplate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t,
		jf(0, "a", "scan1.jpg", "image/jpeg"),
		jf(1, "b", "scan2.pdf", "application/pdf"),
		jf(2, "c", "scan3.png", "image/png"),
	)
	require.NoError(t, fx.labels.Create(ctx, &entity.Label{
		ID: "inv", Name: "Invoice", IsActive: true,
		Schema:         entity.Schema{{Name: "amount", Type: entity.FieldNumber}},
		NamingTemplate: "Invoice_{amount}",
	}))
	require.NoError(t, fx.labels.Create(ctx, &entity.Label{ID: "rec", Name: "Receipt", IsActive: true}))

	require.NoError(t, fx.results.SaveMatch(ctx, entity.LabelMatch{JobID: "job", FileID: "a", LabelID: "inv", Score: 0.9, Status: constants.MatchStatusMatched}))
	require.NoError(t, fx.results.SaveMatch(ctx, entity.LabelMatch{JobID: "job", FileID: "b", Score: 0.1, Status: constants.MatchStatusNoMatch}))
	require.NoError(t, fx.results.SetOverride(ctx, entity.Override{JobID: "job", FileID: "b", LabelID: "inv"}))
	require.NoError(t, fx.results.SaveFallback(ctx, entity.LLMFallbackResult{JobID: "job", FileID: "c", LabelName: "Receipt", Confidence: 0.95}))

	ops, err := fx.svc.PreviewLabels(ctx, "job", LabelPlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []entity.RenameOp{
		{FileID: "a", OldName: "scan1.jpg", NewName: "Invoice_01.jpg"},
		{FileID: "b", OldName: "scan2.pdf", NewName: "Invoice_02.pdf"},
	}, ops)

	require.NoError(t, fx.results.SaveExtraction(ctx, entity.ExtractionResult{
		JobID: "job", FileID: "a", Fields: map[string]any{"amount": 40.0},
	}))
	ops, err = fx.svc.PreviewLabels(ctx, "job", LabelPlanOptions{UseNamingTemplate: true})
	require.NoError(t, err)
	assert.Equal(t, []entity.RenameOp{
		{FileID: "a", OldName: "scan1.jpg", NewName: "Invoice_40.jpg"},
		{FileID: "b", OldName: "scan2.pdf", NewName: "Invoice_UNKNOWN.pdf"},
	}, ops)
}
