package undo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs every store and rename call in order.
type recorder struct {
	calls []string

	log     *entity.UndoLog
	applied map[string]entity.RenameOp
	names   map[string]string

	failRename map[string]bool // keyed by file id + "->" + target name
}

func newRecorder(names map[string]string) *recorder {
	return &recorder{applied: map[string]entity.RenameOp{}, names: names, failRename: map[string]bool{}}
}

func (r *recorder) SaveUndoLog(_ context.Context, l entity.UndoLog) error {
	r.calls = append(r.calls, "save_log")
	r.log = &l
	return nil
}

func (r *recorder) GetUndoLog(_ context.Context, jobID string) (*entity.UndoLog, error) {
	if r.log == nil {
		return nil, common.NewNotFound("undo log", jobID)
	}
	cp := *r.log
	return &cp, nil
}

func (r *recorder) ClearUndoLog(context.Context, string) error {
	r.calls = append(r.calls, "clear_log")
	r.log = nil
	return nil
}

func (r *recorder) SaveAppliedRenames(_ context.Context, _ string, ops []entity.RenameOp, _ time.Time) error {
	r.calls = append(r.calls, fmt.Sprintf("save_applied:%d", len(ops)))
	for _, op := range ops {
		r.applied[op.FileID] = op
	}
	return nil
}

func (r *recorder) ListAppliedRenames(context.Context, string) ([]entity.AppliedRename, error) {
	return nil, nil
}

func (r *recorder) DeleteAppliedRenames(_ context.Context, _ string, ids []string) error {
	r.calls = append(r.calls, fmt.Sprintf("delete_applied:%d", len(ids)))
	for _, id := range ids {
		delete(r.applied, id)
	}
	return nil
}

func (r *recorder) ClearAppliedRenames(context.Context, string) error {
	r.calls = append(r.calls, "clear_applied")
	r.applied = map[string]entity.RenameOp{}
	return nil
}

func (r *recorder) Rename(_ context.Context, fileID, newName string) error {
	r.calls = append(r.calls, "rename:"+fileID+"->"+newName)
	if r.failRename[fileID+"->"+newName] {
		return errors.New("drive unavailable")
	}
	r.names[fileID] = newName
	return nil
}

func sampleOps() []entity.RenameOp {
	return []entity.RenameOp{
		{FileID: "1", OldName: "a.jpg", NewName: "Invoice_01.jpg"},
		{FileID: "2", OldName: "b.jpg", NewName: "Invoice_02.jpg"},
		{FileID: "3", OldName: "c.jpg", NewName: "Receipt.jpg"},
	}
}

func TestApply_WritesLogBeforeAnyRename(t *testing.T) {
	rec := newRecorder(map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"})
	ledger := NewLedger(rec, rec, nil)

	require.NoError(t, ledger.Apply(context.Background(), "job", sampleOps()))
	assert.Equal(t, []string{
		"save_log",
		"rename:1->Invoice_01.jpg",
		"rename:2->Invoice_02.jpg",
		"rename:3->Receipt.jpg",
		"save_applied:3",
	}, rec.calls)
	assert.Equal(t, sampleOps(), rec.log.Ops)
}

func TestApply_PartialFailure(t *testing.T) {
	rec := newRecorder(map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"})
	rec.failRename["2->Invoice_02.jpg"] = true
	ledger := NewLedger(rec, rec, nil)

	err := ledger.Apply(context.Background(), "job", sampleOps())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPartialApply))
	assert.True(t, errors.Is(err, common.ErrCapability))

	var perr *common.PartialApplyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Index)
	assert.Equal(t, "2", perr.FileID)
	assert.Equal(t, []string{"1"}, perr.Done)
	assert.Equal(t, []string{"2", "3"}, perr.Remaining)

	// already renamed file stays renamed, log still holds the full intended set
	assert.Equal(t, "Invoice_01.jpg", rec.names["1"])
	assert.Equal(t, "b.jpg", rec.names["2"])
	require.NotNil(t, rec.log)
	assert.Len(t, rec.log.Ops, 3)
	assert.NotContains(t, rec.calls, "rename:3->Receipt.jpg")
	assert.Contains(t, rec.calls, "save_applied:1")
}

func TestApply_RejectsEmptyBatch(t *testing.T) {
	rec := newRecorder(map[string]string{})
	err := NewLedger(rec, rec, nil).Apply(context.Background(), "job", nil)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, rec.calls)
}

func TestUndo_RestoresInReverseAndClears(t *testing.T) {
	original := map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"}
	rec := newRecorder(map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"})
	ledger := NewLedger(rec, rec, nil)
	ctx := context.Background()

	require.NoError(t, ledger.Apply(ctx, "job", sampleOps()))
	rec.calls = nil

	reverted, err := ledger.Undo(ctx, "job")
	require.NoError(t, err)
	assert.Len(t, reverted, 3)
	assert.Equal(t, []string{
		"rename:3->c.jpg",
		"rename:2->b.jpg",
		"rename:1->a.jpg",
		"clear_log",
		"clear_applied",
	}, rec.calls)
	assert.Equal(t, original, rec.names)
	assert.Nil(t, rec.log)

	_, err = ledger.Undo(ctx, "job")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestUndo_PartialKeepsLog(t *testing.T) {
	rec := newRecorder(map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"})
	ledger := NewLedger(rec, rec, nil)
	ctx := context.Background()
	require.NoError(t, ledger.Apply(ctx, "job", sampleOps()))

	rec.failRename["2->b.jpg"] = true
	_, err := ledger.Undo(ctx, "job")
	var perr *common.PartialApplyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "undo", perr.Op)
	assert.Equal(t, []string{"3"}, perr.Done)
	assert.Equal(t, []string{"2", "1"}, perr.Remaining)
	require.NotNil(t, rec.log)
	assert.Equal(t, sampleOps(), rec.log.Ops)
	assert.NotContains(t, rec.calls, "clear_log")
	assert.NotContains(t, rec.applied, "3")
	assert.Contains(t, rec.applied, "2")
	assert.Contains(t, rec.applied, "1")

	// retry once the store recovers
	delete(rec.failRename, "2->b.jpg")
	_, err = ledger.Undo(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", rec.names["2"])
	assert.Nil(t, rec.log)
}

func TestUndo_PartialDropsRevertedRecords(t *testing.T) {
	tests := []struct {
		name        string
		fail        string
		wantApplied []string
		wantDeleted bool
	}{
		{name: "first reversion fails", fail: "3->c.jpg", wantApplied: []string{"1", "2", "3"}},
		{name: "second reversion fails", fail: "2->b.jpg", wantApplied: []string{"1", "2"}, wantDeleted: true},
		{name: "last reversion fails", fail: "1->a.jpg", wantApplied: []string{"1"}, wantDeleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(map[string]string{"1": "a.jpg", "2": "b.jpg", "3": "c.jpg"})
			ledger := NewLedger(rec, rec, nil)
			ctx := context.Background()
			require.NoError(t, ledger.Apply(ctx, "job", sampleOps()))
			rec.calls = nil

			rec.failRename[tt.fail] = true
			_, err := ledger.Undo(ctx, "job")
			assert.True(t, errors.Is(err, common.ErrPartialApply))

			var got []string
			for id := range rec.applied {
				got = append(got, id)
			}
			assert.ElementsMatch(t, tt.wantApplied, got)
			require.NotNil(t, rec.log)
			assert.Equal(t, sampleOps(), rec.log.Ops)
			deleted := fmt.Sprintf("delete_applied:%d", 3-len(tt.wantApplied))
			if tt.wantDeleted {
				assert.Contains(t, rec.calls, deleted)
			} else {
				assert.NotContains(t, rec.calls, deleted)
			}
			assert.NotContains(t, rec.calls, "clear_applied")
		})
	}
}

func TestUndo_NoLog(t *testing.T) {
	rec := newRecorder(map[string]string{})
	_, err := NewLedger(rec, rec, nil).Undo(context.Background(), "job")
	var nf *common.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
