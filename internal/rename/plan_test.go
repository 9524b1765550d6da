package rename

import (
	"testing"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jf(idx int, id, name, mime string) entity.JobFile {
	return entity.JobFile{FileRef: entity.FileRef{FileID: id, Name: name, MimeType: mime}, SortIndex: idx}
}

func TestBuildManualPlan(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "1", "old.png", "image/png"),
		jf(1, "2", "keep.png", "image/png"),
		jf(2, "3", "same.png", "image/png"),
		jf(3, "4", "blank.png", "image/png"),
	}
	edits := map[string]string{"1": "new.png", "3": "same.png", "4": "   ", "missing": "x"}

	got := BuildManualPlan(files, edits)
	assert.Equal(t, []entity.RenameOp{{FileID: "1", OldName: "old.png", NewName: "new.png"}}, got)
}

func TestPreviewManual_CollidesWithUnchangedFile(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "a", "a.jpg", "image/jpeg"),
		jf(1, "b", "b.jpg", "image/jpeg"),
		jf(2, "c", "Invoice.jpg", "image/jpeg"),
	}
	got := PreviewManual(files, map[string]string{"a": "Invoice "})
	assert.Equal(t, []entity.RenameOp{{FileID: "a", OldName: "a.jpg", NewName: "Invoice_01.jpg"}}, got)
}

func TestPreviewManual_KeepsExplicitExtensionAndDropsNoops(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "a", "a.jpg", "image/jpeg"),
		jf(1, "b", "b.pdf", "application/pdf"),
		jf(2, "c", "c.pdf", "application/pdf"),
	}
	got := PreviewManual(files, map[string]string{
		"a": "scan.png",
		"b": "b/.pdf",
		"c": "Mr. Smith",
	})
	require.Len(t, got, 2)
	assert.Equal(t, "scan.png", got[0].NewName)
	assert.Equal(t, "c", got[1].FileID)
	assert.Equal(t, "Mr. Smith.pdf", got[1].NewName)
}

func TestPreviewManual_StableOrderAcrossInputOrder(t *testing.T) {
	files := []entity.JobFile{
		jf(1, "y", "y.txt", "text/plain"),
		jf(0, "x", "x.txt", "text/plain"),
	}
	got := PreviewManual(files, map[string]string{"x": "dup", "y": "dup"})
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].FileID)
	assert.Equal(t, "dup.txt", got[0].NewName)
	assert.Equal(t, "dup_01.txt", got[1].NewName)
}

func TestBuildLabelPlan(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "1", "scan1.jpg", "image/jpeg"),
		jf(1, "2", "scan2.pdf", "application/pdf"),
		jf(2, "3", "scan3.jpg", "image/jpeg"),
		jf(3, "4", "noext", "image/png"),
		jf(4, "5", "other.jpg", "image/jpeg"),
	}
	assignments := map[string]Assignment{
		"1": {LabelID: "inv", Base: "Invoice"},
		"2": {LabelID: "inv", Base: "Invoice"},
		"3": {LabelID: "rec", Base: "Receipt"},
		"4": {LabelID: "inv", Base: "Invoice"},
	}
	got := BuildLabelPlan(files, assignments)
	assert.Equal(t, []entity.RenameOp{
		{FileID: "1", OldName: "scan1.jpg", NewName: "Invoice_01.jpg"},
		{FileID: "2", OldName: "scan2.pdf", NewName: "Invoice_02.pdf"},
		{FileID: "3", OldName: "scan3.jpg", NewName: "Receipt.jpg"},
		{FileID: "4", OldName: "noext", NewName: "Invoice_03.png"},
	}, got)
}

func TestPreviewLabels_IdempotentAfterApply(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "1", "Invoice_01.jpg", "image/jpeg"),
		jf(1, "2", "Invoice_02.jpg", "image/jpeg"),
		jf(2, "3", "Receipt.jpg", "image/jpeg"),
	}
	assignments := map[string]Assignment{
		"1": {Base: "Invoice"},
		"2": {Base: "Invoice"},
		"3": {Base: "Receipt"},
	}
	assert.Empty(t, PreviewLabels(files, assignments))
}

func TestPreviewLabels_AvoidsUnassignedNames(t *testing.T) {
	files := []entity.JobFile{
		jf(0, "1", "a.jpg", "image/jpeg"),
		jf(1, "2", "Receipt.jpg", "image/jpeg"),
	}
	got := PreviewLabels(files, map[string]Assignment{"1": {Base: "Receipt"}})
	assert.Equal(t, []entity.RenameOp{{FileID: "1", OldName: "a.jpg", NewName: "Receipt_01.jpg"}}, got)
}

func TestRenderTemplate(t *testing.T) {
	fields := map[string]any{"vendor": "ACME", "amount": 12.5, "blank": " "}
	assert.Equal(t, "Invoice_ACME_12.5", RenderTemplate("Invoice_{vendor}_{amount}", fields))
	assert.Equal(t, "Invoice_UNKNOWN", RenderTemplate("Invoice_{amount}", map[string]any{}))
	assert.Equal(t, "x_UNKNOWN", RenderTemplate("x_{blank}", fields))
	assert.Equal(t, "plain", RenderTemplate("plain", nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"vendor", "amount"}, Placeholders("{vendor}_{amount}_{vendor}"))
	assert.Nil(t, Placeholders("no fields"))
	assert.Nil(t, Placeholders("{not valid}"))
}
