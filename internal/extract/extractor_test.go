package extract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/filestore"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

type stubGen struct {
	out  llm.FieldResult
	err  error
	reqs []llm.ExtractRequest
}

func (s *stubGen) ScoreCandidates(context.Context, string, []llm.Candidate) (llm.Scoring, error) {
	return llm.Scoring{}, errors.New("not used")
}

func (s *stubGen) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.FieldResult, error) {
	s.reqs = append(s.reqs, req)
	return s.out, s.err
}

func (s *stubGen) GenerateSchema(context.Context, llm.SchemaRequest) (llm.SchemaDraft, error) {
	return llm.SchemaDraft{}, errors.New("not used")
}

type fixture struct {
	labels  repository.LabelRepository
	results repository.ResultRepository
	store   *filestore.MemoryStore
	gen     *stubGen
	ex      *Extractor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	f := fixture{
		labels:  repository.NewLabelRepository(db, nil),
		results: repository.NewResultRepository(db, nil),
		store:   filestore.NewMemoryStore(),
		gen:     &stubGen{},
	}
	f.ex = NewExtractor(f.labels, f.results, f.store, f.gen, nil)

	require.NoError(t, f.labels.Create(ctx, &entity.Label{
		ID: "inv", Name: "Invoice", IsActive: true, CreatedAt: time.Now(),
		Schema:                 entity.Schema{{Name: "vendor", Type: entity.FieldString}, {Name: "amount", Type: entity.FieldNumber}},
		NamingTemplate:         "Invoice_{amount}",
		ExtractionInstructions: "Amounts are in KWD.",
	}))
	require.NoError(t, f.labels.Create(ctx, &entity.Label{ID: "rec", Name: "Receipt", IsActive: true, CreatedAt: time.Now()}))
	return f
}

func matched(labelID string) entity.FileLabels {
	return entity.FileLabels{Match: &entity.LabelMatch{Status: constants.MatchStatusMatched, LabelID: labelID}}
}

func TestHydrate_Priority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	h, err := f.ex.Hydrate(ctx, entity.FileLabels{
		Override: &entity.Override{LabelID: "rec"},
		Match:    &entity.LabelMatch{Status: constants.MatchStatusMatched, LabelID: "inv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rec", h.LabelID)
	assert.Equal(t, constants.DefaultExtractionInstructions, h.Instructions)

	h, err = f.ex.Hydrate(ctx, matched("inv"))
	require.NoError(t, err)
	assert.Equal(t, "inv", h.LabelID)
	assert.Equal(t, "Amounts are in KWD.", h.Instructions)

	h, err = f.ex.Hydrate(ctx, entity.FileLabels{Match: &entity.LabelMatch{Status: constants.MatchStatusAmbiguous, LabelID: "inv"}})
	require.NoError(t, err)
	assert.Equal(t, "", h.LabelID)
	assert.Equal(t, GenericSchema, h.Schema)

	h, err = f.ex.Hydrate(ctx, entity.FileLabels{Override: &entity.Override{LabelID: "deleted"}, Match: &entity.LabelMatch{Status: constants.MatchStatusMatched, LabelID: "inv"}})
	require.NoError(t, err)
	assert.Equal(t, "inv", h.LabelID)
}

func TestExtractFile_ImageBytesAndMissingField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "scan.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, f.results.SaveOCR(ctx, entity.OCRResult{JobID: "job", FileID: id, Text: "ACME invoice", UpdatedAt: time.Now()}))
	conf := 0.9
	f.gen.out = llm.FieldResult{
		Fields:      map[string]any{"vendor": " ACME ", "extra": "dropped"},
		Confidences: map[string]*float64{"vendor": &conf},
	}

	res, err := f.ex.ExtractFile(ctx, "job", entity.FileRef{FileID: id, Name: "scan.jpg", MimeType: "image/jpeg"}, matched("inv"))
	require.NoError(t, err)

	require.Len(t, f.gen.reqs, 1)
	req := f.gen.reqs[0]
	assert.Equal(t, []byte("jpeg-bytes"), req.Content.Data)
	assert.Equal(t, "image/jpeg", req.Content.MimeType)
	assert.Equal(t, "ACME invoice", req.Content.Text)
	assert.Equal(t, "Amounts are in KWD.", req.Instructions)

	assert.Equal(t, map[string]any{"vendor": "ACME", "amount": constants.Unknown}, res.Fields)
	assert.Nil(t, res.Confidences["amount"])
	assert.InDelta(t, 0.9, *res.Confidences["vendor"], 1e-9)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, []string{constants.WarnMissingRequiredField + "amount"}, res.Warnings)

	stored, err := f.results.GetExtraction(ctx, "job", id)
	require.NoError(t, err)
	assert.Equal(t, constants.Unknown, stored.Fields["amount"])

	timings, err := f.results.ListTimings(ctx, "job")
	require.NoError(t, err)
	assert.NotNil(t, timings[id].ExtractMs)
}

func TestExtractFile_DownloadFailureFallsBackToText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "doc.pdf", "application/pdf", []byte("%PDF"))
	f.store.Fail = func(op, _ string) error {
		if op == "download" {
			return errors.New("network")
		}
		return nil
	}
	require.NoError(t, f.results.SaveOCR(ctx, entity.OCRResult{JobID: "job", FileID: id, Text: "Total 12.500", UpdatedAt: time.Now()}))
	f.gen.out = llm.FieldResult{Fields: map[string]any{"vendor": "ACME", "amount": "12.500"}}

	res, err := f.ex.ExtractFile(ctx, "job", entity.FileRef{FileID: id, Name: "doc.pdf", MimeType: "application/pdf"}, matched("inv"))
	require.NoError(t, err)
	require.Len(t, f.gen.reqs, 1)
	assert.False(t, f.gen.reqs[0].Content.HasBytes())
	assert.Equal(t, "Total 12.500", f.gen.reqs[0].Content.Text)
	assert.Equal(t, 12.5, res.Fields["amount"])
	assert.Equal(t, []string{constants.WarnFileDownloadFailed}, res.Warnings)
	assert.True(t, res.NeedsReview)
}

func TestExtractFile_EmptySchema(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "r.png", "image/png", []byte("png"))

	res, err := f.ex.ExtractFile(ctx, "job", entity.FileRef{FileID: id, Name: "r.png", MimeType: "image/png"}, matched("rec"))
	require.NoError(t, err)
	assert.Empty(t, f.gen.reqs)
	assert.Equal(t, []string{constants.WarnEmptySchema}, res.Warnings)
	assert.True(t, res.NeedsReview)
	assert.Empty(t, res.Fields)
}

func TestExtractFile_GenericSchemaAndUnknownMime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "notes.txt", "", []byte("hello world"))
	f.gen.out = llm.FieldResult{Fields: map[string]any{"document_language": "en", "notes": "greeting"}}

	res, err := f.ex.ExtractFile(ctx, "job", entity.FileRef{FileID: id, Name: "notes.txt"}, entity.FileLabels{})
	require.NoError(t, err)
	require.Len(t, f.gen.reqs, 1)
	assert.Equal(t, "hello world", f.gen.reqs[0].Content.Text)
	assert.Equal(t, GenericSchema, f.gen.reqs[0].Schema)
	assert.Equal(t, []string{constants.WarnFileMimeUnknown}, res.Warnings)
	assert.False(t, res.NeedsReview)
}

func TestExtractFile_GeneratorFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "a.jpg", "image/jpeg", []byte("a"))
	file := entity.FileRef{FileID: id, Name: "a.jpg", MimeType: "image/jpeg"}
	f.gen.err = errors.New("timeout")

	res, err := f.ex.ExtractFile(ctx, "job", file, matched("inv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCapability))
	require.NotNil(t, res)
	assert.Contains(t, res.Warnings, constants.WarnLLMExtractionFailed)
	assert.Equal(t, constants.Unknown, res.Fields["vendor"])

	// a good result is not replaced by a later failure
	f.gen.err = nil
	f.gen.out = llm.FieldResult{Fields: map[string]any{"vendor": "ACME", "amount": 5.0}}
	_, err = f.ex.ExtractFile(ctx, "job", file, matched("inv"))
	require.NoError(t, err)

	f.gen.err = errors.New("timeout")
	_, err = f.ex.ExtractFile(ctx, "job", file, matched("inv"))
	require.Error(t, err)
	stored, err := f.results.GetExtraction(ctx, "job", id)
	require.NoError(t, err)
	assert.Equal(t, "ACME", stored.Fields["vendor"])
	assert.Empty(t, stored.Warnings)
}

func TestExtractFile_NoContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.store.Put("folder", "blob.bin", "application/octet-stream", []byte{1})

	res, err := f.ex.ExtractFile(ctx, "job", entity.FileRef{FileID: id, Name: "blob.bin", MimeType: "application/octet-stream"}, matched("inv"))
	require.NoError(t, err)
	assert.Empty(t, f.gen.reqs)
	assert.Contains(t, res.Warnings, constants.WarnLLMExtractionEmpty)
	assert.Equal(t, constants.Unknown, res.Fields["vendor"])
}
