package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// Extractor populates label schemas from document content.
type Extractor struct {
	labels  repository.LabelRepository
	results repository.ResultRepository
	files   Downloader
	gen     llm.StructuredGenerator
	logger  *slog.Logger
	now     func() time.Time
}

func NewExtractor(
	labels repository.LabelRepository,
	results repository.ResultRepository,
	files Downloader,
	gen llm.StructuredGenerator,
	logger *slog.Logger,
) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{labels: labels, results: results, files: files, gen: gen, logger: logger, now: time.Now}
}

// Hydrate picks the schema for a file: the override label's, then the MATCHED
// label's, then GenericSchema. A referenced label that no longer exists is skipped.
func (e *Extractor) Hydrate(ctx context.Context, fl entity.FileLabels) (Hydration, error) {
	var candidates []string
	if fl.Override != nil && fl.Override.LabelID != "" {
		candidates = append(candidates, fl.Override.LabelID)
	}
	if fl.Match != nil && fl.Match.Status == constants.MatchStatusMatched && fl.Match.LabelID != "" {
		candidates = append(candidates, fl.Match.LabelID)
	}
	for _, id := range candidates {
		label, err := e.labels.Get(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return Hydration{}, err
		}
		instr := strings.TrimSpace(label.ExtractionInstructions)
		if instr == "" {
			instr = constants.DefaultExtractionInstructions
		}
		return Hydration{LabelID: label.ID, Schema: label.Schema, Instructions: instr}, nil
	}
	return Hydration{Schema: GenericSchema, Instructions: constants.DefaultExtractionInstructions}, nil
}

// ExtractFile runs extraction for one file and overwrites its stored result.
//
// Source bytes are attached for images and PDFs, with the stored OCR text as
// context; a failed download degrades to text only. Every schema key ends up in
// the result: blank or absent values become UNKNOWN and flag the result for review.
// When the generator fails, a prior result is left as it was and a CapabilityError
// is returned; if there was none, a placeholder result is stored.
func (e *Extractor) ExtractFile(ctx context.Context, jobID string, file entity.FileRef, fl entity.FileLabels) (*entity.ExtractionResult, error) {
	started := e.now()
	logger := common.LoggerWith(ctx, e.logger).With("file_id", file.FileID)

	h, err := e.Hydrate(ctx, fl)
	if err != nil {
		return nil, err
	}
	res := &entity.ExtractionResult{JobID: jobID, FileID: file.FileID, LabelID: h.LabelID, Schema: h.Schema}
	warn := func(code string) {
		res.Warnings = append(res.Warnings, code)
		res.NeedsReview = true
	}

	var fields map[string]any
	var confs map[string]*float64
	var genErr error
	if h.Schema.Empty() {
		warn(constants.WarnEmptySchema)
	} else {
		content, cerr := e.content(ctx, jobID, file, res)
		if cerr != nil {
			return nil, cerr
		}
		if content.Text == "" && !content.HasBytes() {
			warn(constants.WarnLLMExtractionEmpty)
		} else if e.gen == nil {
			genErr = errors.New("structured generation is not configured")
		} else {
			logger.Info("extract.file.start", "label_id", h.LabelID, "fields", len(h.Schema), "bytes", len(content.Data))
			out, err := e.gen.ExtractFields(ctx, llm.ExtractRequest{
				FileID: file.FileID, Schema: h.Schema, Instructions: h.Instructions, Content: content,
			})
			if err != nil {
				genErr = err
			} else {
				fields, confs = out.Fields, out.Confidences
				if len(fields) == 0 {
					warn(constants.WarnLLMExtractionEmpty)
				}
			}
		}
	}

	var capErr error
	if genErr != nil {
		logger.Warn("extract.file.failed", "error", genErr)
		capErr = common.NewCapabilityError(common.CapGeneration, "extract", file.FileID, genErr)
		prior, err := e.results.GetExtraction(ctx, jobID, file.FileID)
		if err == nil {
			return prior, capErr
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		warn(constants.WarnLLMExtractionFailed)
	}

	res.Fields, res.Confidences = finalizeFields(h.Schema, fields, confs, warn)
	res.UpdatedAt = e.now().UTC()
	if err := e.results.SaveExtraction(ctx, *res); err != nil {
		return nil, err
	}
	if err := e.results.SaveTimings(ctx, entity.FileTimings{
		JobID: jobID, FileID: file.FileID, ExtractMs: utils.Millis(e.now().Sub(started)), UpdatedAt: res.UpdatedAt,
	}); err != nil {
		logger.Warn("extract.timings_failed", "error", err)
	}
	if capErr != nil {
		return res, capErr
	}
	logger.Info("extract.file.ok", "label_id", h.LabelID, "needs_review", res.NeedsReview, "warnings", len(res.Warnings))
	return res, nil
}

// content assembles what the generator reads. Download problems are recorded as
// warnings on res rather than returned.
func (e *Extractor) content(ctx context.Context, jobID string, file entity.FileRef, res *entity.ExtractionResult) (llm.Content, error) {
	c := llm.Content{Filename: file.Name}
	ocr, err := e.results.GetOCR(ctx, jobID, file.FileID)
	switch {
	case err == nil:
		c.Text = strings.TrimSpace(ocr.Text)
	case !errors.Is(err, common.ErrNotFound):
		return c, err
	}

	format := constants.MapMimeToFormat(file.MimeType)
	if file.MimeType == "" {
		res.Warnings = append(res.Warnings, constants.WarnFileMimeUnknown)
		format = constants.MapExtToFormat(extOf(file.Name))
	}
	wantBytes := format == constants.PDF || format == constants.IMAGE || (format == constants.TEXT && c.Text == "")
	if !wantBytes || e.files == nil {
		return c, nil
	}

	data, err := e.files.Download(ctx, file.FileID)
	if err != nil {
		common.LoggerWith(ctx, e.logger).Warn("extract.download_failed", "file_id", file.FileID, "error", err)
		res.Warnings = append(res.Warnings, constants.WarnFileDownloadFailed)
		res.NeedsReview = true
		return c, nil
	}
	if len(data) == 0 {
		res.Warnings = append(res.Warnings, constants.WarnFileBytesEmpty)
		res.NeedsReview = true
		return c, nil
	}
	if format == constants.TEXT {
		c.Text = strings.TrimSpace(string(data))
		return c, nil
	}
	c.Data = data
	c.MimeType = file.MimeType
	if c.MimeType == "" {
		c.MimeType = constants.MimeForExt(extOf(file.Name))
	}
	return c, nil
}

// finalizeFields coerces values toward their declared types and applies the
// missing-field policy. Keys outside the schema are dropped.
func finalizeFields(schema entity.Schema, fields map[string]any, confs map[string]*float64, warn func(string)) (map[string]any, map[string]*float64) {
	coerced, _ := llm.CoerceFields(schema, fields)
	outFields := make(map[string]any, len(schema))
	outConfs := make(map[string]*float64, len(schema))
	for _, f := range schema {
		v, ok := coerced[f.Name]
		if !ok || utils.IsBlank(v) {
			outFields[f.Name] = constants.Unknown
			outConfs[f.Name] = nil
			warn(constants.WarnMissingRequiredField + f.Name)
			continue
		}
		outFields[f.Name] = v
		outConfs[f.Name] = confs[f.Name]
	}
	return outFields, outConfs
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
