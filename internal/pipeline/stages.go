package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/async"
	"github.com/joseph-ayodele/folder-renamer/internal/classify"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/extract"
	"github.com/joseph-ayodele/folder-renamer/internal/ocr"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// Stage names used in reports and logs.
const (
	StageOCR      = "ocr"
	StageClassify = "classify"
	StageFallback = "fallback"
	StageExtract  = "extract"
)

// Per-file outcome statuses.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// errSkipped marks a file the stage chose not to process.
var errSkipped = errors.New("skipped")

// TextExtractor is the OCR capability.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (ocr.Result, error)
}

// Downloader fetches file bytes from the store.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// FileOutcome is what happened to one file in one stage.
type FileOutcome struct {
	FileID     string `json:"file_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`

	err error
}

// Err returns the failure behind a failed outcome.
func (o FileOutcome) Err() error { return o.err }

// StageReport lists per-file outcomes of one stage run, in stable file order.
type StageReport struct {
	Stage   string        `json:"stage"`
	Files   []FileOutcome `json:"files"`
	OK      int           `json:"ok"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Note    string        `json:"note,omitempty"`
}

// Stages runs the per-file stages of a job on a bounded worker pool.
type Stages struct {
	jobs       repository.JobRepository
	results    repository.ResultRepository
	files      Downloader
	text       TextExtractor
	classifier *classify.Classifier
	fallback   *classify.Fallback
	extractor  *extract.Extractor
	pool       *async.Pool
	logger     *slog.Logger
	now        func() time.Time
}

// StageDeps are the collaborators of Stages. Fallback and Extractor may be nil
// when no generation capability is configured.
type StageDeps struct {
	Jobs       repository.JobRepository
	Results    repository.ResultRepository
	Files      Downloader
	Text       TextExtractor
	Classifier *classify.Classifier
	Fallback   *classify.Fallback
	Extractor  *extract.Extractor
	Pool       *async.Pool
}

func NewStages(d StageDeps, logger *slog.Logger) *Stages {
	if logger == nil {
		logger = slog.Default()
	}
	if d.Pool == nil {
		d.Pool = async.NewPool(logger)
	}
	return &Stages{
		jobs:       d.Jobs,
		results:    d.Results,
		files:      d.Files,
		text:       d.Text,
		classifier: d.Classifier,
		fallback:   d.Fallback,
		extractor:  d.Extractor,
		pool:       d.Pool,
		logger:     logger,
		now:        time.Now,
	}
}

// FallbackEnabled reports whether the LLM fallback stage can run.
func (s *Stages) FallbackEnabled() bool { return s.fallback != nil }

// ExtractEnabled reports whether the extraction stage can run.
func (s *Stages) ExtractEnabled() bool { return s.extractor != nil }

// RunOCR downloads and reads each target file, overwriting prior OCR results.
func (s *Stages) RunOCR(ctx context.Context, jobID string, fileIDs []string) (*StageReport, error) {
	files, err := s.targets(ctx, jobID, fileIDs)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, jobID, StageOCR, files, func(ctx context.Context, f entity.JobFile) (string, error) {
		return s.ocrFile(ctx, jobID, f)
	}), nil
}

func (s *Stages) ocrFile(ctx context.Context, jobID string, f entity.JobFile) (string, error) {
	start := time.Now()
	data, err := s.files.Download(ctx, f.FileID)
	if err != nil {
		return "", common.NewCapabilityError(common.CapFileStore, "download", f.FileID, err)
	}
	mime := f.MimeType
	if mime == "" {
		mime = constants.MimeForExt(filepath.Ext(f.Name))
	}
	res, err := s.text.Extract(ctx, data, mime)
	if err != nil {
		return "", common.NewCapabilityError(common.CapTextExtraction, "extract", f.FileID, err)
	}
	if err := s.results.SaveOCR(ctx, entity.OCRResult{
		JobID:      jobID,
		FileID:     f.FileID,
		Text:       res.Text,
		Confidence: res.Confidence,
		Engine:     res.Engine,
		UpdatedAt:  s.now().UTC(),
	}); err != nil {
		return "", err
	}
	if err := s.results.SaveTimings(ctx, entity.FileTimings{
		JobID: jobID, FileID: f.FileID, OCRMs: utils.Millis(time.Since(start)), UpdatedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("ocr.timings_failed", "file_id", f.FileID, "error", err)
	}
	return res.Engine, nil
}

// RunClassify classifies every target file without an override.
func (s *Stages) RunClassify(ctx context.Context, jobID string, fileIDs []string) (*StageReport, error) {
	files, err := s.targets(ctx, jobID, fileIDs)
	if err != nil {
		return nil, err
	}
	lib, err := s.classifier.Library(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := s.results.ListOverrides(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rep := s.run(ctx, jobID, StageClassify, files, func(ctx context.Context, f entity.JobFile) (string, error) {
		if o, ok := overrides[f.FileID]; ok && o.LabelID != "" {
			return "override", errSkipped
		}
		m, err := s.classifier.ClassifyFile(ctx, lib, jobID, f.FileID)
		if err != nil {
			return "", err
		}
		return string(m.Status), nil
	})
	rep.Note = string(s.classifier.Mode())
	return rep, nil
}

// RunFallback asks for advisory labels for eligible files. Failures are reported
// per file and never fail the stage. With no candidates it fails with a ValidationError.
func (s *Stages) RunFallback(ctx context.Context, jobID string, fileIDs []string) (*StageReport, error) {
	if s.fallback == nil {
		return nil, common.NewCapabilityError(common.CapGeneration, "score_candidates", "", errors.New("generation is not configured"))
	}
	files, err := s.targets(ctx, jobID, fileIDs)
	if err != nil {
		return nil, err
	}
	candidates, err := s.fallback.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	fileLabels, err := repository.LoadFileLabels(ctx, s.results, jobID)
	if err != nil {
		return nil, err
	}
	ocrs, err := s.results.ListOCR(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, jobID, StageFallback, files, func(ctx context.Context, f entity.JobFile) (string, error) {
		var text *entity.OCRResult
		if o, ok := ocrs[f.FileID]; ok {
			text = &o
		}
		if !classify.Eligible(fileLabels[f.FileID], text) {
			return "not eligible", errSkipped
		}
		res, err := s.fallback.Suggest(ctx, jobID, f.FileID, text.Text, candidates)
		if err != nil {
			return "", err
		}
		if res.LabelName == "" {
			return "abstained", nil
		}
		return res.LabelName, nil
	}), nil
}

// RunExtract extracts fields for every target file with its hydrated schema.
func (s *Stages) RunExtract(ctx context.Context, jobID string, fileIDs []string) (*StageReport, error) {
	if s.extractor == nil {
		return nil, common.NewCapabilityError(common.CapGeneration, "extract_fields", "", errors.New("generation is not configured"))
	}
	files, err := s.targets(ctx, jobID, fileIDs)
	if err != nil {
		return nil, err
	}
	fileLabels, err := repository.LoadFileLabels(ctx, s.results, jobID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, jobID, StageExtract, files, func(ctx context.Context, f entity.JobFile) (string, error) {
		res, err := s.extractor.ExtractFile(ctx, jobID, f.FileRef, fileLabels[f.FileID])
		if err != nil {
			return "", err
		}
		if res.NeedsReview {
			return "needs review", nil
		}
		return "", nil
	}), nil
}

// targets returns the job's files in stable order, restricted to fileIDs when given.
func (s *Stages) targets(ctx context.Context, jobID string, fileIDs []string) ([]entity.JobFile, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	files, err := s.jobs.ListFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	entity.SortJobFiles(files)
	if len(fileIDs) == 0 {
		return files, nil
	}
	known := make(map[string]entity.JobFile, len(files))
	for _, f := range files {
		known[f.FileID] = f
	}
	want := make(map[string]bool, len(fileIDs))
	v := common.NewValidator()
	for _, id := range fileIDs {
		if _, ok := known[id]; !ok {
			v.Add("file_ids", id, "file is not part of the job")
		}
		want[id] = true
	}
	if err := v.Error(); err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if want[f.FileID] {
			out = append(out, f)
		}
	}
	return out, nil
}

type fileFunc func(ctx context.Context, f entity.JobFile) (detail string, err error)

func (s *Stages) run(ctx context.Context, jobID, stage string, files []entity.JobFile, fn fileFunc) *StageReport {
	ctx = common.WithJobID(ctx, jobID)
	ids := make([]string, len(files))
	byID := make(map[string]entity.JobFile, len(files))
	for i, f := range files {
		ids[i] = f.FileID
		byID[f.FileID] = f
	}

	var mu sync.Mutex
	details := make(map[string]string, len(files))
	outcomes := s.pool.Run(ctx, stage, ids, func(ctx context.Context, fileID string) error {
		detail, err := fn(ctx, byID[fileID])
		mu.Lock()
		details[fileID] = detail
		mu.Unlock()
		return err
	})

	rep := &StageReport{Stage: stage, Files: make([]FileOutcome, len(outcomes))}
	for i, o := range outcomes {
		fo := FileOutcome{
			FileID:     o.FileID,
			Name:       byID[o.FileID].Name,
			Detail:     details[o.FileID],
			DurationMs: o.Duration.Milliseconds(),
		}
		switch {
		case o.Err == nil:
			fo.Status = OutcomeOK
			rep.OK++
		case errors.Is(o.Err, errSkipped):
			fo.Status = OutcomeSkipped
			rep.Skipped++
		default:
			fo.Status = OutcomeFailed
			fo.Error = o.Err.Error()
			fo.err = o.Err
			rep.Failed++
		}
		rep.Files[i] = fo
	}
	s.logger.Info("pipeline.stage.done", "job_id", jobID, "stage", stage, "ok", rep.OK, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep
}
