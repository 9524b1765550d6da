package labels

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/classify"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/embedding"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/ocr"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/schema"
)

// MaxNameLength bounds label names.
const MaxNameLength = 80

// Downloader fetches example file bytes.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// TextExtractor reads example files that have no cached OCR.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (ocr.Result, error)
}

// Service manages the label library: labels, their examples and example features.
type Service struct {
	labels   repository.LabelRepository
	jobs     repository.JobRepository
	results  repository.ResultRepository
	files    Downloader
	text     TextExtractor
	embedder embedding.Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// Deps are the collaborators of Service. Embedder may be nil.
type Deps struct {
	Labels   repository.LabelRepository
	Jobs     repository.JobRepository
	Results  repository.ResultRepository
	Files    Downloader
	Text     TextExtractor
	Embedder embedding.Embedder
}

func NewService(d Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		labels:   d.Labels,
		jobs:     d.Jobs,
		results:  d.Results,
		files:    d.Files,
		text:     d.Text,
		embedder: d.Embedder,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateLabelRequest represents label creation parameters.
type CreateLabelRequest struct {
	Name                   string
	SchemaJSON             string
	NamingTemplate         string
	FallbackInstructions   string
	ExtractionInstructions string
}

// CreateLabel validates and stores a new active label. Nothing is stored on error.
func (s *Service) CreateLabel(ctx context.Context, req CreateLabelRequest) (*entity.Label, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.checkName(ctx, name, ""); err != nil {
		return nil, err
	}
	parsed, err := schema.ValidateConfig(req.SchemaJSON, req.NamingTemplate)
	if err != nil {
		return nil, err
	}

	label := &entity.Label{
		ID:                     uuid.NewString(),
		Name:                   name,
		IsActive:               true,
		CreatedAt:              s.now().UTC(),
		Schema:                 parsed,
		NamingTemplate:         strings.TrimSpace(req.NamingTemplate),
		ExtractionInstructions: strings.TrimSpace(req.ExtractionInstructions),
		FallbackInstructions:   strings.TrimSpace(req.FallbackInstructions),
	}
	if err := s.labels.Create(ctx, label); err != nil {
		return nil, err
	}
	s.logger.Info("label created successfully", "label_id", label.ID, "name", label.Name, "fields", len(parsed))
	return label, nil
}

// UpdateLabelRequest changes the non-nil fields of a label.
type UpdateLabelRequest struct {
	LabelID                string
	Name                   *string
	SchemaJSON             *string
	NamingTemplate         *string
	FallbackInstructions   *string
	ExtractionInstructions *string
}

// UpdateLabel applies req through the same validation gate as CreateLabel.
func (s *Service) UpdateLabel(ctx context.Context, req UpdateLabelRequest) (*entity.Label, error) {
	label, err := s.labels.Get(ctx, req.LabelID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.checkName(ctx, name, label.ID); err != nil {
			return nil, err
		}
		label.Name = name
	}
	if req.NamingTemplate != nil {
		label.NamingTemplate = strings.TrimSpace(*req.NamingTemplate)
	}
	if req.SchemaJSON != nil {
		parsed, err := schema.ValidateConfig(*req.SchemaJSON, label.NamingTemplate)
		if err != nil {
			return nil, err
		}
		label.Schema = parsed
	} else if err := schema.ValidateTemplate(label.Schema, label.NamingTemplate); err != nil {
		return nil, err
	}
	if req.FallbackInstructions != nil {
		label.FallbackInstructions = strings.TrimSpace(*req.FallbackInstructions)
	}
	if req.ExtractionInstructions != nil {
		label.ExtractionInstructions = strings.TrimSpace(*req.ExtractionInstructions)
	}
	if err := s.labels.Update(ctx, label); err != nil {
		return nil, err
	}
	s.logger.Info("label updated successfully", "label_id", label.ID, "name", label.Name)
	return label, nil
}

// DeactivateLabel hides a label from classification and fallback. It is never deleted.
func (s *Service) DeactivateLabel(ctx context.Context, labelID string) error {
	if err := s.labels.SetActive(ctx, labelID, false); err != nil {
		return err
	}
	s.logger.Info("label deactivated", "label_id", labelID)
	return nil
}

func (s *Service) GetLabel(ctx context.Context, labelID string) (*entity.Label, error) {
	return s.labels.Get(ctx, labelID)
}

func (s *Service) ListLabels(ctx context.Context, includeInactive bool) ([]entity.Label, error) {
	return s.labels.List(ctx, includeInactive)
}

// ResolveLabel finds a label by id, then by exact name.
func (s *Service) ResolveLabel(ctx context.Context, ref string) (*entity.Label, error) {
	l, err := s.labels.Get(ctx, ref)
	if err == nil || !errors.Is(err, common.ErrNotFound) {
		return l, err
	}
	return s.labels.GetByName(ctx, ref)
}

// SetOverride asserts a label for a file of a job. An empty labelID clears the override.
func (s *Service) SetOverride(ctx context.Context, jobID, fileID, labelID string) error {
	files, err := s.jobFiles(ctx, jobID)
	if err != nil {
		return err
	}
	if _, ok := files[fileID]; !ok {
		return common.ValidationError{Field: "file_id", Value: fileID, Message: "file is not part of the job"}
	}
	if labelID == "" {
		if err := s.results.ClearOverride(ctx, jobID, fileID); err != nil {
			return err
		}
		s.logger.Info("override cleared", "job_id", jobID, "file_id", fileID)
		return nil
	}
	label, err := s.labels.Get(ctx, labelID)
	if err != nil {
		return err
	}
	if !label.IsActive {
		return common.ValidationError{Field: "label_id", Value: labelID, Message: "label is inactive"}
	}
	if err := s.results.SetOverride(ctx, entity.Override{JobID: jobID, FileID: fileID, LabelID: labelID}); err != nil {
		return err
	}
	s.logger.Info("override set", "job_id", jobID, "file_id", fileID, "label_id", labelID)
	return nil
}

// AttachExample anchors a label with a file. A file attached to another label is
// rejected with a ValidationError.
func (s *Service) AttachExample(ctx context.Context, labelID, fileID, filename string) (*entity.LabelExample, error) {
	v := common.NewValidator()
	v.Field("file_id", fileID, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}
	if _, err := s.labels.Get(ctx, labelID); err != nil {
		return nil, err
	}
	ex := &entity.LabelExample{
		ID:        uuid.NewString(),
		LabelID:   labelID,
		FileID:    fileID,
		Filename:  strings.TrimSpace(filename),
		CreatedAt: s.now().UTC(),
	}
	if err := s.labels.AttachExample(ctx, ex); err != nil {
		return nil, err
	}
	s.logger.Info("example attached", "label_id", labelID, "example_id", ex.ID, "file_id", fileID)
	return ex, nil
}

// ExampleOutcome is the result of processing one example.
type ExampleOutcome struct {
	ExampleID string `json:"example_id"`
	LabelID   string `json:"label_id"`
	FileID    string `json:"file_id"`
	Filename  string `json:"filename"`
	Source    string `json:"source,omitempty"` // cached_ocr | ocr
	Chars     int    `json:"chars"`
	Embedded  bool   `json:"embedded"`
	Error     string `json:"error,omitempty"`
}

// ProcessExamples recomputes the features of one label's examples, or of all
// examples when labelID is empty. Text comes from the job's cached OCR when jobID
// is given and has it, otherwise from downloading and reading the file. A failed
// example keeps its previous feature.
func (s *Service) ProcessExamples(ctx context.Context, labelID, jobID string) ([]ExampleOutcome, error) {
	if labelID != "" {
		if _, err := s.labels.Get(ctx, labelID); err != nil {
			return nil, err
		}
	}
	examples, err := s.labels.ListExamples(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if jobID != "" {
		if _, err := s.jobs.Get(ctx, jobID); err != nil {
			return nil, err
		}
	}

	out := make([]ExampleOutcome, 0, len(examples))
	for _, ex := range examples {
		o := ExampleOutcome{ExampleID: ex.ID, LabelID: ex.LabelID, FileID: ex.FileID, Filename: ex.Filename}
		if err := s.processExample(ctx, ex, jobID, &o); err != nil {
			s.logger.Warn("labels.example.failed", "example_id", ex.ID, "file_id", ex.FileID, "error", err)
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	s.logger.Info("labels.examples.processed", "label_id", labelID, "examples", len(out))
	return out, nil
}

func (s *Service) processExample(ctx context.Context, ex entity.LabelExample, jobID string, o *ExampleOutcome) error {
	text, source, err := s.exampleText(ctx, ex, jobID)
	if err != nil {
		return err
	}
	o.Source, o.Chars = source, len(text)

	feature := entity.LabelFeature{
		ExampleID: ex.ID,
		Text:      text,
		Tokens:    classify.Tokens(text),
		UpdatedAt: s.now().UTC(),
	}
	if s.embedder != nil && strings.TrimSpace(text) != "" {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return common.NewCapabilityError(common.CapEmbedding, "embed", ex.FileID, err)
		}
		feature.Embedding = vec
		o.Embedded = true
	}
	return s.labels.SaveFeature(ctx, feature)
}

func (s *Service) exampleText(ctx context.Context, ex entity.LabelExample, jobID string) (string, string, error) {
	if jobID != "" {
		res, err := s.results.GetOCR(ctx, jobID, ex.FileID)
		switch {
		case err == nil:
			return res.Text, "cached_ocr", nil
		case !errors.Is(err, common.ErrNotFound):
			return "", "", err
		}
	}
	if s.files == nil || s.text == nil {
		return "", "", common.NewNotFound("ocr text", ex.FileID)
	}
	data, err := s.files.Download(ctx, ex.FileID)
	if err != nil {
		return "", "", common.NewCapabilityError(common.CapFileStore, "download", ex.FileID, err)
	}
	res, err := s.text.Extract(ctx, data, constants.MimeForExt(filepath.Ext(ex.Filename)))
	if err != nil {
		return "", "", common.NewCapabilityError(common.CapTextExtraction, "extract", ex.FileID, err)
	}
	return res.Text, "ocr", nil
}

func (s *Service) checkName(ctx context.Context, name, selfID string) error {
	v := common.NewValidator()
	v.Field("name", name, common.Required, common.MaxLength(MaxNameLength))
	if err := v.Error(); err != nil {
		return err
	}
	existing, err := s.labels.GetByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return common.ValidationError{Field: "name", Value: name, Message: "a label with this name already exists"}
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) jobFiles(ctx context.Context, jobID string) (map[string]entity.JobFile, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	files, err := s.jobs.ListFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.JobFile, len(files))
	for _, f := range files {
		out[f.FileID] = f
	}
	return out, nil
}
