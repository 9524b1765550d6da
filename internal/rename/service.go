package rename

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/undo"
)

// LabelPlanOptions tunes label-based naming.
type LabelPlanOptions struct {
	// UseNamingTemplate renders the label's naming template with the file's
	// extracted fields instead of using the bare label name.
	UseNamingTemplate bool
}

// Service builds rename previews from stored job state and applies them through the ledger.
type Service struct {
	jobs    repository.JobRepository
	labels  repository.LabelRepository
	results repository.ResultRepository
	undos   repository.UndoRepository
	ledger  *undo.Ledger
	logger  *slog.Logger
}

func NewService(
	jobs repository.JobRepository,
	labels repository.LabelRepository,
	results repository.ResultRepository,
	undos repository.UndoRepository,
	ledger *undo.Ledger,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, labels: labels, results: results, undos: undos, ledger: ledger, logger: logger}
}

// CurrentFiles returns the job's files in stable order with applied renames overlaid.
func (s *Service) CurrentFiles(ctx context.Context, jobID string) ([]entity.JobFile, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	files, err := s.jobs.ListFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	applied, err := s.undos.ListAppliedRenames(ctx, jobID)
	if err != nil {
		return nil, err
	}
	current := make(map[string]string, len(applied))
	for _, ar := range applied {
		current[ar.FileID] = ar.NewName
	}
	for i := range files {
		if name, ok := current[files[i].FileID]; ok {
			files[i].Name = name
		}
	}
	entity.SortJobFiles(files)
	return files, nil
}

func (s *Service) PreviewManual(ctx context.Context, jobID string, edits map[string]string) ([]entity.RenameOp, error) {
	files, err := s.CurrentFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ops := PreviewManual(files, edits)
	s.logger.Info("rename.preview.manual", "job_id", jobID, "edits", len(edits), "ops", len(ops))
	return ops, nil
}

func (s *Service) PreviewLabels(ctx context.Context, jobID string, opts LabelPlanOptions) ([]entity.RenameOp, error) {
	files, err := s.CurrentFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments(ctx, jobID, opts)
	if err != nil {
		return nil, err
	}
	ops := PreviewLabels(files, assignments)
	s.logger.Info("rename.preview.labels", "job_id", jobID, "assigned", len(assignments), "ops", len(ops))
	return ops, nil
}

func (s *Service) assignments(ctx context.Context, jobID string, opts LabelPlanOptions) (map[string]Assignment, error) {
	all, err := s.labels.List(ctx, true)
	if err != nil {
		return nil, err
	}
	byID := entity.LabelsByID(all)
	fileLabels, err := repository.LoadFileLabels(ctx, s.results, jobID)
	if err != nil {
		return nil, err
	}
	var extractions map[string]entity.ExtractionResult
	if opts.UseNamingTemplate {
		if extractions, err = s.results.ListExtractions(ctx, jobID); err != nil {
			return nil, err
		}
	}

	out := make(map[string]Assignment, len(fileLabels))
	for fileID, fl := range fileLabels {
		resolved, ok := entity.ResolveDeterministic(fl, byID)
		if !ok {
			continue
		}
		base := resolved.Name
		if tmpl := byID[resolved.LabelID].NamingTemplate; opts.UseNamingTemplate && strings.TrimSpace(tmpl) != "" {
			base = RenderTemplate(tmpl, extractions[fileID].Fields)
		}
		out[fileID] = Assignment{LabelID: resolved.LabelID, Base: base}
	}
	return out, nil
}

// Apply checks the ops against the job and hands them to the ledger.
func (s *Service) Apply(ctx context.Context, jobID string, ops []entity.RenameOp) error {
	files, err := s.CurrentFiles(ctx, jobID)
	if err != nil {
		return err
	}
	if err := validateOps(files, ops); err != nil {
		return err
	}
	if err := s.ledger.Apply(common.WithJobID(ctx, jobID), jobID, ops); err != nil {
		return err
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Before(constants.JobStatusApplied) {
		return nil
	}
	return s.jobs.SetStatus(ctx, jobID, constants.JobStatusApplied)
}

func (s *Service) Undo(ctx context.Context, jobID string) ([]entity.RenameOp, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return s.ledger.Undo(common.WithJobID(ctx, jobID), jobID)
}

func validateOps(files []entity.JobFile, ops []entity.RenameOp) error {
	current := make(map[string]string, len(files))
	for _, f := range files {
		current[f.FileID] = f.Name
	}
	v := common.NewValidator()
	finals := make(map[string]string, len(ops))
	for i, op := range ops {
		field := fmt.Sprintf("ops[%d]", i)
		name, known := current[op.FileID]
		if !known {
			v.Add(field, op.FileID, "file is not part of the job")
		} else if op.OldName != name {
			v.Add(field, op.OldName, "old name does not match current name "+name)
		}
		if op.NewName != Sanitize(op.NewName) {
			v.Add(field, op.NewName, "new name is not sanitized")
		}
		if prev, dup := finals[op.NewName]; dup {
			v.Add(field, op.NewName, "new name collides with file "+prev)
		}
		finals[op.NewName] = op.FileID
	}
	return v.Error()
}
