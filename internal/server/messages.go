package server

import (
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/pipeline"
)

type CreateJobRequest struct {
	FolderID string `json:"folder_id"`
}

type CreateJobResponse struct {
	Job   *entity.Job      `json:"job"`
	Files []entity.JobFile `json:"files"`
}

type ListFilesRequest struct {
	JobID string `json:"job_id"`
}

type ListFilesResponse struct {
	Files []entity.JobFile `json:"files"`
}

// ProcessRequest selects the stages to run. No stage selected means all of them.
type ProcessRequest struct {
	JobID    string   `json:"job_id"`
	OCR      bool     `json:"ocr,omitempty"`
	Classify bool     `json:"classify,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
	Extract  bool     `json:"extract,omitempty"`
	FileIDs  []string `json:"file_ids,omitempty"`
}

func (r *ProcessRequest) steps() pipeline.Steps {
	if !r.OCR && !r.Classify && !r.Fallback && !r.Extract {
		s := pipeline.AllSteps()
		s.FileIDs = r.FileIDs
		return s
	}
	return pipeline.Steps{OCR: r.OCR, Classify: r.Classify, Fallback: r.Fallback, Extract: r.Extract, FileIDs: r.FileIDs}
}

type ProcessResponse struct {
	Report *pipeline.JobReport `json:"report"`
}

type PreviewManualRenameRequest struct {
	JobID string `json:"job_id"`
	// Edits maps file id to the requested new name.
	Edits map[string]string `json:"edits"`
}

type PreviewLabelRenameRequest struct {
	JobID             string `json:"job_id"`
	UseNamingTemplate bool   `json:"use_naming_template,omitempty"`
}

type RenamePreviewResponse struct {
	Ops []entity.RenameOp `json:"ops"`
}

type ApplyRenameRequest struct {
	JobID string            `json:"job_id"`
	Ops   []entity.RenameOp `json:"ops"`
}

type ApplyRenameResponse struct {
	Applied int `json:"applied"`
}

type UndoRequest struct {
	JobID string `json:"job_id"`
}

type UndoResponse struct {
	Reverted []entity.RenameOp `json:"reverted"`
}

// SetOverrideRequest sets a file's label. An empty LabelID clears the override.
type SetOverrideRequest struct {
	JobID   string `json:"job_id"`
	FileID  string `json:"file_id"`
	LabelID string `json:"label_id,omitempty"`
}

type SetOverrideResponse struct{}

type PreviewReportRequest struct {
	JobID string `json:"job_id"`
	// Pending renders the file list report with extraction placeholders.
	Pending bool `json:"pending,omitempty"`
}

type PreviewReportResponse struct {
	Content string `json:"content"`
}

type WriteReportRequest struct {
	JobID string `json:"job_id"`
}

type WriteReportResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}
