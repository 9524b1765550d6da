package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

// FileSource lists a job's files under their current names.
type FileSource interface {
	CurrentFiles(ctx context.Context, jobID string) ([]entity.JobFile, error)
}

// Uploader stores the rendered report next to the job's files.
type Uploader interface {
	UploadText(ctx context.Context, folderID, filename, text string) (string, error)
}

// Service renders, uploads and exports job reports from stored state.
type Service struct {
	jobs     repository.JobRepository
	labels   repository.LabelRepository
	results  repository.ResultRepository
	files    FileSource
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewService(jobs repository.JobRepository, labels repository.LabelRepository, results repository.ResultRepository,
	files FileSource, uploader Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:     jobs,
		labels:   labels,
		results:  results,
		files:    files,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		loc:      time.Local,
	}
}

// Row is everything known about one file of a job at report time.
type Row struct {
	Block       FileBlock
	LabelSource constants.LabelSource
	Match       *entity.LabelMatch
}

// Written describes an uploaded report.
type Written struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Preview renders the final report of a job.
func (s *Service) Preview(ctx context.Context, jobID string) (string, error) {
	job, rows, err := s.collect(ctx, jobID)
	if err != nil {
		return "", err
	}
	blocks := make([]FileBlock, len(rows))
	for i, r := range rows {
		blocks[i] = r.Block
	}
	return RenderFinal(s.header(job), blocks), nil
}

// PreviewPending renders the pending report: the file list with text and fields
// still to be extracted.
func (s *Service) PreviewPending(ctx context.Context, jobID string) (string, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	files, err := s.files.CurrentFiles(ctx, jobID)
	if err != nil {
		return "", err
	}
	pending := make([]PendingFile, len(files))
	for i, f := range files {
		pending[i] = PendingFile{FileID: f.FileID, Name: f.Name, MimeType: f.MimeType, SortIndex: f.SortIndex}
	}
	return RenderPending(s.header(job), pending), nil
}

// Write uploads the final report into the job folder as REPORT_<job date>.txt,
// records its file id on the job and marks the job REPORTED.
func (s *Service) Write(ctx context.Context, jobID string) (*Written, error) {
	logger := common.LoggerWith(common.WithJobID(ctx, jobID), s.logger)
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	content, err := s.Preview(ctx, jobID)
	if err != nil {
		return nil, err
	}
	name := Filename(job.CreatedAt, s.loc)
	fileID, err := s.uploader.UploadText(ctx, job.FolderID, name, content)
	if err != nil {
		logger.Error("report.upload.failed", "filename", name, "error", err)
		return nil, common.NewCapabilityError(common.CapFileStore, "upload_text", "", err)
	}
	if err := s.jobs.SetReportFileID(ctx, jobID, fileID); err != nil {
		return nil, err
	}
	if err := s.jobs.SetStatus(ctx, jobID, constants.JobStatusReported); err != nil {
		return nil, err
	}
	logger.Info("report.written", "filename", name, "file_id", fileID, "bytes", len(content))
	return &Written{FileID: fileID, Filename: name, Content: content}, nil
}

// Filename is the report file name for a job created at t, dated in loc.
func Filename(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return "REPORT_" + t.In(loc).Format("2006-01-02") + ".txt"
}

func (s *Service) header(job *entity.Job) Header {
	return Header{
		JobID:       job.ID,
		FolderID:    job.FolderID,
		GeneratedAt: s.now().In(s.loc).Format(time.RFC3339),
	}
}

// collect resolves the final name, label and fields of every file. The schema
// stored with an extraction orders its fields; without one the resolved
// label's schema is used, so unextracted fields still render as UNKNOWN.
func (s *Service) collect(ctx context.Context, jobID string) (*entity.Job, []Row, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	files, err := s.files.CurrentFiles(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.labels.List(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	byID := entity.LabelsByID(all)
	fileLabels, err := repository.LoadFileLabels(ctx, s.results, jobID)
	if err != nil {
		return nil, nil, err
	}
	extractions, err := s.results.ListExtractions(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]Row, 0, len(files))
	for i, f := range files {
		fl := fileLabels[f.FileID]
		resolved, _ := entity.ResolveForReport(fl, byID)
		block := FileBlock{
			Index:      i + 1,
			FinalName:  f.Name,
			FileID:     f.FileID,
			FinalLabel: resolved.Name,
		}
		if ext, ok := extractions[f.FileID]; ok {
			block.Fields = ext.Fields
			block.Schema = ext.Schema
		}
		if block.Schema.Empty() && resolved.LabelID != "" {
			block.Schema = byID[resolved.LabelID].Schema
		}
		rows = append(rows, Row{Block: block, LabelSource: resolved.Source, Match: fl.Match})
	}
	return job, rows, nil
}
