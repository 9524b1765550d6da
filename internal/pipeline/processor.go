package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

// Steps selects the stages Process runs. FileIDs restricts every stage to those files.
type Steps struct {
	OCR      bool     `json:"ocr"`
	Classify bool     `json:"classify"`
	Fallback bool     `json:"fallback"`
	Extract  bool     `json:"extract"`
	FileIDs  []string `json:"file_ids,omitempty"`
}

// AllSteps runs OCR, classification, fallback and extraction.
func AllSteps() Steps {
	return Steps{OCR: true, Classify: true, Fallback: true, Extract: true}
}

func (s Steps) any() bool { return s.OCR || s.Classify || s.Fallback || s.Extract }

// JobReport collects the stage reports of one Process call.
type JobReport struct {
	JobID      string              `json:"job_id"`
	Status     constants.JobStatus `json:"status"`
	Stages     []*StageReport      `json:"stages"`
	DurationMs int64               `json:"duration_ms"`
}

// Failed counts failed file outcomes across stages.
func (r *JobReport) Failed() int {
	n := 0
	for _, s := range r.Stages {
		n += s.Failed
	}
	return n
}

// Processor coordinates OCR, classification, fallback and extraction for a job.
type Processor struct {
	jobs   repository.JobRepository
	stages *Stages
	logger *slog.Logger
}

func NewProcessor(jobs repository.JobRepository, stages *Stages, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{jobs: jobs, stages: stages, logger: logger}
}

// Process runs the selected stages in order. Per-file failures are reported in
// the JobReport; only stage-level failures (unknown job, storage errors) are
// returned. The job status moves forward as stages complete. A fallback step
// without candidates or a generation capability is skipped with a note.
func (p *Processor) Process(ctx context.Context, jobID string, steps Steps) (*JobReport, error) {
	start := time.Now()
	ctx = common.WithJobID(ctx, jobID)
	logger := common.LoggerWith(ctx, p.logger)

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !steps.any() {
		return nil, common.ValidationError{Field: "steps", Message: "no stage selected"}
	}
	report := &JobReport{JobID: jobID, Status: job.Status}

	type stage struct {
		enabled bool
		name    string
		run     func(context.Context, string, []string) (*StageReport, error)
		done    constants.JobStatus
	}
	plan := []stage{
		{steps.OCR, StageOCR, p.stages.RunOCR, constants.JobStatusOCRDone},
		{steps.Classify, StageClassify, p.stages.RunClassify, constants.JobStatusClassified},
		{steps.Fallback, StageFallback, p.stages.RunFallback, ""},
		{steps.Extract, StageExtract, p.stages.RunExtract, constants.JobStatusExtracted},
	}

	for _, st := range plan {
		if !st.enabled {
			continue
		}
		if note := p.unavailable(st.name); note != "" {
			logger.Warn("pipeline.stage.skipped", "stage", st.name, "reason", note)
			report.Stages = append(report.Stages, &StageReport{Stage: st.name, Note: note})
			continue
		}
		rep, err := st.run(ctx, jobID, steps.FileIDs)
		if err != nil {
			if st.name == StageFallback && errors.Is(err, common.ErrValidation) {
				logger.Warn("pipeline.stage.skipped", "stage", st.name, "reason", err.Error())
				report.Stages = append(report.Stages, &StageReport{Stage: st.name, Note: err.Error()})
				continue
			}
			logger.Error("pipeline.stage.failed", "stage", st.name, "error", err)
			return report, err
		}
		report.Stages = append(report.Stages, rep)
		if st.done != "" {
			if err := p.advance(ctx, report, st.done); err != nil {
				return report, err
			}
		}
	}

	report.DurationMs = time.Since(start).Milliseconds()
	logger.Info("pipeline.process.done", "status", report.Status, "failed", report.Failed(), "duration_ms", report.DurationMs)
	return report, nil
}

func (p *Processor) unavailable(stage string) string {
	switch {
	case stage == StageFallback && !p.stages.FallbackEnabled():
		return "generation is not configured"
	case stage == StageExtract && !p.stages.ExtractEnabled():
		return "generation is not configured"
	}
	return ""
}

// advance moves the job status forward, never back.
func (p *Processor) advance(ctx context.Context, report *JobReport, to constants.JobStatus) error {
	if !report.Status.Before(to) {
		return nil
	}
	if err := p.jobs.SetStatus(ctx, report.JobID, to); err != nil {
		return err
	}
	report.Status = to
	return nil
}
