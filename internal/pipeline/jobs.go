package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

// Lister is the part of the file store the job service needs.
type Lister interface {
	List(ctx context.Context, folderID string) ([]entity.FileRef, error)
}

// JobService creates jobs from folder listings and serves their file snapshots.
type JobService struct {
	jobs   repository.JobRepository
	files  Lister
	logger *slog.Logger
	now    func() time.Time
}

func NewJobService(jobs repository.JobRepository, files Lister, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{jobs: jobs, files: files, logger: logger, now: time.Now}
}

// CreateJob lists the folder and persists a new job with the files in listing order.
func (s *JobService) CreateJob(ctx context.Context, folderID string) (*entity.Job, []entity.JobFile, error) {
	folderID = strings.TrimSpace(folderID)
	files, err := s.snapshot(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	job := &entity.Job{
		ID:        uuid.NewString(),
		FolderID:  folderID,
		CreatedAt: s.now().UTC(),
		Status:    constants.JobStatusCreated,
	}
	if err := s.jobs.Create(ctx, job, files); err != nil {
		return nil, nil, err
	}
	s.logger.Info("job.created", "job_id", job.ID, "folder_id", folderID, "files", len(files))
	return job, files, nil
}

// RefreshJobFiles replaces the job's file snapshot with a fresh listing.
func (s *JobService) RefreshJobFiles(ctx context.Context, jobID string) ([]entity.JobFile, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	files, err := s.snapshot(ctx, job.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.ReplaceFiles(ctx, jobID, files); err != nil {
		return nil, err
	}
	s.logger.Info("job.refreshed", "job_id", jobID, "files", len(files))
	return files, nil
}

// ListFiles returns the job's files in (sort_index, name, file_id) order.
func (s *JobService) ListFiles(ctx context.Context, jobID string) ([]entity.JobFile, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	files, err := s.jobs.ListFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	entity.SortJobFiles(files)
	return files, nil
}

func (s *JobService) GetJob(ctx context.Context, jobID string) (*entity.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *JobService) ListJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	return s.jobs.List(ctx, limit)
}

func (s *JobService) snapshot(ctx context.Context, folderID string) ([]entity.JobFile, error) {
	refs, err := s.files.List(ctx, folderID)
	if err != nil {
		s.logger.Error("job.list_failed", "folder_id", folderID, "error", err)
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.NewCapabilityError(common.CapFileStore, "list", "", err)
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].FileID < refs[j].FileID
	})
	out := make([]entity.JobFile, len(refs))
	for i, r := range refs {
		out[i] = entity.JobFile{FileRef: r, SortIndex: i}
	}
	return out, nil
}
