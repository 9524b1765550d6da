package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/pipeline"
	"github.com/joseph-ayodele/folder-renamer/internal/rename"
	"github.com/joseph-ayodele/folder-renamer/internal/report"
)

type JobCreator interface {
	CreateJob(ctx context.Context, folderID string) (*entity.Job, []entity.JobFile, error)
}

type JobProcessor interface {
	Process(ctx context.Context, jobID string, steps pipeline.Steps) (*pipeline.JobReport, error)
}

type Renamer interface {
	CurrentFiles(ctx context.Context, jobID string) ([]entity.JobFile, error)
	PreviewManual(ctx context.Context, jobID string, edits map[string]string) ([]entity.RenameOp, error)
	PreviewLabels(ctx context.Context, jobID string, opts rename.LabelPlanOptions) ([]entity.RenameOp, error)
	Apply(ctx context.Context, jobID string, ops []entity.RenameOp) error
	Undo(ctx context.Context, jobID string) ([]entity.RenameOp, error)
}

type OverrideSetter interface {
	SetOverride(ctx context.Context, jobID, fileID, labelID string) error
}

type Reporter interface {
	Preview(ctx context.Context, jobID string) (string, error)
	PreviewPending(ctx context.Context, jobID string) (string, error)
	Write(ctx context.Context, jobID string) (*report.Written, error)
}

// Deps are the services behind the RPC surface.
type Deps struct {
	Jobs      JobCreator
	Processor JobProcessor
	Renames   Renamer
	Overrides OverrideSetter
	Reports   Reporter
}

// RenamerService implements RenamerServer over the application services.
type RenamerService struct {
	deps   Deps
	logger *slog.Logger
}

func NewRenamerService(deps Deps, logger *slog.Logger) *RenamerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenamerService{deps: deps, logger: logger}
}

var _ RenamerServer = (*RenamerService)(nil)

func (s *RenamerService) CreateJob(ctx context.Context, req *CreateJobRequest) (*CreateJobResponse, error) {
	folderID := strings.TrimSpace(req.FolderID)
	if folderID == "" {
		return nil, common.InvalidArgumentError("folder_id is required")
	}
	job, files, err := s.deps.Jobs.CreateJob(ctx, folderID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &CreateJobResponse{Job: job, Files: files}, nil
}

func (s *RenamerService) ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	files, err := s.deps.Renames.CurrentFiles(ctx, req.JobID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &ListFilesResponse{Files: files}, nil
}

func (s *RenamerService) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	rep, err := s.deps.Processor.Process(ctx, req.JobID, req.steps())
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &ProcessResponse{Report: rep}, nil
}

func (s *RenamerService) PreviewManualRename(ctx context.Context, req *PreviewManualRenameRequest) (*RenamePreviewResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	ops, err := s.deps.Renames.PreviewManual(ctx, req.JobID, req.Edits)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &RenamePreviewResponse{Ops: ops}, nil
}

func (s *RenamerService) PreviewLabelRename(ctx context.Context, req *PreviewLabelRenameRequest) (*RenamePreviewResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	ops, err := s.deps.Renames.PreviewLabels(ctx, req.JobID, rename.LabelPlanOptions{UseNamingTemplate: req.UseNamingTemplate})
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &RenamePreviewResponse{Ops: ops}, nil
}

func (s *RenamerService) ApplyRename(ctx context.Context, req *ApplyRenameRequest) (*ApplyRenameResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	if err := s.deps.Renames.Apply(ctx, req.JobID, req.Ops); err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &ApplyRenameResponse{Applied: len(req.Ops)}, nil
}

func (s *RenamerService) Undo(ctx context.Context, req *UndoRequest) (*UndoResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	reverted, err := s.deps.Renames.Undo(ctx, req.JobID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &UndoResponse{Reverted: reverted}, nil
}

func (s *RenamerService) SetOverride(ctx context.Context, req *SetOverrideRequest) (*SetOverrideResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FileID) == "" {
		return nil, common.InvalidArgumentError("file_id is required")
	}
	if err := s.deps.Overrides.SetOverride(ctx, req.JobID, req.FileID, strings.TrimSpace(req.LabelID)); err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &SetOverrideResponse{}, nil
}

func (s *RenamerService) PreviewReport(ctx context.Context, req *PreviewReportRequest) (*PreviewReportResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	render := s.deps.Reports.Preview
	if req.Pending {
		render = s.deps.Reports.PreviewPending
	}
	content, err := render(ctx, req.JobID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &PreviewReportResponse{Content: content}, nil
}

func (s *RenamerService) WriteReport(ctx context.Context, req *WriteReportRequest) (*WriteReportResponse, error) {
	if err := requireJobID(req.JobID); err != nil {
		return nil, err
	}
	w, err := s.deps.Reports.Write(ctx, req.JobID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &WriteReportResponse{FileID: w.FileID, Filename: w.Filename}, nil
}

func requireJobID(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return common.InvalidArgumentError("job_id is required")
	}
	return nil
}

// RequestIDHeader carries the request id in incoming metadata and in the response header.
const RequestIDHeader = "x-request-id"

// LoggingInterceptor tags every unary call with a request id (the caller's, or a new
// uuid) and logs it with its status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := incomingRequestID(ctx)
		ctx = common.WithRequestID(ctx, rid)
		// fails only outside a server stream
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))

		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{"req_id", rid, "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("rpc.failed", append(attrs, "error", err)...)
		} else {
			logger.Info("rpc.ok", attrs...)
		}
		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, v := range md.Get(RequestIDHeader) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return uuid.NewString()
}
