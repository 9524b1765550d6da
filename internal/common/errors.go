package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrCapability   = errors.New("capability failure")
	ErrPartialApply = errors.New("partial apply")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFoundError reports a missing record. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Capability names used in CapabilityError.
const (
	CapFileStore      = "FileStore"
	CapTextExtraction = "TextExtraction"
	CapEmbedding      = "SimilarityEmbedding"
	CapGeneration     = "StructuredGeneration"
)

// CapabilityError wraps a failure of an external collaborator with the operation
// and file that triggered it. It matches ErrCapability.
type CapabilityError struct {
	Capability string
	Op         string
	FileID     string
	Err        error
}

func (e *CapabilityError) Error() string {
	var b strings.Builder
	b.WriteString(e.Capability)
	b.WriteString(".")
	b.WriteString(e.Op)
	if e.FileID != "" {
		b.WriteString(" file=")
		b.WriteString(e.FileID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CapabilityError) Unwrap() error { return e.Err }

func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }

func NewCapabilityError(capability, op, fileID string, err error) error {
	return &CapabilityError{Capability: capability, Op: op, FileID: fileID, Err: err}
}

// PartialApplyError reports a rename batch (apply or undo) that stopped partway.
// Index is the position of the failing op in the order the batch was executed.
type PartialApplyError struct {
	JobID     string
	Op        string // "apply" | "undo"
	Index     int
	FileID    string
	Done      []string // file ids handled before the failure
	Remaining []string // file ids not handled, starting with the failing one
	Err       error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s stopped at op %d (file %s) for job %s after %d ok, %d remaining: %v",
		e.Op, e.Index, e.FileID, e.JobID, len(e.Done), len(e.Remaining), e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }

func (e *PartialApplyError) Is(target error) bool { return target == ErrPartialApply }

// IsTimeout reports whether err came from a deadline or cancellation.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// ToGRPCError maps the error taxonomy onto gRPC status codes.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var verrs ValidationErrors
	var verr ValidationError
	switch {
	case errors.As(err, &verrs), errors.As(err, &verr), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrPartialApply):
		return status.Error(codes.Aborted, err.Error())
	case IsTimeout(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrCapability):
		return status.Error(codes.Unavailable, err.Error())
	}
	return InternalError(err.Error())
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
