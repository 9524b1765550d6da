package filestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// Store is the cloud-folder abstraction the pipeline works against.
// File ids are opaque and stay stable across renames.
type Store interface {
	List(ctx context.Context, folderID string) ([]entity.FileRef, error)
	Rename(ctx context.Context, fileID, newName string) error
	Download(ctx context.Context, fileID string) ([]byte, error)
	UploadText(ctx context.Context, folderID, filename, text string) (string, error)
}

// New builds the store selected by cfg.Backend, wrapped with the include-glob filter.
func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	filter, err := NewGlobFilter(cfg.IncludeGlobs)
	if err != nil {
		return nil, err
	}

	var base Store
	switch cfg.Backend {
	case "", "local":
		base, err = NewLocalStore(cfg.LocalRoot, logger)
	case "s3":
		base, err = NewS3Store(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown file store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Filtered(base, filter), nil
}
