package extract

import (
	"context"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// Downloader is the part of the FileStore the extractor reads source bytes from.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// GenericSchema is used for files that have neither an override nor a MATCHED label.
// It carries no label-specific keys.
var GenericSchema = entity.Schema{
	{Name: "document_language", Type: entity.FieldString},
	{Name: "notes", Type: entity.FieldString},
}

// Hydration is the schema and instructions assembled for one file.
type Hydration struct {
	LabelID      string
	Schema       entity.Schema
	Instructions string
}
