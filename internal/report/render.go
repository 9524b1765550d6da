package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

const (
	fileStart = "--- FILE START ---"
	fileEnd   = "--- FILE END ---"
)

// Header identifies the job a report was rendered for.
type Header struct {
	JobID       string
	FolderID    string
	GeneratedAt string
}

// FileBlock is one file of a final report.
type FileBlock struct {
	Index      int
	FinalName  string
	FileID     string
	FinalLabel string
	Fields     map[string]any
	Schema     entity.Schema
}

// PendingFile is one file of a pending report.
type PendingFile struct {
	FileID    string
	Name      string
	MimeType  string
	SortIndex int
}

// RenderFinal renders report version 2. Blocks are written in the given order.
func RenderFinal(h Header, blocks []FileBlock) string {
	lines := header(2, h)
	for _, b := range blocks {
		label := strings.TrimSpace(b.FinalLabel)
		if label == "" {
			label = constants.Unlabeled
		}
		lines = append(lines,
			fileStart,
			"INDEX: "+strconv.Itoa(b.Index),
			"FINAL_NAME: "+b.FinalName,
			"FILE_ID: "+b.FileID,
			"FINAL_LABEL: "+label,
			"",
			"EXTRACTED_FIELDS:",
		)
		lines = append(lines, FieldLines(b.Fields, b.Schema)...)
		lines = append(lines, fileEnd)
	}
	return strings.Join(lines, "\n") + "\n"
}

// RenderPending renders report version 1, where text and fields are not yet
// extracted. Files are ordered by sort index, name, then file id.
func RenderPending(h Header, files []PendingFile) string {
	ordered := append([]PendingFile(nil), files...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.SortIndex != b.SortIndex {
			return a.SortIndex < b.SortIndex
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.FileID < b.FileID
	})

	lines := header(1, h)
	for i, f := range ordered {
		lines = append(lines,
			fileStart,
			"INDEX: "+strconv.Itoa(i+1),
			"FILE_NAME: "+f.Name,
			"FILE_ID: "+f.FileID,
			"MIME_TYPE: "+f.MimeType,
			"",
			"EXTRACTED_TEXT:",
			constants.PendingExtraction,
			"",
			"EXTRACTED_FIELDS_JSON:",
			constants.PendingExtraction,
			fileEnd,
		)
	}
	return strings.Join(lines, "\n") + "\n"
}

func header(version int, h Header) []string {
	return []string{
		"REPORT_VERSION: " + strconv.Itoa(version),
		"JOB_ID: " + h.JobID,
		"FOLDER_ID: " + h.FolderID,
		"GENERATED_AT: " + h.GeneratedAt,
	}
}

// FieldLines renders one "key: value" line per field. Keys follow the schema, or
// sort alphabetically without one. With neither keys nor fields a single UNKNOWN
// line is rendered.
func FieldLines(fields map[string]any, schema entity.Schema) []string {
	keys := schema.Keys()
	if len(keys) == 0 {
		keys = make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	if len(keys) == 0 {
		return []string{constants.Unknown}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+utils.FormatValue(fields[k]))
	}
	return out
}
