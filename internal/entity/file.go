package entity

import (
	"sort"
	"time"
)

// FileRef is a snapshot of a file in the external store.
type FileRef struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// JobFile is a FileRef as captured by a job, with its listing position.
type JobFile struct {
	FileRef
	SortIndex int `json:"sort_index"`
}

// SortJobFiles orders files by (sort_index, name, file_id) in place.
func SortJobFiles(files []JobFile) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.SortIndex != b.SortIndex {
			return a.SortIndex < b.SortIndex
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.FileID < b.FileID
	})
}

// FileTimings records how long each stage took for one file, in milliseconds.
// Nil means the stage has not run.
type FileTimings struct {
	JobID      string    `json:"job_id"`
	FileID     string    `json:"file_id"`
	OCRMs      *int64    `json:"ocr_ms,omitempty"`
	ClassifyMs *int64    `json:"classify_ms,omitempty"`
	ExtractMs  *int64    `json:"extract_ms,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
