package entity

import (
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
)

// Job is one "list files" action over a folder.
type Job struct {
	ID           string              `json:"job_id"`
	FolderID     string              `json:"folder_id"`
	CreatedAt    time.Time           `json:"created_at"`
	Status       constants.JobStatus `json:"status"`
	ReportFileID string              `json:"report_file_id,omitempty"`
}

// RenameOp is a single proposed or applied rename.
type RenameOp struct {
	FileID  string `json:"file_id"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// UndoLog holds the ops of the last apply for a job, in apply order.
type UndoLog struct {
	JobID     string     `json:"job_id"`
	CreatedAt time.Time  `json:"created_at"`
	Ops       []RenameOp `json:"ops"`
}

// AppliedRename is a rename that reached the file store.
type AppliedRename struct {
	JobID     string    `json:"job_id"`
	FileID    string    `json:"file_id"`
	OldName   string    `json:"old_name"`
	NewName   string    `json:"new_name"`
	AppliedAt time.Time `json:"applied_at"`
}
