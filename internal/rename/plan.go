package rename

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// Assignment is the naming base resolved for one file, usually the name of its
// MATCHED or overridden label.
type Assignment struct {
	LabelID string
	Base    string
}

var rePlaceholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// RenderTemplate fills {field} placeholders from extracted fields. Missing or blank
// values render as UNKNOWN.
func RenderTemplate(template string, fields map[string]any) string {
	return rePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		return utils.FormatValue(fields[key])
	})
}

// Placeholders returns the {field} names used in template, first use first.
func Placeholders(template string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range rePlaceholder.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// BuildManualPlan emits one op per edit whose value is non-blank and differs from the
// file's current name. Ops follow the order of files.
func BuildManualPlan(files []entity.JobFile, edits map[string]string) []entity.RenameOp {
	var ops []entity.RenameOp
	for _, f := range files {
		desired, ok := edits[f.FileID]
		if !ok || strings.TrimSpace(desired) == "" || desired == f.Name {
			continue
		}
		ops = append(ops, entity.RenameOp{FileID: f.FileID, OldName: f.Name, NewName: desired})
	}
	return ops
}

// BuildLabelPlan proposes Base.ext for files with an assignment. When several files
// share a base they are numbered Base_01, Base_02, ... in file order.
func BuildLabelPlan(files []entity.JobFile, assignments map[string]Assignment) []entity.RenameOp {
	counts := make(map[string]int)
	for _, f := range files {
		if a, ok := assignments[f.FileID]; ok && strings.TrimSpace(a.Base) != "" {
			counts[Sanitize(a.Base)]++
		}
	}

	seq := make(map[string]int)
	var ops []entity.RenameOp
	for _, f := range files {
		a, ok := assignments[f.FileID]
		if !ok || strings.TrimSpace(a.Base) == "" {
			continue
		}
		base := Sanitize(a.Base)
		name := base
		if counts[base] > 1 {
			seq[base]++
			name = fmt.Sprintf("%s_%02d", base, seq[base])
		}
		ops = append(ops, entity.RenameOp{FileID: f.FileID, OldName: f.Name, NewName: name + extensionFor(f.FileRef)})
	}
	return ops
}

func extensionFor(f entity.FileRef) string {
	if hasFileExtension(f.Name) {
		_, ext := SplitExtension(f.Name)
		return ext
	}
	return constants.ExtForMime(f.MimeType)
}

// PreviewManual turns edits into the final, collision-free preview.
// A sanitized name without an extension keeps the file's current extension.
func PreviewManual(files []entity.JobFile, edits map[string]string) []entity.RenameOp {
	ordered := sortedCopy(files)
	byID := make(map[string]entity.FileRef, len(ordered))
	for _, f := range ordered {
		byID[f.FileID] = f.FileRef
	}
	ops := BuildManualPlan(ordered, edits)
	for i := range ops {
		name := Sanitize(ops[i].NewName)
		if !hasFileExtension(name) {
			name += extensionFor(byID[ops[i].FileID])
		}
		ops[i].NewName = name
	}
	return finalize(ordered, ops)
}

// PreviewLabels turns label assignments into the final, collision-free preview.
func PreviewLabels(files []entity.JobFile, assignments map[string]Assignment) []entity.RenameOp {
	ordered := sortedCopy(files)
	return finalize(ordered, BuildLabelPlan(ordered, assignments))
}

// finalize drops no-op renames and resolves collisions against the names of files
// that keep their current name.
func finalize(files []entity.JobFile, ops []entity.RenameOp) []entity.RenameOp {
	kept := ops[:0]
	for _, op := range ops {
		if Sanitize(op.NewName) == op.OldName {
			continue
		}
		kept = append(kept, op)
	}
	renamed := make(map[string]struct{}, len(kept))
	for _, op := range kept {
		renamed[op.FileID] = struct{}{}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := renamed[f.FileID]; !ok {
			existing = append(existing, f.Name)
		}
	}
	resolved := ResolveCollisions(kept, existing)
	out := resolved[:0]
	for _, op := range resolved {
		if op.NewName != op.OldName {
			out = append(out, op)
		}
	}
	return out
}

func sortedCopy(files []entity.JobFile) []entity.JobFile {
	out := make([]entity.JobFile, len(files))
	copy(out, files)
	entity.SortJobFiles(out)
	return out
}
