package rename

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

const invalidFilenameChars = `/\:*?"<>|`

// Sanitize removes characters that are invalid on common filesystems and control
// characters, collapses whitespace runs and trims. An empty result becomes UNNAMED.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 32 || r == 127 || strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return constants.Unnamed
	}
	return out
}

// ResolveCollisions sanitizes each op's new name and suffixes _01, _02, ... before the
// extension until it differs from existing and from every earlier op's final name.
// Earlier ops win the unsuffixed name.
func ResolveCollisions(ops []entity.RenameOp, existing []string) []entity.RenameOp {
	used := make(map[string]struct{}, len(existing)+len(ops))
	for _, n := range existing {
		used[n] = struct{}{}
	}
	out := make([]entity.RenameOp, 0, len(ops))
	for _, op := range ops {
		candidate := Sanitize(op.NewName)
		if _, taken := used[candidate]; taken {
			candidate = nextAvailable(candidate, used)
		}
		used[candidate] = struct{}{}
		out = append(out, entity.RenameOp{FileID: op.FileID, OldName: op.OldName, NewName: candidate})
	}
	return out
}

func nextAvailable(name string, used map[string]struct{}) string {
	base, ext := SplitExtension(name)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%02d%s", base, n, ext)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

// SplitExtension splits at the last dot and keeps the dot on the extension.
// A name without a dot has no extension.
func SplitExtension(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// hasFileExtension is stricter than SplitExtension: "Mr. Smith" has no extension.
func hasFileExtension(name string) bool {
	_, ext := SplitExtension(name)
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
