package rename

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a/b  ", "ab"},
		{"   ", "UNNAMED"},
		{"", "UNNAMED"},
		{"report\n.txt", "report.txt"},
		{`in:vo*ice?"<>|.pdf`, "invoice.pdf"},
		{"a \t  b", "a b"},
		{"del\x7fete", "delete"},
		{"///", "UNNAMED"},
		{"Invoice ", "Invoice"},
		{"résumé  final.docx", "résumé final.docx"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_IdempotentAndClean(t *testing.T) {
	inputs := []string{
		"", " ", "a/b", "x\x00y", "  many   spaces  ", `C:\temp\file?.txt`, "\x1f\x1f", "UNNAMED", "ok.pdf",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.False(t, strings.ContainsAny(once, invalidFilenameChars), "input %q", in)
		for _, r := range once {
			assert.False(t, r < 32 || r == 127, "control char in %q", once)
		}
	}
}

func TestSplitExtension(t *testing.T) {
	tests := []struct {
		in, base, ext string
	}{
		{"photo.png", "photo", ".png"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".env", "", ".env"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, ext := SplitExtension(tt.in)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestResolveCollisions(t *testing.T) {
	ops := []entity.RenameOp{
		{FileID: "1", OldName: "a.png", NewName: "photo.png"},
		{FileID: "2", OldName: "b.png", NewName: "photo.png"},
	}
	got := ResolveCollisions(ops, []string{"photo.png"})
	require.Len(t, got, 2)
	assert.Equal(t, "photo_01.png", got[0].NewName)
	assert.Equal(t, "photo_02.png", got[1].NewName)
	assert.Equal(t, "a.png", got[0].OldName)
}

func TestResolveCollisions_FirstOpWins(t *testing.T) {
	ops := []entity.RenameOp{
		{FileID: "1", OldName: "a", NewName: "doc"},
		{FileID: "2", OldName: "b", NewName: "doc"},
		{FileID: "3", OldName: "c", NewName: "doc_01"},
	}
	got := ResolveCollisions(ops, nil)
	assert.Equal(t, []string{"doc", "doc_01", "doc_01_01"}, names(got))
}

func TestResolveCollisions_Properties(t *testing.T) {
	existing := []string{"x.pdf", "x_01.pdf", "y"}
	ops := []entity.RenameOp{
		{FileID: "1", NewName: "x.pdf"},
		{FileID: "2", NewName: "x.pdf"},
		{FileID: "3", NewName: " y "},
		{FileID: "4", NewName: "a/b"},
		{FileID: "5", NewName: "ab"},
	}
	got := ResolveCollisions(ops, existing)

	seen := map[string]bool{}
	for _, n := range existing {
		seen[n] = true
	}
	for _, op := range got {
		assert.False(t, seen[op.NewName], "duplicate or existing name %q", op.NewName)
		seen[op.NewName] = true
	}

	again := ResolveCollisions(got, existing)
	assert.Equal(t, got, again)
}

func names(ops []entity.RenameOp) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.NewName)
	}
	return out
}
