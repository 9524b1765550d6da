package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobFilter(t *testing.T) {
	f, err := NewGlobFilter([]string{"*.{pdf,jpg}", "scan_*"})
	require.NoError(t, err)

	tests := []struct {
		name string
		want bool
	}{
		{"a.pdf", true},
		{"A.PDF", true},
		{"photo.JPG", true},
		{"scan_0001.tiff", true},
		{"notes.txt", false},
		{"pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.name))
		})
	}

	empty, err := NewGlobFilter(nil)
	require.NoError(t, err)
	assert.True(t, empty.Match("anything.bin"))

	_, err = NewGlobFilter([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestFilteredStore(t *testing.T) {
	mem := NewMemoryStore()
	mem.Put("f", "a.pdf", "application/pdf", nil)
	mem.Put("f", "b.exe", "application/octet-stream", nil)
	mem.Put("other", "c.pdf", "application/pdf", nil)
	filter, err := NewGlobFilter([]string{"*.pdf"})
	require.NoError(t, err)

	files, err := Filtered(mem, filter).List(context.Background(), "f")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.pdf", files[0].Name)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	id := mem.Put("f", "a.jpg", "image/jpeg", []byte("img"))

	require.NoError(t, mem.Rename(ctx, id, "Invoice.jpg"))
	assert.Equal(t, "Invoice.jpg", mem.Name(id))

	data, err := mem.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	err = mem.Rename(ctx, "missing", "x")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	mem.Fail = func(op, fileID string) error {
		if op == "rename" && fileID == id {
			return errors.New("boom")
		}
		return nil
	}
	assert.Error(t, mem.Rename(ctx, id, "again.jpg"))
	assert.Equal(t, "Invoice.jpg", mem.Name(id))

	repID, err := mem.UploadText(ctx, "f", "REPORT.txt", "hello")
	require.NoError(t, err)
	files, err := mem.List(ctx, "f")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Contains(t, files, entity.FileRef{FileID: repID, Name: "REPORT.txt", MimeType: "text/plain"})
}

func TestLocalStore_IDsSurviveRename(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "inbox")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4 one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))

	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)

	files, err := s.List(ctx, "inbox")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].MimeType)
	assert.Equal(t, "image/png", files[1].MimeType)

	id := files[0].FileID
	require.NoError(t, s.Rename(ctx, id, "Invoice.pdf"))
	_, err = os.Stat(filepath.Join(dir, "Invoice.pdf"))
	require.NoError(t, err)

	data, err := s.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 one", string(data))

	// renaming onto an existing file is refused
	assert.Error(t, s.Rename(ctx, id, "b.png"))

	_, err = s.List(ctx, "../outside")
	assert.Error(t, err)
	_, err = s.List(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestLocalStore_DuplicateContent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "y.txt"), []byte("same"), 0o644))

	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)
	files, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.NotEqual(t, files[0].FileID, files[1].FileID)

	id, err := s.UploadText(ctx, "", "REPORT_2024-01-01.txt", "report body")
	require.NoError(t, err)
	data, err := s.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(data))
}

func TestLocalStore_DuplicateContentKeepsIDsAcrossRenames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("ids fall back to content hash without inodes")
	}
	tests := []struct {
		name      string
		renamed   string
		steps     []string
		wantNames []string
	}{
		{name: "first name out and back", renamed: "a.jpg", steps: []string{"z.jpg", "a.jpg"}, wantNames: []string{"a.jpg", "b.jpg"}},
		{name: "second name out and back", renamed: "b.jpg", steps: []string{"0.jpg", "b.jpg"}, wantNames: []string{"a.jpg", "b.jpg"}},
		{name: "first name moves past second", renamed: "a.jpg", steps: []string{"z.jpg"}, wantNames: []string{"b.jpg", "z.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("same bytes"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(root, "b.jpg"), []byte("same bytes"), 0o644))

			s, err := NewLocalStore(root, nil)
			require.NoError(t, err)
			before, err := s.List(ctx, "")
			require.NoError(t, err)
			ids := make(map[string]string, len(before))
			for _, f := range before {
				ids[f.Name] = f.FileID
			}

			for _, name := range tt.steps {
				require.NoError(t, s.Rename(ctx, ids[tt.renamed], name))
			}

			after, err := s.List(ctx, "")
			require.NoError(t, err)
			var names []string
			byID := make(map[string]string, len(after))
			for _, f := range after {
				names = append(names, f.Name)
				byID[f.FileID] = f.Name
			}
			sort.Strings(names)
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.steps[len(tt.steps)-1], byID[ids[tt.renamed]])
			for name, id := range ids {
				if name != tt.renamed {
					assert.Equal(t, name, byID[id])
				}
			}
		})
	}
}
