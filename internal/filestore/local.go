package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// LocalStore serves folders that are directories under root. A file id is the
// folder plus the file's device and inode, so renaming a file keeps its id even
// when other files share its content. Where inodes are unavailable the id falls
// back to a content hash, with identical files told apart by name order ("~2", ...).
type LocalStore struct {
	root   string
	logger *slog.Logger
}

func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

type localEntry struct {
	id   string
	name string
	path string
}

func (s *LocalStore) List(ctx context.Context, folderID string) ([]entity.FileRef, error) {
	entries, err := s.scan(ctx, folderID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.FileRef, 0, len(entries))
	for _, e := range entries {
		out = append(out, entity.FileRef{FileID: e.id, Name: e.name, MimeType: detectMime(e.path)})
	}
	return out, nil
}

func (s *LocalStore) Rename(ctx context.Context, fileID, newName string) error {
	e, err := s.lookup(ctx, fileID)
	if err != nil {
		return err
	}
	if e.name == newName {
		return nil
	}
	if strings.ContainsAny(newName, `/\`) || newName == "." || newName == ".." {
		return fmt.Errorf("invalid file name %q", newName)
	}
	target := filepath.Join(filepath.Dir(e.path), newName)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("rename %s: target %s already exists", e.name, newName)
	}
	if err := os.Rename(e.path, target); err != nil {
		return fmt.Errorf("rename %s: %w", e.name, err)
	}
	s.logger.Debug("filestore.local.rename", "file_id", fileID, "from", e.name, "to", newName)
	return nil
}

func (s *LocalStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	e, err := s.lookup(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(e.path)
}

func (s *LocalStore) UploadText(ctx context.Context, folderID, filename, text string) (string, error) {
	dir, err := s.dir(folderID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	entries, err := s.scan(ctx, folderID)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.path == path {
			return e.id, nil
		}
	}
	return "", common.NewNotFound("uploaded file", filename)
}

// Dir returns the directory that backs folderID.
func (s *LocalStore) Dir(folderID string) (string, error) { return s.dir(folderID) }

// dir maps a folder id onto a directory inside root.
func (s *LocalStore) dir(folderID string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimSpace(folderID)))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("folder %q is outside the store root", folderID)
	}
	return filepath.Join(s.root, rel), nil
}

// scan lists the regular, non-hidden files of a folder and assigns their ids.
func (s *LocalStore) scan(ctx context.Context, folderID string) ([]localEntry, error) {
	dir, err := s.dir(folderID)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewNotFound("folder", folderID)
		}
		return nil, fmt.Errorf("read folder %s: %w", folderID, err)
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	seen := make(map[string]int)
	var out []localEntry
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.IsDir() || isHidden(d.Name()) || !d.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, d.Name())
		info, err := d.Info()
		if err != nil {
			s.logger.Warn("filestore.local.stat_failed", "path", path, "error", err)
			continue
		}
		if key, ok := fileKey(info); ok {
			out = append(out, localEntry{id: folderKey(folderID) + "#" + key, name: d.Name(), path: path})
			continue
		}
		sum, err := hashFile(path)
		if err != nil {
			s.logger.Warn("filestore.local.hash_failed", "path", path, "error", err)
			continue
		}
		seen[sum]++
		id := folderKey(folderID) + "#" + sum
		if n := seen[sum]; n > 1 {
			id = fmt.Sprintf("%s~%d", id, n)
		}
		out = append(out, localEntry{id: id, name: d.Name(), path: path})
	}
	return out, nil
}

func (s *LocalStore) lookup(ctx context.Context, fileID string) (localEntry, error) {
	i := strings.LastIndexByte(fileID, '#')
	if i < 0 {
		return localEntry{}, common.NewNotFound("file", fileID)
	}
	entries, err := s.scan(ctx, fileID[:i])
	if err != nil {
		return localEntry{}, err
	}
	for _, e := range entries {
		if e.id == fileID {
			return e, nil
		}
	}
	return localEntry{}, common.NewNotFound("file", fileID)
}

func folderKey(folderID string) string {
	k := filepath.ToSlash(filepath.Clean(filepath.FromSlash(strings.TrimSpace(folderID))))
	if k == "." {
		return ""
	}
	return k
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:24], nil
}

// detectMime guesses from the extension, then sniffs the first bytes.
func detectMime(path string) string {
	if mt := constants.MimeForExt(filepath.Ext(path)); mt != "" {
		return mt
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	return http.DetectContentType(head[:n])
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
