package filestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

type memFile struct {
	folder string
	ref    entity.FileRef
	data   []byte
}

// MemoryStore keeps folders in memory. Fail lets callers inject errors per call.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]*memFile
	seq   int

	Fail func(op, fileID string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*memFile)}
}

// Put adds a file and returns its id.
func (m *MemoryStore) Put(folderID, name, mimeType string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("mem-%04d", m.seq)
	m.files[id] = &memFile{folder: folderID, ref: entity.FileRef{FileID: id, Name: name, MimeType: mimeType}, data: data}
	return id
}

// Name returns the current name of a file.
func (m *MemoryStore) Name(fileID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[fileID]; ok {
		return f.ref.Name
	}
	return ""
}

func (m *MemoryStore) fail(op, fileID string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, fileID)
}

func (m *MemoryStore) List(_ context.Context, folderID string) ([]entity.FileRef, error) {
	if err := m.fail("list", folderID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.FileRef
	for _, f := range m.files {
		if f.folder == folderID {
			out = append(out, f.ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out, nil
}

func (m *MemoryStore) Rename(_ context.Context, fileID, newName string) error {
	if err := m.fail("rename", fileID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return common.NewNotFound("file", fileID)
	}
	f.ref.Name = newName
	return nil
}

func (m *MemoryStore) Download(_ context.Context, fileID string) ([]byte, error) {
	if err := m.fail("download", fileID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, common.NewNotFound("file", fileID)
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemoryStore) UploadText(_ context.Context, folderID, filename, text string) (string, error) {
	if err := m.fail("upload", filename); err != nil {
		return "", err
	}
	return m.Put(folderID, filename, "text/plain", []byte(text)), nil
}
