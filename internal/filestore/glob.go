package filestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// GlobFilter keeps files whose name matches at least one include pattern.
// Matching is case-insensitive. An empty filter keeps everything.
type GlobFilter struct {
	patterns []string
}

func NewGlobFilter(patterns []string) (*GlobFilter, error) {
	f := &GlobFilter{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include glob %q", p)
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

func (f *GlobFilter) Match(name string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	name = strings.ToLower(name)
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (f *GlobFilter) Apply(files []entity.FileRef) []entity.FileRef {
	out := make([]entity.FileRef, 0, len(files))
	for _, file := range files {
		if f.Match(file.Name) {
			out = append(out, file)
		}
	}
	return out
}

type filteredStore struct {
	Store
	filter *GlobFilter
}

// Filtered narrows List to the files accepted by filter. Other calls pass through.
func Filtered(s Store, filter *GlobFilter) Store {
	return &filteredStore{Store: s, filter: filter}
}

func (s *filteredStore) List(ctx context.Context, folderID string) ([]entity.FileRef, error) {
	files, err := s.Store.List(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return s.filter.Apply(files), nil
}
