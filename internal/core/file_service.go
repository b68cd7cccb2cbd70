package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/phpref/internal/types"
)

// FileService is the centralized surface for all filesystem operations.
// Loaded content is stored immutably and identified by a dense FileID;
// xxhash fast-hashes allow cheap change detection on rescan.
type FileService struct {
	mu        sync.RWMutex
	nextID    types.FileID
	idsByPath map[string]types.FileID
	pathsByID map[types.FileID]string
	contents  map[types.FileID][]byte
	hashes    map[types.FileID]uint64
}

// NewFileService creates an empty file service.
func NewFileService() *FileService {
	return &FileService{
		nextID:    1,
		idsByPath: make(map[string]types.FileID),
		pathsByID: make(map[types.FileID]string),
		contents:  make(map[types.FileID][]byte),
		hashes:    make(map[types.FileID]uint64),
	}
}

// LoadFile reads a file from disk into the store, replacing any previous
// content for the same path. The stored buffer must not be mutated by
// callers; parsers take a defensive copy.
func (s *FileService) LoadFile(path string) (types.FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", abs, err)
	}

	return s.SetContent(abs, content), nil
}

// SetContent stores content for a path without touching the disk.
// Used by tests and by editors pushing unsaved buffers.
func (s *FileService) SetContent(path string, content []byte) types.FileID {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idsByPath[abs]
	if !ok {
		id = s.nextID
		s.nextID++
		s.idsByPath[abs] = id
		s.pathsByID[id] = abs
	}
	s.contents[id] = content
	s.hashes[id] = xxhash.Sum64(content)
	return id
}

// GetContent returns stored content for a path, reading through to disk on a
// miss. The second return is false when the file cannot be read at all.
func (s *FileService) GetContent(path string) ([]byte, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.RLock()
	if id, ok := s.idsByPath[abs]; ok {
		content := s.contents[id]
		s.mu.RUnlock()
		return content, true
	}
	s.mu.RUnlock()

	if _, err := s.LoadFile(abs); err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.idsByPath[abs]
	return s.contents[id], true
}

// GetFileContent returns the stored content for a FileID.
func (s *FileService) GetFileContent(id types.FileID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.contents[id]
	return content, ok
}

// PathFor returns the absolute path registered for a FileID.
func (s *FileService) PathFor(id types.FileID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.pathsByID[id]
	return path, ok
}

// FastHash returns the xxhash of the stored content for quick equality
// checks; ok is false if the path has never been loaded.
func (s *FileService) FastHash(path string) (uint64, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idsByPath[abs]
	if !ok {
		return 0, false
	}
	return s.hashes[id], true
}

// Exists reports whether a path exists in the store or on disk.
func (s *FileService) Exists(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.RLock()
	_, ok := s.idsByPath[abs]
	s.mu.RUnlock()
	if ok {
		return true
	}

	_, err = os.Stat(abs)
	return err == nil
}

// Invalidate drops stored content for a path (on delete/move).
func (s *FileService) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.idsByPath[abs]; ok {
		delete(s.idsByPath, abs)
		delete(s.pathsByID, id)
		delete(s.contents, id)
		delete(s.hashes, id)
	}
}

// WriteFile writes content to disk via a temp file plus rename so a partial
// write never replaces the original, and refreshes the store.
func (s *FileService) WriteFile(path string, content []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	tmp := abs + ".phpref.tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", abs, err)
	}

	s.SetContent(abs, content)
	return nil
}

// Enumerate walks root and returns absolute paths matching any include glob
// and no exclude glob. Patterns are doublestar globs matched against the
// slash-normalized path relative to root. With followSymlinks, symlinked
// directories are descended into; a visited set of resolved targets breaks
// cycles.
func (s *FileService) Enumerate(root string, include, exclude []string, followSymlinks bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	visited := make(map[string]bool)
	var walk func(dir, rel string)
	walk = func(dir, rel string) {
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return
		}
		if visited[resolved] {
			return
		}
		visited[resolved] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			// Unreadable directories are skipped, never fatal for a scan.
			return
		}
		for _, entry := range entries {
			entryRel := entry.Name()
			if rel != "" {
				entryRel = rel + "/" + entry.Name()
			}
			full := filepath.Join(dir, entry.Name())

			isDir := entry.IsDir()
			if !isDir && followSymlinks && entry.Type()&os.ModeSymlink != 0 {
				if info, err := os.Stat(full); err == nil {
					isDir = info.IsDir()
				}
			}

			if isDir {
				if matchesAny(exclude, entryRel+"/") || matchesAny(exclude, entryRel+"/**") {
					continue
				}
				walk(full, entryRel)
				continue
			}
			if matchesAny(exclude, entryRel) {
				continue
			}
			if len(include) == 0 || matchesAny(include, entryRel) {
				paths = append(paths, full)
			}
		}
	}
	walk(absRoot, "")
	return paths, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// SplitLines splits content into lines without their terminators. A trailing
// newline does not produce a final empty element, matching editor line
// counts.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}

	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}

	lines := make([]string, 0, n)
	start := 0
	for i, b := range content {
		if b == '\n' {
			end := i
			if end > start && content[end-1] == '\r' {
				end--
			}
			lines = append(lines, string(content[start:end]))
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, string(content[start:]))
	}
	return lines
}
