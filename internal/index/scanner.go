package index

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/errors"
)

// ProgressFunc receives scan progress after each batch.
type ProgressFunc func(done, total int, lastPath string)

// ScanResult summarizes one workspace scan.
type ScanResult struct {
	FilesScanned  int
	FilesSkipped  int
	ParseFailures []string
	Duration      time.Duration
}

// Scanner enumerates the workspace and feeds files into the index. A
// weighted semaphore of one guards against overlapping scans; a second
// Scan while one runs fails immediately with ErrAlreadyIndexing instead
// of queueing.
type Scanner struct {
	files *core.FileService
	idx   *Index
	cfg   *config.Config
	guard *semaphore.Weighted
}

func NewScanner(files *core.FileService, idx *Index, cfg *config.Config) *Scanner {
	return &Scanner{
		files: files,
		idx:   idx,
		cfg:   cfg,
		guard: semaphore.NewWeighted(1),
	}
}

// Scan walks the project root and indexes every matching file. Long scans
// yield the scheduler at each time slice boundary and honor context
// cancellation between files, so a scan never monopolizes the process.
func (s *Scanner) Scan(ctx context.Context, progress ProgressFunc) (*ScanResult, error) {
	if !s.guard.TryAcquire(1) {
		return nil, errors.ErrAlreadyIndexing
	}
	defer s.guard.Release(1)

	start := time.Now()
	paths, err := s.files.Enumerate(s.cfg.Project.Root, s.cfg.Include, s.cfg.Exclude, s.cfg.Index.FollowSymlinks)
	if err != nil {
		return nil, errors.NewIndexingError("enumerate", err)
	}
	if max := s.cfg.Index.MaxFileCount; max > 0 && len(paths) > max {
		debug.LogIndexing("file count %d exceeds cap %d, truncating", len(paths), max)
		paths = paths[:max]
	}

	result := &ScanResult{}
	slice := time.Duration(s.cfg.Index.ScanSliceMs) * time.Millisecond
	sliceStart := time.Now()

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if slice > 0 && time.Since(sliceStart) >= slice {
			runtime.Gosched()
			sliceStart = time.Now()
		}

		switch err := s.scanOne(path); {
		case err == nil:
			result.FilesScanned++
		case errors.IsParseFailure(err):
			result.ParseFailures = append(result.ParseFailures, path)
		default:
			result.FilesSkipped++
		}

		if progress != nil && (i+1)%s.cfg.Index.ScanBatchSize == 0 {
			progress(i+1, len(paths), path)
		}
	}
	if progress != nil {
		progress(len(paths), len(paths), "")
	}

	result.Duration = time.Since(start)
	debug.LogIndexing("scan finished: %d scanned, %d skipped, %d parse failures in %s",
		result.FilesScanned, result.FilesSkipped, len(result.ParseFailures), result.Duration)
	return result, nil
}

// scanOne reads one file from disk and indexes it, skipping oversized files
// and content whose fast-hash matches the stored version.
func (s *Scanner) scanOne(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIndexingError("stat", err).WithFile(path).WithRecoverable(true)
	}
	if max := s.cfg.Index.MaxFileSize; max > 0 && info.Size() > max {
		debug.LogIndexing("skipping oversized file %s (%d bytes)", path, info.Size())
		return errors.NewIndexingError("size", os.ErrInvalid).WithFile(path).WithRecoverable(true)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIndexingError("read", err).WithFile(path).WithRecoverable(true)
	}

	if stored, ok := s.files.FastHash(path); ok && stored == xxhash.Sum64(content) {
		if len(s.idx.DefinitionsIn(path)) > 0 {
			return nil
		}
		if _, indexed := s.idx.Namespace(path); indexed {
			return nil
		}
	}

	s.files.SetContent(path, content)
	return s.idx.ScanFile(path, content)
}

// Rebuild clears the index and replays a full scan, dropping entries for
// files that no longer exist on disk.
func (s *Scanner) Rebuild(ctx context.Context, progress ProgressFunc) (*ScanResult, error) {
	s.idx.Clear()
	return s.Scan(ctx, progress)
}

// ScanPath indexes a single file immediately, bypassing the scan guard.
// Used by the watcher and by refactors that rewrite files in place.
func (s *Scanner) ScanPath(path string) error {
	return s.scanOne(path)
}

// Remove drops a file from the store and the index.
func (s *Scanner) Remove(path string) {
	s.files.Invalidate(path)
	s.idx.RemoveFile(path)
}
