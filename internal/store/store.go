// Package store owns the bleve indexes: one writable primary, optional
// read-only replicas, and the published View that queries run against.
//
// A Writer and a DeletionReader both need the writer lock; at most one of
// them is open at a time across all processes sharing the index path.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"

	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Options configures Open.
type Options struct {
	// Paths lists index directories. Paths[0] is writable; the rest are
	// opened read-only. An empty Paths[0] creates an in-memory index.
	Paths  []string
	Logger *slog.Logger
}

// View is an immutable published snapshot handle. Generation increases on
// every Publish, so anything cached against a View can be keyed by it.
// Every commit to the primary is a single batch, so each search through
// Index sees either all of a cycle's changes or none of them.
type View struct {
	Generation  uint64
	Index       bleve.Index
	PublishedAt time.Time
}

// Store manages the index lifecycle.
type Store struct {
	path     string
	primary  bleve.Index
	replicas []bleve.Index
	lock     *FileLock
	logger   *slog.Logger

	view atomic.Pointer[View]
	gen  atomic.Uint64

	mu     sync.Mutex
	held   bool
	closed bool
}

// Open opens or creates the primary index and any replicas, then publishes
// the first view.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := ""
	if len(opts.Paths) > 0 {
		path = opts.Paths[0]
	}

	primary, err := openPrimary(path, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:    path,
		primary: primary,
		logger:  logger,
	}
	if path != "" {
		s.lock = NewFileLock(path)
	}

	for _, p := range opts.Paths[min(1, len(opts.Paths)):] {
		replica, err := bleve.OpenUsing(p, map[string]interface{}{"read_only": true})
		if err != nil {
			logger.Warn("index_replica_open_failed",
				slog.String("path", p),
				slog.String("error", err.Error()))
			continue
		}
		s.replicas = append(s.replicas, replica)
	}

	s.Publish()
	return s, nil
}

// OpenMemory creates a store over a single in-memory index.
func OpenMemory(logger *slog.Logger) (*Store, error) {
	return Open(Options{Paths: []string{""}, Logger: logger})
}

func openPrimary(path string, logger *slog.Logger) (bleve.Index, error) {
	im := buildMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, ierrors.New(ierrors.ErrCodeIndexOpen, "failed to create in-memory index", err)
		}
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ierrors.New(ierrors.ErrCodeIndexOpen, "failed to create index directory", err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		logger.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(path); err != nil {
			return nil, ierrors.New(ierrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be removed", path), err)
		}
		logger.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, rebuild required"))
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, im)
	} else if err != nil && isCorruptionError(err) {
		logger.Warn("index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, ierrors.New(ierrors.ErrCodeCorruptIndex, "index corrupted, cannot clear", removeErr)
		}
		logger.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "open failed with corruption, rebuild required"))
		idx, err = bleve.New(path, im)
	}
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeIndexOpen, fmt.Sprintf("failed to open index at %s", path), err)
	}
	return idx, nil
}

// validateIndexIntegrity checks the index metadata before bleve opens it.
// A missing directory is fine; it will be created.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Path returns the writable index location ("" for memory).
func (s *Store) Path() string {
	return s.path
}

// Current returns the most recently published view.
func (s *Store) Current() *View {
	return s.view.Load()
}

// Publish swaps in a new view with the next generation number.
func (s *Store) Publish() *View {
	var idx bleve.Index = s.primary
	if len(s.replicas) > 0 {
		all := append([]bleve.Index{s.primary}, s.replicas...)
		idx = bleve.NewIndexAlias(all...)
	}
	v := &View{
		Generation:  s.gen.Add(1),
		Index:       idx,
		PublishedAt: time.Now(),
	}
	s.view.Store(v)
	return v
}

// DocCount returns the number of documents in the writable index.
func (s *Store) DocCount() (uint64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.primary.DocCount()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ierrors.New(ierrors.ErrCodeIndexClosed, "index is closed", nil)
	}
	return nil
}

// acquire takes the writer lock for a Writer or DeletionReader.
func (s *Store) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierrors.New(ierrors.ErrCodeIndexClosed, "index is closed", nil)
	}
	if s.held {
		return ierrors.New(ierrors.ErrCodeWriterLocked, "index writer already open in this process", nil)
	}
	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return ierrors.New(ierrors.ErrCodeIndexOpen, "failed to take writer lock", err).
				WithDetail("lock", s.lock.Path())
		}
		if !ok {
			return ierrors.New(ierrors.ErrCodeWriterLocked, "index writer locked by another process", nil).
				WithDetail("lock", s.lock.Path())
		}
	}
	s.held = true
	return nil
}

func (s *Store) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		return
	}
	s.held = false
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("index_lock_release_failed", slog.String("error", err.Error()))
		}
	}
}

// Close closes every index. Open writers must be closed first.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	for _, r := range s.replicas {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.primary.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// IsLockedByOther reports whether another process holds the writer lock.
// In-memory stores are never locked.
func (s *Store) IsLockedByOther() bool {
	if s.path == "" {
		return false
	}
	trial := NewFileLock(s.path)
	ok, err := trial.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = trial.Unlock()
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.held
}

const scanPageSize = 1000

// allIDs pages through every hit of req and returns the document IDs.
func allIDs(ctx context.Context, idx bleve.Index, req *bleve.SearchRequest) ([]string, error) {
	var ids []string
	req.Size = scanPageSize
	req.Fields = nil
	req.From = 0
	for {
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < scanPageSize {
			return ids, nil
		}
		req.From += scanPageSize
	}
}
