package store

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Reader looks up committed documents in the writable index.
type Reader struct {
	s      *Store
	closed bool
}

// OpenReader opens a lookup reader. It sees everything committed before
// the call.
func (s *Store) OpenReader() (*Reader, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return &Reader{s: s}, nil
}

// Lookup returns the internal IDs of every document matching q.
func (r *Reader) Lookup(ctx context.Context, q query.Query) ([]string, error) {
	if r.closed {
		return nil, ierrors.New(ierrors.ErrCodeIndexClosed, "reader is closed", nil)
	}
	ids, err := allIDs(ctx, r.s.primary, bleve.NewSearchRequest(q))
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeIndexOpen, "lookup failed", err)
	}
	return ids, nil
}

// Close releases the reader.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// DeletionReader removes documents by internal ID. It holds the writer
// lock until closed.
type DeletionReader struct {
	Reader
}

// OpenDeletionReader takes the writer lock and opens a reader that can
// delete.
func (s *Store) OpenDeletionReader() (*DeletionReader, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	return &DeletionReader{Reader: Reader{s: s}}, nil
}

// Delete removes the documents with the given IDs that still exist and
// returns how many were removed.
func (d *DeletionReader) Delete(ctx context.Context, ids []string) (int, error) {
	if d.closed {
		return 0, ierrors.New(ierrors.ErrCodeIndexClosed, "reader is closed", nil)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	batch := d.s.primary.NewBatch()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		doc, err := d.s.primary.Document(id)
		if err != nil {
			return 0, ierrors.New(ierrors.ErrCodeIndexOpen, "document lookup failed", err).WithDetail("id", id)
		}
		if doc == nil {
			continue
		}
		batch.Delete(id)
	}
	n := batch.Size()
	if n == 0 {
		return 0, nil
	}
	if err := d.s.primary.Batch(batch); err != nil {
		return 0, ierrors.New(ierrors.ErrCodeIndexCommit, "failed to commit deletions", err)
	}
	return n, nil
}

// Close releases the writer lock.
func (d *DeletionReader) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.s.release()
	return nil
}
