package store

import (
	"context"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch/mergeplan"
	"github.com/google/uuid"

	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Writer buffers additions and deletions into one bleve batch. Nothing is
// visible to readers until Close commits it, and the commit applies both at
// once, so a reader never sees a new version next to the one it replaces.
type Writer struct {
	s       *Store
	batch   *bleve.Batch
	added   int
	cleared int
	deleted map[string]struct{}
	done    bool
}

// OpenWriter takes the writer lock. With recreate set, every existing
// document is scheduled for removal in the same commit.
func (s *Store) OpenWriter(ctx context.Context, recreate bool) (*Writer, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}

	w := &Writer{s: s, batch: s.primary.NewBatch(), deleted: make(map[string]struct{})}
	if recreate {
		ids, err := allIDs(ctx, s.primary, bleve.NewSearchRequest(bleve.NewMatchAllQuery()))
		if err != nil {
			s.release()
			return nil, ierrors.New(ierrors.ErrCodeIndexOpen, "failed to list documents for recreate", err)
		}
		for _, id := range ids {
			w.batch.Delete(id)
		}
		w.cleared = len(ids)
	}
	return w, nil
}

// Add schedules doc under a fresh internal ID and returns that ID.
func (w *Writer) Add(doc *entry.Document) (string, error) {
	if w.done {
		return "", ierrors.New(ierrors.ErrCodeIndexClosed, "writer is closed", nil)
	}
	id := uuid.NewString()
	if err := w.batch.Index(id, doc.Fields); err != nil {
		return "", ierrors.New(ierrors.ErrCodeIndexCommit, "failed to add document", err).
			WithDetail("key", doc.Key.String())
	}
	w.added++
	return id, nil
}

// Delete schedules the removal of documents by internal ID in the same
// commit. Deleting an ID added earlier in this batch cancels that add.
func (w *Writer) Delete(ids ...string) {
	if w.done {
		return
	}
	for _, id := range ids {
		if _, dup := w.deleted[id]; dup || id == "" {
			continue
		}
		w.deleted[id] = struct{}{}
		w.batch.Delete(id)
	}
}

// Deleted returns the number of distinct IDs scheduled for removal.
func (w *Writer) Deleted() int {
	return len(w.deleted)
}

// Added returns the number of documents scheduled so far.
func (w *Writer) Added() int {
	return w.added
}

// Cleared returns how many documents a recreate writer removes.
func (w *Writer) Cleared() int {
	return w.cleared
}

// Close commits the batch, optionally compacts, and releases the lock.
// The lock is released on every path.
func (w *Writer) Close(ctx context.Context, compact bool) error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.s.release()

	if w.batch.Size() > 0 {
		if err := w.s.primary.Batch(w.batch); err != nil {
			return ierrors.New(ierrors.ErrCodeIndexCommit, "failed to commit batch", err)
		}
	}
	if compact {
		if err := w.s.compact(ctx); err != nil {
			w.s.logger.Warn("index_compact_failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Abort drops the batch and releases the lock.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.batch.Reset()
	w.s.release()
}

type forceMerger interface {
	ForceMerge(ctx context.Context, mo *mergeplan.MergePlanOptions) error
}

// compact merges the on-disk index down to as few segments as possible.
// Indexes without a force-merge capability are left alone.
func (s *Store) compact(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	adv, err := s.primary.Advanced()
	if err != nil {
		return err
	}
	fm, ok := adv.(forceMerger)
	if !ok {
		return nil
	}
	return fm.ForceMerge(ctx, &mergeplan.MergePlanOptions{
		MaxSegmentsPerTier:   1,
		MaxSegmentSize:       1 << 30,
		TierGrowth:           1.0,
		SegmentsPerMergeTask: 10,
		FloorSegmentSize:     1 << 30,
		ReclaimDeletesWeight: 2.0,
	})
}
