package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/internal/store"
)

// Drain runs one cycle over everything currently queued.
//
// If the writer cannot be opened the batch goes back to the front of the
// queue and an error is returned. Per-entry failures are logged and
// counted as skipped. Once the writer is open the cycle runs to the end
// even if ctx is cancelled.
func (u *Updater) Drain(ctx context.Context) (res CycleResult, err error) {
	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()

	start := time.Now()
	failed := false
	defer func() {
		if p := recover(); p != nil {
			failed = true
			err = ierrors.New(ierrors.ErrCodeInternal, fmt.Sprintf("drain cycle panicked: %v", p), nil)
			u.logger.Error("index_cycle_panic", slog.Any("panic", p))
		}
		u.setState(StateIdle)
		res.Duration = time.Since(start)
		if res.Processed == 0 && res.Deleted == 0 && !failed && err == nil {
			return
		}
		r := res
		u.last.Store(&r)
		u.opts.Metrics.ObserveCycle(failed || err != nil, res.Added, res.Deleted, res.Skipped, res.Duration, res.Generation)
	}()

	batch := u.queue.DequeueAll()
	if len(batch) == 0 && len(u.pendingDeletes) == 0 {
		return res, nil
	}

	stale := u.pendingDeletes
	u.pendingDeletes = nil

	var survivors map[entry.Key]string
	if len(batch) > 0 {
		u.setState(StateDraining)
		var werr error
		survivors, werr = u.write(ctx, batch, &res)
		if werr != nil {
			u.pendingDeletes = stale
			return res, werr
		}
	}

	u.setState(StateCommitting)
	swept, unswept, err := u.sweep(context.WithoutCancel(ctx), stale, survivors)
	res.Deleted += swept
	if err != nil {
		u.pendingDeletes = unswept
		u.logger.Error("index_delete_failed",
			slog.Int("pending", len(unswept)),
			slog.String("error", err.Error()))
	}

	res.Generation = u.store.Publish().Generation
	u.logger.Info("index_cycle_complete",
		slog.Int("processed", res.Processed),
		slog.Int("added", res.Added),
		slog.Int("skipped", res.Skipped),
		slog.Int("deleted", res.Deleted),
		slog.Uint64("generation", res.Generation),
		slog.Duration("duration", time.Since(start)))
	return res, err
}

// write adds every entry of batch through one writer and commits it
// together with the removal of the versions it supersedes. It returns the
// surviving internal ID per written key.
func (u *Updater) write(ctx context.Context, batch []*entry.Entry, res *CycleResult) (map[entry.Key]string, error) {
	w, err := ierrors.RetryWithResult(ctx, u.retryConfig(), func() (*store.Writer, error) {
		return u.store.OpenWriter(ctx, false)
	})
	if err != nil {
		u.queue.Requeue(batch)
		u.logger.Error("index_writer_open_failed",
			slog.Int("requeued", len(batch)),
			slog.String("error", err.Error()))
		return nil, err
	}
	// Abort is a no-op once Close has run.
	defer w.Abort()

	// The cycle owns the writer from here on and must finish.
	ctx = context.WithoutCancel(ctx)

	lookup, err := u.store.OpenReader()
	if err != nil {
		u.queue.Requeue(batch)
		u.logger.Error("index_reader_open_failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = lookup.Close() }()

	var (
		written []*entry.Entry
		pending = make(map[entry.Key]string)
	)
	for _, e := range batch {
		res.Processed++
		id, prior, err := u.add(ctx, w, lookup, e)
		if err != nil {
			res.Skipped++
			u.logger.Warn("index_entry_skipped",
				slog.String("entry", e.String()),
				slog.String("error", err.Error()))
			continue
		}
		w.Delete(prior...)
		if prev, ok := pending[e.Key()]; ok {
			// Same key earlier in this batch; only the latest survives.
			w.Delete(prev)
		}
		pending[e.Key()] = id
		written = append(written, e)
		res.Added++
	}

	u.setState(StateCommitting)
	if err := w.Close(ctx, u.opts.Compact); err != nil {
		u.queue.Requeue(written)
		res.Added = 0
		u.logger.Error("index_commit_failed",
			slog.Int("requeued", len(written)),
			slog.String("error", err.Error()))
		return nil, err
	}
	res.Deleted = w.Deleted()
	return pending, nil
}

func (u *Updater) add(ctx context.Context, w *store.Writer, lookup *store.Reader, e *entry.Entry) (id string, prior []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("entry panicked: %v", p)
		}
	}()

	if err := e.Validate(); err != nil {
		return "", nil, err
	}
	prior, err = lookup.Lookup(ctx, e.DeletionQuery())
	if err != nil {
		return "", nil, err
	}
	doc, err := e.Materialize(ctx, u.extractor)
	if err != nil {
		return "", nil, err
	}
	if doc.FulltextErr != nil {
		u.logger.Error("entry_fulltext_failed",
			slog.String("key", e.Key().String()),
			slog.String("kind", string(e.Kind())),
			slog.String("error", doc.FulltextErr.Error()))
	}
	id, err = w.Add(doc)
	if err != nil {
		return "", nil, err
	}
	return id, prior, nil
}

// sweep opens a deletion reader on the committed index. It removes ids
// left over from earlier cycles, and any document that still shares a key
// with a survivor of this cycle. On failure it returns the IDs still to be
// removed.
func (u *Updater) sweep(ctx context.Context, ids []string, survivors map[entry.Key]string) (int, []string, error) {
	if len(ids) == 0 && len(survivors) == 0 {
		return 0, nil, nil
	}
	del, err := ierrors.RetryWithResult(ctx, u.retryConfig(), func() (*store.DeletionReader, error) {
		return u.store.OpenDeletionReader()
	})
	if err != nil {
		return 0, ids, err
	}
	defer func() { _ = del.Close() }()

	for key, keep := range survivors {
		found, err := del.Lookup(ctx, entry.KeyQuery(key))
		if err != nil {
			return 0, ids, err
		}
		for _, id := range found {
			if id != keep {
				ids = append(ids, id)
			}
		}
	}
	n, err := del.Delete(ctx, ids)
	if err != nil {
		return 0, ids, err
	}
	return n, nil, nil
}

// ClearIndex removes every document. It waits for any running cycle to
// finish first.
func (u *Updater) ClearIndex(ctx context.Context) error {
	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()

	w, err := ierrors.RetryWithResult(ctx, u.retryConfig(), func() (*store.Writer, error) {
		return u.store.OpenWriter(ctx, true)
	})
	if err != nil {
		u.logger.Error("index_clear_failed", slog.String("error", err.Error()))
		return err
	}
	cleared := w.Cleared()
	if err := w.Close(context.WithoutCancel(ctx), u.opts.Compact); err != nil {
		u.logger.Error("index_clear_failed", slog.String("error", err.Error()))
		return err
	}
	u.pendingDeletes = nil
	gen := u.store.Publish().Generation
	u.logger.Info("index_cleared",
		slog.Int("documents", cleared),
		slog.Uint64("generation", gen))
	return nil
}
