// Package rebuild repopulates the index from the content source: it
// truncates the index, then enumerates every namespace and enqueues each
// unit with its translations, attachments and objects.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Clearer truncates the index, waiting for any running cycle first.
type Clearer interface {
	ClearIndex(ctx context.Context) error
}

// Enqueuer accepts entries for indexing.
type Enqueuer interface {
	Enqueue(e *entry.Entry)
}

// Options configures a Rebuilder.
type Options struct {
	// Parallelism is how many namespaces are enumerated at once
	// (default: 1, which keeps enqueue order deterministic).
	Parallelism int
	// Drain, when set, runs after enumeration so that Rebuild returns
	// with the index populated.
	Drain  func(ctx context.Context) error
	Logger *slog.Logger
}

// Rebuilder performs full rebuilds.
type Rebuilder struct {
	source  content.Source
	clearer Clearer
	queue   Enqueuer
	opts    Options
	logger  *slog.Logger
}

// New creates a rebuilder.
func New(source content.Source, clearer Clearer, queue Enqueuer, opts Options) *Rebuilder {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{
		source:  source,
		clearer: clearer,
		queue:   queue,
		opts:    opts,
		logger:  logger.With(slog.String("component", "rebuild")),
	}
}

// Rebuild runs a full rebuild without progress tracking.
func (r *Rebuilder) Rebuild(ctx context.Context) (*Report, error) {
	return r.run(ctx, nil)
}

// Run is an async.RunFunc. It fails when the rebuild fails systemically;
// per-unit failures only show in the logs and the returned report.
func (r *Rebuilder) Run(ctx context.Context, progress *async.Progress) error {
	_, err := r.run(ctx, progress)
	return err
}

func (r *Rebuilder) run(ctx context.Context, progress *async.Progress) (*Report, error) {
	start := time.Now()
	report := newReport()
	if progress == nil {
		progress = async.NewProgress()
	}
	r.logger.Info("rebuild_started", slog.Int("parallelism", r.opts.Parallelism))

	progress.SetStage(async.StageClearing)
	if err := r.clearer.ClearIndex(ctx); err != nil {
		return r.fail(report, "clear index", err)
	}

	progress.SetStage(async.StageEnumerating)
	namespaces, err := r.source.Namespaces(ctx)
	if err != nil {
		return r.fail(report, "list namespaces", err)
	}
	progress.SetNamespaces(len(namespaces))
	for _, ns := range namespaces {
		report.Namespaces[ns] = &NamespaceReport{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for _, ns := range namespaces {
		nr := report.Namespaces[ns]
		g.Go(func() error {
			err := r.namespace(gctx, ns, nr, progress)
			progress.NamespaceDone()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return r.fail(report, "enumerate", err)
	}

	if r.opts.Drain != nil {
		progress.SetStage(async.StageDraining)
		if err := r.opts.Drain(ctx); err != nil {
			return r.fail(report, "drain", err)
		}
	}

	r.logger.Info("rebuild_complete",
		slog.Int("namespaces", len(namespaces)),
		slog.Int("queued", report.Total()),
		slog.Int("failed_units", report.FailedUnits()),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

func (r *Rebuilder) fail(report *Report, op string, err error) (*Report, error) {
	report.Failed = true
	report.err = ierrors.New(ierrors.ErrCodeRebuildFailed, fmt.Sprintf("rebuild: %s: %v", op, err), err)
	r.logger.Error("rebuild_failed",
		slog.String("op", op),
		slog.String("error", err.Error()))
	return report, report.err
}

// namespace enqueues every unit of ns. Only cancellation stops it early.
func (r *Rebuilder) namespace(ctx context.Context, ns string, nr *NamespaceReport, progress *async.Progress) error {
	refs, err := r.source.Units(ctx, ns)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		nr.Errors = append(nr.Errors, fmt.Errorf("namespace %s: %w", ns, err))
		r.logger.Warn("rebuild_namespace_skipped",
			slog.String("namespace", ns),
			slog.String("error", err.Error()))
		return nil
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, partial, err := r.collect(ctx, ref)
		if err != nil {
			nr.Failed++
			nr.Errors = append(nr.Errors, fmt.Errorf("unit %s: %w", ref, err))
			r.logger.Warn("rebuild_unit_skipped",
				slog.String("unit", ref.String()),
				slog.String("error", err.Error()))
			continue
		}
		if len(partial) > 0 {
			nr.Partial++
			for _, perr := range partial {
				nr.Errors = append(nr.Errors, fmt.Errorf("unit %s: %w", ref, perr))
				r.logger.Warn("rebuild_unit_partial",
					slog.String("unit", ref.String()),
					slog.String("error", perr.Error()))
			}
		}
		entries := batch.entries()
		for _, e := range entries {
			r.queue.Enqueue(e)
		}
		nr.Units++
		nr.Translations += len(batch.translations)
		nr.Attachments += len(batch.attachments)
		nr.Objects += len(batch.objects)
		progress.AddQueued(len(entries))
	}
	return nil
}

// unitBatch holds every entry of one unit, fetched before anything is
// enqueued.
type unitBatch struct {
	page         *entry.Entry
	translations []*entry.Entry
	attachments  []*entry.Entry
	objects      []*entry.Entry
}

func (b *unitBatch) entries() []*entry.Entry {
	out := make([]*entry.Entry, 0, 1+len(b.translations)+len(b.attachments)+len(b.objects))
	out = append(out, b.page)
	out = append(out, b.translations...)
	out = append(out, b.attachments...)
	return append(out, b.objects...)
}

// collect fetches a unit and its dependents. Only a failed unit fetch is
// fatal; a failed dependent listing is returned in partial and the rest of
// the unit, primary page included, is still collected.
func (r *Rebuilder) collect(ctx context.Context, ref content.UnitRef) (b *unitBatch, partial []error, err error) {
	u, err := r.source.Unit(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	b = &unitBatch{page: content.PageEntry(u)}

	if translations, err := r.source.Translations(ctx, ref); err != nil {
		partial = append(partial, fmt.Errorf("translations: %w", err))
	} else {
		for _, t := range translations {
			b.translations = append(b.translations, content.PageEntry(t))
		}
	}

	if attachments, err := r.source.Attachments(ctx, ref); err != nil {
		partial = append(partial, fmt.Errorf("attachments: %w", err))
	} else {
		for _, a := range attachments {
			b.attachments = append(b.attachments, content.AttachmentEntry(u, a))
		}
	}

	if objects, err := r.source.Objects(ctx, ref); err != nil {
		partial = append(partial, fmt.Errorf("objects: %w", err))
	} else {
		b.objects = content.ObjectEntries(u, objects)
	}
	return b, partial, nil
}
