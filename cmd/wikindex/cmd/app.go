package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/content/fsstore"
	"github.com/Aman-CERP/wikindex/internal/content/sqlstore"
	"github.com/Aman-CERP/wikindex/internal/extract"
	"github.com/Aman-CERP/wikindex/internal/logging"
	"github.com/Aman-CERP/wikindex/internal/metrics"
	"github.com/Aman-CERP/wikindex/internal/queue"
	"github.com/Aman-CERP/wikindex/internal/rebuild"
	"github.com/Aman-CERP/wikindex/internal/search"
	"github.com/Aman-CERP/wikindex/internal/store"
	"github.com/Aman-CERP/wikindex/internal/updater"
)

// app wires the index components for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   *store.Store
	queue   *queue.Queue
	updater *updater.Updater
	search  *search.Service

	// source is nil unless the command asked for it.
	source  content.Source
	closers []func() error
}

// openApp opens the index and the query side. withSource also opens the
// configured content source and resolves attachment URLs through it.
func openApp(ctx context.Context, cfg *config.Config, withSource bool) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = store.Open(store.Options{Paths: cfg.Index.Paths, Logger: logging.WithComponent("store")})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.queue = queue.New(
		queue.WithDedup(queue.ParseDedupPolicy(cfg.Updater.Dedup)),
		queue.WithDepthObserver(a.metrics.SetQueueDepth),
	)

	extractor := extract.NewDefaultRegistry(extract.Options{
		TikaURL: cfg.Extract.TikaURL,
		Timeout: cfg.ExtractTimeout(),
		Logger:  logging.WithComponent("extract"),
	})
	a.updater = updater.New(a.store, a.queue, extractor, updater.Options{
		Interval:      cfg.UpdaterInterval(),
		WriterRetries: cfg.Updater.WriterRetries,
		Compact:       cfg.Index.Compact,
		Logger:        logging.WithComponent("updater"),
		Metrics:       a.metrics,
	})

	var resolver search.URLResolver = content.URLTemplate(cfg.Search.URLTemplate)
	if withSource {
		a.source, err = openSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := a.source.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
		resolver = a.source
	}

	searchLogger := logging.WithComponent("search")
	a.search, err = search.NewService(a.store, search.NewMapper(resolver, searchLogger), search.Options{
		CacheSize:  cfg.Search.CacheSize,
		MaxResults: cfg.Search.MaxResults,
		Logger:     searchLogger,
		Metrics:    a.metrics,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openSource opens the configured content source.
func openSource(ctx context.Context, cfg *config.Config) (content.Source, error) {
	switch cfg.Source.Type {
	case config.SourceFS:
		return fsstore.New(cfg.Source.Root, cfg.Search.URLTemplate), nil
	case config.SourceSQL:
		s, err := sqlstore.Open(ctx, cfg.Source.Driver, cfg.Source.DSN, cfg.Search.URLTemplate)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// rebuilder returns a rebuilder that drains the queue once enumeration ends.
func (a *app) rebuilder() *rebuild.Rebuilder {
	return rebuild.New(a.source, a.updater, a.queue, rebuild.Options{
		Parallelism: a.cfg.Rebuild.Parallelism,
		Drain: func(ctx context.Context) error {
			_, err := a.updater.Drain(ctx)
			return err
		},
		Logger: logging.WithComponent("rebuild"),
	})
}

// dataDir holds state next to the writable index, such as the rebuild marker.
func (a *app) dataDir() string {
	return filepath.Dir(a.cfg.Index.Paths[0])
}

// newRebuildRunner creates the background runner used by serve.
func (a *app) newRebuildRunner() *async.Runner {
	return async.NewRunner(a.dataDir(), async.NewProgress(), a.rebuilder().Run)
}

// Close releases everything in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close_failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}
