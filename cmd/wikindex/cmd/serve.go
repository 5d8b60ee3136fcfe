package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/content/fsstore"
	"github.com/Aman-CERP/wikindex/internal/notify"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the index worker, change listeners and HTTP API",
		Long: `Run the background index worker together with the configured change
listeners (filesystem watcher, Kafka, Redis) and an HTTP API:

  GET  /search?q=&wiki=&lang=&kind=&offset=&limit=
  GET  /status
  GET  /metrics
  POST /rebuild`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// runServe runs until ctx is cancelled. A non-nil ready receives the bound
// listener address once the HTTP server accepts connections.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ready chan<- string) error {
	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	if async.HasIncompleteLock(a.dataDir()) {
		logger.Warn("rebuild_incomplete",
			slog.String("data_dir", a.dataDir()),
			slog.String("hint", "a previous rebuild did not finish; run POST /rebuild or 'wikindex rebuild'"))
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	listeners, err := startListeners(ctx, cfg, a)
	if err != nil {
		_ = ln.Close()
		return err
	}

	runner := a.newRebuildRunner()
	srv := newServer(ctx, a, runner)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: shutdownTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.updater.Run(gctx)
		return nil
	})
	for _, l := range listeners {
		g.Go(func() error {
			if err := l.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s listener: %w", l.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		runner.Stop()
		a.updater.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	logger.Info("serve_started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("listeners", len(listeners)))
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wikindex listening on %s\n", ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	err = g.Wait()
	for _, l := range listeners {
		if l.close != nil {
			_ = l.close()
		}
	}
	<-a.updater.Done()

	// Entries queued after the last cycle would otherwise be lost.
	if !a.queue.IsEmpty() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if _, derr := a.updater.Drain(drainCtx); derr != nil {
			logger.Warn("final_drain_failed", slog.String("error", derr.Error()))
		}
		cancel()
	}
	logger.Info("serve_stopped")
	return err
}

// listener is one change-notification adapter started by serve.
type listener struct {
	name  string
	run   func(ctx context.Context) error
	close func() error
}

// startListeners builds the change adapters enabled in cfg. Their events
// are turned into queue entries by one shared notify.Handler.
func startListeners(ctx context.Context, cfg *config.Config, a *app) ([]listener, error) {
	handler := notify.NewHandler(a.source, a.queue, a.logger)
	var out []listener

	if cfg.Notify.Watch {
		fs, ok := a.source.(*fsstore.Store)
		if !ok {
			return nil, fmt.Errorf("notify.watch requires the fs source")
		}
		w := notify.NewFSWatcher(fs, handler, notify.DefaultDebounceWindow, a.logger)
		out = append(out, listener{name: "fs", run: w.Run})
	}

	// Redis connects eagerly, so it goes before anything that would need
	// closing on failure.
	if cfg.Notify.Redis.Addr != "" {
		r, err := notify.NewRedisListener(ctx, notify.RedisConfig{
			Addr:    cfg.Notify.Redis.Addr,
			Channel: cfg.Notify.Redis.Channel,
		}, handler, a.logger)
		if err != nil {
			return nil, err
		}
		out = append(out, listener{name: "redis", run: r.Run, close: r.Close})
	}

	if len(cfg.Notify.Kafka.Brokers) > 0 {
		k := notify.NewKafkaListener(notify.KafkaConfig{
			Brokers: cfg.Notify.Kafka.Brokers,
			Topic:   cfg.Notify.Kafka.Topic,
			Group:   cfg.Notify.Kafka.Group,
		}, handler, a.logger)
		out = append(out, listener{name: "kafka", run: k.Run})
	}
	return out, nil
}
