package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/wikindex/internal/async"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/internal/search"
	"github.com/Aman-CERP/wikindex/internal/updater"
	"github.com/Aman-CERP/wikindex/pkg/version"
)

// maxTrackedClients bounds the per-client limiter table.
const maxTrackedClients = 4096

// server exposes the query side and worker state over HTTP.
type server struct {
	ctx      context.Context
	app      *app
	runner   *async.Runner
	limiters *clientLimiters
	logger   *slog.Logger
}

// statusResponse is the /status body.
type statusResponse struct {
	Version      string               `json:"version"`
	Index        *search.Stats        `json:"index"`
	QueueDepth   int                  `json:"queue_depth"`
	UpdaterState string               `json:"updater_state"`
	LastCycle    *updater.CycleResult `json:"last_cycle,omitempty"`
	Rebuild      *async.Snapshot      `json:"rebuild,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// newServer creates the HTTP surface. ctx bounds background rebuilds started
// through POST /rebuild; runner may be nil to disable that endpoint.
func newServer(ctx context.Context, a *app, runner *async.Runner) *server {
	return &server{
		ctx:      ctx,
		app:      a,
		runner:   runner,
		limiters: newClientLimiters(a.cfg.Server.RateLimit),
		logger:   a.logger.With(slog.String("component", "http")),
	}
}

// Handler returns the routed, rate-limited handler.
func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", s.app.metrics.Handler())
	mux.HandleFunc("POST /rebuild", s.handleRebuild)
	return s.limit(mux)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := search.Query{
		Text:     params.Get("q"),
		Wiki:     params.Get("wiki"),
		Language: params.Get("lang"),
		Kind:     params.Get("kind"),
		Key:      params.Get("key"),
	}
	var err error
	if q.Offset, err = intParam(params.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, ierrors.New(ierrors.ErrCodeInvalidQuery, "offset must be an integer", err))
		return
	}
	if q.Limit, err = intParam(params.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, ierrors.New(ierrors.ErrCodeInvalidQuery, "limit must be an integer", err))
		return
	}

	page, err := s.app.search.Search(r.Context(), q)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.search.Stats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := statusResponse{
		Version:      version.Short(),
		Index:        stats,
		QueueDepth:   s.app.queue.Len(),
		UpdaterState: s.app.updater.State().String(),
	}
	if last, ok := s.app.updater.LastCycle(); ok {
		resp.LastCycle = &last
	}
	if s.runner != nil {
		snap := s.runner.Progress().Snapshot()
		resp.Rebuild = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleRebuild(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusNotImplemented, errors.New("rebuild is not available"))
		return
	}
	if err := s.runner.Start(s.ctx); err != nil {
		if errors.Is(err, async.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("rebuild_requested")
	writeJSON(w, http.StatusAccepted, s.runner.Progress().Snapshot())
}

// limit rejects clients that exceed their request budget.
func (s *server) limit(next http.Handler) http.Handler {
	if s.limiters == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.allow(clientID(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientLimiters keeps one token bucket per client address.
type clientLimiters struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	buckets *lru.Cache[string, *rate.Limiter]
}

// newClientLimiters returns nil when perSec disables limiting.
func newClientLimiters(perSec float64) *clientLimiters {
	if perSec <= 0 {
		return nil
	}
	buckets, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		return nil
	}
	return &clientLimiters{
		perSec:  rate.Limit(perSec),
		burst:   max(1, int(perSec*2)),
		buckets: buckets,
	}
}

func (c *clientLimiters) allow(client string) bool {
	c.mu.Lock()
	lim, ok := c.buckets.Get(client)
	if !ok {
		lim = rate.NewLimiter(c.perSec, c.burst)
		c.buckets.Add(client, lim)
	}
	c.mu.Unlock()
	return lim.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps index error codes to HTTP status codes.
func statusFor(err error) int {
	switch ierrors.GetCode(err) {
	case ierrors.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case ierrors.ErrCodeIndexClosed:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: ierrors.GetCode(err)})
}

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second
