package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/config"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/pkg/version"
)

// newTestApp opens the fixture's index and source and runs one rebuild.
func newTestApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	f := newWikiFixture(t)
	cfg := f.config(t)
	if mutate != nil {
		mutate(cfg)
	}
	a, err := openApp(context.Background(), cfg, true)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = a.rebuilder().Rebuild(context.Background())
	require.NoError(t, err)
	return a
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Search(t *testing.T) {
	// Given: a server over a rebuilt index
	a := newTestApp(t, nil)
	h := newServer(context.Background(), a, nil).Handler()

	// When: searching with a namespace filter
	rec := get(t, h, "/search?q=handbook&wiki=w1&limit=5")

	// Then: the home page is returned as JSON
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var page searchJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, uint64(1), page.Total)
	assert.Equal(t, "Home", page.Results[0].Name)
	assert.Equal(t, "page", page.Results[0].Kind)
}

func TestServer_SearchRejectsBadParameters(t *testing.T) {
	a := newTestApp(t, nil)
	h := newServer(context.Background(), a, nil).Handler()

	tests := []struct {
		name   string
		target string
	}{
		{name: "unknown kind", target: "/search?q=x&kind=folder"},
		{name: "non-numeric offset", target: "/search?q=x&offset=ten"},
		{name: "non-numeric limit", target: "/search?q=x&limit=lots"},
		{name: "negative offset", target: "/search?q=x&offset=-1"},
		{name: "malformed key", target: "/search?key=nocolon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, ierrors.ErrCodeInvalidQuery, body.Code)
		})
	}
}

func TestServer_Status(t *testing.T) {
	// Given: a server with a rebuild runner
	a := newTestApp(t, nil)
	runner := async.NewRunner("", async.NewProgress(), nil)
	h := newServer(context.Background(), a, runner).Handler()

	// When: requesting status
	rec := get(t, h, "/status")

	// Then: index counts and worker state are reported
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Version string `json:"version"`
		Index   struct {
			Documents  uint64            `json:"documents"`
			Namespaces map[string]uint64 `json:"namespaces"`
		} `json:"index"`
		QueueDepth   int    `json:"queue_depth"`
		UpdaterState string `json:"updater_state"`
		LastCycle    *struct {
			Added int `json:"added"`
		} `json:"last_cycle"`
		Rebuild *async.Snapshot `json:"rebuild"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, version.Short(), body.Version)
	assert.Equal(t, uint64(fixtureEntries), body.Index.Documents)
	assert.Equal(t, uint64(3), body.Index.Namespaces["w1"])
	assert.Equal(t, 0, body.QueueDepth)
	assert.Equal(t, "idle", body.UpdaterState)
	require.NotNil(t, body.LastCycle)
	assert.Equal(t, fixtureEntries, body.LastCycle.Added)
	require.NotNil(t, body.Rebuild)
	assert.Equal(t, string(async.StatusIdle), body.Rebuild.Status)
}

func TestServer_Metrics(t *testing.T) {
	// Given: a server whose index has completed one cycle and served a query
	a := newTestApp(t, nil)
	h := newServer(context.Background(), a, nil).Handler()
	require.Equal(t, http.StatusOK, get(t, h, "/search?q=handbook").Code)

	// When: scraping metrics
	rec := get(t, h, "/metrics")

	// Then: the index collectors are exposed
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wikindex_queue_depth")
	assert.Contains(t, body, `wikindex_cycles_total{result="ok"}`)
	assert.Contains(t, body, "wikindex_documents_indexed_total 5")
	assert.Contains(t, body, "wikindex_search_latency_seconds")
}

func TestServer_RebuildStartsBackgroundRun(t *testing.T) {
	// Given: a server with the real rebuild runner
	a := newTestApp(t, nil)
	runner := a.newRebuildRunner()
	h := newServer(context.Background(), a, runner).Handler()

	// When: requesting a rebuild
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebuild", nil))

	// Then: it is accepted and completes with the same document count
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, runner.Wait())
	docs, err := a.store.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(fixtureEntries), docs)
	assert.Equal(t, string(async.StatusDone), runner.Progress().Snapshot().Status)
	assert.False(t, async.HasIncompleteLock(a.dataDir()))
}

func TestServer_RebuildConflictWhileRunning(t *testing.T) {
	// Given: a runner whose run blocks until released
	a := newTestApp(t, nil)
	release := make(chan struct{})
	runner := async.NewRunner("", async.NewProgress(), func(ctx context.Context, _ *async.Progress) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	h := newServer(context.Background(), a, runner).Handler()
	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebuild", nil))
		return rec.Code
	}

	// When: posting twice
	first := post()
	second := post()
	close(release)

	// Then: the second request conflicts with the first
	assert.Equal(t, http.StatusAccepted, first)
	assert.Equal(t, http.StatusConflict, second)
	require.NoError(t, runner.Wait())
}

func TestServer_RebuildUnavailableWithoutRunner(t *testing.T) {
	a := newTestApp(t, nil)
	h := newServer(context.Background(), a, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebuild", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	a := newTestApp(t, nil)
	h := newServer(context.Background(), a, nil).Handler()

	rec := get(t, h, "/rebuild")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_RateLimitPerClient(t *testing.T) {
	// Given: one request per second with a burst of two
	a := newTestApp(t, func(c *config.Config) { c.Server.RateLimit = 1 })
	h := newServer(context.Background(), a, nil).Handler()
	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// When: one client sends three requests at once
	codes := []int{from("10.0.0.1:1000"), from("10.0.0.1:1001"), from("10.0.0.1:1002")}

	// Then: the third is rejected, and another client is unaffected
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, http.StatusOK, from("10.0.0.2:1000"))
}

func TestNewClientLimiters_DisabledWhenNotPositive(t *testing.T) {
	assert.Nil(t, newClientLimiters(0))
	assert.Nil(t, newClientLimiters(-1))
	assert.NotNil(t, newClientLimiters(0.5))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid query", err: ierrors.New(ierrors.ErrCodeInvalidQuery, "bad", nil), want: http.StatusBadRequest},
		{name: "index closed", err: ierrors.New(ierrors.ErrCodeIndexClosed, "closed", nil), want: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestServer_SearchOverRealListener(t *testing.T) {
	// Given: the handler behind a real HTTP server
	a := newTestApp(t, nil)
	ts := httptest.NewServer(newServer(context.Background(), a, nil).Handler())
	defer ts.Close()

	// When: querying over the network
	resp, err := http.Get(ts.URL + "/search?q=installation&kind=object")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Then: the object entry matches on its field value
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page searchJSON
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, uint64(1), page.Total)
	assert.Equal(t, "object", page.Results[0].Kind)
	assert.Equal(t, "w2", page.Results[0].Wiki)
}
