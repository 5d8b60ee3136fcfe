package rebuild

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/content/fsstore"
	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/internal/queue"
	"github.com/Aman-CERP/wikindex/internal/search"
	"github.com/Aman-CERP/wikindex/internal/store"
	"github.com/Aman-CERP/wikindex/internal/updater"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var modified = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// seedTwoNamespaces writes w1 with three pages (one with two translations)
// and w2 with three pages (one with an attachment).
func seedTwoNamespaces(t *testing.T) *fsstore.Store {
	t.Helper()
	src := fsstore.New(t.TempDir(), "")
	for _, ns := range []string{"w1", "w2"} {
		for _, name := range []string{"A", "B", "C"} {
			ref := content.UnitRef{Wiki: ns, Container: "Space", Name: name}
			require.NoError(t, src.WriteUnit(&content.Unit{
				Ref: ref, Language: "en", Title: name, Content: "content of " + name,
				Author: "alice", Modified: modified,
			}, false))
		}
	}
	a := content.UnitRef{Wiki: "w1", Container: "Space", Name: "A"}
	for _, lang := range []string{"fr", "de"} {
		require.NoError(t, src.WriteUnit(&content.Unit{Ref: a, Language: lang, Content: "translated", Author: "alice", Modified: modified}, true))
	}
	require.NoError(t, src.WriteAttachment(content.UnitRef{Wiki: "w2", Container: "Space", Name: "B"}, "notes.txt", []byte("attached notes")))
	return src
}

type pipeline struct {
	store   *store.Store
	queue   *queue.Queue
	updater *updater.Updater
	search  *search.Service
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	st, err := store.OpenMemory(quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	q := queue.New()
	u := updater.New(st, q, nil, updater.Options{Logger: quietLogger(), RetryDelay: time.Millisecond})
	svc, err := search.NewService(st, nil, search.Options{Logger: quietLogger(), CacheSize: -1})
	require.NoError(t, err)
	return &pipeline{store: st, queue: q, updater: u, search: svc}
}

func (p *pipeline) drain(ctx context.Context) error {
	_, err := p.updater.Drain(ctx)
	return err
}

func TestRebuild_TwoNamespacesCountsNine(t *testing.T) {
	// Given: two namespaces of three units, two translations and one attachment
	src := seedTwoNamespaces(t)
	p := newPipeline(t)
	r := New(src, p.updater, p.queue, Options{Logger: quietLogger()})

	// When: rebuilt
	report, err := r.Rebuild(context.Background())

	// Then: nine entries were queued
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 9, report.Total())
	assert.Equal(t, 9, p.queue.Len())
	assert.Equal(t, &NamespaceReport{Units: 3, Translations: 2}, report.Namespaces["w1"])
	assert.Equal(t, &NamespaceReport{Units: 3, Attachments: 1}, report.Namespaces["w2"])

	// When: the queue is drained
	require.NoError(t, p.drain(context.Background()))

	// Then: each namespace holds its expected documents
	w1, err := p.search.Search(context.Background(), search.Query{Wiki: "w1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), w1.Total)
	w2, err := p.search.Search(context.Background(), search.Query{Wiki: "w2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), w2.Total)
}

func TestRebuild_EnqueueOrder(t *testing.T) {
	// Given: one unit with a translation, an attachment and an object
	src := fsstore.New(t.TempDir(), "")
	ref := content.UnitRef{Wiki: "w1", Container: "Space", Name: "A"}
	require.NoError(t, src.WriteUnit(&content.Unit{Ref: ref, Language: "en", Content: "x"}, false))
	require.NoError(t, src.WriteUnit(&content.Unit{Ref: ref, Language: "fr", Content: "y"}, true))
	require.NoError(t, src.WriteAttachment(ref, "a.txt", []byte("z")))
	require.NoError(t, src.WriteObjects(ref, []*content.Object{{ClassName: "Tag", Fields: map[string]string{"k": "v"}}}))
	p := newPipeline(t)

	// When: rebuilt
	_, err := New(src, p.updater, p.queue, Options{Logger: quietLogger()}).Rebuild(context.Background())
	require.NoError(t, err)

	// Then: page, translation, attachment, object
	var kinds []entry.Kind
	for _, e := range p.queue.DequeueAll() {
		kinds = append(kinds, e.Kind())
	}
	assert.Equal(t, []entry.Kind{entry.KindPage, entry.KindPage, entry.KindAttachment, entry.KindObject}, kinds)
}

func TestRebuild_Idempotent(t *testing.T) {
	// Given: a rebuilt and drained index
	src := seedTwoNamespaces(t)
	p := newPipeline(t)
	r := New(src, p.updater, p.queue, Options{Logger: quietLogger(), Drain: p.drain})
	ctx := context.Background()

	_, err := r.Rebuild(ctx)
	require.NoError(t, err)
	first := snapshot(t, p)

	// When: rebuilt again with unchanged content
	_, err = r.Rebuild(ctx)
	require.NoError(t, err)
	second := snapshot(t, p)

	// Then: the same keys with the same field values
	assert.Len(t, first, 9)
	assert.Equal(t, first, second)
}

// snapshot returns every indexed result keyed by identity, with the
// per-document fields that change between writes zeroed.
func snapshot(t *testing.T, p *pipeline) map[string]search.Result {
	t.Helper()
	page, err := p.search.Search(context.Background(), search.Query{Limit: 50})
	require.NoError(t, err)
	out := make(map[string]search.Result, len(page.Results))
	for _, r := range page.Results {
		c := *r
		c.ID = ""
		c.Score = 0
		out[r.Key.String()] = c
	}
	return out
}

type failingSource struct {
	*fsstore.Store
	failUnit content.UnitRef
}

func (f *failingSource) Unit(ctx context.Context, ref content.UnitRef) (*content.Unit, error) {
	if ref == f.failUnit {
		return nil, errors.New("fetch failed")
	}
	return f.Store.Unit(ctx, ref)
}

func TestRebuild_UnitFailureSkipsUnit(t *testing.T) {
	// Given: a source that cannot fetch w1/Space/A
	src := &failingSource{
		Store:    seedTwoNamespaces(t),
		failUnit: content.UnitRef{Wiki: "w1", Container: "Space", Name: "A"},
	}
	p := newPipeline(t)

	// When: rebuilt
	report, err := New(src, p.updater, p.queue, Options{Logger: quietLogger()}).Rebuild(context.Background())

	// Then: the unit and its translations are skipped and the rest continues
	require.NoError(t, err)
	assert.False(t, report.Failed)
	assert.Equal(t, 1, report.Namespaces["w1"].Failed)
	assert.Equal(t, 2, report.Namespaces["w1"].Units)
	assert.Equal(t, 0, report.Namespaces["w1"].Translations)
	assert.Equal(t, 6, report.Total())
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "fetch failed")
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Namespaces(ctx context.Context) ([]string, error) {
	args := m.Called()
	ns, _ := args.Get(0).([]string)
	return ns, args.Error(1)
}

func (m *mockSource) Units(ctx context.Context, ns string) ([]content.UnitRef, error) {
	args := m.Called(ns)
	refs, _ := args.Get(0).([]content.UnitRef)
	return refs, args.Error(1)
}

func (m *mockSource) Unit(ctx context.Context, ref content.UnitRef) (*content.Unit, error) {
	args := m.Called(ref)
	u, _ := args.Get(0).(*content.Unit)
	return u, args.Error(1)
}

func (m *mockSource) Translations(ctx context.Context, ref content.UnitRef) ([]*content.Unit, error) {
	args := m.Called(ref)
	us, _ := args.Get(0).([]*content.Unit)
	return us, args.Error(1)
}

func (m *mockSource) Attachments(ctx context.Context, ref content.UnitRef) ([]*content.Attachment, error) {
	args := m.Called(ref)
	as, _ := args.Get(0).([]*content.Attachment)
	return as, args.Error(1)
}

func (m *mockSource) Objects(ctx context.Context, ref content.UnitRef) ([]*content.Object, error) {
	args := m.Called(ref)
	objs, _ := args.Get(0).([]*content.Object)
	return objs, args.Error(1)
}

func (m *mockSource) AttachmentURL(ctx context.Context, key entry.Key, filename string) (string, error) {
	args := m.Called(key, filename)
	return args.String(0), args.Error(1)
}

type mockClearer struct {
	mock.Mock
}

func (m *mockClearer) ClearIndex(ctx context.Context) error {
	return m.Called().Error(0)
}

func TestRebuild_NamespaceEnumerationFailure(t *testing.T) {
	// Given: a source that cannot list namespaces
	src := &mockSource{}
	src.On("Namespaces").Return(nil, errors.New("db down"))
	clr := &mockClearer{}
	clr.On("ClearIndex").Return(nil)
	q := queue.New()

	// When: rebuilt
	report, err := New(src, clr, q, Options{Logger: quietLogger()}).Rebuild(context.Background())

	// Then: a typed failure instead of partial counts
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeRebuildFailed, ierrors.GetCode(err))
	assert.True(t, report.Failed)
	assert.Equal(t, 0, report.Total())
	assert.Error(t, report.Err())
	assert.True(t, q.IsEmpty())
	clr.AssertExpectations(t)
}

func TestRebuild_ClearFailureStopsEarly(t *testing.T) {
	src := &mockSource{}
	clr := &mockClearer{}
	clr.On("ClearIndex").Return(ierrors.ErrWriterLocked)

	report, err := New(src, clr, queue.New(), Options{Logger: quietLogger()}).Rebuild(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ierrors.ErrWriterLocked)
	assert.True(t, report.Failed)
	src.AssertNotCalled(t, "Namespaces")
}

func TestRebuild_UnitListFailureSkipsNamespace(t *testing.T) {
	// Given: one namespace that cannot be listed and one that can
	src := &mockSource{}
	ref := content.UnitRef{Wiki: "ok", Container: "S", Name: "P"}
	src.On("Namespaces").Return([]string{"broken", "ok"}, nil)
	src.On("Units", "broken").Return(nil, errors.New("timeout"))
	src.On("Units", "ok").Return([]content.UnitRef{ref}, nil)
	src.On("Unit", ref).Return(&content.Unit{Ref: ref}, nil)
	src.On("Translations", ref).Return(nil, nil)
	src.On("Attachments", ref).Return(nil, nil)
	src.On("Objects", ref).Return(nil, nil)
	clr := &mockClearer{}
	clr.On("ClearIndex").Return(nil)

	// When: rebuilt
	report, err := New(src, clr, queue.New(), Options{Logger: quietLogger()}).Rebuild(context.Background())

	// Then: the healthy namespace is complete
	require.NoError(t, err)
	assert.Equal(t, 1, report.Namespaces["ok"].Units)
	assert.Len(t, report.Namespaces["broken"].Errors, 1)
	assert.Equal(t, 1, report.Total())
}

func TestRebuild_DependentListingFailureKeepsPage(t *testing.T) {
	// Given: a unit whose attachments cannot be listed
	src := &mockSource{}
	ref := content.UnitRef{Wiki: "w1", Container: "S", Name: "P"}
	src.On("Namespaces").Return([]string{"w1"}, nil)
	src.On("Units", "w1").Return([]content.UnitRef{ref}, nil)
	src.On("Unit", ref).Return(&content.Unit{Ref: ref, Language: "en", Content: "body", Author: "alice", Modified: modified}, nil)
	src.On("Translations", ref).Return([]*content.Unit{{Ref: ref, Language: "fr", Content: "corps", Author: "alice", Modified: modified}}, nil)
	src.On("Attachments", ref).Return(nil, errors.New("blob store down"))
	src.On("Objects", ref).Return(nil, nil)
	clr := &mockClearer{}
	clr.On("ClearIndex").Return(nil)
	q := queue.New()

	// When: rebuilt
	report, err := New(src, clr, q, Options{Logger: quietLogger()}).Rebuild(context.Background())

	// Then: the page and its translation are queued and the failure is counted
	require.NoError(t, err)
	nr := report.Namespaces["w1"]
	assert.Equal(t, 1, nr.Units)
	assert.Equal(t, 1, nr.Translations)
	assert.Equal(t, 0, nr.Failed)
	assert.Equal(t, 1, nr.Partial)
	assert.Equal(t, 1, report.PartialUnits())
	assert.Equal(t, 2, q.Len())
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "attachments: blob store down")
}

func TestRebuild_ParallelNamespaces(t *testing.T) {
	src := seedTwoNamespaces(t)
	p := newPipeline(t)

	report, err := New(src, p.updater, p.queue, Options{Logger: quietLogger(), Parallelism: 4}).Rebuild(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 9, report.Total())
	assert.Equal(t, []string{"w1", "w2"}, report.Names())
	assert.Len(t, p.queue.DequeueAll(), 9)
}

func TestRebuild_RunTracksProgress(t *testing.T) {
	// Given: a runner around the rebuilder
	src := seedTwoNamespaces(t)
	p := newPipeline(t)
	r := New(src, p.updater, p.queue, Options{Logger: quietLogger(), Drain: p.drain})
	runner := async.NewRunner(t.TempDir(), nil, r.Run)

	// When: started and awaited
	require.NoError(t, runner.Start(context.Background()))
	require.NoError(t, runner.Wait())

	// Then: progress reflects the whole run
	snap := runner.Progress().Snapshot()
	assert.Equal(t, string(async.StatusDone), snap.Status)
	assert.Equal(t, 2, snap.NamespacesTotal)
	assert.Equal(t, 2, snap.NamespacesProcessed)
	assert.Equal(t, 9, snap.EntriesQueued)
	assert.True(t, p.queue.IsEmpty())
}

func TestRebuild_CancelledContext(t *testing.T) {
	src := seedTwoNamespaces(t)
	clr := &mockClearer{}
	clr.On("ClearIndex").Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(src, clr, queue.New(), Options{Logger: quietLogger()}).Rebuild(ctx)

	require.Error(t, err)
	assert.True(t, report.Failed)
}
