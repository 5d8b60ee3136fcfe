package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/internal/metrics"
	"github.com/Aman-CERP/wikindex/internal/store"
)

// Defaults for Options.
const (
	DefaultCacheSize  = 512
	DefaultMaxResults = 50
	DefaultLimit      = 10

	// facetSize bounds the number of namespaces reported by Stats.
	facetSize = 10000
	// byKeyLimit bounds ByKey; more than one live document per key is
	// already an anomaly.
	byKeyLimit = 100
)

// ViewProvider hands out the currently published index view.
type ViewProvider interface {
	Current() *store.View
}

// Options configures a Service.
type Options struct {
	// CacheSize is the number of result pages kept (default: 512).
	// Negative disables caching.
	CacheSize int
	// MaxResults caps Query.Limit (default: 50).
	MaxResults int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type cacheKey struct {
	generation uint64
	query      Query
}

// Service runs queries against the published view. It never blocks on
// indexing: each query reads whatever view is current when it starts.
type Service struct {
	views   ViewProvider
	mapper  *Mapper
	cache   *lru.Cache[cacheKey, *Page]
	max     int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a query service.
func NewService(views ViewProvider, mapper *Mapper, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = NewMapper(nil, logger)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	s := &Service{
		views:   views,
		mapper:  mapper,
		max:     opts.MaxResults,
		logger:  logger.With(slog.String("component", "search")),
		metrics: opts.Metrics,
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[cacheKey, *Page](size)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Search runs q against the current view. Pages are cached per view
// generation, so a publish makes earlier entries unreachable.
func (s *Service) Search(ctx context.Context, q Query) (*Page, error) {
	start := time.Now()
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}
	view, err := s.view()
	if err != nil {
		return nil, err
	}

	ck := cacheKey{generation: view.Generation, query: q}
	if s.cache != nil {
		if p, ok := s.cache.Get(ck); ok {
			s.metrics.ObserveSearch(true, time.Since(start))
			hit := *p
			hit.Cached = true
			return &hit, nil
		}
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", entry.FieldKey})
	res, err := view.Index.SearchInContext(ctx, req)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("text", q.Text),
			slog.String("error", err.Error()))
		return nil, ierrors.Wrap(ierrors.ErrCodeIndexOpen, err)
	}

	page := &Page{
		Query:      q,
		Total:      res.Total,
		Results:    make([]*Result, 0, len(res.Hits)),
		Generation: view.Generation,
	}
	for _, hit := range res.Hits {
		page.Results = append(page.Results, s.mapper.Map(ctx, hit))
	}
	page.Took = time.Since(start)

	if s.cache != nil {
		s.cache.Add(ck, page)
	}
	s.metrics.ObserveSearch(false, page.Took)
	s.logger.Debug("search_complete",
		slog.String("text", q.Text),
		slog.Uint64("total", page.Total),
		slog.Int("returned", len(page.Results)),
		slog.Uint64("generation", page.Generation),
		slog.Duration("took", page.Took))
	return page, nil
}

// ByKey returns every live document stored under key. After a completed
// drain cycle that is at most one.
func (s *Service) ByKey(ctx context.Context, key entry.Key) ([]*Result, error) {
	view, err := s.view()
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(entry.KeyQuery(key), byKeyLimit, 0, false)
	req.Fields = []string{"*"}
	res, err := view.Index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeIndexOpen, err)
	}
	out := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, s.mapper.Map(ctx, hit))
	}
	return out, nil
}

// Stats reports document counts of the current view, per namespace and
// per kind.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	view, err := s.view()
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	req.AddFacet(entry.FieldWiki, bleve.NewFacetRequest(entry.FieldWiki, facetSize))
	req.AddFacet(entry.FieldKind, bleve.NewFacetRequest(entry.FieldKind, facetSize))
	res, err := view.Index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeIndexOpen, err)
	}
	return &Stats{
		Generation:  view.Generation,
		PublishedAt: view.PublishedAt,
		Documents:   res.Total,
		Namespaces:  facetCounts(res, entry.FieldWiki),
		Kinds:       facetCounts(res, entry.FieldKind),
	}, nil
}

// Purge drops every cached page.
func (s *Service) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) view() (*store.View, error) {
	v := s.views.Current()
	if v == nil || v.Index == nil {
		return nil, ierrors.New(ierrors.ErrCodeIndexClosed, "no published index view", nil)
	}
	return v, nil
}

func (s *Service) normalize(q Query) (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Wiki = strings.TrimSpace(q.Wiki)
	if q.Language != "" {
		q.Language = entry.NormalizeLanguage(q.Language)
	}
	if q.Kind != "" {
		k, ok := entry.ParseKind(strings.ToLower(q.Kind))
		if !ok {
			return q, ierrors.New(ierrors.ErrCodeInvalidQuery, "unknown kind "+q.Kind, nil)
		}
		q.Kind = string(k)
	}
	if q.Key != "" {
		k, ok := entry.ParseKey(q.Key)
		if !ok {
			return q, ierrors.New(ierrors.ErrCodeInvalidQuery, "malformed key "+q.Key, nil)
		}
		q.Key = entry.NewKey(k.Wiki, k.Container, k.Name, k.Language).String()
	}
	if q.Offset < 0 {
		return q, ierrors.New(ierrors.ErrCodeInvalidQuery, "negative offset", nil)
	}
	if q.Limit <= 0 {
		q.Limit = min(DefaultLimit, s.max)
	}
	if q.Limit > s.max {
		q.Limit = s.max
	}
	return q, nil
}

// buildQuery matches Text against the full text and every display field,
// and adds one exact term filter per structured field.
func buildQuery(q Query) query.Query {
	var must []query.Query
	if q.Text == "" {
		must = append(must, bleve.NewMatchAllQuery())
	} else {
		fields := append([]string{entry.FieldFulltext}, entry.TextFields...)
		should := make([]query.Query, 0, len(fields))
		for _, f := range fields {
			mq := bleve.NewMatchQuery(q.Text)
			mq.SetField(f)
			should = append(should, mq)
		}
		must = append(must, bleve.NewDisjunctionQuery(should...))
	}
	for field, value := range map[string]string{
		entry.FieldWiki:     q.Wiki,
		entry.FieldLanguage: q.Language,
		entry.FieldKind:     q.Kind,
		entry.FieldKey:      q.Key,
	} {
		if value == "" {
			continue
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		must = append(must, tq)
	}
	if len(must) == 1 {
		return must[0]
	}
	return bleve.NewConjunctionQuery(must...)
}

func facetCounts(res *bleve.SearchResult, name string) map[string]uint64 {
	out := make(map[string]uint64)
	fr, ok := res.Facets[name]
	if !ok || fr.Terms == nil {
		return out
	}
	for _, tf := range fr.Terms.Terms() {
		out[tf.Term] = uint64(tf.Count)
	}
	return out
}
