package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	bsearch "github.com/blevesearch/bleve/v2/search"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// URLResolver resolves download URLs for attachment hits.
type URLResolver interface {
	AttachmentURL(ctx context.Context, key entry.Key, filename string) (string, error)
}

// Mapper turns raw index hits into Results.
type Mapper struct {
	resolver URLResolver
	logger   *slog.Logger
}

// NewMapper creates a mapper. A nil resolver leaves attachment URLs empty.
func NewMapper(resolver URLResolver, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{resolver: resolver, logger: logger}
}

// Map rebuilds a Result from the stored fields of hit. Only the URL comes
// from outside the index; failing to resolve it is logged and leaves the
// URL empty.
func (m *Mapper) Map(ctx context.Context, hit *bsearch.DocumentMatch) *Result {
	f := hit.Fields
	r := &Result{
		ID:        hit.ID,
		Score:     hit.Score,
		Name:      str(f, entry.FieldName),
		Container: str(f, entry.FieldContainer),
		Wiki:      str(f, entry.FieldWiki),
		Language:  str(f, entry.FieldLanguage),
		Kind:      entry.Kind(str(f, entry.FieldKind)),
		Author:    str(f, entry.FieldAuthor),
		Creator:   str(f, entry.FieldCreator),
		Created:   m.date(hit.ID, f, entry.FieldCreated),
		Modified:  m.date(hit.ID, f, entry.FieldModified),
		Filename:  str(f, entry.FieldFilename),
		MIMEType:  str(f, entry.FieldMIMEType),
		Class:     str(f, entry.FieldClass),
	}

	if key, ok := entry.ParseKey(str(f, entry.FieldKey)); ok {
		r.Key = key
	} else {
		r.Key = entry.Key{Wiki: r.Wiki, Container: r.Container, Name: r.Name, Language: r.Language}
	}

	if r.Kind == entry.KindAttachment && m.resolver != nil && r.Filename != "" {
		url, err := m.resolver.AttachmentURL(ctx, r.Key, r.Filename)
		if err != nil {
			m.logger.Warn("attachment_url_failed",
				slog.String("key", r.Key.String()),
				slog.String("filename", r.Filename),
				slog.String("error", err.Error()))
		} else {
			r.URL = url
		}
	}
	return r
}

func (m *Mapper) date(id string, fields map[string]any, name string) time.Time {
	t, err := entry.DecodeDate(str(fields, name))
	if err != nil {
		m.logger.Debug("stored_date_invalid",
			slog.String("id", id),
			slog.String("field", name),
			slog.String("error", err.Error()))
	}
	return t
}

// str reads a stored string field. Multi-valued fields are joined.
func str(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
