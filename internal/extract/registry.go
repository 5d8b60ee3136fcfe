// Package extract turns attachment bytes into plain text, dispatching on
// MIME type to a format-specific Extractor.
//
// A Registry is built once at startup and injected into whatever
// materializes index documents. Extraction never fails loudly: unknown
// types and broken payloads both yield ("", false).
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Extractor converts raw bytes of one format to text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Registry maps normalized MIME types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		extractors: make(map[string]Extractor),
		logger:     logger,
	}
}

// Register binds mimeType to e, replacing any previous binding.
func (r *Registry) Register(mimeType string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[NormalizeMIME(mimeType)] = e
}

// Supports reports whether mimeType has a registered extractor.
func (r *Registry) Supports(mimeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[NormalizeMIME(mimeType)]
	return ok
}

// MIMETypes returns the registered types in sorted order.
func (r *Registry) MIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ExtractText returns the text of data interpreted as mimeType.
// The second result is false when the type is unknown or the extractor
// failed; neither case is an error for the caller.
func (r *Registry) ExtractText(ctx context.Context, data []byte, mimeType string) (string, bool) {
	normalized := NormalizeMIME(mimeType)

	r.mu.RLock()
	e, ok := r.extractors[normalized]
	r.mu.RUnlock()

	if !ok {
		r.logger.Info("extract_unsupported_mime",
			slog.String("mime", normalized),
			slog.Int("bytes", len(data)))
		return "", false
	}

	text, err := safeExtract(ctx, e, data)
	if err != nil {
		r.logger.Error("extract_failed",
			slog.String("mime", normalized),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()))
		return "", false
	}
	return CleanText(text), true
}

func safeExtract(ctx context.Context, e Extractor, data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extractor panicked: %v", p)
		}
	}()
	return e.Extract(ctx, data)
}

// NormalizeMIME lower-cases a media type and strips its parameters.
// Unparseable input is trimmed and lower-cased as is.
func NormalizeMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// CleanText applies NFC normalization and collapses whitespace runs to a
// single space.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == ' ' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
