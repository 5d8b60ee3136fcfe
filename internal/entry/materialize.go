package entry

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TextExtractor turns attachment bytes into text. extract.Registry
// implements it.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, bool)
}

// Materialize converts the entry into an index document. A failure while
// assembling the full text leaves the document without a fulltext field
// and is reported in Document.FulltextErr; only an invalid entry returns an
// error.
func (e *Entry) Materialize(ctx context.Context, extractor TextExtractor) (*Document, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	fields := map[string]any{
		FieldKey:       e.key.String(),
		FieldWiki:      e.key.Wiki,
		FieldLanguage:  e.key.Language,
		FieldKind:      string(e.kind),
		FieldName:      e.key.Name,
		FieldContainer: e.key.Container,
		FieldAuthor:    e.meta.Author,
		FieldCreator:   e.meta.Creator,
	}
	if d := EncodeDate(e.meta.Created); d != "" {
		fields[FieldCreated] = d
	}
	if d := EncodeDate(e.meta.Modified); d != "" {
		fields[FieldModified] = d
	}

	switch e.kind {
	case KindAttachment:
		fields[FieldFilename] = e.attachment.Filename
		fields[FieldMIMEType] = e.attachment.MIMEType
	case KindObject:
		fields[FieldClass] = e.object.ClassName
	}

	doc := &Document{Key: e.key, Fields: fields}
	text, err := e.fulltext(ctx, extractor)
	if err != nil {
		doc.FulltextErr = err
	} else if text != "" {
		fields[FieldFulltext] = text
	}
	return doc, nil
}

func (e *Entry) fulltext(ctx context.Context, extractor TextExtractor) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("fulltext assembly panicked: %v", p)
		}
	}()

	var parts []string
	switch e.kind {
	case KindPage:
		parts = append(parts, e.page.Title, e.page.Content)
	case KindAttachment:
		parts = append(parts, e.attachment.Filename)
		if extractor != nil {
			if extracted, ok := extractor.ExtractText(ctx, e.attachment.Data, e.attachment.MIMEType); ok {
				parts = append(parts, extracted)
			}
		}
	case KindObject:
		parts = append(parts, e.object.ClassName)
		names := make([]string, 0, len(e.object.Fields))
		for name := range e.object.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, name+" "+e.object.Fields[name])
		}
	}

	var b strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String(), nil
}
