package entry

import (
	"fmt"
	"strconv"
	"time"
)

// Index field names. Everything except FieldFulltext is stored.
const (
	FieldKey       = "key"
	FieldWiki      = "wiki"
	FieldLanguage  = "lang"
	FieldKind      = "kind"
	FieldName      = "name"
	FieldContainer = "container"
	FieldAuthor    = "author"
	FieldCreator   = "creator"
	FieldCreated   = "created"
	FieldModified  = "modified"
	FieldFilename  = "filename"
	FieldMIMEType  = "mimetype"
	FieldClass     = "class"
	FieldFulltext  = "fulltext"
)

// KeywordFields are indexed verbatim.
var KeywordFields = []string{
	FieldKey, FieldWiki, FieldLanguage, FieldKind,
	FieldCreated, FieldModified, FieldFilename, FieldMIMEType, FieldClass,
}

// TextFields are tokenized and stored for display.
var TextFields = []string{FieldName, FieldContainer, FieldAuthor, FieldCreator}

const dateLayout = "20060102150405"

// EncodeDate renders t as YYYYMMDDHHMMSSmmm in UTC. The zero time encodes
// as the empty string.
func EncodeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	return t.Format(dateLayout) + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// DecodeDate parses the output of EncodeDate. Empty input is the zero time.
func DecodeDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) != len(dateLayout)+3 {
		return time.Time{}, fmt.Errorf("bad date %q: want %d digits", s, len(dateLayout)+3)
	}
	t, err := time.ParseInLocation(dateLayout, s[:len(dateLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	ms, err := strconv.Atoi(s[len(dateLayout):])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}

// Document is a materialized entry: a flat field map following the index
// schema.
type Document struct {
	Key    Key
	Fields map[string]any
	// FulltextErr records why full-text assembly failed. It is not indexed.
	FulltextErr error
}

// HasFulltext reports whether full-text assembly produced anything.
func (d *Document) HasFulltext() bool {
	s, ok := d.Fields[FieldFulltext].(string)
	return ok && s != ""
}
