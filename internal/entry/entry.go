// Package entry defines IndexableEntry, the immutable unit the indexer
// consumes: an identity key, common metadata and one of three payloads
// (page, attachment or structured object).
package entry

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Kind discriminates the entry payload.
type Kind string

const (
	KindPage       Kind = "page"
	KindAttachment Kind = "attachment"
	KindObject     Kind = "object"
)

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPage, KindAttachment, KindObject:
		return Kind(s), true
	}
	return "", false
}

// Meta holds the attributes shared by every kind.
type Meta struct {
	Author   string
	Creator  string
	Created  time.Time
	Modified time.Time
}

// PagePayload is the text of a page or one of its translations.
type PagePayload struct {
	Title   string
	Content string
}

// AttachmentPayload is a binary file attached to a page.
type AttachmentPayload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// ObjectPayload is one structured object attached to a page.
type ObjectPayload struct {
	ClassName string
	Number    int
	Fields    map[string]string
}

// Entry is an immutable indexable unit. Build it with NewPage,
// NewAttachment or NewObject.
type Entry struct {
	key  Key
	kind Kind
	meta Meta

	page       *PagePayload
	attachment *AttachmentPayload
	object     *ObjectPayload
}

// NewPage creates a page entry.
func NewPage(key Key, meta Meta, p PagePayload) *Entry {
	return &Entry{
		key:  normalizeKey(key),
		kind: KindPage,
		meta: normalizeMeta(meta),
		page: &p,
	}
}

// NewAttachment creates an attachment entry for the page identified by
// pageKey. Its own name is page/filename.
func NewAttachment(pageKey Key, meta Meta, a AttachmentPayload) *Entry {
	key := normalizeKey(pageKey)
	key.Name = AttachmentName(key.Name, a.Filename)
	a.Data = append([]byte(nil), a.Data...)
	return &Entry{
		key:        key,
		kind:       KindAttachment,
		meta:       normalizeMeta(meta),
		attachment: &a,
	}
}

// NewObject creates a structured-object entry for the page identified by
// pageKey. Its own name is page/Class[number].
func NewObject(pageKey Key, meta Meta, o ObjectPayload) *Entry {
	key := normalizeKey(pageKey)
	key.Name = ObjectName(key.Name, o.ClassName, o.Number)
	o.Fields = maps.Clone(o.Fields)
	return &Entry{
		key:    key,
		kind:   KindObject,
		meta:   normalizeMeta(meta),
		object: &o,
	}
}

// AttachmentName is the key name of an attachment on page.
func AttachmentName(page, filename string) string {
	return page + "/" + filename
}

// ObjectName is the key name of object number of class on page.
func ObjectName(page, class string, number int) string {
	return page + "/" + class + "[" + strconv.Itoa(number) + "]"
}

func normalizeKey(k Key) Key {
	k.Language = NormalizeLanguage(k.Language)
	return k
}

func normalizeMeta(m Meta) Meta {
	m.Created = truncate(m.Created)
	m.Modified = truncate(m.Modified)
	return m
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

// Key returns the identity key.
func (e *Entry) Key() Key { return e.key }

// Kind returns the payload discriminator.
func (e *Entry) Kind() Kind { return e.kind }

// Meta returns the shared attributes.
func (e *Entry) Meta() Meta { return e.meta }

// Page returns the page payload, or nil for other kinds.
func (e *Entry) Page() *PagePayload {
	if e.page == nil {
		return nil
	}
	p := *e.page
	return &p
}

// Attachment returns a copy of the attachment payload, or nil.
func (e *Entry) Attachment() *AttachmentPayload {
	if e.attachment == nil {
		return nil
	}
	a := *e.attachment
	a.Data = append([]byte(nil), a.Data...)
	return &a
}

// Object returns a copy of the object payload, or nil.
func (e *Entry) Object() *ObjectPayload {
	if e.object == nil {
		return nil
	}
	o := *e.object
	o.Fields = maps.Clone(o.Fields)
	return &o
}

// Validate rejects entries that cannot be addressed.
func (e *Entry) Validate() error {
	if e == nil {
		return ierrors.New(ierrors.ErrCodeInvalidEntry, "nil entry", nil)
	}
	if strings.TrimSpace(e.key.Wiki) == "" {
		return ierrors.New(ierrors.ErrCodeInvalidEntry, "entry has no wiki", nil).
			WithDetail("key", e.key.String())
	}
	if strings.TrimSpace(e.key.Name) == "" {
		return ierrors.New(ierrors.ErrCodeInvalidEntry, "entry has no name", nil).
			WithDetail("key", e.key.String())
	}
	switch e.kind {
	case KindPage:
		if e.page == nil {
			return ierrors.New(ierrors.ErrCodeInvalidEntry, "page entry without payload", nil)
		}
	case KindAttachment:
		if e.attachment == nil || e.attachment.Filename == "" {
			return ierrors.New(ierrors.ErrCodeInvalidEntry, "attachment entry without filename", nil)
		}
	case KindObject:
		if e.object == nil || e.object.ClassName == "" {
			return ierrors.New(ierrors.ErrCodeInvalidEntry, "object entry without class", nil)
		}
	default:
		return ierrors.New(ierrors.ErrCodeInvalidEntry, fmt.Sprintf("unknown kind %q", e.kind), nil)
	}
	return nil
}

// DeletionQuery matches every indexed document sharing this entry's key.
func (e *Entry) DeletionQuery() query.Query {
	return KeyQuery(e.key)
}

// KeyQuery matches documents stored under k.
func KeyQuery(k Key) query.Query {
	q := bleve.NewTermQuery(normalizeKey(k).String())
	q.SetField(FieldKey)
	return q
}

// String is used in logs.
func (e *Entry) String() string {
	return string(e.kind) + " " + e.key.String()
}
