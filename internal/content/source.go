// Package content defines what the indexer needs from the wiki storage
// layer and converts its snapshots into index entries.
package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// UnitRef identifies a content unit (a wiki page) independent of language.
type UnitRef struct {
	Wiki      string `json:"wiki"`
	Container string `json:"container"`
	Name      string `json:"name"`
}

// Key returns the identity key of the unit in lang.
func (r UnitRef) Key(lang string) entry.Key {
	return entry.NewKey(r.Wiki, r.Container, r.Name, lang)
}

// String is used in logs.
func (r UnitRef) String() string {
	return r.Key("").String()
}

// Validate checks that every part of r can name a single directory.
func (r UnitRef) Validate() error {
	for _, part := range []struct{ field, value string }{
		{"wiki", r.Wiki}, {"container", r.Container}, {"name", r.Name},
	} {
		if err := CheckSegment(part.field, part.value); err != nil {
			return err
		}
	}
	return nil
}

// CheckSegment rejects values that would escape or alias a directory when
// used as one path element: separators, NUL, "." and "..".
func CheckSegment(field, value string) error {
	if strings.ContainsAny(value, "/\\\x00") {
		return fmt.Errorf("%s %q contains a path separator or NUL", field, value)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%s %q is not a valid name", field, value)
	}
	return nil
}

// Unit is a snapshot of one page or one of its translations.
type Unit struct {
	Ref      UnitRef
	Language string
	Title    string
	Content  string
	Author   string
	Creator  string
	Created  time.Time
	Modified time.Time
}

// Attachment is a snapshot of one file attached to a unit.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
	Author   string
	Created  time.Time
	Modified time.Time
}

// Object is one structured object attached to a unit.
type Object struct {
	ClassName string
	Number    int
	Fields    map[string]string
}

// Source is read access to the wiki content.
type Source interface {
	// Namespaces lists the wikis served by this source.
	Namespaces(ctx context.Context) ([]string, error)
	// Units lists every unit of a namespace.
	Units(ctx context.Context, ns string) ([]UnitRef, error)
	// Unit fetches the primary version of a unit.
	Unit(ctx context.Context, ref UnitRef) (*Unit, error)
	// Translations fetches every translation of a unit.
	Translations(ctx context.Context, ref UnitRef) ([]*Unit, error)
	// Attachments fetches every attachment of a unit.
	Attachments(ctx context.Context, ref UnitRef) ([]*Attachment, error)
	// Objects fetches the structured objects of a unit.
	Objects(ctx context.Context, ref UnitRef) ([]*Object, error)
	// AttachmentURL returns the download URL of an attachment, where key
	// is the attachment's own identity key.
	AttachmentURL(ctx context.Context, key entry.Key, filename string) (string, error)
}

// UnitInLanguage returns the primary version of ref when lang is empty or
// matches it, otherwise the translation in lang.
func UnitInLanguage(ctx context.Context, src Source, ref UnitRef, lang string) (*Unit, error) {
	primary, err := src.Unit(ctx, ref)
	if err != nil {
		return nil, err
	}
	want := entry.NormalizeLanguage(lang)
	if lang == "" || entry.NormalizeLanguage(primary.Language) == want {
		return primary, nil
	}
	translations, err := src.Translations(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, t := range translations {
		if entry.NormalizeLanguage(t.Language) == want {
			return t, nil
		}
	}
	return nil, NotFound(ref, "translation "+want)
}
