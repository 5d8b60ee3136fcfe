package fsstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

var ref = content.UnitRef{Wiki: "w1", Container: "Space", Name: "Page"}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestStore_ReadsPageWithFrontMatter(t *testing.T) {
	// Given: a page.md with front matter
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "w1", "Space", "Page", "page.md"), `---
title: Welcome
author: alice
creator: carol
created: 2024-01-02T03:04:05Z
modified: 2024-02-03T04:05:06.789Z
lang: en
---
Hello wiki.
`)
	s := New(root, "")

	// When: the unit is read
	u, err := s.Unit(context.Background(), ref)

	// Then: header and body are separated
	require.NoError(t, err)
	assert.Equal(t, "Welcome", u.Title)
	assert.Equal(t, "alice", u.Author)
	assert.Equal(t, "carol", u.Creator)
	assert.Equal(t, "en", u.Language)
	assert.Equal(t, "Hello wiki.\n", u.Content)
	assert.True(t, u.Created.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, u.Modified.Equal(time.Date(2024, 2, 3, 4, 5, 6, 789e6, time.UTC)))
}

func TestStore_PageWithoutFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "w1", "Space", "Page", "page.md"), "just text")

	u, err := New(root, "").Unit(context.Background(), ref)

	require.NoError(t, err)
	assert.Equal(t, "just text", u.Content)
	assert.Equal(t, "Page", u.Title)
	assert.Empty(t, u.Language)
	assert.False(t, u.Modified.IsZero())
}

func TestStore_MissingUnit(t *testing.T) {
	_, err := New(t.TempDir(), "").Unit(context.Background(), ref)

	assert.ErrorIs(t, err, ierrors.ErrSourceUnavailable)
}

func TestStore_RefusesRefsOutsideRoot(t *testing.T) {
	// Given: a page.md that sits next to the store root, not inside it
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	writeFile(t, filepath.Join(parent, "x", PageFile), "secret")
	s := New(root, "")
	ctx := context.Background()

	escapes := []content.UnitRef{
		{Wiki: "..", Container: ".", Name: "x"},
		{Wiki: "w1", Container: "../..", Name: "x"},
		{Wiki: "w1", Container: "Space", Name: `..\x`},
	}
	for _, bad := range escapes {
		// When: reading or writing through a ref that climbs out of root
		_, unitErr := s.Unit(ctx, bad)
		_, attErr := s.Attachments(ctx, bad)
		writeErr := s.WriteAttachment(bad, "a.txt", []byte("x"))

		// Then: each call is refused as invalid input
		assert.ErrorIs(t, unitErr, ierrors.ErrInvalidEntry, bad.String())
		assert.ErrorIs(t, attErr, ierrors.ErrInvalidEntry, bad.String())
		assert.ErrorIs(t, writeErr, ierrors.ErrInvalidEntry, bad.String())
	}
	_, err := os.Stat(filepath.Join(parent, "x", AttachmentsDir))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_WriteAndEnumerate(t *testing.T) {
	// Given: a tree written through the store
	s := New(t.TempDir(), "")
	modified := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, s.WriteUnit(&content.Unit{Ref: ref, Language: "en", Title: "T", Content: "body", Author: "alice", Modified: modified}, false))
	require.NoError(t, s.WriteUnit(&content.Unit{Ref: ref, Language: "fr", Content: "corps", Author: "alice"}, true))
	require.NoError(t, s.WriteUnit(&content.Unit{Ref: ref, Language: "de", Content: "Inhalt", Author: "alice"}, true))
	require.NoError(t, s.WriteAttachment(ref, "notes.txt", []byte("attached")))
	require.NoError(t, s.WriteObjects(ref, []*content.Object{
		{ClassName: "Tag", Number: 0, Fields: map[string]string{"name": "x"}},
	}))
	other := content.UnitRef{Wiki: "w2", Container: "Main", Name: "Home"}
	require.NoError(t, s.WriteUnit(&content.Unit{Ref: other, Content: "home"}, false))
	ctx := context.Background()

	// Then: the namespaces and units are listed
	ns, err := s.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, ns)

	units, err := s.Units(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, []content.UnitRef{ref}, units)

	// And: the page round-trips
	u, err := s.Unit(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "body", u.Content)
	assert.Equal(t, "en", u.Language)
	assert.True(t, u.Modified.Equal(modified))

	// And: translations come back in language order
	tr, err := s.Translations(ctx, ref)
	require.NoError(t, err)
	require.Len(t, tr, 2)
	assert.Equal(t, "de", tr[0].Language)
	assert.Equal(t, "fr", tr[1].Language)
	assert.Equal(t, "corps", tr[1].Content)

	// And: attachments carry a MIME type
	atts, err := s.Attachments(ctx, ref)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "notes.txt", atts[0].Filename)
	assert.Equal(t, "text/plain", atts[0].MIMEType)
	assert.Equal(t, []byte("attached"), atts[0].Data)

	// And: objects are parsed
	objs, err := s.Objects(ctx, ref)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "Tag", objs[0].ClassName)
	assert.Equal(t, "x", objs[0].Fields["name"])
}

func TestStore_NoAttachmentsOrObjects(t *testing.T) {
	s := New(t.TempDir(), "")
	require.NoError(t, s.WriteUnit(&content.Unit{Ref: ref, Content: "x"}, false))

	atts, err := s.Attachments(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, atts)
	objs, err := s.Objects(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestStore_AttachmentURL(t *testing.T) {
	s := New(t.TempDir(), "https://wiki.example/{wiki}/{container}/{page}/{filename}")
	key := entry.NewKey("w1", "My Space", entry.AttachmentName("Page", "a b.pdf"), "")

	url, err := s.AttachmentURL(context.Background(), key, "a b.pdf")

	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example/w1/My%20Space/Page/a%20b.pdf", url)
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.pdf", "application/pdf"},
		{"A.PDF", "application/pdf"},
		{"notes.md", "text/markdown"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"blob.zzz-unknown", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.name))
		})
	}
}

func TestLocate(t *testing.T) {
	s := New("/data/wiki", "")
	tests := []struct {
		path string
		ok   bool
		want Location
	}{
		{"/data/wiki/w1/Space/Page/page.md", true, Location{Change: ChangePage, Ref: ref}},
		{"w1/Space/Page/page.fr.md", true, Location{Change: ChangePage, Ref: ref, Language: "fr"}},
		{"w1/Space/Page/objects.yaml", true, Location{Change: ChangeObjects, Ref: ref}},
		{"w1/Space/Page/attachments/a.pdf", true, Location{Change: ChangeAttachment, Ref: ref, Filename: "a.pdf"}},
		{"w1/Space/Page/attachments/.tmp-123", false, Location{}},
		{"w1/Space/Page/readme.txt", false, Location{}},
		{"w1/Space", false, Location{}},
		{"/elsewhere/w1/Space/Page/page.md", false, Location{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := s.Locate(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslationLanguage(t *testing.T) {
	assert.Equal(t, "fr", TranslationLanguage("page.fr.md"))
	assert.Equal(t, "pt-BR", TranslationLanguage("page.pt-BR.md"))
	assert.Empty(t, TranslationLanguage("page.md"))
	assert.Empty(t, TranslationLanguage("other.fr.md"))
}
