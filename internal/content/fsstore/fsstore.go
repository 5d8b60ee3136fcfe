// Package fsstore is a content source backed by a directory tree:
//
//	<root>/<wiki>/<space>/<page>/page.md          primary version, YAML front matter
//	<root>/<wiki>/<space>/<page>/page.<lang>.md   translations
//	<root>/<wiki>/<space>/<page>/attachments/*    attachments
//	<root>/<wiki>/<space>/<page>/objects.yaml     structured objects
package fsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// File and directory names inside a page directory.
const (
	PageFile       = "page.md"
	ObjectsFile    = "objects.yaml"
	AttachmentsDir = "attachments"
)

// mimeOverrides covers extensions the platform MIME table often lacks.
var mimeOverrides = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".eml":  "message/rfc822",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".doc":  "application/msword",
	".xls":  "application/vnd.ms-excel",
	".ppt":  "application/vnd.ms-powerpoint",
	".rtf":  "application/rtf",
}

// Store reads wiki content from a directory tree.
type Store struct {
	root        string
	urlTemplate string
}

var _ content.Source = (*Store)(nil)

// New creates a store rooted at root. urlTemplate is expanded by
// AttachmentURL; empty selects content.DefaultURLTemplate.
func New(root, urlTemplate string) *Store {
	return &Store{root: filepath.Clean(root), urlTemplate: urlTemplate}
}

// Root returns the directory the store reads.
func (s *Store) Root() string {
	return s.root
}

// pageDir resolves the directory of ref, refusing refs that would leave
// root.
func (s *Store) pageDir(ref content.UnitRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", ierrors.New(ierrors.ErrCodeInvalidEntry, "invalid unit reference", err).
			WithDetail("unit", ref.String())
	}
	return filepath.Join(s.root, ref.Wiki, ref.Container, ref.Name), nil
}

// Namespaces lists the wiki directories under root.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	dirs, err := subdirs(s.root)
	if err != nil {
		return nil, content.Unavailable("list namespaces", err)
	}
	return dirs, nil
}

// Units lists every page directory of ns that has a page.md.
func (s *Store) Units(ctx context.Context, ns string) ([]content.UnitRef, error) {
	spaces, err := subdirs(filepath.Join(s.root, ns))
	if err != nil {
		return nil, content.Unavailable("list units", err)
	}
	var refs []content.UnitRef
	for _, space := range spaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := subdirs(filepath.Join(s.root, ns, space))
		if err != nil {
			return nil, content.Unavailable("list units", err)
		}
		for _, page := range pages {
			ref := content.UnitRef{Wiki: ns, Container: space, Name: page}
			if fileExists(filepath.Join(s.root, ns, space, page, PageFile)) {
				refs = append(refs, ref)
			}
		}
	}
	return refs, nil
}

// Unit reads page.md.
func (s *Store) Unit(ctx context.Context, ref content.UnitRef) (*content.Unit, error) {
	dir, err := s.pageDir(ref)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, PageFile)
	if !fileExists(path) {
		return nil, content.NotFound(ref, "unit")
	}
	return readPage(ref, path, "")
}

// Translations reads every page.<lang>.md in language order.
func (s *Store) Translations(ctx context.Context, ref content.UnitRef) ([]*content.Unit, error) {
	dir, err := s.pageDir(ref)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "page.*.md"))
	if err != nil {
		return nil, content.Unavailable("list translations", err)
	}
	sort.Strings(matches)
	out := make([]*content.Unit, 0, len(matches))
	for _, path := range matches {
		lang := TranslationLanguage(filepath.Base(path))
		if lang == "" {
			continue
		}
		u, err := readPage(ref, path, lang)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Attachments reads every regular file under attachments/.
func (s *Store) Attachments(ctx context.Context, ref content.UnitRef) ([]*content.Attachment, error) {
	page, err := s.pageDir(ref)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(page, AttachmentsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, content.Unavailable("list attachments", err)
	}
	var out []*content.Attachment
	for _, de := range entries {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		a, err := readAttachment(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Attachment reads a single attachment.
func (s *Store) Attachment(ctx context.Context, ref content.UnitRef, filename string) (*content.Attachment, error) {
	dir, err := s.pageDir(ref)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, AttachmentsDir, filepath.Base(filename))
	if !fileExists(path) {
		return nil, content.NotFound(ref, "attachment "+filename)
	}
	return readAttachment(path)
}

type objectDoc struct {
	Class  string            `yaml:"class"`
	Number int               `yaml:"number"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

// Objects reads objects.yaml.
func (s *Store) Objects(ctx context.Context, ref content.UnitRef) ([]*content.Object, error) {
	dir, err := s.pageDir(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ObjectsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, content.Unavailable("read objects", err)
	}
	var docs []objectDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, content.Unavailable("parse objects", err)
	}
	out := make([]*content.Object, 0, len(docs))
	for _, d := range docs {
		out = append(out, &content.Object{ClassName: d.Class, Number: d.Number, Fields: d.Fields})
	}
	return out, nil
}

// AttachmentURL expands the configured template.
func (s *Store) AttachmentURL(ctx context.Context, key entry.Key, filename string) (string, error) {
	return content.ExpandURL(s.urlTemplate, key, filename), nil
}

// TranslationLanguage returns the language of a translation file name
// such as page.fr.md, or "" when name is not one.
func TranslationLanguage(name string) string {
	if !strings.HasPrefix(name, "page.") || !strings.HasSuffix(name, ".md") || name == PageFile {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "page."), ".md")
}

// DetectMIME returns the MIME type for a file name from its extension.
func DetectMIME(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mimeOverrides[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

type frontMatter struct {
	Title    string    `yaml:"title,omitempty"`
	Author   string    `yaml:"author,omitempty"`
	Creator  string    `yaml:"creator,omitempty"`
	Created  time.Time `yaml:"created,omitempty"`
	Modified time.Time `yaml:"modified,omitempty"`
	Lang     string    `yaml:"lang,omitempty"`
}

var fence = []byte("---")

func readPage(ref content.UnitRef, path, lang string) (*content.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, content.Unavailable("read page", err)
	}
	fm, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, content.Unavailable(fmt.Sprintf("parse front matter of %s", path), err)
	}
	if lang == "" {
		lang = fm.Lang
	}
	u := &content.Unit{
		Ref:      ref,
		Language: lang,
		Title:    fm.Title,
		Content:  body,
		Author:   fm.Author,
		Creator:  fm.Creator,
		Created:  fm.Created,
		Modified: fm.Modified,
	}
	if u.Title == "" {
		u.Title = ref.Name
	}
	if u.Creator == "" {
		u.Creator = u.Author
	}
	if u.Modified.IsZero() {
		if info, err := os.Stat(path); err == nil {
			u.Modified = info.ModTime()
		}
	}
	if u.Created.IsZero() {
		u.Created = u.Modified
	}
	return u, nil
}

// splitFrontMatter separates a leading ----delimited YAML block from the
// body. Files without one are all body.
func splitFrontMatter(data []byte) (frontMatter, string, error) {
	var fm frontMatter
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, fence) {
		return fm, string(data), nil
	}
	rest := data[len(fence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, string(data), nil
	}
	rest = rest[nl+1:]
	end := bytes.Index(rest, []byte("\n---"))
	var header []byte
	switch {
	case bytes.HasPrefix(rest, fence):
		header, rest = nil, rest[len(fence):]
	case end < 0:
		return fm, "", fmt.Errorf("unterminated front matter")
	default:
		header, rest = rest[:end+1], rest[end+1+len(fence):]
	}
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", err
	}
	return fm, string(rest), nil
}

func readAttachment(path string) (*content.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, content.Unavailable("read attachment", err)
	}
	a := &content.Attachment{
		Filename: filepath.Base(path),
		MIMEType: DetectMIME(path),
		Data:     data,
	}
	if info, err := os.Stat(path); err == nil {
		a.Modified = info.ModTime()
		a.Created = a.Modified
	}
	return a, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range entries {
		if de.IsDir() && !strings.HasPrefix(de.Name(), ".") {
			out = append(out, de.Name())
		}
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
