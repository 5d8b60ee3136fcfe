package fsstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wikindex/internal/content"
)

// WriteUnit stores u as page.md, or as page.<lang>.md when translation
// is set. Writes go through a temp file and rename.
func (s *Store) WriteUnit(u *content.Unit, translation bool) error {
	name := PageFile
	fm := frontMatter{
		Title:    u.Title,
		Author:   u.Author,
		Creator:  u.Creator,
		Created:  u.Created,
		Modified: u.Modified,
	}
	if translation {
		if u.Language == "" {
			return fmt.Errorf("translation of %s has no language", u.Ref)
		}
		name = "page." + u.Language + ".md"
	} else {
		fm.Lang = u.Language
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n")
	buf.WriteString(u.Content)
	dir, err := s.pageDir(u.Ref)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, name), buf.Bytes())
}

// WriteAttachment stores data under attachments/filename.
func (s *Store) WriteAttachment(ref content.UnitRef, filename string, data []byte) error {
	dir, err := s.pageDir(ref)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, AttachmentsDir, filepath.Base(filename)), data)
}

// WriteObjects replaces objects.yaml.
func (s *Store) WriteObjects(ref content.UnitRef, objects []*content.Object) error {
	docs := make([]objectDoc, 0, len(objects))
	for _, o := range objects {
		docs = append(docs, objectDoc{Class: o.ClassName, Number: o.Number, Fields: o.Fields})
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return err
	}
	dir, err := s.pageDir(ref)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, ObjectsFile), data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
