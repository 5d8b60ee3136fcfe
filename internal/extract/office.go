package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// OfficeXML reads zipped XML documents (OOXML and ODF) and returns the
// text nodes of the member files that match its prefixes.
type OfficeXML struct {
	members []string
}

// NewOfficeXML creates an extractor for archive members named exactly by,
// or starting with, one of members.
func NewOfficeXML(members ...string) *OfficeXML {
	return &OfficeXML{members: members}
}

// Extract implements Extractor.
func (o *OfficeXML) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if o.wants(f.Name) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return "", errors.New("archive has no text members")
	}
	// slide2.xml before slide10.xml is not guaranteed by zip order.
	sort.SliceStable(files, func(i, j int) bool {
		if len(files[i].Name) != len(files[j].Name) {
			return len(files[i].Name) < len(files[j].Name)
		}
		return files[i].Name < files[j].Name
	})

	var b strings.Builder
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		text, err := xmlText(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func (o *OfficeXML) wants(name string) bool {
	if !strings.HasSuffix(name, ".xml") {
		return false
	}
	for _, m := range o.members {
		if name == m || (strings.HasSuffix(m, "/") && strings.HasPrefix(name, m) &&
			!strings.Contains(strings.TrimPrefix(name, m), "/")) {
			return true
		}
	}
	return false
}
