package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts page text with ledongthuc/pdf. Pages that make the parser
// panic are skipped.
type PDF struct{}

// Extract implements Extractor.
func (PDF) Extract(ctx context.Context, data []byte) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("pdf parser panicked: %v", p)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			for _, t := range page.Content().Text {
				b.WriteString(t.S)
			}
			b.WriteByte('\n')
		}()
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("pdf has no extractable text")
	}
	return b.String(), nil
}
