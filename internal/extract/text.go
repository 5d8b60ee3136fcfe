package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// PlainText passes UTF-8 text through. Invalid sequences are replaced.
type PlainText struct{}

// Extract implements Extractor.
func (PlainText) Extract(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// HTML strips markup with a bluemonday strict policy and decodes entities.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML creates an HTML extractor.
func NewHTML() *HTML {
	return &HTML{policy: bluemonday.StrictPolicy()}
}

// Extract implements Extractor.
func (h *HTML) Extract(_ context.Context, data []byte) (string, error) {
	// Block-level tags become spaces so adjacent words stay apart.
	spaced := bytes.ReplaceAll(data, []byte("<"), []byte(" <"))
	return html.UnescapeString(string(h.policy.SanitizeBytes(spaced))), nil
}

// Sanitize strips markup from an already decoded string.
func (h *HTML) Sanitize(s string) string {
	out, _ := h.Extract(context.Background(), []byte(s))
	return out
}

// XML collects character data from every element.
type XML struct{}

// Extract implements Extractor.
func (XML) Extract(_ context.Context, data []byte) (string, error) {
	return xmlText(bytes.NewReader(data))
}

// xmlText walks r and concatenates its character data, separated by spaces.
func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	var b strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if len(bytes.TrimSpace(cd)) == 0 {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(cd)
		}
	}
	return b.String(), nil
}
