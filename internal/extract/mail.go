package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Mail extracts the subject and body of an RFC 822 message. HTML-only
// bodies are stripped of markup.
type Mail struct {
	html *HTML
}

// NewMail creates a mail extractor.
func NewMail() *Mail {
	return &Mail{html: NewHTML()}
}

// Extract implements Extractor.
func (m *Mail) Extract(_ context.Context, data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = m.html.Sanitize(env.HTML)
	}

	parts := []string{env.GetHeader("Subject"), env.GetHeader("From"), body}
	return strings.Join(parts, "\n"), nil
}
