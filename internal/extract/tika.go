package extract

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-tika/tika"

	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// Tika delegates extraction to an Apache Tika server. Repeated failures
// open a breaker so an unreachable server does not stall a drain cycle once
// per attachment.
type Tika struct {
	client  *tika.Client
	timeout time.Duration
	breaker *ierrors.Breaker
	html    *HTML
}

// NewTika creates a Tika-backed extractor for the server at url.
func NewTika(url string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *Tika {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tika{
		client:  tika.NewClient(httpClient, url),
		timeout: timeout,
		breaker: ierrors.NewBreaker("tika",
			ierrors.WithMaxFailures(3),
			ierrors.WithCooldown(time.Minute),
			ierrors.WithStateChange(func(name string, from, to ierrors.BreakerState) {
				logger.Warn("extractor_breaker_state",
					slog.String("extractor", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			})),
		html: NewHTML(),
	}
}

// Extract implements Extractor.
func (t *Tika) Extract(ctx context.Context, data []byte) (string, error) {
	text, err := ierrors.Guard(t.breaker, func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		body, err := t.client.Parse(ctx, bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		// Tika answers with XHTML.
		return t.html.Sanitize(body), nil
	})
	switch {
	case errors.Is(err, ierrors.ErrCircuitOpen):
		return "", ierrors.New(ierrors.ErrCodeExtraction, "tika unavailable", err)
	case err != nil:
		return "", ierrors.New(ierrors.ErrCodeExtraction, "tika parse failed", err)
	}
	return text, nil
}
