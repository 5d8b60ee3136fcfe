package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/entry"
)

// EventHandler consumes events. Listeners log its errors and go on.
type EventHandler interface {
	Handle(ctx context.Context, ev Event) error
}

// Enqueuer accepts entries for indexing.
type Enqueuer interface {
	Enqueue(e *entry.Entry)
}

// attachmentGetter is implemented by sources that can fetch one
// attachment without reading the others.
type attachmentGetter interface {
	Attachment(ctx context.Context, ref content.UnitRef, filename string) (*content.Attachment, error)
}

// Handler fetches the changed content from the source and enqueues it.
type Handler struct {
	source content.Source
	queue  Enqueuer
	logger *slog.Logger
}

var _ EventHandler = (*Handler)(nil)

// NewHandler creates a handler.
func NewHandler(source content.Source, queue Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, queue: queue, logger: logger.With(slog.String("component", "notify"))}
}

// Handle enqueues the entries affected by ev. A changed primary version
// also re-enqueues the unit's structured objects, which are stored with
// the page.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	var entries []*entry.Entry
	var err error
	switch ev.Type {
	case UnitChanged:
		entries, err = h.unitEntries(ctx, ev)
	case AttachmentUploaded:
		entries, err = h.attachmentEntries(ctx, ev)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", ev.Type, ev.Ref(), err)
	}
	for _, e := range entries {
		h.queue.Enqueue(e)
	}
	h.logger.Debug("notification_enqueued",
		slog.String("type", string(ev.Type)),
		slog.String("unit", ev.Ref().String()),
		slog.Int("entries", len(entries)))
	return nil
}

func (h *Handler) unitEntries(ctx context.Context, ev Event) ([]*entry.Entry, error) {
	u, err := content.UnitInLanguage(ctx, h.source, ev.Ref(), ev.Language)
	if err != nil {
		return nil, err
	}
	entries := []*entry.Entry{content.PageEntry(u)}
	if ev.Language != "" {
		primary, err := h.source.Unit(ctx, ev.Ref())
		if err != nil || entry.NormalizeLanguage(primary.Language) != entry.NormalizeLanguage(ev.Language) {
			return entries, nil
		}
	}
	objects, err := h.source.Objects(ctx, ev.Ref())
	if err != nil {
		return nil, err
	}
	return append(entries, content.ObjectEntries(u, objects)...), nil
}

func (h *Handler) attachmentEntries(ctx context.Context, ev Event) ([]*entry.Entry, error) {
	u, err := h.source.Unit(ctx, ev.Ref())
	if err != nil {
		return nil, err
	}
	if g, ok := h.source.(attachmentGetter); ok {
		a, err := g.Attachment(ctx, ev.Ref(), ev.Filename)
		if err != nil {
			return nil, err
		}
		return []*entry.Entry{content.AttachmentEntry(u, a)}, nil
	}
	all, err := h.source.Attachments(ctx, ev.Ref())
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.Filename == ev.Filename {
			return []*entry.Entry{content.AttachmentEntry(u, a)}, nil
		}
	}
	return nil, content.NotFound(ev.Ref(), "attachment "+ev.Filename)
}
