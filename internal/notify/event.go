// Package notify turns content change notifications into index queue
// entries. Notifications arrive from a filesystem watcher over the fs
// content store, a Kafka topic, or a Redis pub/sub channel.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aman-CERP/wikindex/internal/content"
)

// EventType is the kind of change.
type EventType string

const (
	// UnitChanged means a page or one of its translations was saved.
	UnitChanged EventType = "unit_changed"
	// AttachmentUploaded means a file was attached or replaced.
	AttachmentUploaded EventType = "attachment_uploaded"
)

// Event is one change notification.
type Event struct {
	Type      EventType `json:"type"`
	Wiki      string    `json:"wiki"`
	Container string    `json:"container"`
	Name      string    `json:"name"`
	// Language selects a translation; empty means the primary version.
	Language string `json:"language,omitempty"`
	// Filename is set for AttachmentUploaded.
	Filename string `json:"filename,omitempty"`
}

// Ref returns the unit the event is about.
func (e Event) Ref() content.UnitRef {
	return content.UnitRef{Wiki: e.Wiki, Container: e.Container, Name: e.Name}
}

// Validate checks that the event names a unit and, for uploads, a file,
// and that no name could step outside its directory.
func (e Event) Validate() error {
	switch e.Type {
	case UnitChanged:
	case AttachmentUploaded:
		if strings.TrimSpace(e.Filename) == "" {
			return fmt.Errorf("attachment event without filename")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if strings.TrimSpace(e.Wiki) == "" || strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event without wiki or name")
	}
	if err := e.Ref().Validate(); err != nil {
		return err
	}
	if err := content.CheckSegment("language", e.Language); err != nil {
		return err
	}
	return content.CheckSegment("filename", e.Filename)
}

// DecodeEvent parses and validates a JSON event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decoding event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

// key identifies events that supersede each other.
func (e Event) key() string {
	return string(e.Type) + "|" + e.Ref().Key(e.Language).String() + "|" + e.Filename
}

func encodeEvent(ev Event) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}
