// Package search serves queries from the published index view and maps
// raw hits back to wiki results.
package search

import (
	"time"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// Result is one search hit, rebuilt from stored fields.
type Result struct {
	Key       entry.Key  `json:"key"`
	ID        string     `json:"id"`
	Score     float64    `json:"score"`
	Name      string     `json:"name"`
	Container string     `json:"container"`
	Wiki      string     `json:"wiki"`
	Language  string     `json:"language"`
	Kind      entry.Kind `json:"kind"`
	Author    string     `json:"author,omitempty"`
	Creator   string     `json:"creator,omitempty"`
	Created   time.Time  `json:"created,omitzero"`
	Modified  time.Time  `json:"modified,omitzero"`

	// Attachments only.
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mimetype,omitempty"`
	URL      string `json:"url,omitempty"`

	// Objects only.
	Class string `json:"class,omitempty"`
}

// Query is a free-text query with structured filters. It is comparable so
// it can key the result cache.
type Query struct {
	// Text is matched against the full text and the display fields.
	// Empty matches everything.
	Text string `json:"text"`
	// Wiki, Language and Kind restrict results to exact values.
	Wiki     string `json:"wiki,omitempty"`
	Language string `json:"language,omitempty"`
	Kind     string `json:"kind,omitempty"`
	// Key is an encoded identity key (entry.Key.String).
	Key string `json:"key,omitempty"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Page is one page of results.
type Page struct {
	Query      Query         `json:"query"`
	Total      uint64        `json:"total"`
	Results    []*Result     `json:"results"`
	Generation uint64        `json:"generation"`
	Took       time.Duration `json:"took"`
	Cached     bool          `json:"cached"`
}

// Stats describes the published view.
type Stats struct {
	Generation  uint64            `json:"generation"`
	PublishedAt time.Time         `json:"published_at"`
	Documents   uint64            `json:"documents"`
	Namespaces  map[string]uint64 `json:"namespaces"`
	Kinds       map[string]uint64 `json:"kinds"`
}
