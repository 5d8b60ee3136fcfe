package content

import (
	"context"
	"net/url"
	"strings"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// DefaultURLTemplate is used when no template is configured.
const DefaultURLTemplate = "/download/{wiki}/{container}/{page}/{filename}"

// ExpandURL fills the {wiki}, {container}, {page} and {filename}
// placeholders of tmpl for the attachment identified by key. Every value
// is path-escaped.
func ExpandURL(tmpl string, key entry.Key, filename string) string {
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	page := strings.TrimSuffix(key.Name, "/"+filename)
	r := strings.NewReplacer(
		"{wiki}", url.PathEscape(key.Wiki),
		"{container}", url.PathEscape(key.Container),
		"{page}", url.PathEscape(page),
		"{filename}", url.PathEscape(filename),
	)
	return r.Replace(tmpl)
}

// URLTemplate resolves attachment URLs from a template alone, for callers
// that search the index without opening a content source.
type URLTemplate string

// AttachmentURL expands the template for key and filename.
func (t URLTemplate) AttachmentURL(_ context.Context, key entry.Key, filename string) (string, error) {
	return ExpandURL(string(t), key, filename), nil
}
