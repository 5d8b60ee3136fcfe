package content

import (
	"github.com/Aman-CERP/wikindex/internal/entry"
)

// PageEntry converts a unit or translation snapshot to a page entry.
func PageEntry(u *Unit) *entry.Entry {
	return entry.NewPage(u.Ref.Key(u.Language), unitMeta(u), entry.PagePayload{
		Title:   u.Title,
		Content: u.Content,
	})
}

// AttachmentEntry converts an attachment of u to an attachment entry.
// Attachment metadata falls back to the unit's where it is missing.
func AttachmentEntry(u *Unit, a *Attachment) *entry.Entry {
	meta := unitMeta(u)
	if a.Author != "" {
		meta.Author = a.Author
	}
	if !a.Created.IsZero() {
		meta.Created = a.Created
	}
	if !a.Modified.IsZero() {
		meta.Modified = a.Modified
	}
	return entry.NewAttachment(u.Ref.Key(u.Language), meta, entry.AttachmentPayload{
		Filename: a.Filename,
		MIMEType: a.MIMEType,
		Data:     a.Data,
	})
}

// ObjectEntries converts the structured objects of u to entries.
func ObjectEntries(u *Unit, objects []*Object) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(objects))
	key := u.Ref.Key(u.Language)
	meta := unitMeta(u)
	for _, o := range objects {
		out = append(out, entry.NewObject(key, meta, entry.ObjectPayload{
			ClassName: o.ClassName,
			Number:    o.Number,
			Fields:    o.Fields,
		}))
	}
	return out
}

func unitMeta(u *Unit) entry.Meta {
	return entry.Meta{
		Author:   u.Author,
		Creator:  u.Creator,
		Created:  u.Created,
		Modified: u.Modified,
	}
}
