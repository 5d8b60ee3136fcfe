package fsstore

import (
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/wikindex/internal/content"
)

// Change classifies a file inside the tree.
type Change int

const (
	// ChangeNone is a path the indexer does not care about.
	ChangeNone Change = iota
	// ChangePage is page.md or a translation.
	ChangePage
	// ChangeAttachment is a file under attachments/.
	ChangeAttachment
	// ChangeObjects is objects.yaml.
	ChangeObjects
)

// Location is what a path in the tree refers to.
type Location struct {
	Change   Change
	Ref      content.UnitRef
	Language string
	Filename string
}

// Locate maps an absolute or root-relative path to the unit it belongs to.
func (s *Store) Locate(path string) (Location, bool) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return Location{}, false
		}
		path = rel
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	if len(parts) < 4 || parts[0] == ".." {
		return Location{}, false
	}
	for _, p := range parts {
		if strings.HasPrefix(p, ".") {
			return Location{}, false
		}
	}
	loc := Location{Ref: content.UnitRef{Wiki: parts[0], Container: parts[1], Name: parts[2]}}
	switch {
	case len(parts) == 4 && parts[3] == PageFile:
		loc.Change = ChangePage
	case len(parts) == 4 && parts[3] == ObjectsFile:
		loc.Change = ChangeObjects
	case len(parts) == 4 && TranslationLanguage(parts[3]) != "":
		loc.Change = ChangePage
		loc.Language = TranslationLanguage(parts[3])
	case len(parts) == 5 && parts[3] == AttachmentsDir:
		loc.Change = ChangeAttachment
		loc.Filename = parts[4]
	default:
		return Location{}, false
	}
	return loc, true
}
