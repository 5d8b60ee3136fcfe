package entry

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is stored when a unit carries no language.
const DefaultLanguage = "default"

// Key identifies one logical indexable unit. Revisions of the same unit
// share a key, so indexing a new revision supersedes the old document.
type Key struct {
	Wiki      string `json:"wiki"`
	Container string `json:"container"`
	Name      string `json:"name"`
	Language  string `json:"language"`
}

// NewKey builds a key with a normalized language.
func NewKey(wiki, container, name, lang string) Key {
	return Key{
		Wiki:      wiki,
		Container: container,
		Name:      name,
		Language:  NormalizeLanguage(lang),
	}
}

// NormalizeLanguage maps empty input to DefaultLanguage and canonicalizes
// BCP 47 tags ("en_US" becomes "en-US"). Unparseable tags are lower-cased.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, DefaultLanguage) {
		return DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	return tag.String()
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `.`, `\.`, `;`, `\;`)

// String encodes the key as wiki:container.name;lang with separators
// escaped, which makes the encoding injective.
func (k Key) String() string {
	lang := k.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	return keyEscaper.Replace(k.Wiki) + ":" +
		keyEscaper.Replace(k.Container) + "." +
		keyEscaper.Replace(k.Name) + ";" +
		keyEscaper.Replace(lang)
}

// ParseKey decodes the output of Key.String.
func ParseKey(s string) (Key, bool) {
	var parts []string
	var cur strings.Builder
	seps := []byte{':', '.', ';'}
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case len(parts) < len(seps) && c == seps[len(parts)]:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if escaped || len(parts) != len(seps) {
		return Key{}, false
	}
	parts = append(parts, cur.String())
	return Key{Wiki: parts[0], Container: parts[1], Name: parts[2], Language: parts[3]}, true
}

// WithLanguage returns a copy of k in another language.
func (k Key) WithLanguage(lang string) Key {
	k.Language = NormalizeLanguage(lang)
	return k
}
