package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultLanguage},
		{"   ", DefaultLanguage},
		{"default", DefaultLanguage},
		{"DEFAULT", DefaultLanguage},
		{"en", "en"},
		{"fr", "fr"},
		{"en_US", "en-US"},
		{"not a tag!", "not a tag!"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLanguage(tt.in))
		})
	}
}

func TestKey_StringIsDeterministic(t *testing.T) {
	k := NewKey("w1", "Space", "Page", "en")
	assert.Equal(t, "w1:Space.Page;en", k.String())
	assert.Equal(t, k.String(), NewKey("w1", "Space", "Page", "en").String())
}

func TestKey_EmptyLanguageIncludesDefault(t *testing.T) {
	// Given: a key built without a language
	k := NewKey("w1", "Space", "Page", "")

	// Then: the encoded key carries the default sentinel
	assert.Equal(t, DefaultLanguage, k.Language)
	assert.Contains(t, k.String(), ";default")

	// And: a zero-value Language encodes the same way
	raw := Key{Wiki: "w1", Container: "Space", Name: "Page"}
	assert.Equal(t, k.String(), raw.String())
}

func TestKey_EscapingKeepsKeysDistinct(t *testing.T) {
	// Given: two keys whose naive concatenation would collide
	a := NewKey("w", "A.B", "C", "en")
	b := NewKey("w", "A", "B.C", "en")

	// Then: their encodings differ
	assert.NotEqual(t, a.String(), b.String())
}

func TestParseKey_RoundTrip(t *testing.T) {
	keys := []Key{
		NewKey("w1", "Space", "Page", "en"),
		NewKey("wiki:x", "Main.Sub", "Page;1", ""),
		NewKey(`back\slash`, "", "Page/file.txt", "fr"),
	}
	for _, k := range keys {
		t.Run(k.String(), func(t *testing.T) {
			parsed, ok := ParseKey(k.String())
			require.True(t, ok)
			assert.Equal(t, k, parsed)
		})
	}
}

func TestParseKey_Malformed(t *testing.T) {
	for _, s := range []string{"", "w1", "w1:Space", "w1:Space.Page", `w1:Space.Page;en\`} {
		_, ok := ParseKey(s)
		assert.False(t, ok, s)
	}
}

func TestDates_RoundTrip(t *testing.T) {
	// Given: an instant with millisecond precision in a non-UTC zone
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2024, 3, 9, 17, 4, 5, 123_000_000, loc)

	// When: encoded and decoded
	s := EncodeDate(in)
	out, err := DecodeDate(s)

	// Then: the same instant comes back
	require.NoError(t, err)
	assert.Equal(t, "20240309150405123", s)
	assert.True(t, in.Equal(out))
}

func TestDates_ZeroAndInvalid(t *testing.T) {
	assert.Equal(t, "", EncodeDate(time.Time{}))

	zero, err := DecodeDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = DecodeDate("2024")
	assert.Error(t, err)
	_, err = DecodeDate("2024030915040x123")
	assert.Error(t, err)
}
