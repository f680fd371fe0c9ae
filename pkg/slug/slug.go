package slug

import (
	"regexp"
	"strings"
)

var nonAlnumRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// accentFold maps common accented Latin characters to their ASCII
// equivalents so listing titles like "Café chair" slug cleanly.
var accentFold = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a",
	"è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i",
	"ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n", "ß", "ss",
)

// Generate creates a URL-friendly slug from a listing title.
//
// Examples:
//   - "Double room near College Lane" → "double-room-near-college-lane"
//   - "Café chair (x2)!" → "cafe-chair-x2"
func Generate(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = accentFold.Replace(s)
	s = nonAlnumRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
