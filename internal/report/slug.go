package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug turns an obra name into a filesystem- and key-safe identifier:
// accents stripped, lowercased, runs of non-alphanumerics collapsed to a
// single hyphen. "Torre Norte (Fase 2)" becomes "torre-norte-fase-2".
func Slug(name string) string {
	clean, _, err := transform.String(stripAccents, name)
	if err != nil {
		clean = name
	}
	clean = strings.ToLower(clean)

	var b strings.Builder
	lastHyphen := true
	for _, r := range clean {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
