package overlay

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxLabelRunes = 40

// asciiLabel folds a payload to printable ASCII for the bitmap label font:
// accents are stripped, other non-ASCII and control runes become '?', and
// long payloads are cut with "...".
func asciiLabel(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	n := 0
	for _, r := range folded {
		if n == maxLabelRunes {
			b.WriteString("...")
			break
		}
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			r = '?'
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
