package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// IDSeparator joins the alphanumeric runs of a counter id.
	IDSeparator = '-'

	// MaxNameLength bounds the display name in bytes.
	MaxNameLength = 200
)

// NormalizeName derives a counter id from a display name.
//
// Accents are folded away, letters are lower-cased, every run of
// non-alphanumeric runes becomes a single separator, and separators are
// trimmed from both ends. The result may be empty.
func NormalizeName(name string) string {
	// A transform.Chain carries state, so each call builds its own.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pending := false
	for _, r := range strings.ToLower(folded) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteRune(IDSeparator)
		}
		pending = false
		b.WriteRune(r)
	}
	return b.String()
}

// CounterID validates a display name and returns its trimmed form together
// with the derived id.
func CounterID(name string) (display, id string, err error) {
	display = strings.TrimSpace(name)
	if !utf8.ValidString(display) {
		return "", "", ErrInvalidName.WithDetails("name is not valid UTF-8")
	}
	if len(display) > MaxNameLength {
		return "", "", ErrInvalidName.WithDetails("name is too long")
	}
	id = NormalizeName(display)
	if id == "" {
		return "", "", ErrInvalidName.WithDetails("name has no letters or digits")
	}
	return display, id, nil
}
