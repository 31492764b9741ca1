// Package fingerprint derives deterministic cache keys from product
// identifying fields. The normalization is intentionally aggressive so
// near-duplicate phrasings of the same product (case, whitespace,
// typographic quotes, Latin/Cyrillic homoglyph mixups) collapse to one
// key, while semantically different products stay apart because the full
// normalized text is hashed, not truncated.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// latinToCyrillic maps Latin letters that are visually identical to
// Cyrillic ones. Mixed-script product names are common in procurement
// exports (e.g. Latin "c" typed inside a Russian word).
var latinToCyrillic = map[rune]rune{
	'a': 'а', 'b': 'в', 'c': 'с', 'e': 'е', 'h': 'н', 'k': 'к',
	'm': 'м', 'o': 'о', 'p': 'р', 't': 'т', 'x': 'х', 'y': 'у',
}

// stripDiacritics removes combining marks after NFD decomposition, so
// Latin accented letters fold to their base form.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a product identifying string:
// Unicode NFC, lowercase, ё->е, Latin diacritics stripped, typographic
// quotes and dashes unified, Latin homoglyphs folded into Cyrillic for
// words that already contain Cyrillic letters, and all remaining
// punctuation/whitespace runs collapsed to single spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	if folded, _, err := transform.String(stripDiacritics, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 'ё':
			b.WriteRune('е')
		case r == '«' || r == '»' || r == '“' || r == '”' || r == '„':
			b.WriteRune('"')
		case r == '—' || r == '–' || r == '−':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '/' && r != '.'
	})
	for i, w := range words {
		words[i] = foldHomoglyphs(w)
	}
	return strings.Join(words, " ")
}

// foldHomoglyphs maps Latin lookalike letters to Cyrillic, but only in
// words that contain at least one Cyrillic letter. Pure-Latin tokens
// (model numbers, brand names) are left untouched.
func foldHomoglyphs(word string) string {
	hasCyrillic := false
	for _, r := range word {
		if unicode.Is(unicode.Cyrillic, r) {
			hasCyrillic = true
			break
		}
	}
	if !hasCyrillic {
		return word
	}
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		if c, ok := latinToCyrillic[r]; ok {
			b.WriteRune(c)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key derives the cache fingerprint for a product: SHA-256 over the
// normalized name and unit joined with a separator that cannot appear in
// normalized text. Identical normalized input always yields the same key.
func Key(name, unit string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(name)))
	h.Write([]byte{'|'})
	h.Write([]byte(Normalize(unit)))
	return hex.EncodeToString(h.Sum(nil))
}
