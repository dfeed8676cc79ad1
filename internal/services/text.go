package services

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultWPM is the reading speed used when none is configured.
const DefaultWPM = 200

// slugMaxLen caps normalized slugs by rune length.
const slugMaxLen = 120

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	nonSlugRE    = regexp.MustCompile(`[^a-z0-9]+`)

	trLower = cases.Lower(language.Turkish)

	// Letters NFD does not decompose into base + mark.
	turkishFold = strings.NewReplacer("ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "œ", "oe")
)

// ReadingTime estimates minutes to read content at wpm words per minute,
// rounded to the nearest minute and never less than one.
func ReadingTime(content string, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	words := len(strings.Fields(content))
	m := int(math.Round(float64(words) / float64(wpm)))
	if m < 1 {
		return 1
	}
	return m
}

// NormalizeSlug turns arbitrary text into a URL slug: Turkish-aware
// lowercase, diacritics folded to ASCII, every other run of characters
// replaced with a single hyphen.
//
//	"Kıdem Tazminatı Nasıl Hesaplanır?" -> "kidem-tazminati-nasil-hesaplanir"
func NormalizeSlug(s string) string {
	s = trLower.String(strings.TrimSpace(s))
	s = turkishFold.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = strings.Trim(nonSlugRE.ReplaceAllString(s, "-"), "-")
	if utf8.RuneCountInString(s) > slugMaxLen {
		s = strings.TrimRight(s[:slugMaxLen], "-")
	}
	return s
}

// normalizeText trims whitespace and collapses inner runs to one space.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// optional trims *s and maps blank strings to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
