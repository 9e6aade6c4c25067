package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reHazards = regexp.MustCompile("[<>\"'&\x00-\x1f\x7f]")
)

// Sanitize drops markup-hazard and control characters and trims the result.
func Sanitize(input string) string {
	return strings.TrimSpace(reHazards.ReplaceAllString(input, ""))
}

// FoldHeader lowercases, strips diacritics and collapses whitespace so
// "Libellé  Article" and "libelle article" compare equal.
func FoldHeader(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return NormalizeSpaces(s)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func StripSpaces(input string) string {
	return reSpaces.ReplaceAllString(input, "")
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ContainsAny(s string, needles []string) bool {
	for _, p := range needles {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
