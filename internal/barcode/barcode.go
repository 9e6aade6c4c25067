package barcode

import "strings"

var validLengths = map[int]struct{}{8: {}, 12: {}, 13: {}, 14: {}}

// Normalize keeps only the ASCII decimal digits of raw.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	out := strings.Builder{}
	out.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			out.WriteByte(raw[i])
		}
	}
	return out.String()
}

// IsValidFormat reports whether the normalized form is an EAN-8, UPC-A, EAN-13 or GTIN-14 length.
func IsValidFormat(raw string) bool {
	_, ok := validLengths[len(Normalize(raw))]
	return ok
}

// Similarity is a binary equality indicator on normalized forms, not a distance.
func Similarity(a, b string) float64 {
	if Normalize(a) == Normalize(b) {
		return 1
	}
	return 0
}

func IsPlaceholder(digits string) bool {
	if digits == "" {
		return false
	}
	return strings.Trim(digits, "0") == ""
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
