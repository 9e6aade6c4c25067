package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var MaxPrice = decimal.NewFromInt(10000)

var (
	currencySymbols = strings.NewReplacer("€", "", "$", "", "£", "", "¥", "", "₹", "", "\u00a0", "")
	decimalComma    = regexp.MustCompile(`^\d+,\d{1,2}$`)
	leadingNumber   = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	scientific      = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?[eE][+-]?\d+$`)
)

// ParsePrice reads a tolerant price cell. Values outside [0, MaxPrice) are rejected.
func ParsePrice(raw string) *float64 {
	token := normalizePriceToken(raw)
	if token == "" {
		return nil
	}
	d, err := decimal.NewFromString(token)
	if err != nil {
		return nil
	}
	if d.IsNegative() || d.GreaterThanOrEqual(MaxPrice) {
		return nil
	}
	return FloatPtr(d.InexactFloat64())
}

func normalizePriceToken(raw string) string {
	s := StripSpaces(currencySymbols.Replace(raw))
	if s == "" {
		return ""
	}
	if decimalComma.MatchString(s) {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	if n := strings.Count(s, "."); n > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	return leadingNumber.FindString(s)
}

// ExpandScientific turns "3.605168123456E12" into "3605168123456"; other input is returned as is.
func ExpandScientific(value string) string {
	if !scientific.MatchString(value) {
		return value
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return value
	}
	return d.String()
}
