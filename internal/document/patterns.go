package document

import (
	"fmt"
	"regexp"
	"strings"
)

type Pattern struct {
	Name string
	Expr *regexp.Regexp
}

// Family is the set of barcodes a document is expected to carry.
type Family struct {
	Prefixes []string
	Length   int
}

func (f Family) Accepts(digits string) bool {
	if f.Length > 0 && len(digits) != f.Length {
		return false
	}
	if len(f.Prefixes) == 0 {
		return true
	}
	for _, p := range f.Prefixes {
		if strings.HasPrefix(digits, p) {
			return true
		}
	}
	return false
}

var DefaultFamily = Family{Prefixes: []string{"3605168"}, Length: 13}

// DefaultPatterns match the label layouts seen for DefaultFamily, including
// the spacing used on FW25 and SS26 labels.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "fw25", Expr: regexp.MustCompile(`3\s*605\s*168\s*\d{6}`)},
		{Name: "ss26", Expr: regexp.MustCompile(`3\s*6051\s*68\s*\d{6}`)},
		{Name: "compact", Expr: regexp.MustCompile(`3605168\d{6}`)},
		{Name: "spaced", Expr: regexp.MustCompile(`3\s*6\s*0\s*5\s*1\s*6\s*8\s*\d{6}`)},
	}
}

// PatternsFor builds a compact and a whitespace tolerant pattern per prefix.
func PatternsFor(f Family) []Pattern {
	out := []Pattern{}
	for _, p := range f.Prefixes {
		rest := f.Length - len(p)
		if rest < 0 {
			continue
		}
		digits := strings.Split(p, "")
		out = append(out,
			Pattern{Name: "compact-" + p, Expr: regexp.MustCompile(fmt.Sprintf(`%s\d{%d}`, regexp.QuoteMeta(p), rest))},
			Pattern{Name: "spaced-" + p, Expr: regexp.MustCompile(fmt.Sprintf(`%s\s*\d{%d}`, strings.Join(digits, `\s*`), rest))},
		)
	}
	if len(f.Prefixes) == 0 && f.Length > 0 {
		out = append(out, Pattern{Name: "any", Expr: regexp.MustCompile(fmt.Sprintf(`\d{%d}`, f.Length))})
	}
	return out
}
