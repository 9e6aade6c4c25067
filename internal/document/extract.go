package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"labelrecon/internal"
	"labelrecon/internal/util"
)

var (
	ErrNotPDF       = errors.New("content is not a PDF document")
	ErrFileTooLarge = errors.New("PDF exceeds size limit")
	ErrNoPages      = errors.New("PDF has no pages")
)

const DefaultMaxFileBytes = 50 << 20

var reReference = regexp.MustCompile(`\b[A-Z0-9]{9}\b`)

func init() {
	// pdfcpu would otherwise create a configuration directory under the user's home.
	api.DisableConfigDir()
}

type Options struct {
	Family       Family
	Patterns     []Pattern
	MaxFileBytes int64
}

func DefaultOptions() Options {
	return Options{Family: DefaultFamily, Patterns: DefaultPatterns(), MaxFileBytes: DefaultMaxFileBytes}
}

type Stats struct {
	Pages           int            `json:"pages"`
	TextLength      int            `json:"textLength"`
	TotalReferences int            `json:"totalReferences"`
	ValidBarcodes   int            `json:"validBarcodes"`
	ReferencesOnly  int            `json:"referencesOnly"`
	PatternHits     map[string]int `json:"patternHits"`
	UsedFallback    bool           `json:"usedFallback"`
}

type Extraction struct {
	Barcodes   []internal.DocumentBarcode
	References []internal.ProductReference
	Stats      Stats
}

type Extractor struct {
	opts Options
}

func NewExtractor(opts Options) *Extractor {
	if len(opts.Patterns) == 0 {
		if len(opts.Family.Prefixes) == 0 && opts.Family.Length == 0 {
			opts.Family = DefaultFamily
			opts.Patterns = DefaultPatterns()
		} else {
			opts.Patterns = PatternsFor(opts.Family)
		}
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Extractor{opts: opts}
}

func (e *Extractor) Family() Family {
	return e.opts.Family
}

// Validate checks the structure with pdfcpu and returns the page count.
func (e *Extractor) Validate(content []byte) (int, error) {
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		return 0, ErrNotPDF
	}
	if int64(len(content)) > e.opts.MaxFileBytes {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(content), e.opts.MaxFileBytes)
	}
	pages, err := api.PageCount(bytes.NewReader(content), nil)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF structure: %w", err)
	}
	if pages == 0 {
		return 0, ErrNoPages
	}
	return pages, nil
}

func (e *Extractor) Extract(ctx context.Context, content []byte) (*Extraction, error) {
	pages, err := e.Validate(content)
	if err != nil {
		return nil, err
	}
	text, err := readText(ctx, content)
	if err != nil {
		return nil, err
	}
	out := e.ExtractFromText(text)
	out.Stats.Pages = pages
	return out, nil
}

func readText(ctx context.Context, content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	parts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// ExtractFromText applies the configured patterns in order, keeping the first
// occurrence of each barcode. When no pattern yields a barcode, the whole text
// is scanned again with whitespace removed.
func (e *Extractor) ExtractFromText(text string) *Extraction {
	out := &Extraction{Stats: Stats{TextLength: len(text), PatternHits: map[string]int{}}}
	seen := map[string]struct{}{}
	add := func(digits string) bool {
		if !e.opts.Family.Accepts(digits) {
			return false
		}
		if _, ok := seen[digits]; ok {
			return false
		}
		seen[digits] = struct{}{}
		out.Barcodes = append(out.Barcodes, internal.DocumentBarcode{
			Barcode:           digits,
			NormalizedBarcode: digits,
			Source:            internal.SourceDocument,
		})
		return true
	}

	for _, p := range e.opts.Patterns {
		for _, m := range p.Expr.FindAllString(text, -1) {
			if add(util.StripSpaces(m)) {
				out.Stats.PatternHits[p.Name]++
			}
		}
	}

	if len(out.Barcodes) == 0 {
		out.Stats.UsedFallback = true
		length := e.opts.Family.Length
		if length <= 0 {
			length = 13
		}
		re := regexp.MustCompile(fmt.Sprintf(`\d{%d}`, length))
		for _, m := range re.FindAllString(util.StripSpaces(text), -1) {
			if add(m) {
				out.Stats.PatternHits["fallback"]++
			}
		}
	}

	out.References = extractReferences(text)
	out.Stats.ValidBarcodes = len(out.Barcodes)
	out.Stats.TotalReferences = len(out.References)
	for _, ref := range out.References {
		inBarcode := false
		for _, b := range out.Barcodes {
			if strings.Contains(b.Barcode, ref.Code) {
				inBarcode = true
				break
			}
		}
		if !inBarcode {
			out.Stats.ReferencesOnly++
		}
	}
	return out
}

// extractReferences returns one reference per occurrence, in source order.
func extractReferences(text string) []internal.ProductReference {
	out := []internal.ProductReference{}
	for _, line := range util.SplitLines(text) {
		for _, code := range reReference.FindAllString(line, -1) {
			out = append(out, internal.ProductReference{Code: code, FullReference: truncateRunes(line, maxFullReference)})
		}
	}
	return out
}

const maxFullReference = 120

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
