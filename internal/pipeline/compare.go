package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"labelrecon/internal"
	"labelrecon/internal/catalog"
)

type Strategy string

const (
	StrategyNormalized Strategy = "normalized"
	StrategyRaw        Strategy = "raw"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyNone       Strategy = "none"
)

const (
	DefaultLegacyCap = 50
	DefaultRichCap   = 100
	unknownSupplier  = "unknown supplier"
)

var strategyReason = map[Strategy]string{
	StrategyNormalized: "exact match on normalized code",
	StrategyRaw:        "exact match on raw code",
	StrategyFuzzy:      "match on truncated code",
}

type Matcher struct {
	index *catalog.Index
}

func NewMatcher(entries []internal.CatalogEntry) *Matcher {
	return &Matcher{index: catalog.BuildIndex(entries)}
}

// Match tries the normalized index, then the raw index, then the truncated
// code rule. The first step that finds an entry wins.
func (m *Matcher) Match(b internal.DocumentBarcode) (internal.CatalogEntry, Strategy, bool) {
	if e, ok := m.index.ByNormalized[b.NormalizedBarcode]; ok && b.NormalizedBarcode != "" {
		return e, StrategyNormalized, true
	}
	if e, ok := m.index.ByRaw[b.Barcode]; ok && b.Barcode != "" {
		return e, StrategyRaw, true
	}
	if len(b.NormalizedBarcode) > 10 {
		if e, ok := m.index.FindSuffix(b.NormalizedBarcode[1:]); ok {
			return e, StrategyFuzzy, true
		}
	}
	return internal.CatalogEntry{}, StrategyNone, false
}

type CompareOptions struct {
	Format       internal.CatalogFormat
	SupplierName string
	LegacyCap    int
	RichCap      int
	// FullCatalog, when set, is searched for codes missing from the compared
	// entries to report the supplier they are listed under.
	FullCatalog []internal.CatalogEntry
}

type MatchDetail struct {
	PDFCode   string   `json:"pdfCode"`
	ExcelCode string   `json:"excelCode,omitempty"`
	Strategy  Strategy `json:"strategy"`
	Reason    string   `json:"reason"`
}

type MissingCode struct {
	PDFCode       string   `json:"pdfCode"`
	OtherSupplier string   `json:"otherSupplier,omitempty"`
	OtherPrice    *float64 `json:"otherPrice,omitempty"`
	InCatalog     bool     `json:"inCatalog"`
	Reason        string   `json:"reason"`
}

type MatchReport struct {
	Format         internal.CatalogFormat `json:"format"`
	SupplierName   string                 `json:"supplierName"`
	PDFCount       int                    `json:"pdfCount"`
	CatalogCount   int                    `json:"catalogCount"`
	Matched        int                    `json:"matched"`
	Unmatched      int                    `json:"unmatched"`
	ByStrategy     map[Strategy]int       `json:"byStrategy"`
	ExcelOnlyTotal int                    `json:"excelOnlyTotal"`
	ExcelOnlyShown int                    `json:"excelOnlyShown"`
	Colors         int                    `json:"colors"`
	Sizes          int                    `json:"sizes"`
	EuroPriced     int                    `json:"euroPriced"`
	PoundPriced    int                    `json:"poundPriced"`
	Matches        []MatchDetail          `json:"matches"`
	Missing        []MissingCode          `json:"missing"`
}

type Comparison struct {
	Results []internal.ComparisonResult
	Report  MatchReport
}

var severityRank = map[internal.Severity]int{
	internal.SeverityHigh:   0,
	internal.SeverityMedium: 1,
	internal.SeverityLow:    2,
}

func Compare(pdf []internal.DocumentBarcode, entries []internal.CatalogEntry, opts CompareOptions) Comparison {
	if opts.LegacyCap <= 0 {
		opts.LegacyCap = DefaultLegacyCap
	}
	if opts.RichCap <= 0 {
		opts.RichCap = DefaultRichCap
	}
	if opts.Format == "" {
		opts.Format = catalog.ClassifyFormat(entries)
	}
	supplierName := opts.SupplierName
	if supplierName == "" {
		supplierName = unknownSupplier
		if len(entries) > 0 && entries[0].Supplier != nil && *entries[0].Supplier != "" {
			supplierName = *entries[0].Supplier
		}
	}

	matcher := NewMatcher(entries)
	report := MatchReport{
		Format:       opts.Format,
		SupplierName: supplierName,
		PDFCount:     len(pdf),
		CatalogCount: len(entries),
		ByStrategy:   map[Strategy]int{},
		Matches:      make([]MatchDetail, 0, len(pdf)),
		Missing:      []MissingCode{},
	}
	results := make([]internal.ComparisonResult, 0, len(pdf))
	consumed := map[string]struct{}{}

	for i := range pdf {
		b := pdf[i]
		consumed[b.NormalizedBarcode] = struct{}{}

		entry, strategy, ok := matcher.Match(b)
		report.ByStrategy[strategy]++
		if !ok {
			missing := analyzeMissing(b, supplierName, opts.FullCatalog)
			report.Unmatched++
			report.Missing = append(report.Missing, missing)
			report.Matches = append(report.Matches, MatchDetail{PDFCode: b.Barcode, Strategy: StrategyNone, Reason: missing.Reason})
			results = append(results, internal.ComparisonResult{
				Barcode:           b.Barcode,
				NormalizedBarcode: b.NormalizedBarcode,
				PDFData:           &pdf[i],
				Status:            internal.StatusPDFOnly,
				Severity:          internal.SeverityHigh,
				Discrepancy:       fmt.Sprintf("code not found at %s - %s", supplierName, missing.Reason),
			})
			continue
		}

		consumed[entry.NormalizedBarcode] = struct{}{}
		report.Matched++
		report.Matches = append(report.Matches, MatchDetail{PDFCode: b.Barcode, ExcelCode: entry.Barcode, Strategy: strategy, Reason: strategyReason[strategy]})
		matched := entry
		results = append(results, internal.ComparisonResult{
			Barcode:           b.Barcode,
			NormalizedBarcode: b.NormalizedBarcode,
			PDFData:           &pdf[i],
			ExcelData:         &matched,
			Status:            internal.StatusExactMatch,
			Severity:          internal.SeverityLow,
			Discrepancy:       matchDescription(strategyReason[strategy], entry, supplierName),
		})
	}

	leftovers := make([]internal.CatalogEntry, 0)
	for _, e := range entries {
		if _, ok := consumed[e.NormalizedBarcode]; !ok {
			leftovers = append(leftovers, e)
		}
	}
	sort.SliceStable(leftovers, func(i, j int) bool { return sortPrice(leftovers[i]) > sortPrice(leftovers[j]) })
	limit := opts.LegacyCap
	if opts.Format == internal.FormatRich {
		limit = opts.RichCap
	}
	report.ExcelOnlyTotal = len(leftovers)
	if len(leftovers) > limit {
		leftovers = leftovers[:limit]
	}
	report.ExcelOnlyShown = len(leftovers)
	for i := range leftovers {
		e := leftovers[i]
		results = append(results, internal.ComparisonResult{
			Barcode:           e.Barcode,
			NormalizedBarcode: e.NormalizedBarcode,
			ExcelData:         &e,
			Status:            internal.StatusExcelOnly,
			Severity:          internal.SeverityLow,
			Discrepancy:       excelOnlyDescription(e, supplierName),
		})
	}

	colors, sizes := map[string]struct{}{}, map[string]struct{}{}
	for _, e := range entries {
		if e.Color != nil {
			colors[*e.Color] = struct{}{}
		}
		if e.Size != nil {
			sizes[*e.Size] = struct{}{}
		}
		if e.PriceEuro != nil {
			report.EuroPriced++
		}
		if e.PricePound != nil {
			report.PoundPriced++
		}
	}
	report.Colors, report.Sizes = len(colors), len(sizes)

	sort.SliceStable(results, func(i, j int) bool {
		return severityRank[results[i].Severity] < severityRank[results[j].Severity]
	})
	return Comparison{Results: results, Report: report}
}

func entrySupplier(e internal.CatalogEntry, fallback string) string {
	if e.Supplier != nil && *e.Supplier != "" {
		return *e.Supplier
	}
	return fallback
}

func matchDescription(reason string, e internal.CatalogEntry, supplierName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s", reason, entrySupplier(e, supplierName))
	if e.Color != nil && e.Size != nil {
		fmt.Fprintf(&b, " | %s - %s", *e.Color, *e.Size)
	}
	if e.PriceEuro != nil && e.PricePound != nil {
		fmt.Fprintf(&b, " | %s€ / %s£", formatPrice(*e.PriceEuro), formatPrice(*e.PricePound))
	}
	return b.String()
}

func excelOnlyDescription(e internal.CatalogEntry, supplierName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "listed at %s but absent from the document", entrySupplier(e, supplierName))
	if e.Color != nil && e.Size != nil {
		fmt.Fprintf(&b, " | %s - %s", *e.Color, *e.Size)
	}
	price := e.PriceEuro
	if price == nil {
		price = e.Price
	}
	if price != nil && *price > 0 {
		fmt.Fprintf(&b, " (%.2f€)", *price)
	}
	return b.String()
}

func analyzeMissing(b internal.DocumentBarcode, supplierName string, full []internal.CatalogEntry) MissingCode {
	for _, e := range full {
		if e.NormalizedBarcode != b.NormalizedBarcode || e.Supplier == nil || strings.EqualFold(*e.Supplier, supplierName) {
			continue
		}
		price := e.Price
		if price == nil {
			price = e.PriceEuro
		}
		return MissingCode{
			PDFCode:       b.Barcode,
			OtherSupplier: *e.Supplier,
			OtherPrice:    price,
			InCatalog:     true,
			Reason:        "listed under supplier " + *e.Supplier,
		}
	}
	return MissingCode{PDFCode: b.Barcode, Reason: "code absent from the catalog"}
}

func sortPrice(e internal.CatalogEntry) float64 {
	if e.Price != nil && *e.Price > 0 {
		return *e.Price
	}
	if e.PriceEuro != nil {
		return *e.PriceEuro
	}
	return 0
}

func formatPrice(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
