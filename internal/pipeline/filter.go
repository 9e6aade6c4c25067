package pipeline

import (
	"slices"
	"strings"

	"labelrecon/internal"
)

type FilterOptions struct {
	Statuses   []internal.ResultStatus
	Severities []internal.Severity
	Colors     []string
	Sizes      []string
	Suppliers  []string
	MinPrice   *float64
	MaxPrice   *float64
	Currency   internal.Currency
	Search     string
}

// FilterResults keeps the results satisfying every non-empty criterion.
func FilterResults(results []internal.ComparisonResult, f FilterOptions) []internal.ComparisonResult {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]internal.ComparisonResult, 0, len(results))
	for _, r := range results {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
			continue
		}
		if len(f.Severities) > 0 && !slices.Contains(f.Severities, r.Severity) {
			continue
		}
		e := r.ExcelData
		if len(f.Colors) > 0 && (e == nil || e.Color == nil || !slices.Contains(f.Colors, *e.Color)) {
			continue
		}
		if len(f.Sizes) > 0 && (e == nil || e.Size == nil || !slices.Contains(f.Sizes, *e.Size)) {
			continue
		}
		if len(f.Suppliers) > 0 && (e == nil || e.Supplier == nil || !slices.Contains(f.Suppliers, *e.Supplier)) {
			continue
		}
		if f.MinPrice != nil || f.MaxPrice != nil {
			price := filterPrice(e)
			if price == nil {
				continue
			}
			if f.MinPrice != nil && *price < *f.MinPrice {
				continue
			}
			if f.MaxPrice != nil && *price > *f.MaxPrice {
				continue
			}
		}
		switch f.Currency {
		case internal.CurrencyEUR:
			if e == nil || e.PriceEuro == nil {
				continue
			}
		case internal.CurrencyGBP:
			if e == nil || e.PricePound == nil {
				continue
			}
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func filterPrice(e *internal.CatalogEntry) *float64 {
	if e == nil {
		return nil
	}
	if e.PriceEuro != nil && *e.PriceEuro > 0 {
		return e.PriceEuro
	}
	if e.Price != nil && *e.Price > 0 {
		return e.Price
	}
	return nil
}

func matchesSearch(r internal.ComparisonResult, term string) bool {
	fields := []string{r.Barcode, r.Discrepancy}
	if e := r.ExcelData; e != nil {
		for _, p := range []*string{e.Description, e.Supplier, e.Color, e.Size, e.ProductReference} {
			if p != nil {
				fields = append(fields, *p)
			}
		}
	}
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
