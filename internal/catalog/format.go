package catalog

import "labelrecon/internal"

// ClassifyFormat is the single place deciding rich versus legacy: any color,
// any size and at least one entry priced in both euro and pound.
func ClassifyFormat(entries []internal.CatalogEntry) internal.CatalogFormat {
	hasColor, hasSize, hasDual := false, false, false
	for _, e := range entries {
		if e.Color != nil {
			hasColor = true
		}
		if e.Size != nil {
			hasSize = true
		}
		if e.PriceEuro != nil && e.PricePound != nil {
			hasDual = true
		}
		if hasColor && hasSize && hasDual {
			return internal.FormatRich
		}
	}
	return internal.FormatLegacy
}
