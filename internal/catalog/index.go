package catalog

import (
	"strings"

	"labelrecon/internal"
)

// Index keeps the first entry seen for each key.
type Index struct {
	Entries      []internal.CatalogEntry
	ByNormalized map[string]internal.CatalogEntry
	ByRaw        map[string]internal.CatalogEntry
	BySupplier   map[string][]internal.CatalogEntry
}

func BuildIndex(entries []internal.CatalogEntry) *Index {
	idx := &Index{
		Entries:      entries,
		ByNormalized: make(map[string]internal.CatalogEntry, len(entries)),
		ByRaw:        make(map[string]internal.CatalogEntry, len(entries)),
		BySupplier:   map[string][]internal.CatalogEntry{},
	}

	for _, e := range entries {
		if e.NormalizedBarcode != "" {
			if _, ok := idx.ByNormalized[e.NormalizedBarcode]; !ok {
				idx.ByNormalized[e.NormalizedBarcode] = e
			}
		}
		if e.Barcode != "" {
			if _, ok := idx.ByRaw[e.Barcode]; !ok {
				idx.ByRaw[e.Barcode] = e
			}
		}
		if e.Supplier != nil {
			idx.BySupplier[*e.Supplier] = append(idx.BySupplier[*e.Supplier], e)
		}
	}

	return idx
}

// FindSuffix returns the first entry, in source order, whose normalized
// barcode equals short or ends with it.
func (idx *Index) FindSuffix(short string) (internal.CatalogEntry, bool) {
	if short == "" {
		return internal.CatalogEntry{}, false
	}
	for _, e := range idx.Entries {
		if e.NormalizedBarcode == short || strings.HasSuffix(e.NormalizedBarcode, short) {
			return e, true
		}
	}
	return internal.CatalogEntry{}, false
}
