package supplier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"labelrecon/internal"
)

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

type Validation struct {
	IsValid    bool   `json:"isValid"`
	Confidence Tier   `json:"confidence"`
	Message    string `json:"message"`
}

var reNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

func ID(name string) string {
	return reNonAlnum.ReplaceAllString(name, "_")
}

type group struct {
	name    string
	entries []internal.CatalogEntry
}

// groups returns supplier groups by descending entry count, ties in first-seen order.
func groups(entries []internal.CatalogEntry) []group {
	pos := map[string]int{}
	out := []group{}
	for _, e := range entries {
		if e.Supplier == nil || strings.TrimSpace(*e.Supplier) == "" {
			continue
		}
		name := *e.Supplier
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, group{name: name})
		}
		out[i].entries = append(out[i].entries, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].entries) > len(out[j].entries) })
	return out
}

// Available lists the distinct suppliers of a catalog, largest first.
func Available(entries []internal.CatalogEntry) []internal.SupplierInfo {
	gs := groups(entries)
	out := make([]internal.SupplierInfo, 0, len(gs))
	for _, g := range gs {
		out = append(out, internal.SupplierInfo{ID: ID(g.name), Name: g.name, ProductCount: len(g.entries), DetectedReferences: []string{}})
	}
	return out
}

// Identify returns the largest supplier whose product references overlap at
// least one document reference, or nil.
func Identify(refs []internal.ProductReference, entries []internal.CatalogEntry) *internal.SupplierInfo {
	if len(refs) == 0 {
		return nil
	}
	for _, g := range groups(entries) {
		matched := []string{}
		for _, ref := range refs {
			if matchesAny(ref.Code, g.entries) {
				matched = append(matched, ref.Code)
			}
		}
		if len(matched) > 0 {
			return &internal.SupplierInfo{
				ID:                 ID(g.name),
				Name:               g.name,
				ProductCount:       len(g.entries),
				DetectedReferences: matched,
				Confidence:         float64(len(matched)) / float64(len(refs)),
			}
		}
	}
	return nil
}

func matchesAny(code string, entries []internal.CatalogEntry) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, e := range entries {
		if e.ProductReference == nil {
			continue
		}
		ref := strings.ToUpper(strings.TrimSpace(*e.ProductReference))
		if ref == "" {
			continue
		}
		if strings.Contains(code, ref) || strings.Contains(ref, code) {
			return true
		}
	}
	return false
}

func ValidateDetection(info *internal.SupplierInfo, totalReferences int) Validation {
	if info == nil || len(info.DetectedReferences) == 0 {
		return Validation{IsValid: false, Confidence: TierLow, Message: "no supplier matched the document references"}
	}
	matches := len(info.DetectedReferences)
	ratio := 0.0
	if totalReferences > 0 {
		ratio = float64(matches) / float64(totalReferences)
	}
	switch {
	case ratio >= 0.5 || matches >= 5:
		return Validation{IsValid: true, Confidence: TierHigh, Message: fmt.Sprintf("%s identified from %d of %d references", info.Name, matches, totalReferences)}
	default:
		return Validation{IsValid: true, Confidence: TierMedium, Message: fmt.Sprintf("%s matched %d of %d references, confirm the supplier", info.Name, matches, totalReferences)}
	}
}

// FilterEntries keeps the entries of one supplier, compared case-insensitively.
func FilterEntries(entries []internal.CatalogEntry, name string) []internal.CatalogEntry {
	out := make([]internal.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Supplier != nil && strings.EqualFold(strings.TrimSpace(*e.Supplier), strings.TrimSpace(name)) {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the supplier matching name, case-insensitively.
func Find(entries []internal.CatalogEntry, name string) (internal.SupplierInfo, bool) {
	for _, s := range Available(entries) {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) || s.ID == name {
			return s, true
		}
	}
	return internal.SupplierInfo{}, false
}
