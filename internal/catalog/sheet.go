package catalog

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"labelrecon/internal/util"
)

var sheetPriorities = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^main\s*sheet$`),
	regexp.MustCompile(`(?i)^(ah\s*25|ah25)$`),
	regexp.MustCompile(`(?i)^(data|données|donnees|produits?|articles?)$`),
	regexp.MustCompile(`(?i)^(sheet1?|feuil1?)$`),
}

var contentSignature = []signatureToken{
	{"gencod", 15}, {"x300", 10}, {"x350", 10}, {"lib._coloris", 8}, {"taille", 8}, {"fournisseur", 5},
}

func isSummarySheet(name string) bool {
	n := util.FoldHeader(name)
	return strings.Contains(n, "summary") || strings.HasPrefix(n, "resume") || strings.HasPrefix(n, "total")
}

// SelectSheet picks the worksheet holding the catalog. Names win over content.
func SelectSheet(wb *Workbook) (Sheet, string, error) {
	if wb == nil || len(wb.Sheets) == 0 {
		return Sheet{}, "", ErrNoSheet
	}

	for i, re := range sheetPriorities {
		for _, s := range wb.Sheets {
			if re.MatchString(strings.TrimSpace(s.Name)) {
				return s, fmt.Sprintf("name matched priority %d", i+1), nil
			}
		}
	}
	for _, s := range wb.Sheets {
		if !isSummarySheet(s.Name) {
			return s, "first non-summary sheet", nil
		}
	}

	bestIdx, bestScore := -1, 0.0
	for i, s := range wb.Sheets {
		if len(s.Rows) < 2 {
			continue
		}
		if score := contentScore(s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		return wb.Sheets[bestIdx], fmt.Sprintf("content score %.1f", bestScore), nil
	}
	return wb.Sheets[0], "first sheet", nil
}

func contentScore(s Sheet) float64 {
	var first []string
	for _, r := range s.Rows {
		if !r.IsBlank() {
			first = foldRow(r)
			break
		}
	}
	score := 0.0
	for _, tok := range contentSignature {
		for _, h := range first {
			if h == tok.name {
				score += float64(tok.weight)
				break
			}
		}
	}
	barcodeNames, _ := detectorFor(FieldBarcode)
	priceNames, _ := detectorFor(FieldPrice)
	supplierNames, _ := detectorFor(FieldSupplier)
	for _, group := range []struct {
		names  []string
		weight float64
	}{{barcodeNames.Names, 10}, {priceNames.Names, 5}, {supplierNames.Names, 5}} {
		for _, h := range first {
			if util.ContainsAny(h, group.names) {
				score += group.weight
				break
			}
		}
	}
	return score + math.Min(float64(len(s.Rows))/100, 5)
}
