package pipeline

import "labelrecon/internal"

// CalculateMetrics aggregates results. pdfCount is the number of document
// barcodes before any capping or filtering; when it is not positive the count
// of results carrying document data is used instead.
func CalculateMetrics(results []internal.ComparisonResult, supplierName string, pdfCount int, format internal.CatalogFormat) internal.ComplianceMetrics {
	m := internal.ComplianceMetrics{
		SupplierName:         supplierName,
		Format:               format,
		Total:                len(results),
		ColorDistribution:    map[string]int{},
		SizeDistribution:     map[string]int{},
		SupplierDistribution: map[string]int{},
	}

	withPDF := 0
	eurSum, gbpSum := 0.0, 0.0
	analysis := &internal.CurrencyAnalysis{}
	for _, r := range results {
		switch r.Status {
		case internal.StatusExactMatch:
			m.ExactMatches++
		case internal.StatusPriceMismatch:
			m.PriceMismatches++
		case internal.StatusPDFOnly:
			m.PDFOnly++
		case internal.StatusExcelOnly:
			m.ExcelOnly++
		}
		if r.Severity == internal.SeverityHigh {
			m.CriticalErrors++
		}
		if r.PDFData != nil {
			withPDF++
		}

		e := r.ExcelData
		if e == nil {
			continue
		}
		if e.Color != nil && *e.Color != "" {
			m.ColorDistribution[*e.Color]++
		}
		if e.Size != nil && *e.Size != "" {
			m.SizeDistribution[*e.Size]++
		}
		if e.Supplier != nil && *e.Supplier != "" {
			m.SupplierDistribution[*e.Supplier]++
		}
		if e.PriceEuro != nil && *e.PriceEuro > 0 {
			analysis.EUR.Count++
			eurSum += *e.PriceEuro
		}
		if e.PricePound != nil && *e.PricePound > 0 {
			analysis.GBP.Count++
			gbpSum += *e.PricePound
		}
	}

	if analysis.EUR.Count > 0 {
		analysis.EUR.AveragePrice = eurSum / float64(analysis.EUR.Count)
	}
	if analysis.GBP.Count > 0 {
		analysis.GBP.AveragePrice = gbpSum / float64(analysis.GBP.Count)
	}
	m.CurrencyAnalysis = analysis

	if pdfCount <= 0 {
		pdfCount = withPDF
	}
	if pdfCount > 0 {
		m.ComplianceRate = float64(m.ExactMatches+m.PriceMismatches) / float64(pdfCount) * 100
		m.ErrorRate = float64(m.PDFOnly) / float64(pdfCount) * 100
	}
	return m
}
