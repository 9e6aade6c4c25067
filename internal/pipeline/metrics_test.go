package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelrecon/internal"
	"labelrecon/internal/util"
)

func result(status internal.ResultStatus, severity internal.Severity, withPDF bool, e *internal.CatalogEntry) internal.ComparisonResult {
	r := internal.ComparisonResult{Status: status, Severity: severity, ExcelData: e}
	if withPDF {
		r.PDFData = &internal.DocumentBarcode{}
	}
	return r
}

func TestMetricsComplianceBoundary(t *testing.T) {
	results := []internal.ComparisonResult{}
	for i := 0; i < 8; i++ {
		results = append(results, result(internal.StatusExactMatch, internal.SeverityLow, true, nil))
	}
	for i := 0; i < 2; i++ {
		results = append(results, result(internal.StatusPDFOnly, internal.SeverityHigh, true, nil))
	}
	results = append(results, result(internal.StatusExcelOnly, internal.SeverityLow, false, nil))

	m := CalculateMetrics(results, "ACME", 10, internal.FormatLegacy)
	assert.Equal(t, 80.0, m.ComplianceRate)
	assert.Equal(t, 20.0, m.ErrorRate)
	assert.Equal(t, 11, m.Total)
	assert.Equal(t, 2, m.CriticalErrors)
	assert.Equal(t, 1, m.ExcelOnly)
	assert.Equal(t, "ACME", m.SupplierName)
	assert.Equal(t, internal.FormatLegacy, m.Format)
}

func TestMetricsUsesAuthoritativePDFCount(t *testing.T) {
	results := []internal.ComparisonResult{
		result(internal.StatusExactMatch, internal.SeverityLow, true, nil),
	}
	assert.Equal(t, 25.0, CalculateMetrics(results, "", 4, internal.FormatLegacy).ComplianceRate)
	assert.Equal(t, 100.0, CalculateMetrics(results, "", 0, internal.FormatLegacy).ComplianceRate)
	assert.Zero(t, CalculateMetrics(nil, "", 0, internal.FormatLegacy).ComplianceRate)
}

func TestMetricsDistributionsAndCurrency(t *testing.T) {
	a := &internal.CatalogEntry{Color: util.StringPtr("Navy"), Size: util.StringPtr("M"), Supplier: util.StringPtr("ACME"), PriceEuro: util.FloatPtr(10), PricePound: util.FloatPtr(8)}
	b := &internal.CatalogEntry{Color: util.StringPtr("Navy"), Size: util.StringPtr("L"), Supplier: util.StringPtr("ACME"), PriceEuro: util.FloatPtr(30)}
	c := &internal.CatalogEntry{Supplier: util.StringPtr("Globex"), PriceEuro: util.FloatPtr(0)}

	m := CalculateMetrics([]internal.ComparisonResult{
		result(internal.StatusExactMatch, internal.SeverityLow, true, a),
		result(internal.StatusExcelOnly, internal.SeverityLow, false, b),
		result(internal.StatusExcelOnly, internal.SeverityLow, false, c),
	}, "ACME", 1, internal.FormatRich)

	assert.Equal(t, map[string]int{"Navy": 2}, m.ColorDistribution)
	assert.Equal(t, map[string]int{"M": 1, "L": 1}, m.SizeDistribution)
	assert.Equal(t, map[string]int{"ACME": 2, "Globex": 1}, m.SupplierDistribution)
	require.NotNil(t, m.CurrencyAnalysis)
	assert.Equal(t, 2, m.CurrencyAnalysis.EUR.Count)
	assert.Equal(t, 20.0, m.CurrencyAnalysis.EUR.AveragePrice)
	assert.Equal(t, 1, m.CurrencyAnalysis.GBP.Count)
	assert.Equal(t, 8.0, m.CurrencyAnalysis.GBP.AveragePrice)
}
