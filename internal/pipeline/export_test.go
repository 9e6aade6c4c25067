package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"labelrecon/internal"
	"labelrecon/internal/storage"
)

func exportFixture() ExportData {
	full := []internal.CatalogEntry{
		entry("3605168000001", "ACME", 10),
		entry("3605168000002", "ACME", 20),
		entry("3605168000009", "Globex", 15),
	}
	cmp := Compare(doc("3605168000001", "3605168000009"), full[:2], CompareOptions{SupplierName: "ACME", FullCatalog: full})
	m := CalculateMetrics(cmp.Results, "ACME", 2, cmp.Report.Format)
	return ExportData{
		RunID:           "run-1",
		CreatedAt:       time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		DocumentName:    "labels.pdf",
		CatalogName:     "catalog.xlsx",
		Metrics:         m,
		Results:         cmp.Results,
		Recommendations: BusinessRecommendations(m),
	}
}

func TestWriteReportXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportXLSX(exportFixture(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, SheetDetails, SheetCritical, SheetSuppliers, SheetRecommendations}, f.GetSheetList())

	rate, err := f.GetCellValue(SheetSummary, "B8")
	require.NoError(t, err)
	assert.Equal(t, "50", rate)
	supplierName, _ := f.GetCellValue(SheetSummary, "B5")
	assert.Equal(t, "ACME", supplierName)

	details, err := f.GetRows(SheetDetails)
	require.NoError(t, err)
	require.Len(t, details, 4)
	assert.Equal(t, []string{"3605168000009", "3605168000009", "pdf_only", "high"}, details[1][:4])
	assert.Equal(t, "add the code to the catalog or correct the label", details[1][13])

	critical, err := f.GetRows(SheetCritical)
	require.NoError(t, err)
	require.Len(t, critical, 2)
	assert.Equal(t, []string{"1", "3605168000009", "ACME"}, critical[1][:3])

	suppliers, err := f.GetRows(SheetSuppliers)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	assert.Equal(t, []string{"ACME", "2", "1", "0", "50", "15"}, suppliers[1])

	recs, err := f.GetRows(SheetRecommendations)
	require.NoError(t, err)
	assert.Equal(t, "1 document code(s) are missing at ACME, check the labels before printing", recs[1][0])
}

func TestExportOmitsEmptySheets(t *testing.T) {
	data := ExportData{RunID: "empty", Metrics: internal.ComplianceMetrics{SupplierName: "ACME"}}
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	require.NoError(t, ExportReportToXLSX(data, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, SheetDetails, SheetRecommendations}, f.GetSheetList())
}

func TestBusinessRecommendations(t *testing.T) {
	clean := BusinessRecommendations(internal.ComplianceMetrics{SupplierName: "ACME", ExactMatches: 3, ComplianceRate: 100})
	assert.Equal(t, []string{"every document code is listed at ACME"}, clean)

	poor := BusinessRecommendations(internal.ComplianceMetrics{SupplierName: "ACME", PDFOnly: 4, ExactMatches: 1, ExcelOnly: 2, ComplianceRate: 20})
	require.Len(t, poor, 3)
	assert.Contains(t, poor[1], "compliance rate 20.0% is below 90%")
	assert.Equal(t, "2 catalog product(s) are absent from the document", poor[2])
}

func TestExportDataFromStoredRun(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewReconcileService(testConfig(), nil, nil).WithExtractors(labelDocument(), nil).WithStore(db)
	report, err := svc.Reconcile(context.Background(), testInput(t))
	require.NoError(t, err)

	run, err := db.GetRun(report.RunID)
	require.NoError(t, err)
	results, err := db.GetRunResults(report.RunID)
	require.NoError(t, err)

	data := ExportDataFromRun(*run, results)
	assert.Equal(t, report.RunID, data.RunID)
	assert.False(t, data.CreatedAt.IsZero())
	assert.Equal(t, report.Metrics.ComplianceRate, data.Metrics.ComplianceRate)
	assert.Len(t, data.Results, len(report.Results))

	fromReport := ExportDataFromReport(report)
	assert.Equal(t, data.Recommendations, fromReport.Recommendations[:len(data.Recommendations)])
}
