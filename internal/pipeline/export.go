package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"labelrecon/internal"
)

const (
	SheetSummary         = "Summary"
	SheetDetails         = "Details"
	SheetCritical        = "Critical errors"
	SheetSuppliers       = "Suppliers"
	SheetRecommendations = "Recommendations"
)

type ExportData struct {
	RunID           string
	CreatedAt       time.Time
	DocumentName    string
	CatalogName     string
	Metrics         internal.ComplianceMetrics
	Results         []internal.ComparisonResult
	Recommendations []string
}

func ExportDataFromReport(r *Report) ExportData {
	recs := append(BusinessRecommendations(r.Metrics), r.Catalog.Suggestions...)
	recs = append(recs, r.Performance.Recommendations...)
	return ExportData{
		RunID:           r.RunID,
		CreatedAt:       r.CreatedAt,
		DocumentName:    r.DocumentName,
		CatalogName:     r.CatalogName,
		Metrics:         r.Metrics,
		Results:         r.Results,
		Recommendations: recs,
	}
}

func ExportDataFromRun(run internal.RunRow, results []internal.ComparisonResult) ExportData {
	created, _ := time.Parse("2006-01-02 15:04:05", run.CreatedAt)
	return ExportData{
		RunID:           run.RunID,
		CreatedAt:       created,
		DocumentName:    run.DocumentName,
		CatalogName:     run.CatalogName,
		Metrics:         run.Metrics,
		Results:         results,
		Recommendations: BusinessRecommendations(run.Metrics),
	}
}

func BusinessRecommendations(m internal.ComplianceMetrics) []string {
	out := []string{}
	switch {
	case m.PDFOnly == 0 && m.ExactMatches > 0:
		out = append(out, fmt.Sprintf("every document code is listed at %s", m.SupplierName))
	case m.PDFOnly > 0:
		out = append(out, fmt.Sprintf("%d document code(s) are missing at %s, check the labels before printing", m.PDFOnly, m.SupplierName))
	}
	if m.ComplianceRate < 90 && m.PDFOnly > 0 {
		out = append(out, fmt.Sprintf("compliance rate %.1f%% is below 90%%, ask the supplier for an updated catalog", m.ComplianceRate))
	}
	if m.ExcelOnly > 0 {
		out = append(out, fmt.Sprintf("%d catalog product(s) are absent from the document", m.ExcelOnly))
	}
	return out
}

func ExportReportToXLSX(data ExportData, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := buildReport(data)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(outputPath)
}

func WriteReportXLSX(data ExportData, w io.Writer) error {
	f, err := buildReport(data)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func buildReport(data ExportData) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return nil, err
	}

	m := data.Metrics
	summary := [][]any{
		{"Run", data.RunID},
		{"Date", data.CreatedAt.Format("2006-01-02 15:04")},
		{"Document", data.DocumentName},
		{"Catalog", data.CatalogName},
		{"Supplier", m.SupplierName},
		{"Format", string(m.Format)},
		{},
		{"Compliance rate (%)", round2(m.ComplianceRate)},
		{"Error rate (%)", round2(m.ErrorRate)},
		{"Results", m.Total},
		{"Exact matches", m.ExactMatches},
		{"Missing from catalog", m.PDFOnly},
		{"Missing from document", m.ExcelOnly},
		{"Critical errors", m.CriticalErrors},
	}
	if a := m.CurrencyAnalysis; a != nil {
		summary = append(summary,
			[]any{"EUR priced", a.EUR.Count, round2(a.EUR.AveragePrice)},
			[]any{"GBP priced", a.GBP.Count, round2(a.GBP.AveragePrice)},
		)
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return nil, err
	}

	details := [][]any{{"Barcode", "Normalized", "Status", "Severity", "Price", "EUR", "GBP", "Description", "Supplier", "Reference", "Color", "Size", "Observation", "Action"}}
	critical := [][]any{{"Priority", "Barcode", "Supplier", "Observation", "Action"}}
	for _, r := range data.Results {
		e := r.ExcelData
		if e == nil {
			e = &internal.CatalogEntry{}
		}
		details = append(details, []any{
			r.Barcode, r.NormalizedBarcode, string(r.Status), string(r.Severity),
			cellFloat(e.Price), cellFloat(e.PriceEuro), cellFloat(e.PricePound),
			cellString(e.Description), cellString(e.Supplier), cellString(e.ProductReference),
			cellString(e.Color), cellString(e.Size), r.Discrepancy, requiredAction(r.Status),
		})
		if r.Severity == internal.SeverityHigh {
			supplierName := cellString(e.Supplier)
			if supplierName == "" {
				supplierName = m.SupplierName
			}
			critical = append(critical, []any{len(critical), r.Barcode, supplierName, r.Discrepancy, requiredAction(r.Status)})
		}
	}
	if err := addSheet(f, SheetDetails, details); err != nil {
		return nil, err
	}
	if len(critical) > 1 {
		if err := addSheet(f, SheetCritical, critical); err != nil {
			return nil, err
		}
	}
	if rows := supplierRows(data.Results); len(rows) > 1 {
		if err := addSheet(f, SheetSuppliers, rows); err != nil {
			return nil, err
		}
	}

	recs := [][]any{{"Recommendation"}}
	for _, r := range data.Recommendations {
		recs = append(recs, []any{r})
	}
	if err := addSheet(f, SheetRecommendations, recs); err != nil {
		return nil, err
	}
	return f, nil
}

func supplierRows(results []internal.ComparisonResult) [][]any {
	type agg struct {
		total, matches, errors, priced int
		priceSum                       float64
	}
	bySupplier := map[string]*agg{}
	for _, r := range results {
		if r.ExcelData == nil || r.ExcelData.Supplier == nil {
			continue
		}
		a := bySupplier[*r.ExcelData.Supplier]
		if a == nil {
			a = &agg{}
			bySupplier[*r.ExcelData.Supplier] = a
		}
		a.total++
		switch r.Status {
		case internal.StatusExactMatch:
			a.matches++
		case internal.StatusPDFOnly, internal.StatusPriceMismatch:
			a.errors++
		}
		if p := sortPrice(*r.ExcelData); p > 0 {
			a.priced++
			a.priceSum += p
		}
	}
	names := make([]string, 0, len(bySupplier))
	for name := range bySupplier {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := [][]any{{"Supplier", "Products", "Matches", "Errors", "Match rate (%)", "Average price"}}
	for _, name := range names {
		a := bySupplier[name]
		avg := any("")
		if a.priced > 0 {
			avg = round2(a.priceSum / float64(a.priced))
		}
		rows = append(rows, []any{name, a.total, a.matches, a.errors, round2(float64(a.matches) / float64(a.total) * 100), avg})
	}
	return rows
}

func requiredAction(status internal.ResultStatus) string {
	switch status {
	case internal.StatusPDFOnly:
		return "add the code to the catalog or correct the label"
	case internal.StatusExcelOnly:
		return "check whether the product should be labelled"
	case internal.StatusPriceMismatch:
		return "align the label price with the catalog"
	}
	return ""
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func cellString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cellFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
