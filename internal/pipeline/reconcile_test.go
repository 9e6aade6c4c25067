package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"labelrecon/internal"
	"labelrecon/internal/cache"
	"labelrecon/internal/catalog"
	"labelrecon/internal/config"
	"labelrecon/internal/document"
	"labelrecon/internal/observability"
	"labelrecon/internal/storage"
)

type fakeDocuments struct {
	calls atomic.Int32
	out   *document.Extraction
	err   error
}

func (f *fakeDocuments) Extract(ctx context.Context, content []byte) (*document.Extraction, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func labelDocument() *fakeDocuments {
	ex := document.NewExtractor(document.DefaultOptions()).ExtractFromText("ref ABC123XYZ\n3605168000001\n3605168000009\n")
	return &fakeDocuments{out: ex}
}

func fakePDF() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte(" "), 2048)...)
}

func mkCatalog(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func labelCatalog(t *testing.T) []byte {
	return mkCatalog(t, [][]any{
		{"GENCOD", "X300", "FOURNISSEUR", "CODE_ARTICLE"},
		{"3605168000001", 29.99, "ACME", "ABC123XYZ"},
		{"3605168000002", 39.99, "ACME", "ABC124XYZ"},
		{"3605168000003", 12, "Globex", "GLX000111"},
		{"3605168000009", 15, "Globex", "GLX000999"},
		{"3605168000004", 10, "ACME", "ABC125XYZ"},
	})
}

func testConfig() config.Config {
	return config.Config{
		MinColumnConfidence: 0.6,
		MaxHeaderRows:       10,
		ChunkSize:           1000,
		MaxSpreadsheetMB:    50,
		MaxUploadSheetMB:    20,
		MaxPDFMB:            50,
		BarcodePrefixes:     []string{"3605168"},
		BarcodeLength:       13,
		ExcelOnlyCapLegacy:  50,
		ExcelOnlyCapRich:    100,
	}
}

func testInput(t *testing.T) Input {
	return Input{
		Document: Source{Name: "labels.pdf", Content: fakePDF()},
		Catalog:  Source{Name: "catalog.xlsx", Content: labelCatalog(t)},
	}
}

func TestReconcileIdentifiesSupplierAndStoresRun(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	metrics := observability.NewMetrics()
	docs := labelDocument()
	svc := NewReconcileService(testConfig(), nil, metrics).WithExtractors(docs, nil).WithStore(db)

	report, err := svc.Reconcile(context.Background(), testInput(t))
	require.NoError(t, err)

	require.NotNil(t, report.Supplier)
	assert.Equal(t, "ACME", report.Supplier.Name)
	assert.Equal(t, []string{"ABC123XYZ"}, report.Supplier.DetectedReferences)
	assert.True(t, report.Validation.IsValid)
	assert.Equal(t, internal.FormatLegacy, report.Format)
	require.Len(t, report.Suppliers, 2)

	require.Equal(t, []internal.ResultStatus{
		internal.StatusPDFOnly, internal.StatusExactMatch, internal.StatusExcelOnly, internal.StatusExcelOnly,
	}, statuses(report.Results))
	assert.Equal(t, "code not found at ACME - listed under supplier Globex", report.Results[0].Discrepancy)
	assert.Equal(t, "3605168000002", report.Results[2].Barcode)
	assert.Equal(t, 50.0, report.Metrics.ComplianceRate)
	assert.Equal(t, 50.0, report.Metrics.ErrorRate)
	assert.Equal(t, 2, report.Match.PDFCount)
	assert.Equal(t, 3, report.Match.CatalogCount)
	assert.NotEmpty(t, report.Performance.Spans)

	run, err := db.GetRun(report.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "ACME", run.SupplierName)
	assert.Contains(t, run.Timings, "catalog")
	stored, err := db.GetRunResults(report.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ResultsTotal.WithLabelValues("excel_only")))
	assert.Equal(t, 50.0, testutil.ToFloat64(metrics.ComplianceRate.WithLabelValues("ACME")))
}

func TestReconcileExplicitSupplier(t *testing.T) {
	svc := NewReconcileService(testConfig(), nil, nil).WithExtractors(labelDocument(), nil)

	in := testInput(t)
	in.Supplier = "globex"
	report, err := svc.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Globex", report.Match.SupplierName)
	assert.True(t, report.Validation.IsValid)
	assert.Contains(t, report.Validation.Message, "selected by caller")
	assert.Equal(t, 50.0, report.Metrics.ComplianceRate)
	assert.Equal(t, "code not found at Globex - listed under supplier ACME", report.Results[0].Discrepancy)

	in.Supplier = "Initech"
	_, err = svc.Reconcile(context.Background(), in)
	assert.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestReconcileUsesCache(t *testing.T) {
	metrics := observability.NewMetrics()
	docs := labelDocument()
	c := NewExtractionCache(4, time.Minute)
	svc := NewReconcileService(testConfig(), nil, metrics).WithExtractors(docs, nil).WithCache(c)

	in := testInput(t)
	_, err := svc.Reconcile(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.Reconcile(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, int32(1), docs.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1, c.Catalogs.Len())

	c.Purge()
	_, err = svc.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int32(2), docs.calls.Load())
}

func TestReconcileCacheHitKeepsUploadName(t *testing.T) {
	c := NewExtractionCache(4, time.Minute)
	svc := NewReconcileService(testConfig(), nil, nil).WithExtractors(labelDocument(), nil).WithCache(c)

	in := testInput(t)
	first, err := svc.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "catalog.xlsx", first.Catalog.FileName)

	in.Catalog.Name = "catalogue-fw25.xlsx"
	second, err := svc.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "catalogue-fw25.xlsx", second.Catalog.FileName)
	assert.Equal(t, first.Catalog.FileSize, second.Catalog.FileSize)

	cached, ok := c.Catalogs.Get(cache.Key("catalog.xlsx", in.Catalog.Content))
	require.True(t, ok)
	assert.Equal(t, "catalog.xlsx", cached.Diagnostics.FileName)
}

func TestReconcileRejectsInvalidInput(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := NewReconcileService(testConfig(), nil, metrics).WithExtractors(labelDocument(), nil)

	in := testInput(t)
	in.Document.Content = []byte("not a pdf")
	_, err := svc.Reconcile(context.Background(), in)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "pdf", verrs[0].Field)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("invalid_input")))
}

func TestReconcileSurfacesStructuralErrors(t *testing.T) {
	svc := NewReconcileService(testConfig(), nil, nil).WithExtractors(labelDocument(), nil)
	in := testInput(t)
	in.Catalog.Content = mkCatalog(t, [][]any{
		{"GENCOD", "Prix"},
		{"ABCDEFGHIJ", "10"},
		{"00000000", "10"},
		{"123456789012345", "10"},
	})
	_, err := svc.Reconcile(context.Background(), in)
	var noData *catalog.NoDataError
	require.True(t, errors.As(err, &noData), "got %v", err)

	svc = NewReconcileService(testConfig(), nil, nil).WithExtractors(&fakeDocuments{err: document.ErrNoPages}, nil)
	_, err = svc.Reconcile(context.Background(), testInput(t))
	assert.ErrorIs(t, err, document.ErrNoPages)
}

func TestDocumentOptionsFromConfig(t *testing.T) {
	cfg := testConfig()
	opts := DocumentOptions(cfg)
	assert.Len(t, opts.Patterns, len(document.DefaultPatterns()))

	cfg.BarcodePrefixes = []string{"400", "500"}
	opts = DocumentOptions(cfg)
	assert.Len(t, opts.Patterns, 4)
	assert.Equal(t, []string{"400", "500"}, opts.Family.Prefixes)
}
