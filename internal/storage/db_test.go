package storage

import (
	"path/filepath"
	"testing"

	"labelrecon/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEmailLifecycle(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("imap", "<m1@example.com>", "Labels FW25", "supplier@example.com", "2026-02-08T00:00:00Z", "h1", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	again, err := db.UpsertEmail("imap", "<m1@example.com>", "Labels FW25 (resend)", "supplier@example.com", "2026-02-08T00:00:00Z", "h2", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != email.ID || again.Subject != "Labels FW25 (resend)" {
		t.Fatalf("upsert did not update in place: %+v", again)
	}

	pending, err := db.ListEmailsByStatus("fetched", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%v err=%v", pending, err)
	}
	if err := db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetEmailByID(email.ID)
	if err != nil || got == nil || got.Status != "processed" {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	if _, err := db.MustEmailByProviderMessageID("imap", "<missing>"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)
	email, err := db.UpsertEmail("gmail", "g-1", "labels", "s@example.com", "2026-02-08T00:00:00Z", "h", "/tmp/g1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}

	supplier := "ACME"
	results := []internal.ComparisonResult{
		{Barcode: "3605168000009", NormalizedBarcode: "3605168000009", Status: internal.StatusPDFOnly, Severity: internal.SeverityHigh, Discrepancy: "code not found at ACME - code absent from the catalog"},
		{Barcode: "3605168000001", NormalizedBarcode: "3605168000001", Status: internal.StatusExactMatch, Severity: internal.SeverityLow, ExcelData: &internal.CatalogEntry{Barcode: "3605168000001", Supplier: &supplier}},
	}
	run := internal.RunRow{
		RunID:        "run-1",
		EmailID:      &email.ID,
		DocumentName: "labels.pdf",
		CatalogName:  "catalog.xlsx",
		SupplierName: supplier,
		Format:       internal.FormatLegacy,
		PDFCount:     2,
		CatalogCount: 1,
		Metrics:      internal.ComplianceMetrics{SupplierName: supplier, ExactMatches: 1, PDFOnly: 1, ComplianceRate: 50, ErrorRate: 50},
		Timings:      map[string]float64{"totalMs": 12.5},
	}
	if err := db.InsertRun(run, results); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRun("run-1")
	if err != nil || got == nil {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if got.EmailID == nil || *got.EmailID != email.ID || got.Metrics.ComplianceRate != 50 || got.Timings["totalMs"] != 12.5 {
		t.Fatalf("unexpected run: %+v", got)
	}

	stored, err := db.GetRunResults("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0].Status != internal.StatusPDFOnly || stored[1].ExcelData == nil || *stored[1].ExcelData.Supplier != "ACME" {
		t.Fatalf("unexpected results: %+v", stored)
	}

	byEmail, err := db.ListRunsByEmail(email.ID)
	if err != nil || len(byEmail) != 1 {
		t.Fatalf("byEmail=%v err=%v", byEmail, err)
	}
	if err := db.ClearEmailRuns(email.ID); err != nil {
		t.Fatal(err)
	}
	all, err := db.ListRuns(10)
	if err != nil || len(all) != 0 {
		t.Fatalf("runs after clear=%v err=%v", all, err)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("last_fetch")
	if err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("last_fetch", "2026-02-08"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("last_fetch", "2026-02-09"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMetadata("last_fetch")
	if err != nil || v == nil || *v != "2026-02-09" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}
