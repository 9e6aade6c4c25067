package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelrecon/internal"
	"labelrecon/internal/observability"
	"labelrecon/internal/storage"
)

type processFixture struct {
	db      *storage.DB
	dir     string
	metrics *observability.Metrics
	svc     *ProcessingService
}

func newProcessFixture(t *testing.T, reconciler Reconciler) *processFixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	metrics := observability.NewMetrics()
	if reconciler == nil {
		reconciler = NewReconcileService(testConfig(), nil, metrics).WithExtractors(labelDocument(), nil).WithStore(db)
	}
	return &processFixture{db: db, dir: dir, metrics: metrics, svc: NewProcessingService(db, reconciler, nil, metrics)}
}

func (f *processFixture) store(t *testing.T, messageID string, raw []byte) internal.EmailRow {
	t.Helper()
	path := filepath.Join(f.dir, messageID+".eml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	row, err := f.db.UpsertEmail("imap", messageID, "", "ops@supplier.example", "2025-03-01T09:00:00Z", "h-"+messageID, path, EmailFetched)
	require.NoError(t, err)
	return row
}

func TestProcessEmailCreatesRun(t *testing.T) {
	f := newProcessFixture(t, nil)
	email := f.store(t, "m1", mkEmail(t, "Etiquettes FW25", "", pdfPart(), sheetPart(t)))

	res, err := f.svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, EmailProcessed, res.Status)
	assert.Equal(t, "ACME", res.Supplier)
	assert.Equal(t, 50.0, res.ComplianceRate)
	require.NotEmpty(t, res.RunID)

	runs, err := f.db.ListRunsByEmail(email.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].RunID)
	assert.Equal(t, "labels.pdf", runs[0].DocumentName)

	row, err := f.db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailProcessed, row.Status)

	// reprocessing replaces the previous run
	res2, err := f.svc.ProcessByProviderMessageID(context.Background(), "imap", "m1")
	require.NoError(t, err)
	runs, err = f.db.ListRunsByEmail(email.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res2.RunID, runs[0].RunID)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.EmailsProcessed.WithLabelValues(EmailProcessed)))
}

func TestProcessEmailSkipsWithoutSpreadsheet(t *testing.T) {
	f := newProcessFixture(t, nil)
	email := f.store(t, "m2", mkEmail(t, "Etiquettes", "", pdfPart()))

	res, err := f.svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, EmailSkipped, res.Status)
	assert.Empty(t, res.RunID)

	row, err := f.db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailSkipped, row.Status)
}

func TestProcessEmailSkipsWithoutKeywords(t *testing.T) {
	f := newProcessFixture(t, nil)
	email := f.store(t, "m5", mkEmail(t, "Fichiers", "", pdfPart(), sheetPart(t)))

	res, err := f.svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, EmailSkipped, res.Status)

	runs, err := f.db.ListRunsByEmail(email.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

type failingReconciler struct{ err error }

func (r failingReconciler) Reconcile(ctx context.Context, in Input) (*Report, error) {
	return nil, r.err
}

func TestProcessEmailMarksFailures(t *testing.T) {
	f := newProcessFixture(t, failingReconciler{err: errors.New("extract catalog.xlsx: broken")})
	email := f.store(t, "m3", mkEmail(t, "Etiquettes", "", pdfPart(), sheetPart(t)))

	res, err := f.svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, EmailFailed, res.Status)
	assert.Contains(t, res.Error, "broken")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EmailsProcessed.WithLabelValues(EmailFailed)))
}

func TestProcessEmailReturnsCancellation(t *testing.T) {
	f := newProcessFixture(t, failingReconciler{err: fmt.Errorf("extract: %w", context.Canceled)})
	email := f.store(t, "m4", mkEmail(t, "Etiquettes", "", pdfPart(), sheetPart(t)))

	_, err := f.svc.ProcessEmail(context.Background(), email)
	assert.ErrorIs(t, err, context.Canceled)

	row, err := f.db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailFetched, row.Status)
}

func TestProcessPending(t *testing.T) {
	f := newProcessFixture(t, nil)
	f.store(t, "p1", mkEmail(t, "Etiquettes", "", pdfPart(), sheetPart(t)))
	f.store(t, "p2", mkEmail(t, "Bonjour", "", pdfPart()))

	emails, runs, err := f.svc.ProcessPending(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, emails)
	assert.Equal(t, 1, runs)

	pending, err := f.db.ListEmailsByStatus(EmailFetched, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	emails, _, err = f.svc.ProcessPending(context.Background(), 10, "gmail")
	require.NoError(t, err)
	assert.Zero(t, emails)
}
