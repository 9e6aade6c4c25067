package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelrecon/internal"
	"labelrecon/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if max < len(f.messages) {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func openDB(t *testing.T) (*storage.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, filepath.Join(dir, "raw")
}

func message(id, body string) internal.FetchedMailMessage {
	return internal.FetchedMailMessage{Provider: "imap", MessageID: id, Subject: "Etiquettes", From: "ops@supplier.example", ReceivedAt: "2025-03-01T09:00:00Z", Raw: []byte(body)}
}

func TestFetchAndStore(t *testing.T) {
	db, rawDir := openDB(t)
	conn := fakeConnector{messages: []internal.FetchedMailMessage{message("<a>", "one"), message("<b>", "two")}}
	svc := NewFetchService(db, rawDir, conn, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Stored: 2}, res)

	row, err := db.GetEmailByProviderMessageID("imap", "<a>")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "fetched", row.Status)
	raw, err := os.ReadFile(row.RawRef)
	require.NoError(t, err)
	assert.Equal(t, "one", string(raw))

	require.NoError(t, db.UpdateEmailStatus(row.ID, "processed"))
	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Unchanged: 2}, res)

	row, err = db.GetEmailByProviderMessageID("imap", "<a>")
	require.NoError(t, err)
	assert.Equal(t, "processed", row.Status)
}

func TestFetchAndStoreWrapsConnectorErrors(t *testing.T) {
	db, rawDir := openDB(t)
	boom := errors.New("connection reset")
	svc := NewFetchService(db, rawDir, fakeConnector{err: boom}, nil)

	_, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fetch INBOX")
}
