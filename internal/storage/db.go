package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"labelrecon/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL UNIQUE,
  emailId INTEGER,
  documentName TEXT NOT NULL,
  catalogName TEXT NOT NULL,
  supplierName TEXT NOT NULL,
  format TEXT NOT NULL,
  pdfCount INTEGER NOT NULL,
  catalogCount INTEGER NOT NULL,
  complianceRate REAL NOT NULL,
  metricsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_runs_emailId ON runs(emailId);

CREATE TABLE IF NOT EXISTS results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  barcode TEXT NOT NULL,
  normalizedBarcode TEXT NOT NULL,
  status TEXT NOT NULL,
  severity TEXT NOT NULL,
  discrepancy TEXT NOT NULL,
  resultJson TEXT NOT NULL,
  UNIQUE(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(runId)
);
CREATE INDEX IF NOT EXISTS idx_results_barcode ON results(normalizedBarcode);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(s scanner) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// InsertRun stores a run and its results in one transaction. Results keep
// their order through the position column.
func (d *DB) InsertRun(run internal.RunRow, results []internal.ComparisonResult) error {
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return err
	}
	timingsJSON, err := json.Marshal(run.Timings)
	if err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO runs (runId, emailId, documentName, catalogName, supplierName, format, pdfCount, catalogCount, complianceRate, metricsJson, timingsJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.RunID, run.EmailID, run.DocumentName, run.CatalogName, run.SupplierName, string(run.Format), run.PDFCount, run.CatalogCount, run.Metrics.ComplianceRate, string(metricsJSON), string(timingsJSON)); err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO results (runId, position, barcode, normalizedBarcode, status, severity, discrepancy, resultJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		blob, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(run.RunID, i, r.Barcode, r.NormalizedBarcode, string(r.Status), string(r.Severity), r.Discrepancy, string(blob)); err != nil {
			return fmt.Errorf("insert result %d of run %s: %w", i, run.RunID, err)
		}
	}

	return tx.Commit()
}

const runColumns = `runId, emailId, documentName, catalogName, supplierName, format, pdfCount, catalogCount, metricsJson, timingsJson, createdAt`

func scanRun(s scanner) (internal.RunRow, error) {
	var (
		run         internal.RunRow
		emailID     sql.NullInt64
		format      string
		metricsJSON string
		timingsJSON string
	)
	if err := s.Scan(&run.RunID, &emailID, &run.DocumentName, &run.CatalogName, &run.SupplierName, &format, &run.PDFCount, &run.CatalogCount, &metricsJSON, &timingsJSON, &run.CreatedAt); err != nil {
		return internal.RunRow{}, err
	}
	if emailID.Valid {
		id := int(emailID.Int64)
		run.EmailID = &id
	}
	run.Format = internal.CatalogFormat(format)
	if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
		return internal.RunRow{}, fmt.Errorf("decode metrics of run %s: %w", run.RunID, err)
	}
	_ = json.Unmarshal([]byte(timingsJSON), &run.Timings)
	return run, nil
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	return d.queryRuns(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
}

func (d *DB) ListRunsByEmail(emailID int) ([]internal.RunRow, error) {
	return d.queryRuns(`SELECT `+runColumns+` FROM runs WHERE emailId = ? ORDER BY id ASC`, emailID)
}

func (d *DB) queryRuns(query string, args ...any) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(runID string) (*internal.RunRow, error) {
	run, err := scanRun(d.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE runId = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *DB) GetRunResults(runID string) ([]internal.ComparisonResult, error) {
	rows, err := d.conn.Query(`SELECT resultJson FROM results WHERE runId = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ComparisonResult
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var r internal.ComparisonResult
		if err := json.Unmarshal([]byte(blob), &r); err != nil {
			return nil, fmt.Errorf("decode result of run %s: %w", runID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearEmailRuns removes earlier runs of an email before it is processed again.
func (d *DB) ClearEmailRuns(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM results WHERE runId IN (SELECT runId FROM runs WHERE emailId = ?)`, emailID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE emailId = ?`, emailID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
