package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"repricer/internal"
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
CREATE TABLE IF NOT EXISTS catalogs (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  source TEXT NOT NULL,
  headersJson TEXT NOT NULL,
  rowsJson TEXT NOT NULL,
  codeHeader TEXT NOT NULL,
  descHeader TEXT NOT NULL,
  importedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  origin TEXT NOT NULL,
  ref TEXT NOT NULL,
  kind TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(origin, ref)
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  documentId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS artifacts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  name TEXT NOT NULL,
  content BLOB NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceCatalog swaps the stored catalog for a new one in a single
// transaction. There is at most one catalog at a time.
func (d *DB) ReplaceCatalog(table internal.CatalogTable, codeHeader, descHeader string) error {
	headersJSON, err := json.Marshal(table.Headers)
	if err != nil {
		return err
	}
	rowsJSON, err := json.Marshal(table.Rows)
	if err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM catalogs`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
INSERT INTO catalogs (id, source, headersJson, rowsJson, codeHeader, descHeader)
VALUES (1, ?, ?, ?, ?, ?)
`, table.Source, string(headersJSON), string(rowsJSON), codeHeader, descHeader); err != nil {
		return err
	}

	return tx.Commit()
}

// GetCatalog returns the stored catalog, or nil when none was imported.
func (d *DB) GetCatalog() (*internal.StoredCatalog, error) {
	var source, headersJSON, rowsJSON string
	cat := internal.StoredCatalog{}
	err := d.conn.QueryRow(`
SELECT source, headersJson, rowsJson, codeHeader, descHeader, importedAt
FROM catalogs WHERE id = 1
`).Scan(&source, &headersJSON, &rowsJSON, &cat.CodeHeader, &cat.DescHeader, &cat.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cat.Table.Source = source
	if err := json.Unmarshal([]byte(headersJSON), &cat.Table.Headers); err != nil {
		return nil, fmt.Errorf("decode catalog headers: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &cat.Table.Rows); err != nil {
		return nil, fmt.Errorf("decode catalog rows: %w", err)
	}
	return &cat, nil
}

func (d *DB) MustCatalog() (internal.StoredCatalog, error) {
	cat, err := d.GetCatalog()
	if err != nil {
		return internal.StoredCatalog{}, err
	}
	if cat == nil {
		return internal.StoredCatalog{}, errors.New("no catalog imported; run catalog:import first")
	}
	return *cat, nil
}

func (d *DB) UpsertDocument(doc internal.InboundDocument, hash, rawRef, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (origin, ref, kind, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(origin, ref) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, doc.Origin, doc.Ref, string(doc.Kind), doc.Subject, doc.Sender, doc.ReceivedAt, hash, status, rawRef)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByOriginRef(doc.Origin, doc.Ref)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func (d *DB) GetDocumentByOriginRef(origin, ref string) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`
SELECT id, origin, ref, kind, subject, sender, receivedAt, hash, status, rawRef
FROM documents WHERE origin = ? AND ref = ?
`, origin, ref).Scan(
		&row.ID, &row.Origin, &row.Ref, &row.Kind, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetDocumentByID(id int) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`
SELECT id, origin, ref, kind, subject, sender, receivedAt, hash, status, rawRef
FROM documents WHERE id = ?
`, id).Scan(
		&row.ID, &row.Origin, &row.Ref, &row.Kind, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDocumentsByStatus(status string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT id, origin, ref, kind, subject, sender, receivedAt, hash, status, rawRef
FROM documents WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		var row internal.DocumentRow
		if err := rows.Scan(&row.ID, &row.Origin, &row.Ref, &row.Kind, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

func (d *DB) InsertRun(runID string, documentID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)

	var docID any
	if documentID > 0 {
		docID = documentID
	}
	_, err := d.conn.Exec(`INSERT INTO runs (runId, documentId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`,
		runID, docID, string(timingsJSON), string(countsJSON))
	return err
}

// ReplaceArtifacts keeps exactly one run's workbooks: the previous set
// is deleted and the new one written in the same transaction.
func (d *DB) ReplaceArtifacts(runID string, artifacts []internal.Artifact) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM artifacts`); err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if _, err := tx.Exec(`INSERT INTO artifacts (runId, name, content) VALUES (?, ?, ?)`,
			runID, artifact.Name, artifact.Content); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LastArtifacts returns the stored run's workbooks and its run id.
// Both are empty when no run has been stored yet.
func (d *DB) LastArtifacts() ([]internal.Artifact, string, error) {
	rows, err := d.conn.Query(`SELECT runId, name, content FROM artifacts ORDER BY id ASC`)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []internal.Artifact
	runID := ""
	for rows.Next() {
		var artifact internal.Artifact
		if err := rows.Scan(&runID, &artifact.Name, &artifact.Content); err != nil {
			return nil, "", err
		}
		out = append(out, artifact)
	}
	return out, runID, rows.Err()
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
