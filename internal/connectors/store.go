package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"repricer/internal"
	"repricer/internal/storage"
)

// DocumentStore persists fetched documents: raw bytes on disk keyed by
// content hash, metadata in the database. Storing the same document
// again refreshes its metadata but keeps its processing status, so a
// refetch never reprocesses anything.
type DocumentStore struct {
	db     *storage.DB
	rawDir string
}

func NewDocumentStore(db *storage.DB, rawDir string) *DocumentStore {
	return &DocumentStore{db: db, rawDir: rawDir}
}

func (s *DocumentStore) Store(doc internal.InboundDocument) (internal.DocumentRow, error) {
	hashBytes := sha256.Sum256(doc.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return internal.DocumentRow{}, err
	}

	rawPath := filepath.Join(s.rawDir, hash+rawExt(doc.Kind))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, doc.Raw, 0o644); err != nil {
			return internal.DocumentRow{}, err
		}
	}

	return s.db.UpsertDocument(doc, hash, rawPath, "pending")
}

func rawExt(kind internal.DocumentKind) string {
	switch kind {
	case internal.KindEmail:
		return ".eml"
	case internal.KindText:
		return ".txt"
	case internal.KindPDF:
		return ".pdf"
	case internal.KindXLSX:
		return ".xlsx"
	case internal.KindHTML:
		return ".html"
	default:
		return ".bin"
	}
}
