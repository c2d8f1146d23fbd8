package catalog

import (
	"time"

	"repricer/internal/storage"
)

// ImportService loads a catalog workbook, validates that the code and
// description columns can be resolved, and stores it as the active catalog.
type ImportService struct {
	db *storage.DB
}

func NewImportService(db *storage.DB) *ImportService {
	return &ImportService{db: db}
}

func (s *ImportService) ImportFile(path string) (Columns, int, error) {
	table, err := LoadFile(path)
	if err != nil {
		return Columns{}, 0, err
	}

	cols, err := ResolveColumns(table)
	if err != nil {
		return Columns{}, 0, err
	}

	if err := s.db.ReplaceCatalog(table, cols.CodeName, cols.DescName); err != nil {
		return Columns{}, 0, err
	}
	if err := s.db.SetMetadata("catalogImportedAt", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return Columns{}, 0, err
	}

	return cols, len(table.Rows), nil
}
