package internal

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindPDF   DocumentKind = "pdf"
	KindXLSX  DocumentKind = "xlsx"
	KindHTML  DocumentKind = "html"
	KindText  DocumentKind = "text"
	KindEmail DocumentKind = "email"
)

// KindForFilename maps a file extension to the document kind used for
// line extraction. The second return is false for unsupported files.
func KindForFilename(name string) (DocumentKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, true
	case ".xlsx", ".xlsm", ".xltx":
		return KindXLSX, true
	case ".html", ".htm":
		return KindHTML, true
	case ".txt":
		return KindText, true
	case ".eml":
		return KindEmail, true
	default:
		return "", false
	}
}

// PriceRecord is one parsed price-list line. Description has the
// leading numeric code already stripped; Cost is the supplier cost.
type PriceRecord struct {
	LineNo      int
	RawLine     string
	Description string
	Cost        decimal.Decimal
}

// MatchedEntry is one (record, catalog row) pair. A record matching
// several catalog rows produces one entry per row.
type MatchedEntry struct {
	Code           string
	Description    string
	Cost           decimal.Decimal
	RetailPrice    decimal.Decimal
	WholesalePrice decimal.Decimal
}

// UnmatchedEntry is a parsed record with no containing catalog row.
type UnmatchedEntry struct {
	Description string
	Cost        decimal.Decimal
}

// CatalogTable is the raw imported catalog sheet. Rows are padded to
// the header width; cell text is trimmed but otherwise untouched.
type CatalogTable struct {
	Source  string
	Headers []string
	Rows    [][]string
}

// StoredCatalog is the catalog persisted by catalog:import, with its
// resolved role headers.
type StoredCatalog struct {
	Table      CatalogTable
	CodeHeader string
	DescHeader string
	ImportedAt string
}

// Report is the outcome of one reconciliation run. The code and
// description headers come from the catalog's own resolved columns and
// template the exported workbooks.
type Report struct {
	GeneratedAt       time.Time
	CodeHeader        string
	DescriptionHeader string
	Matched           []MatchedEntry
	Unmatched         []UnmatchedEntry
	Counts            ReportCounts
}

type ReportCounts struct {
	Lines       int
	Records     int
	Matched     int
	Unmatched   int
	CatalogRows int
}

func (c ReportCounts) Map() map[string]int {
	return map[string]int{
		"lines":       c.Lines,
		"records":     c.Records,
		"matched":     c.Matched,
		"unmatched":   c.Unmatched,
		"catalogRows": c.CatalogRows,
	}
}

// Artifact is one serialized output workbook.
type Artifact struct {
	Name    string
	Content []byte
}

// InboundDocument is a price-list document delivered by a source
// connector, before it is persisted.
type InboundDocument struct {
	Origin     string
	Ref        string
	Kind       DocumentKind
	Subject    string
	Sender     string
	ReceivedAt string
	Raw        []byte
}

// DocumentRow is a persisted inbound document.
type DocumentRow struct {
	ID         int
	Origin     string
	Ref        string
	Kind       string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}
