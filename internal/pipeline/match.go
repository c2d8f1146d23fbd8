package pipeline

import (
	"repricer/internal"
	"repricer/internal/catalog"
)

// Hit is one catalog row whose description contains a parsed
// description.
type Hit struct {
	Row         int
	Code        string
	Description string
}

// Matcher resolves parsed descriptions against the catalog by literal
// case-insensitive substring containment. The candidate descriptions
// are fixed up front, so one run scans the catalog once no matter how
// many records it parsed.
type Matcher struct {
	table internal.CatalogTable
	cols  catalog.Columns
	index *catalog.Index
}

func NewMatcher(table internal.CatalogTable, cols catalog.Columns, descriptions []string) *Matcher {
	return &Matcher{
		table: table,
		cols:  cols,
		index: catalog.NewIndex(table, cols, descriptions),
	}
}

// Match returns every catalog row containing description, in catalog
// order. Zero hits sends the record to the not-found report.
func (m *Matcher) Match(description string) []Hit {
	rows := m.index.Rows(description)
	out := make([]Hit, 0, len(rows))
	for _, rowNo := range rows {
		row := m.table.Rows[rowNo]
		out = append(out, Hit{
			Row:         rowNo,
			Code:        cellAt(row, m.cols.Code),
			Description: cellAt(row, m.cols.Desc),
		})
	}
	return out
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
