package catalog

import (
	"github.com/cloudflare/ahocorasick"

	"repricer/internal"
	"repricer/internal/util"
)

// Index answers "which catalog rows contain this description" for a
// fixed set of query descriptions. The descriptions become the pattern
// dictionary of an Aho-Corasick automaton and every catalog description
// cell is scanned once, so a run costs one pass over the catalog no
// matter how many records it parsed.
type Index struct {
	patternIdx    map[string]int
	rowsByPattern [][]int
}

// NewIndex folds and dedupes the descriptions, scans the table's
// description column, and records which rows contain which pattern.
// Empty descriptions are never indexed; they would contain-match every
// row.
func NewIndex(table internal.CatalogTable, cols Columns, descriptions []string) *Index {
	idx := &Index{patternIdx: map[string]int{}}

	patterns := make([]string, 0, len(descriptions))
	for _, d := range descriptions {
		folded := util.Fold(d)
		if folded == "" {
			continue
		}
		if _, seen := idx.patternIdx[folded]; seen {
			continue
		}
		idx.patternIdx[folded] = len(patterns)
		patterns = append(patterns, folded)
	}

	idx.rowsByPattern = make([][]int, len(patterns))
	if len(patterns) == 0 {
		return idx
	}

	matcher := ahocorasick.NewStringMatcher(patterns)
	for rowNo, row := range table.Rows {
		if cols.Desc >= len(row) {
			continue
		}
		cell := util.Fold(row[cols.Desc])
		if cell == "" {
			continue
		}
		for _, hit := range matcher.Match([]byte(cell)) {
			idx.rowsByPattern[hit] = append(idx.rowsByPattern[hit], rowNo)
		}
	}

	return idx
}

// Rows returns the catalog row numbers whose description contains the
// given description, in catalog order. Nil means no containing row.
func (i *Index) Rows(description string) []int {
	pattern, ok := i.patternIdx[util.Fold(description)]
	if !ok {
		return nil
	}
	return i.rowsByPattern[pattern]
}
