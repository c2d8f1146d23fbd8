package pipeline

import (
	"time"

	"repricer/internal"
	"repricer/internal/catalog"
)

// Reconcile runs one full pass over a document's lines: resolve the
// catalog's code and description columns, parse the lines into price
// records, match every record against the catalog, and price each
// match. Column resolution runs first so a bad catalog aborts before
// any output exists; after that the run always completes, routing
// unmatchable records into the not-found table.
func Reconcile(table internal.CatalogTable, lines []string, margins Margins) (internal.Report, error) {
	cols, err := catalog.ResolveColumns(table)
	if err != nil {
		return internal.Report{}, err
	}

	records := ParseLines(lines)

	descriptions := make([]string, 0, len(records))
	for _, record := range records {
		descriptions = append(descriptions, record.Description)
	}
	matcher := NewMatcher(table, cols, descriptions)

	report := internal.Report{
		GeneratedAt:       time.Now().UTC(),
		CodeHeader:        cols.CodeName,
		DescriptionHeader: cols.DescName,
		Matched:           []internal.MatchedEntry{},
		Unmatched:         []internal.UnmatchedEntry{},
	}

	for _, record := range records {
		hits := matcher.Match(record.Description)
		if len(hits) == 0 {
			report.Unmatched = append(report.Unmatched, internal.UnmatchedEntry{
				Description: record.Description,
				Cost:        record.Cost,
			})
			continue
		}
		// fan-out: one record emits one row per containing catalog row,
		// carrying the catalog's own description
		for _, hit := range hits {
			report.Matched = append(report.Matched, internal.MatchedEntry{
				Code:           hit.Code,
				Description:    hit.Description,
				Cost:           record.Cost,
				RetailPrice:    margins.RetailPrice(record.Cost),
				WholesalePrice: margins.WholesalePrice(record.Cost),
			})
		}
	}

	report.Counts = internal.ReportCounts{
		Lines:       len(lines),
		Records:     len(records),
		Matched:     len(report.Matched),
		Unmatched:   len(report.Unmatched),
		CatalogRows: len(table.Rows),
	}

	return report, nil
}
