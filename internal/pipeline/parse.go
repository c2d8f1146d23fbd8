package pipeline

import (
	"regexp"

	"repricer/internal"
	"repricer/internal/util"
)

// priceLine recognizes one price-list line: an optional numeric code,
// a description, then a dollar amount whose cents are mandatory.
// "123 Blue Paint $ 1,234.50" parses; "Blue Paint $1234" does not.
var priceLine = regexp.MustCompile(`^\s*(?:\d+\s+)?(.+?)\s+\$\s*(\d+(?:,\d+)*\.\d+)`)

// ParseLine extracts a price record from one raw line. The second
// return is false when the line is not a price line, when its
// description is empty after cleaning, or when its amount does not
// survive numeric parsing. An empty description must never reach
// matching; it would be contained in every catalog row.
func ParseLine(lineNo int, line string) (internal.PriceRecord, bool) {
	m := priceLine.FindStringSubmatch(line)
	if m == nil {
		return internal.PriceRecord{}, false
	}

	description := util.CleanDescription(m[1])
	if description == "" {
		return internal.PriceRecord{}, false
	}

	cost, err := util.ParseCost(m[2])
	if err != nil {
		return internal.PriceRecord{}, false
	}

	return internal.PriceRecord{
		LineNo:      lineNo,
		RawLine:     line,
		Description: description,
		Cost:        cost,
	}, true
}

// ParseLines keeps document order; line numbers are 1-based.
func ParseLines(lines []string) []internal.PriceRecord {
	out := make([]internal.PriceRecord, 0, len(lines))
	for i, line := range lines {
		record, ok := ParseLine(i+1, line)
		if !ok {
			continue
		}
		out = append(out, record)
	}
	return out
}
