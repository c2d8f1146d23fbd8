package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"repricer/internal"
)

// Column-role resolution is two-step: exact canonical names first, then
// a substring probe over the folded headers. Zero candidates or an
// ambiguous probe is a configuration error and aborts the run.
var (
	codeExact = []string{"codigo", "cod", "code"}
	descExact = []string{"descripcion", "description", "producto", "desc"}

	codeProbes = []string{"cod"}
	descProbes = []string{"desc", "producto"}
)

// Columns holds the resolved role columns of a catalog table.
type Columns struct {
	Code     int
	Desc     int
	CodeName string
	DescName string
}

// LoadFile reads a catalog workbook from disk.
func LoadFile(path string) (internal.CatalogTable, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.CatalogTable{}, err
	}
	return ParseWorkbook(blob, filepath.Base(path))
}

// ParseWorkbook reads the first sheet of an XLSX workbook. The first
// row is the header row; every following row becomes a catalog row
// padded to the header width.
func ParseWorkbook(content []byte, source string) (internal.CatalogTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return internal.CatalogTable{}, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return internal.CatalogTable{}, errors.New("catalog workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return internal.CatalogTable{}, fmt.Errorf("read catalog sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return internal.CatalogTable{}, errors.New("catalog sheet is empty")
	}

	headers := make([]string, 0, len(rows[0]))
	for _, h := range rows[0] {
		headers = append(headers, strings.TrimSpace(h))
	}
	if len(headers) == 0 {
		return internal.CatalogTable{}, errors.New("catalog sheet has no header row")
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		body = append(body, padRow(row, len(headers)))
	}

	return internal.CatalogTable{Source: source, Headers: headers, Rows: body}, nil
}

// ResolveColumns finds the code and description columns of the table.
func ResolveColumns(table internal.CatalogTable) (Columns, error) {
	codeIdx, err := resolveRole(table.Headers, "code", codeExact, codeProbes)
	if err != nil {
		return Columns{}, err
	}
	descIdx, err := resolveRole(table.Headers, "description", descExact, descProbes)
	if err != nil {
		return Columns{}, err
	}
	return Columns{
		Code:     codeIdx,
		Desc:     descIdx,
		CodeName: table.Headers[codeIdx],
		DescName: table.Headers[descIdx],
	}, nil
}

func resolveRole(headers []string, role string, exact []string, probes []string) (int, error) {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, want := range exact {
		idx, count := -1, 0
		for i, h := range folded {
			if h == want {
				idx = i
				count++
			}
		}
		if count == 1 {
			return idx, nil
		}
		if count > 1 {
			return -1, fmt.Errorf("catalog %s column is ambiguous: %d columns named %q", role, count, want)
		}
	}

	idx, count := -1, 0
	for i, h := range folded {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				idx = i
				count++
				break
			}
		}
	}
	if count == 0 {
		return -1, fmt.Errorf("catalog has no %s column (no header containing %s)", role, strings.Join(probes, " or "))
	}
	if count > 1 {
		return -1, fmt.Errorf("catalog %s column is ambiguous: %d headers match", role, count)
	}
	return idx, nil
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}
