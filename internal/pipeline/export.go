package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"repricer/internal"
)

const timestampLayout = "20060102-150405"

// BuildArtifacts renders a report into its three workbooks. All three
// file names share the report's generation timestamp.
func BuildArtifacts(report internal.Report) ([]internal.Artifact, error) {
	ts := report.GeneratedAt.Format(timestampLayout)

	updatedRows := make([][]any, 0, len(report.Matched))
	priceRows := make([][]any, 0, len(report.Matched))
	for _, entry := range report.Matched {
		updatedRows = append(updatedRows, []any{entry.Code, entry.Description, entry.Cost.InexactFloat64()})
		priceRows = append(priceRows, []any{entry.Code, entry.RetailPrice.InexactFloat64(), entry.WholesalePrice.InexactFloat64()})
	}

	notFoundRows := make([][]any, 0, len(report.Unmatched))
	for _, entry := range report.Unmatched {
		notFoundRows = append(notFoundRows, []any{entry.Description, entry.Cost.InexactFloat64()})
	}

	updated, err := writeWorkbook([]string{report.CodeHeader, report.DescriptionHeader, "Cost"}, updatedRows)
	if err != nil {
		return nil, fmt.Errorf("build updated-products workbook: %w", err)
	}
	prices, err := writeWorkbook([]string{report.CodeHeader, "Retail Price", "Wholesale Price"}, priceRows)
	if err != nil {
		return nil, fmt.Errorf("build sale-prices workbook: %w", err)
	}
	notFound, err := writeWorkbook([]string{"Description", "Cost"}, notFoundRows)
	if err != nil {
		return nil, fmt.Errorf("build not-found workbook: %w", err)
	}

	return []internal.Artifact{
		{Name: "updated-products-" + ts + ".xlsx", Content: updated},
		{Name: "sale-prices-" + ts + ".xlsx", Content: prices},
		{Name: "not-found-" + ts + ".xlsx", Content: notFound},
	}, nil
}

func writeWorkbook(headers []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteArtifacts stores the workbooks under dir, creating it as needed.
// It returns the written paths.
func WriteArtifacts(artifacts []internal.Artifact, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		path := filepath.Join(dir, artifact.Name)
		if err := os.WriteFile(path, artifact.Content, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
