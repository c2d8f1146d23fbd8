package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"repricer/internal"
)

// LinesFromFile extracts lines from a price-list file on disk, picking
// the extractor from the file extension.
func LinesFromFile(path string) ([]string, error) {
	kind, ok := internal.KindForFilename(path)
	if !ok {
		return nil, fmt.Errorf("unsupported input file: %s", filepath.Base(path))
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if kind == internal.KindEmail {
		content, err := LinesFromEmailRaw(blob)
		if err != nil {
			return nil, err
		}
		return content.Lines, nil
	}
	return LinesFromDocument(kind, blob)
}
