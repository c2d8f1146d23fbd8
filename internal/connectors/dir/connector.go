package dir

import (
	"os"
	"path/filepath"
	"time"

	"repricer/internal"
	"repricer/internal/config"
)

// Connector treats a local directory as an inbox: every supported file
// in it is an inbound document. Files are keyed by name, so a file the
// store has already seen keeps its processing status.
type Connector struct {
	root string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("INBOX_DIR", cfg.InboxDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		return nil, err
	}
	return &Connector{root: cfg.InboxDir}, nil
}

// Fetch lists the inbox, name order. A label other than INBOX selects a
// subdirectory.
func (c *Connector) Fetch(label string, max int) ([]internal.InboundDocument, error) {
	dirPath := c.root
	if label != "" && label != "INBOX" {
		dirPath = filepath.Join(c.root, label)
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	out := make([]internal.InboundDocument, 0, len(entries))
	for _, entry := range entries {
		if len(out) >= max {
			break
		}
		if entry.IsDir() {
			continue
		}
		kind, ok := internal.KindForFilename(entry.Name())
		if !ok {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return nil, err
		}

		received := time.Now().UTC().Format(time.RFC3339)
		if info, err := entry.Info(); err == nil {
			received = info.ModTime().UTC().Format(time.RFC3339)
		}

		out = append(out, internal.InboundDocument{
			Origin:     "dir",
			Ref:        entry.Name(),
			Kind:       kind,
			ReceivedAt: received,
			Raw:        raw,
		})
	}
	return out, nil
}
