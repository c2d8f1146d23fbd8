package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repricer/internal"
	"repricer/internal/config"
	"repricer/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.DB, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	inbox := filepath.Join(tmp, "inbox")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		t.Fatal(err)
	}

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	table := internal.CatalogTable{
		Source:  "catalog.xlsx",
		Headers: []string{"Codigo", "Descripcion"},
		Rows:    [][]string{{"A1", "Red Hammer 16oz"}},
	}
	if err := db.ReplaceCatalog(table, "Codigo", "Descripcion"); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{
		DBPath:              filepath.Join(tmp, "app.db"),
		RawDocDir:           filepath.Join(tmp, "raw"),
		OutputDir:           filepath.Join(tmp, "out"),
		InboxDir:            inbox,
		RetailMarginPct:     45,
		WholesaleMarginPct:  15,
		WatcherProvider:     "dir",
		WatcherLabel:        "INBOX",
		WatcherIntervalSec:  3600,
		WatcherFetchMax:     10,
		WatcherProcessBatch: 10,
		WatcherAutoExport:   true,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, cfg, log), db, cfg
}

func TestRunCycleDirProvider(t *testing.T) {
	svc, db, cfg := testService(t)

	lines := "045 Red Hammer $ 10.00\n999 Unknown Gadget $ 5.00\n"
	if err := os.WriteFile(filepath.Join(cfg.InboxDir, "prices.txt"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.runCycle(); err != nil {
		t.Fatal(err)
	}

	doc, err := db.GetDocumentByOriginRef("dir", "prices.txt")
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("document not stored")
	}
	if doc.Status != "exported" {
		t.Fatalf("status=%q", doc.Status)
	}

	outDir := filepath.Join(cfg.OutputDir, fmt.Sprintf("doc-%d", doc.ID))
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("exported %d files", len(entries))
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".xlsx") {
			t.Fatalf("unexpected export %q", e.Name())
		}
	}

	last, err := db.GetMetadata("watcherLastCycleAt")
	if err != nil {
		t.Fatal(err)
	}
	if last == nil {
		t.Fatal("watcherLastCycleAt not set")
	}

	// a second cycle re-fetches the same file but the document keeps its
	// terminal status
	if err := svc.runCycle(); err != nil {
		t.Fatal(err)
	}
	doc, err = db.GetDocumentByOriginRef("dir", "prices.txt")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != "exported" {
		t.Fatalf("status after second cycle=%q", doc.Status)
	}
}

func TestRunCycleIgnoresOtherOrigins(t *testing.T) {
	svc, db, _ := testService(t)

	_, err := db.UpsertDocument(internal.InboundDocument{
		Origin:     "imap",
		Ref:        "<msg-1@example.com>",
		Kind:       internal.KindEmail,
		Subject:    "Price list",
		ReceivedAt: "2026-03-14T09:00:00Z",
	}, "deadbeef", "/nonexistent/raw.eml", "pending")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.runCycle(); err != nil {
		t.Fatal(err)
	}

	doc, err := db.GetDocumentByOriginRef("imap", "<msg-1@example.com>")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != "pending" {
		t.Fatalf("status=%q", doc.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := testService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestMakeSourceUnsupported(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.makeSource("carrier-pigeon"); err == nil {
		t.Fatal("expected error")
	}
}
