package storage

import (
	"path/filepath"
	"testing"

	"repricer/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "repricer.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCatalogRoundTrip(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("catalog before import: %+v", got)
	}
	if _, err := db.MustCatalog(); err == nil {
		t.Fatal("MustCatalog should fail before import")
	}

	table := internal.CatalogTable{
		Source:  "catalog.xlsx",
		Headers: []string{"Codigo", "Descripcion", "Precio"},
		Rows:    [][]string{{"A1", "Red Hammer 16oz", "9.00"}, {"B2", "Blue Paint Gloss", "4.00"}},
	}
	if err := db.ReplaceCatalog(table, "Codigo", "Descripcion"); err != nil {
		t.Fatal(err)
	}

	stored, err := db.MustCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if stored.CodeHeader != "Codigo" || stored.DescHeader != "Descripcion" {
		t.Fatalf("headers=%q/%q", stored.CodeHeader, stored.DescHeader)
	}
	if len(stored.Table.Rows) != 2 || stored.Table.Rows[0][1] != "Red Hammer 16oz" {
		t.Fatalf("rows=%v", stored.Table.Rows)
	}

	// a second import replaces the first wholesale
	smaller := internal.CatalogTable{
		Source:  "v2.xlsx",
		Headers: []string{"Code", "Description"},
		Rows:    [][]string{{"Z9", "Torque Wrench"}},
	}
	if err := db.ReplaceCatalog(smaller, "Code", "Description"); err != nil {
		t.Fatal(err)
	}
	stored, err = db.MustCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if stored.Table.Source != "v2.xlsx" || len(stored.Table.Rows) != 1 {
		t.Fatalf("stored=%+v", stored.Table)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	db := openTestDB(t)

	doc := internal.InboundDocument{
		Origin:     "imap",
		Ref:        "<msg-1@example.com>",
		Kind:       internal.KindEmail,
		Subject:    "Price list",
		Sender:     "supplier@example.com",
		ReceivedAt: "2026-03-14T09:00:00Z",
	}
	row, err := db.UpsertDocument(doc, "hash-1", "/raw/a.eml", "pending")
	if err != nil {
		t.Fatal(err)
	}
	if row.ID == 0 || row.Status != "pending" {
		t.Fatalf("row=%+v", row)
	}

	// refetching the same message must not reset its status
	if err := db.UpdateDocumentStatus(row.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	again, err := db.UpsertDocument(doc, "hash-2", "/raw/a.eml", "pending")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != row.ID {
		t.Fatalf("id changed: %d -> %d", row.ID, again.ID)
	}
	if again.Status != "processed" {
		t.Fatalf("status=%q", again.Status)
	}
	if again.Hash != "hash-2" {
		t.Fatalf("hash=%q", again.Hash)
	}

	missing, err := db.GetDocumentByOriginRef("imap", "<other@example.com>")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("missing=%+v", missing)
	}

	byID, err := db.GetDocumentByID(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID == nil || byID.Ref != doc.Ref {
		t.Fatalf("byID=%+v", byID)
	}
}

func TestListDocumentsByStatus(t *testing.T) {
	db := openTestDB(t)

	refs := []struct {
		ref        string
		receivedAt string
	}{
		{"<b@example.com>", "2026-03-14T10:00:00Z"},
		{"<a@example.com>", "2026-03-14T09:00:00Z"},
		{"<c@example.com>", "2026-03-14T11:00:00Z"},
	}
	for _, r := range refs {
		if _, err := db.UpsertDocument(internal.InboundDocument{
			Origin:     "dir",
			Ref:        r.ref,
			Kind:       internal.KindText,
			ReceivedAt: r.receivedAt,
		}, "h", "/raw/x", "pending"); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := db.ListDocumentsByStatus("pending", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("len=%d", len(pending))
	}
	// arrival order
	if pending[0].Ref != "<a@example.com>" || pending[2].Ref != "<c@example.com>" {
		t.Fatalf("order=%v", []string{pending[0].Ref, pending[1].Ref, pending[2].Ref})
	}

	limited, err := db.ListDocumentsByStatus("pending", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("len=%d", len(limited))
	}

	none, err := db.ListDocumentsByStatus("processed", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("len=%d", len(none))
	}
}

func TestArtifactsReplacedWholesale(t *testing.T) {
	db := openTestDB(t)

	first := []internal.Artifact{
		{Name: "updated-products-20260314-090000.xlsx", Content: []byte("one")},
		{Name: "sale-prices-20260314-090000.xlsx", Content: []byte("two")},
		{Name: "not-found-20260314-090000.xlsx", Content: []byte("three")},
	}
	if err := db.ReplaceArtifacts("run-1", first); err != nil {
		t.Fatal(err)
	}

	second := []internal.Artifact{
		{Name: "updated-products-20260314-100000.xlsx", Content: []byte("four")},
	}
	if err := db.ReplaceArtifacts("run-2", second); err != nil {
		t.Fatal(err)
	}

	stored, runID, err := db.LastArtifacts()
	if err != nil {
		t.Fatal(err)
	}
	if runID != "run-2" {
		t.Fatalf("runID=%q", runID)
	}
	if len(stored) != 1 || stored[0].Name != second[0].Name || string(stored[0].Content) != "four" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestLastArtifactsEmpty(t *testing.T) {
	db := openTestDB(t)

	stored, runID, err := db.LastArtifacts()
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil || runID != "" {
		t.Fatalf("stored=%v runID=%q", stored, runID)
	}
}

func TestInsertRun(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertRun("run-1", 0, map[string]float64{"totalMs": 12.5}, map[string]int{"records": 2}); err != nil {
		t.Fatal(err)
	}

	row, err := db.UpsertDocument(internal.InboundDocument{
		Origin: "dir", Ref: "a.txt", Kind: internal.KindText,
	}, "h", "/raw/a.txt", "pending")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun("run-2", row.ID, map[string]float64{"totalMs": 3}, map[string]int{"records": 0}); err != nil {
		t.Fatal(err)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetMetadata("catalogImportedAt")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("got=%v", *got)
	}

	if err := db.SetMetadata("catalogImportedAt", "2026-03-14T09:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("catalogImportedAt", "2026-03-15T09:00:00Z"); err != nil {
		t.Fatal(err)
	}

	got, err = db.GetMetadata("catalogImportedAt")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "2026-03-15T09:00:00Z" {
		t.Fatalf("got=%v", got)
	}
}
