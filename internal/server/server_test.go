package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"repricer/internal/config"
	"repricer/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RetailMarginPct:    45,
		WholesaleMarginPct: 15,
		ServerMaxUploadMB:  8,
		SessionTTLMin:      30,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, db, log), db
}

func mkXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	field    string
	filename string
	content  []byte
}

func multipartBody(t *testing.T, uploads []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, u := range uploads {
		part, err := w.CreateFormFile(u.field, u.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(u.content); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func testCatalogXLSX(t *testing.T) []byte {
	return mkXLSX(t, [][]string{
		{"Codigo", "Descripcion"},
		{"A1", "Red Hammer 16oz"},
	})
}

func postReconcile(t *testing.T, s *Server, uploads []upload, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, uploads, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestReconcileAndDownload(t *testing.T) {
	s, db := newTestServer(t)

	w := postReconcile(t, s, []upload{
		{"pricelist", "prices.txt", []byte("045 Red Hammer $ 10.00\n999 Unknown Gadget $ 5.00\n")},
		{"catalog", "catalog.xlsx", testCatalogXLSX(t)},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		RunID     string         `json:"runId"`
		Counts    map[string]int `json:"counts"`
		Artifacts []string       `json:"artifacts"`
		Downloads []string       `json:"downloads"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID == "" {
		t.Fatal("runId empty")
	}
	if resp.Counts["records"] != 2 || resp.Counts["matched"] != 1 || resp.Counts["unmatched"] != 1 {
		t.Fatalf("counts=%v", resp.Counts)
	}
	if len(resp.Artifacts) != 3 || len(resp.Downloads) != 3 {
		t.Fatalf("artifacts=%v downloads=%v", resp.Artifacts, resp.Downloads)
	}

	stored, runID, err := db.LastArtifacts()
	if err != nil {
		t.Fatal(err)
	}
	if runID != resp.RunID || len(stored) != 3 {
		t.Fatalf("stored=%d runID=%q", len(stored), runID)
	}

	cookies := w.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == "repricer_session" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("session cookie not set")
	}

	dl := httptest.NewRequest(http.MethodGet, resp.Downloads[0], nil)
	dl.AddCookie(session)
	dw := httptest.NewRecorder()
	s.Handler().ServeHTTP(dw, dl)
	if dw.Code != http.StatusOK {
		t.Fatalf("download code=%d", dw.Code)
	}
	if got := dw.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("content-type=%q", got)
	}
	if dw.Body.Len() == 0 {
		t.Fatal("empty download")
	}

	f, err := excelize.OpenReader(bytes.NewReader(dw.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "A1" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestReconcileMissingPricelist(t *testing.T) {
	s, _ := newTestServer(t)
	w := postReconcile(t, s, []upload{
		{"catalog", "catalog.xlsx", testCatalogXLSX(t)},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestReconcileUnsupportedPricelist(t *testing.T) {
	s, _ := newTestServer(t)
	w := postReconcile(t, s, []upload{
		{"pricelist", "prices.docx", []byte("whatever")},
		{"catalog", "catalog.xlsx", testCatalogXLSX(t)},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestReconcileBadCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	w := postReconcile(t, s, []upload{
		{"pricelist", "prices.txt", []byte("045 Red Hammer $ 10.00\n")},
		{"catalog", "catalog.xlsx", []byte("not a workbook")},
	}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestReconcileUnresolvableCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	w := postReconcile(t, s, []upload{
		{"pricelist", "prices.txt", []byte("045 Red Hammer $ 10.00\n")},
		{"catalog", "catalog.xlsx", mkXLSX(t, [][]string{{"Precio", "Stock"}, {"9.00", "4"}})},
	}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestReconcileMarginOverrides(t *testing.T) {
	s, _ := newTestServer(t)
	w := postReconcile(t, s, []upload{
		{"pricelist", "prices.txt", []byte("045 Red Hammer $ 10.00\n")},
		{"catalog", "catalog.xlsx", testCatalogXLSX(t)},
	}, map[string]string{"retail_margin": "50", "wholesale_margin": "20"})
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestReconcileBadMargins(t *testing.T) {
	s, _ := newTestServer(t)
	for _, fields := range []map[string]string{
		{"retail_margin": "abc"},
		{"retail_margin": "150"},
		{"wholesale_margin": "-5"},
	} {
		w := postReconcile(t, s, []upload{
			{"pricelist", "prices.txt", []byte("045 Red Hammer $ 10.00\n")},
			{"catalog", "catalog.xlsx", testCatalogXLSX(t)},
		}, fields)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("fields=%v code=%d", fields, w.Code)
		}
	}
}

func TestDownloadWithoutSession(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/downloads/updated-products-20260314-092653.xlsx", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code=%d", w.Code)
	}
}
