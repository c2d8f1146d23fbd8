package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"repricer/internal"
	"repricer/internal/config"
	"repricer/internal/storage"
)

// ProcessingService turns stored inbound documents into reconciliation
// runs against the imported catalog.
type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg}
}

type ProcessResult struct {
	DocumentID int
	RunID      string
	Skipped    bool
	Records    int
	Matched    int
	Unmatched  int
	Artifacts  []internal.Artifact
}

func (s *ProcessingService) ProcessByID(id int) (ProcessResult, error) {
	doc, err := s.db.GetDocumentByID(id)
	if err != nil {
		return ProcessResult{}, err
	}
	if doc == nil {
		return ProcessResult{}, fmt.Errorf("document not found: id=%d", id)
	}
	return s.ProcessDocument(*doc)
}

// ProcessPending works through pending documents in arrival order. A
// document that fails is marked error so the queue keeps moving on the
// next invocation.
func (s *ProcessingService) ProcessPending(limit int, origin string) (int, int, error) {
	pending, err := s.db.ListDocumentsByStatus("pending", limit)
	if err != nil {
		return 0, 0, err
	}

	processed, skipped := 0, 0
	for _, doc := range pending {
		if origin != "" && doc.Origin != origin {
			continue
		}
		res, err := s.ProcessDocument(doc)
		if err != nil {
			_ = s.db.UpdateDocumentStatus(doc.ID, "error")
			return processed, skipped, err
		}
		if res.Skipped {
			skipped++
			continue
		}
		processed++
	}
	return processed, skipped, nil
}

func (s *ProcessingService) ProcessDocument(doc internal.DocumentRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(doc.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	var lines []string
	kind := internal.DocumentKind(doc.Kind)
	if kind == internal.KindEmail {
		content, err := LinesFromEmailRaw(raw)
		if err != nil {
			return ProcessResult{}, err
		}

		// only emails are screened; a file someone dropped in the inbox
		// directory was put there on purpose
		detect := DetectPriceList(firstNonEmpty(content.Subject, doc.Subject), content.BodyText, content.Attachments)
		if !detect.IsPriceList {
			if err := s.db.UpdateDocumentStatus(doc.ID, "skipped"); err != nil {
				return ProcessResult{}, err
			}
			_ = s.db.InsertRun(uuid.NewString(), doc.ID,
				map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
				map[string]int{"lines": 0, "records": 0, "matched": 0, "unmatched": 0, "catalogRows": 0})
			return ProcessResult{DocumentID: doc.ID, Skipped: true}, nil
		}
		lines = content.Lines
	} else {
		lines, err = LinesFromDocument(kind, raw)
		if err != nil {
			return ProcessResult{}, err
		}
	}

	cat, err := s.db.MustCatalog()
	if err != nil {
		return ProcessResult{}, err
	}

	margins, err := NewMargins(s.cfg.RetailMarginPct, s.cfg.WholesaleMarginPct)
	if err != nil {
		return ProcessResult{}, err
	}

	report, err := Reconcile(cat.Table, lines, margins)
	if err != nil {
		return ProcessResult{}, err
	}

	artifacts, err := BuildArtifacts(report)
	if err != nil {
		return ProcessResult{}, err
	}

	runID := uuid.NewString()
	if err := s.db.ReplaceArtifacts(runID, artifacts); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateDocumentStatus(doc.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(runID, doc.ID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		report.Counts.Map())

	return ProcessResult{
		DocumentID: doc.ID,
		RunID:      runID,
		Records:    report.Counts.Records,
		Matched:    report.Counts.Matched,
		Unmatched:  report.Counts.Unmatched,
		Artifacts:  artifacts,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
