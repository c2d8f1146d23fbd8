// Package watcher polls a document source on an interval and feeds new
// arrivals through the reconciliation pipeline.
package watcher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"repricer/internal/config"
	"repricer/internal/connectors"
	dirconnector "repricer/internal/connectors/dir"
	gmailconnector "repricer/internal/connectors/gmail"
	imapconnector "repricer/internal/connectors/imap"
	"repricer/internal/pipeline"
	"repricer/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *slog.Logger
}

func NewService(db *storage.DB, cfg config.Config, log *slog.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

// Run polls until ctx is cancelled. A failed cycle is logged and retried
// on the next tick rather than stopping the loop.
func (s *Service) Run(ctx context.Context) error {
	if last, err := s.db.GetMetadata("watcherLastCycleAt"); err == nil && last != nil {
		s.log.Info("resuming watch loop", "lastCycleAt", *last)
	}

	for {
		if err := s.runCycle(); err != nil {
			s.log.Error("watch cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatcherIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	cycle := cycleID()
	provider := strings.ToLower(strings.TrimSpace(s.cfg.WatcherProvider))
	source, err := s.makeSource(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawDocDir, source)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.WatcherLabel, s.cfg.WatcherFetchMax)
	if err != nil {
		return err
	}

	pending, err := s.db.ListDocumentsByStatus("pending", s.cfg.WatcherProcessBatch)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	var processed, skipped, failed int
	for _, doc := range pending {
		if doc.Origin != provider {
			continue
		}
		res, err := processor.ProcessDocument(doc)
		if err != nil {
			failed++
			_ = s.db.UpdateDocumentStatus(doc.ID, "error")
			s.log.Error("document failed", "cycle", cycle, "documentId", doc.ID, "ref", doc.Ref, "err", err)
			continue
		}
		if res.Skipped {
			skipped++
			s.log.Info("document skipped", "cycle", cycle, "documentId", doc.ID, "ref", doc.Ref)
			continue
		}
		processed++

		if s.cfg.WatcherAutoExport {
			outDir := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("doc-%d", doc.ID))
			if _, err := pipeline.WriteArtifacts(res.Artifacts, outDir); err != nil {
				s.log.Error("export failed", "cycle", cycle, "documentId", doc.ID, "err", err)
				continue
			}
			if err := s.db.UpdateDocumentStatus(doc.ID, "exported"); err != nil {
				s.log.Error("status update failed", "cycle", cycle, "documentId", doc.ID, "err", err)
			}
		}
	}

	if err := s.db.SetMetadata("watcherLastCycleAt", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	s.log.Info("watch cycle done",
		"cycle", cycle,
		"provider", provider,
		"fetched", fetchResult.Fetched,
		"stored", fetchResult.Stored,
		"processed", processed,
		"skipped", skipped,
		"failed", failed)
	return nil
}

func (s *Service) makeSource(provider string) (connectors.Source, error) {
	switch provider {
	case "dir":
		return dirconnector.NewConnector(s.cfg)
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported watch provider: %s", provider)
	}
}

func cycleID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("cycle-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
