package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"repricer/internal"
	"repricer/internal/catalog"
	"repricer/internal/config"
	"repricer/internal/connectors"
	dirconnector "repricer/internal/connectors/dir"
	gmailconnector "repricer/internal/connectors/gmail"
	imapconnector "repricer/internal/connectors/imap"
	"repricer/internal/pipeline"
	"repricer/internal/server"
	"repricer/internal/storage"
	"repricer/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog workbook path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		svc := catalog.NewImportService(db)
		cols, count, err := svc.ImportFile(*file)
		must(err)
		fmt.Printf("catalog imported rows=%d code=%q description=%q\n", count, cols.CodeName, cols.DescName)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pricelist := fs.String("pricelist", "", "price list file (txt|pdf|xlsx|html|eml)")
		catalogPath := fs.String("catalog", "", "catalog workbook (defaults to the imported catalog)")
		retail := fs.Float64("retail", cfg.RetailMarginPct, "retail margin percent")
		wholesale := fs.Float64("wholesale", cfg.WholesaleMarginPct, "wholesale margin percent")
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*pricelist) == "" {
			must(fmt.Errorf("--pricelist is required"))
		}

		start := time.Now()
		lines, err := pipeline.LinesFromFile(*pricelist)
		must(err)

		var table internal.CatalogTable
		if strings.TrimSpace(*catalogPath) != "" {
			table, err = catalog.LoadFile(*catalogPath)
			must(err)
		} else {
			stored, err := db.MustCatalog()
			must(err)
			table = stored.Table
		}

		margins, err := pipeline.NewMargins(*retail, *wholesale)
		must(err)
		report, err := pipeline.Reconcile(table, lines, margins)
		must(err)
		artifacts, err := pipeline.BuildArtifacts(report)
		must(err)

		runID := uuid.NewString()
		must(db.ReplaceArtifacts(runID, artifacts))
		_ = db.InsertRun(runID, 0,
			map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
			report.Counts.Map())

		paths, err := pipeline.WriteArtifacts(artifacts, *out)
		must(err)
		fmt.Printf("run %s done lines=%d records=%d matched=%d unmatched=%d\n",
			runID, report.Counts.Lines, report.Counts.Records, report.Counts.Matched, report.Counts.Unmatched)
		for _, p := range paths {
			fmt.Printf("  %s\n", p)
		}
	case "fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.WatcherProvider, "dir|gmail|imap")
		label := fs.String("label", cfg.WatcherLabel, "mailbox label or inbox subdirectory")
		max := fs.Int("max", cfg.WatcherFetchMax, "max documents")
		_ = fs.Parse(os.Args[2:])
		source, err := makeSource(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawDocDir, source)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "process one document by id")
		batch := fs.Int("batch", cfg.WatcherProcessBatch, "batch size")
		origin := fs.String("origin", cfg.WatcherProvider, "dir|gmail|imap")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if *id != 0 {
			res, err := processor.ProcessByID(*id)
			must(err)
			if res.Skipped {
				fmt.Printf("document %d skipped: not a price list\n", *id)
				return
			}
			fmt.Printf("document %d processed run=%s records=%d matched=%d unmatched=%d\n",
				*id, res.RunID, res.Records, res.Matched, res.Unmatched)
			return
		}
		processed, skipped, err := processor.ProcessPending(*batch, *origin)
		must(err)
		fmt.Printf("processed pending documents=%d skipped=%d\n", processed, skipped)
	case "export:last":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		artifacts, runID, err := db.LastArtifacts()
		must(err)
		if len(artifacts) == 0 {
			must(fmt.Errorf("no stored run artifacts"))
		}
		paths, err := pipeline.WriteArtifacts(artifacts, *out)
		must(err)
		fmt.Printf("exported run %s\n", runID)
		for _, p := range paths {
			fmt.Printf("  %s\n", p)
		}
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.ServerAddr, "listen address")
		_ = fs.Parse(os.Args[2:])
		log := slog.New(slog.NewTextHandler(os.Stdout, nil))
		must(server.New(cfg, db, log).Run(*addr))
	case "watch":
		log := slog.New(slog.NewTextHandler(os.Stdout, nil))
		must(watcher.NewService(db, cfg, log).Run(context.Background()))
	default:
		usage()
		os.Exit(1)
	}
}

func makeSource(cfg config.Config, provider string) (connectors.Source, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "dir":
		return dirconnector.NewConnector(cfg)
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: repricer <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:import --file=./catalog.xlsx")
	fmt.Println("  run --pricelist=./prices.pdf [--catalog=./catalog.xlsx] [--retail=45] [--wholesale=15] [--out=./out]")
	fmt.Println("  fetch --provider=dir|gmail|imap --label=INBOX --max=20")
	fmt.Println("  process [--id=1] [--batch=20] [--origin=dir]")
	fmt.Println("  export:last --out=./out")
	fmt.Println("  serve --addr=:8080")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
