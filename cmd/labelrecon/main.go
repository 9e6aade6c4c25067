package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"labelrecon/internal"
	"labelrecon/internal/app"
	"labelrecon/internal/catalog"
	"labelrecon/internal/config"
	"labelrecon/internal/connectors"
	"labelrecon/internal/document"
	"labelrecon/internal/listener"
	"labelrecon/internal/pipeline"
	"labelrecon/internal/supplier"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cfg, err := config.Load()
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "reconcile":
		a := open(ctx, cfg)
		defer a.Close()
		runReconcile(ctx, a, cmd, args)
	case "suppliers":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("catalog", "", "catalog spreadsheet path")
		_ = fs.Parse(args)
		require(*path != "", "--catalog is required")
		ex := extractCatalog(ctx, cfg, *path)
		fmt.Printf("%d entries, format=%s\n", len(ex.Entries), catalog.ClassifyFormat(ex.Entries))
		for _, s := range supplier.Available(ex.Entries) {
			fmt.Printf("  %-30s %6d products  id=%s\n", s.Name, s.ProductCount, s.ID)
		}
	case "inspect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		catalogPath := fs.String("catalog", "", "catalog spreadsheet path")
		pdfPath := fs.String("pdf", "", "label PDF path")
		_ = fs.Parse(args)
		require(*catalogPath != "" || *pdfPath != "", "--catalog or --pdf is required")
		if *catalogPath != "" {
			printJSON(extractCatalog(ctx, cfg, *catalogPath).Diagnostics)
		}
		if *pdfPath != "" {
			src, err := pipeline.ReadSource(*pdfPath)
			must(err)
			ex, err := document.NewExtractor(pipeline.DocumentOptions(cfg)).Extract(ctx, src.Content)
			must(err)
			printJSON(ex.Stats)
			for _, b := range ex.Barcodes {
				fmt.Printf("  %s\n", b.Barcode)
			}
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		a := open(ctx, cfg)
		defer a.Close()
		conn, err := listener.NewConnector(ctx, cfg, *provider)
		must(err)
		result, err := connectors.NewFetchService(a.DB, cfg.RawMailDir, conn, a.Log).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d unchanged=%d\n", *provider, result.Fetched, result.Stored, result.Unchanged)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap, empty for all")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(args)
		a := open(ctx, cfg)
		defer a.Close()
		if strings.TrimSpace(*messageID) != "" {
			require(*provider != "", "--provider is required with --messageId")
			res, err := a.Processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("email id=%d status=%s run=%s supplier=%s compliance=%.2f%%\n", res.EmailID, res.Status, res.RunID, res.Supplier, res.ComplianceRate)
			if res.Error != "" {
				fmt.Printf("  error: %s\n", res.Error)
			}
			return
		}
		emails, runs, err := a.Processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d runs=%d\n", emails, runs)
	case "mail:listen":
		a := open(ctx, cfg)
		defer a.Close()
		must(a.Listener().Run(ctx))
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		emailID := fs.Int("emailId", 0, "only runs of this email")
		_ = fs.Parse(args)
		a := open(ctx, cfg)
		defer a.Close()
		runs, err := a.DB.ListRuns(*limit)
		if *emailID > 0 {
			runs, err = a.DB.ListRunsByEmail(*emailID)
		}
		must(err)
		for _, r := range runs {
			fmt.Printf("%s  %s  %-20s %-6s pdf=%d catalog=%d compliance=%.2f%%  %s / %s\n",
				r.RunID, r.CreatedAt, r.SupplierName, r.Format, r.PDFCount, r.CatalogCount, r.Metrics.ComplianceRate, r.DocumentName, r.CatalogName)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.String("run", "", "run id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		require(*runID != "" && *out != "", "--run and --out are required")
		a := open(ctx, cfg)
		defer a.Close()
		run, err := a.DB.GetRun(*runID)
		must(err)
		require(run != nil, fmt.Sprintf("no run %s", *runID))
		results, err := a.DB.GetRunResults(run.RunID)
		must(err)
		must(pipeline.ExportReportToXLSX(pipeline.ExportDataFromRun(*run, results), *out))
		fmt.Printf("exported %d results to %s\n", len(results), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func runReconcile(ctx context.Context, a *app.App, cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	pdfPath := fs.String("pdf", "", "label PDF path")
	catalogPath := fs.String("catalog", "", "catalog spreadsheet path")
	supplierName := fs.String("supplier", "", "supplier to compare against, identified from the PDF when empty")
	out := fs.String("out", "", "optional xlsx report path")
	asJSON := fs.Bool("json", false, "print the full report as JSON")
	_ = fs.Parse(args)
	require(*pdfPath != "" && *catalogPath != "", "--pdf and --catalog are required")

	in, err := pipeline.ReadInput(*pdfPath, *catalogPath, *supplierName)
	must(err)
	report, err := a.Reconciler.Reconcile(ctx, in)
	must(err)

	if *out != "" {
		must(pipeline.ExportReportToXLSX(pipeline.ExportDataFromReport(report), *out))
	}
	if *asJSON {
		printJSON(report)
		return
	}

	m := report.Metrics
	fmt.Printf("run %s\n", report.RunID)
	fmt.Printf("supplier=%s format=%s confidence=%s (%s)\n", report.Match.SupplierName, report.Format, report.Validation.Confidence, report.Validation.Message)
	fmt.Printf("pdf codes=%d catalog entries=%d matched=%d missing=%d excel-only=%d/%d\n",
		report.Match.PDFCount, report.Match.CatalogCount, report.Match.Matched, report.Match.Unmatched, report.Match.ExcelOnlyShown, report.Match.ExcelOnlyTotal)
	fmt.Printf("compliance=%.2f%% errors=%.2f%% critical=%d\n", m.ComplianceRate, m.ErrorRate, m.CriticalErrors)
	for _, r := range report.Results {
		if r.Status == internal.StatusPDFOnly {
			fmt.Printf("  MISSING %s  %s\n", r.Barcode, r.Discrepancy)
		}
	}
	for _, rec := range pipeline.BusinessRecommendations(m) {
		fmt.Printf("- %s\n", rec)
	}
	if *out != "" {
		fmt.Printf("report written to %s\n", *out)
	}
}

func open(ctx context.Context, cfg config.Config) *app.App {
	a, err := app.New(ctx, cfg)
	must(err)
	return a
}

func extractCatalog(ctx context.Context, cfg config.Config, path string) *catalog.Extraction {
	src, err := pipeline.ReadSource(path)
	must(err)
	ex, err := catalog.NewExtractor(pipeline.CatalogOptions(cfg)).Extract(ctx, src.Content, src.Name)
	must(err)
	return ex
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: labelrecon <command>")
	fmt.Println("commands:")
	fmt.Println("  reconcile --pdf=labels.pdf --catalog=catalog.xlsx [--supplier=NAME] [--out=report.xlsx] [--json]")
	fmt.Println("  suppliers --catalog=catalog.xlsx")
	fmt.Println("  inspect [--catalog=catalog.xlsx] [--pdf=labels.pdf]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  runs:list [--limit=20] [--emailId=1]")
	fmt.Println("  export:xlsx --run=RUN_ID --out=./out/report.xlsx")
}

func require(ok bool, msg string) {
	if !ok {
		must(fmt.Errorf("%s", msg))
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
