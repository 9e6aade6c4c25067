package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"labelrecon/internal"
	"labelrecon/internal/cache"
	"labelrecon/internal/catalog"
	"labelrecon/internal/config"
	"labelrecon/internal/document"
	"labelrecon/internal/logger"
	"labelrecon/internal/observability"
	"labelrecon/internal/supplier"
)

var ErrSupplierNotFound = errors.New("supplier not found in catalog")

type DocumentExtractor interface {
	Extract(ctx context.Context, content []byte) (*document.Extraction, error)
}

type CatalogExtractor interface {
	Extract(ctx context.Context, content []byte, name string) (*catalog.Extraction, error)
}

type RunStore interface {
	InsertRun(run internal.RunRow, results []internal.ComparisonResult) error
}

type Source struct {
	Name    string
	Content []byte
}

type Input struct {
	Document Source
	Catalog  Source
	// Supplier forces the supplier scope instead of identifying it from the
	// document references.
	Supplier string
	EmailID  *int
}

type Report struct {
	RunID        string                      `json:"runId"`
	CreatedAt    time.Time                   `json:"createdAt"`
	DocumentName string                      `json:"documentName"`
	CatalogName  string                      `json:"catalogName"`
	Supplier     *internal.SupplierInfo      `json:"supplier,omitempty"`
	Suppliers    []internal.SupplierInfo     `json:"suppliers"`
	Validation   supplier.Validation         `json:"validation"`
	Format       internal.CatalogFormat      `json:"format"`
	Document     document.Stats              `json:"document"`
	References   []internal.ProductReference `json:"references"`
	Catalog      catalog.Diagnostics         `json:"catalog"`
	Results      []internal.ComparisonResult `json:"results"`
	Metrics      internal.ComplianceMetrics  `json:"metrics"`
	Match        MatchReport                 `json:"match"`
	Performance  observability.Report        `json:"performance"`
}

// ExtractionCache keeps extraction results of recently seen files.
type ExtractionCache struct {
	Documents *cache.Store[*document.Extraction]
	Catalogs  *cache.Store[*catalog.Extraction]
}

func NewExtractionCache(entries int, ttl time.Duration) *ExtractionCache {
	return &ExtractionCache{
		Documents: cache.New[*document.Extraction](entries, ttl),
		Catalogs:  cache.New[*catalog.Extraction](entries, ttl),
	}
}

func (c *ExtractionCache) Purge() {
	c.Documents.Purge()
	c.Catalogs.Purge()
}

type ReconcileService struct {
	documents DocumentExtractor
	catalogs  CatalogExtractor
	limits    Limits
	caps      CompareOptions

	log     *logger.Logger
	metrics *observability.Metrics
	cache   *ExtractionCache
	store   RunStore
}

func NewReconcileService(cfg config.Config, log *logger.Logger, metrics *observability.Metrics) *ReconcileService {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileService{
		documents: document.NewExtractor(DocumentOptions(cfg)),
		catalogs:  catalog.NewExtractor(CatalogOptions(cfg)),
		limits:    Limits{MaxPDFBytes: int64(cfg.MaxPDFMB) << 20, MaxSheetBytes: int64(cfg.MaxUploadSheetMB) << 20},
		caps:      CompareOptions{LegacyCap: cfg.ExcelOnlyCapLegacy, RichCap: cfg.ExcelOnlyCapRich},
		log:       log,
		metrics:   metrics,
	}
}

func (s *ReconcileService) WithCache(c *ExtractionCache) *ReconcileService {
	s.cache = c
	return s
}

func (s *ReconcileService) WithStore(store RunStore) *ReconcileService {
	s.store = store
	return s
}

func (s *ReconcileService) WithExtractors(documents DocumentExtractor, catalogs CatalogExtractor) *ReconcileService {
	if documents != nil {
		s.documents = documents
	}
	if catalogs != nil {
		s.catalogs = catalogs
	}
	return s
}

func CatalogOptions(cfg config.Config) catalog.Options {
	return catalog.Options{
		MinConfidence: cfg.MinColumnConfidence,
		MaxHeaderRows: cfg.MaxHeaderRows,
		ChunkSize:     cfg.ChunkSize,
		MaxFileBytes:  int64(cfg.MaxSpreadsheetMB) << 20,
	}
}

// DocumentOptions keeps the built-in label layouts for the default family and
// derives patterns from the configured prefixes otherwise.
func DocumentOptions(cfg config.Config) document.Options {
	family := document.Family{Prefixes: cfg.BarcodePrefixes, Length: cfg.BarcodeLength}
	opts := document.Options{Family: family, MaxFileBytes: int64(cfg.MaxPDFMB) << 20}
	if len(family.Prefixes) == 1 && family.Prefixes[0] == document.DefaultFamily.Prefixes[0] && family.Length == document.DefaultFamily.Length {
		opts.Patterns = document.DefaultPatterns()
	} else {
		opts.Patterns = document.PatternsFor(family)
	}
	return opts
}

func (s *ReconcileService) Reconcile(ctx context.Context, in Input) (*Report, error) {
	mon := observability.NewMonitor()
	report := &Report{RunID: uuid.NewString(), CreatedAt: time.Now().UTC(), DocumentName: in.Document.Name, CatalogName: in.Catalog.Name}
	log := s.log.With("run", report.RunID, "document", in.Document.Name, "catalog", in.Catalog.Name)

	done := mon.Start("validate")
	errs := append(ValidatePDF(in.Document.Name, in.Document.Content, s.limits), ValidateSpreadsheet(in.Catalog.Name, in.Catalog.Content, s.limits)...)
	s.observe("validate", done())
	if len(errs) > 0 {
		s.outcome("invalid_input")
		log.Warn("input rejected", "errors", errs.Error())
		return nil, errs
	}

	var (
		doc *document.Extraction
		cat *catalog.Extraction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		done := mon.Start("pdf")
		defer func() { s.observe("pdf", done()) }()
		var err error
		doc, err = s.extractDocument(gctx, in.Document)
		if err != nil {
			return fmt.Errorf("extract %s: %w", in.Document.Name, err)
		}
		return nil
	})
	g.Go(func() error {
		done := mon.Start("catalog")
		defer func() { s.observe("catalog", done()) }()
		var err error
		cat, err = s.extractCatalog(gctx, in.Catalog)
		if err != nil {
			return fmt.Errorf("extract %s: %w", in.Catalog.Name, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			s.outcome("canceled")
		} else {
			s.outcome("extraction_failed")
		}
		log.Error("extraction failed", "error", err)
		return nil, err
	}

	done = mon.Start("supplier")
	info, validation, err := chooseSupplier(in.Supplier, doc.References, cat.Entries)
	s.observe("supplier", done())
	if err != nil {
		s.outcome("invalid_input")
		return nil, err
	}
	scoped := cat.Entries
	supplierName := ""
	if info != nil {
		scoped = supplier.FilterEntries(cat.Entries, info.Name)
		supplierName = info.Name
	}

	done = mon.Start("compare")
	format := catalog.ClassifyFormat(scoped)
	opts := s.caps
	opts.Format = format
	opts.SupplierName = supplierName
	opts.FullCatalog = cat.Entries
	cmp := Compare(doc.Barcodes, scoped, opts)
	metrics := CalculateMetrics(cmp.Results, cmp.Report.SupplierName, len(doc.Barcodes), format)
	s.observe("compare", done())

	report.Supplier = info
	report.Suppliers = supplier.Available(cat.Entries)
	report.Validation = validation
	report.Format = format
	report.Document = doc.Stats
	report.References = doc.References
	report.Catalog = cat.Diagnostics
	report.Results = cmp.Results
	report.Metrics = metrics
	report.Match = cmp.Report

	if s.store != nil {
		done = mon.Start("store")
		err := s.store.InsertRun(internal.RunRow{
			RunID:        report.RunID,
			EmailID:      in.EmailID,
			DocumentName: in.Document.Name,
			CatalogName:  in.Catalog.Name,
			SupplierName: cmp.Report.SupplierName,
			Format:       format,
			PDFCount:     len(doc.Barcodes),
			CatalogCount: len(scoped),
			Metrics:      metrics,
			Timings:      mon.Timings(),
		}, cmp.Results)
		s.observe("store", done())
		if err != nil {
			s.outcome("store_failed")
			return nil, fmt.Errorf("store run %s: %w", report.RunID, err)
		}
	}
	report.Performance = mon.Report()

	s.record(report)
	log.Info("reconciled",
		"supplier", cmp.Report.SupplierName,
		"format", format,
		"pdfCodes", len(doc.Barcodes),
		"catalogEntries", len(scoped),
		"matched", cmp.Report.Matched,
		"missing", cmp.Report.Unmatched,
		"excelOnlyShown", cmp.Report.ExcelOnlyShown,
		"complianceRate", metrics.ComplianceRate,
	)
	for _, rec := range report.Performance.Recommendations {
		log.Debug("performance", "recommendation", rec)
	}
	return report, nil
}

// chooseSupplier returns the supplier scope: the one named by the caller, else
// the one identified from the references, else nil for the whole catalog.
func chooseSupplier(name string, refs []internal.ProductReference, entries []internal.CatalogEntry) (*internal.SupplierInfo, supplier.Validation, error) {
	if name == "" {
		info := supplier.Identify(refs, entries)
		return info, supplier.ValidateDetection(info, len(refs)), nil
	}

	found, ok := supplier.Find(entries, name)
	if !ok {
		return nil, supplier.Validation{}, fmt.Errorf("%w: %s", ErrSupplierNotFound, name)
	}
	if identified := supplier.Identify(refs, supplier.FilterEntries(entries, found.Name)); identified != nil {
		found = *identified
	}
	v := supplier.ValidateDetection(&found, len(refs))
	v.IsValid = true
	v.Message = "selected by caller: " + v.Message
	if len(found.DetectedReferences) == 0 {
		v.Message = fmt.Sprintf("selected by caller: %s, no document reference confirms it", found.Name)
	}
	return &found, v, nil
}

func (s *ReconcileService) extractDocument(ctx context.Context, src Source) (*document.Extraction, error) {
	key := cache.Key("pdf", src.Content)
	if s.cache != nil {
		if v, ok := s.cache.Documents.Get(key); ok {
			s.cacheLookup("hit")
			return v, nil
		}
		s.cacheLookup("miss")
	}
	out, err := s.documents.Extract(ctx, src.Content)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Documents.Add(key, out)
	}
	return out, nil
}

func (s *ReconcileService) extractCatalog(ctx context.Context, src Source) (*catalog.Extraction, error) {
	key := cache.Key("catalog"+filepath.Ext(src.Name), src.Content)
	if s.cache != nil {
		if v, ok := s.cache.Catalogs.Get(key); ok {
			s.cacheLookup("hit")
			hit := *v
			hit.Diagnostics.FileName = src.Name
			return &hit, nil
		}
		s.cacheLookup("miss")
	}
	out, err := s.catalogs.Extract(ctx, src.Content, src.Name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Catalogs.Add(key, out)
	}
	return out, nil
}

func (s *ReconcileService) observe(stage string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (s *ReconcileService) outcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *ReconcileService) cacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *ReconcileService) record(r *Report) {
	if s.metrics == nil {
		return
	}
	s.metrics.RunsTotal.WithLabelValues("ok").Inc()
	for _, res := range r.Results {
		s.metrics.ResultsTotal.WithLabelValues(string(res.Status)).Inc()
	}
	s.metrics.CatalogEntries.Observe(float64(r.Catalog.Rows.Valid))
	s.metrics.DocumentBarcodes.Observe(float64(r.Document.ValidBarcodes))
	s.metrics.ComplianceRate.WithLabelValues(r.Match.SupplierName).Set(r.Metrics.ComplianceRate)
}
