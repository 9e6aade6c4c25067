package catalog

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"labelrecon/internal"
	"labelrecon/internal/barcode"
	"labelrecon/internal/util"
)

const (
	DefaultChunkSize    = 1000
	DefaultMaxFileBytes = 50 << 20

	maxRowWarnings = 20
	slowExtraction = 5 * time.Second
)

type Options struct {
	MinConfidence float64
	MaxHeaderRows int
	ChunkSize     int
	MaxFileBytes  int64
}

func DefaultOptions() Options {
	return Options{
		MinConfidence: DefaultMinConfidence,
		MaxHeaderRows: DefaultMaxHeaderRows,
		ChunkSize:     DefaultChunkSize,
		MaxFileBytes:  DefaultMaxFileBytes,
	}
}

type RowStats struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Errors     int `json:"errors"`
	Empty      int `json:"empty"`
	Duplicates int `json:"duplicates"`
}

type Diagnostics struct {
	FileName      string                 `json:"fileName"`
	FileSize      int                    `json:"fileSize"`
	WorkbookKind  string                 `json:"workbookKind"`
	Sheets        []string               `json:"sheets"`
	SelectedSheet string                 `json:"selectedSheet"`
	SheetReason   string                 `json:"sheetReason"`
	Detection     *Detection             `json:"detection,omitempty"`
	Rows          RowStats               `json:"rows"`
	QualityScore  int                    `json:"qualityScore"`
	Format        internal.CatalogFormat `json:"format"`
	Duration      time.Duration          `json:"duration"`
	Warnings      []string               `json:"warnings,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
	Suggestions   []string               `json:"suggestions,omitempty"`
}

type Extraction struct {
	Entries     []internal.CatalogEntry
	Diagnostics Diagnostics
}

type Extractor struct {
	opts     Options
	detector Detector
}

func NewExtractor(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = def.MinConfidence
	}
	if opts.MaxHeaderRows <= 0 {
		opts.MaxHeaderRows = def.MaxHeaderRows
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = def.MaxFileBytes
	}
	return &Extractor{
		opts:     opts,
		detector: Detector{MinConfidence: opts.MinConfidence, MaxHeaderRows: opts.MaxHeaderRows, SampleSize: DefaultSampleSize},
	}
}

func (e *Extractor) Extract(ctx context.Context, content []byte, name string) (*Extraction, error) {
	if int64(len(content)) > e.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, name, len(content), e.opts.MaxFileBytes)
	}
	wb, err := LoadWorkbook(content, name)
	if err != nil {
		return nil, err
	}
	out, err := e.ExtractWorkbook(ctx, wb)
	if out != nil {
		out.Diagnostics.FileName = name
		out.Diagnostics.FileSize = len(content)
	}
	return out, err
}

// ExtractWorkbook walks the selected sheet in source order. Rows are processed in
// chunks; between chunks the goroutine yields and ctx is checked.
func (e *Extractor) ExtractWorkbook(ctx context.Context, wb *Workbook) (*Extraction, error) {
	start := time.Now()
	sheet, reason, err := SelectSheet(wb)
	if err != nil {
		return nil, err
	}

	diag := Diagnostics{
		WorkbookKind:  wb.Kind,
		Sheets:        wb.SheetNames(),
		SelectedSheet: sheet.Name,
		SheetReason:   reason,
	}

	det, err := e.detector.DetectColumns(sheet, diag.Sheets)
	diag.Detection = det
	if err != nil {
		diag.Errors = append(diag.Errors, err.Error())
		return &Extraction{Diagnostics: diag}, err
	}
	diag.Warnings = append(diag.Warnings, det.Warnings...)

	cols := columnsOf(det)
	seen := map[string]struct{}{}
	entries := make([]internal.CatalogEntry, 0, len(sheet.Rows))
	rows := sheet.Rows[det.HeaderIndex+1:]

	for offset := 0; offset < len(rows); offset += e.opts.ChunkSize {
		end := min(offset+e.opts.ChunkSize, len(rows))
		for _, row := range rows[offset:end] {
			diag.Rows.Total++
			entry, outcome, warn := extractRow(row, cols)
			switch outcome {
			case rowEmpty:
				diag.Rows.Empty++
				continue
			case rowInvalid:
				diag.Rows.Errors++
				if warn != "" && len(diag.Warnings) < maxRowWarnings {
					diag.Warnings = append(diag.Warnings, warn)
				}
				continue
			}
			if _, dup := seen[entry.NormalizedBarcode]; dup {
				diag.Rows.Duplicates++
				continue
			}
			seen[entry.NormalizedBarcode] = struct{}{}
			diag.Rows.Valid++
			entries = append(entries, entry)
		}
		if end < len(rows) {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	diag.Duration = time.Since(start)
	diag.QualityScore = QualityScore(diag.Rows, det.DetectedCount())
	diag.Format = ClassifyFormat(entries)
	diag.Suggestions = suggestions(diag, det)

	out := &Extraction{Entries: entries, Diagnostics: diag}
	if len(entries) == 0 {
		noData := &NoDataError{Sheet: sheet.Name, Rows: diag.Rows, QualityScore: diag.QualityScore}
		out.Diagnostics.Errors = append(out.Diagnostics.Errors, noData.Error())
		return out, noData
	}
	return out, nil
}

type rowOutcome int

const (
	rowOK rowOutcome = iota
	rowEmpty
	rowInvalid
)

type columns map[Field]int

func columnsOf(det *Detection) columns {
	out := columns{}
	for _, f := range det.Fields {
		if f.Detected() {
			out[f.Field] = f.Column
		}
	}
	return out
}

func (c columns) text(row Row, field Field) *string {
	col, ok := c[field]
	if !ok {
		return nil
	}
	v := util.Sanitize(row.Cell(col))
	if v == "" {
		return nil
	}
	return &v
}

func (c columns) price(row Row, field Field) *float64 {
	col, ok := c[field]
	if !ok {
		return nil
	}
	return util.ParsePrice(row.Cell(col))
}

func extractRow(row Row, cols columns) (entry internal.CatalogEntry, outcome rowOutcome, warn string) {
	defer func() {
		if r := recover(); r != nil {
			entry, outcome, warn = internal.CatalogEntry{}, rowInvalid, fmt.Sprintf("row %d: %v", row.Number, r)
		}
	}()

	raw := util.Sanitize(util.ExpandScientific(strings.TrimSpace(row.Cell(cols[FieldBarcode]))))
	if len(raw) < 8 {
		return entry, rowEmpty, ""
	}
	compact := util.StripSpaces(raw)
	if !barcode.IsDigits(compact) || len(compact) < 8 || len(compact) > 14 || barcode.IsPlaceholder(compact) {
		return entry, rowInvalid, ""
	}

	entry = internal.CatalogEntry{
		Barcode:           raw,
		NormalizedBarcode: barcode.Normalize(raw),
		Source:            internal.SourceCatalog,
		RowNumber:         row.Number,
		PriceEuro:         cols.price(row, FieldPriceEuro),
		PricePound:        cols.price(row, FieldPricePound),
		Description:       cols.text(row, FieldDescription),
		Supplier:          cols.text(row, FieldSupplier),
		ProductReference:  cols.text(row, FieldProductReference),
		Color:             cols.text(row, FieldColor),
		Size:              cols.text(row, FieldSize),
		ColorCode:         cols.text(row, FieldColorCode),
		Season:            cols.text(row, FieldSeason),
		CreationSeason:    cols.text(row, FieldCreationSeason),
		BrandCode:         cols.text(row, FieldBrandCode),
		CommercialDelay:   cols.text(row, FieldCommercialDelay),
	}

	switch {
	case entry.PriceEuro != nil:
		cur := internal.CurrencyEUR
		entry.Price, entry.Currency = entry.PriceEuro, &cur
	case entry.PricePound != nil:
		cur := internal.CurrencyGBP
		entry.Price, entry.Currency = entry.PricePound, &cur
	default:
		entry.Price = cols.price(row, FieldPrice)
	}
	return entry, rowOK, ""
}

// QualityScore is 100*valid - 50*errors - 20*empty (as ratios of total rows) plus 5 per detected column, clamped to [0, 100].
// A sheet without data rows scores 0.
func QualityScore(stats RowStats, detectedColumns int) int {
	if stats.Total == 0 {
		return 0
	}
	total := float64(stats.Total)
	score := float64(5*detectedColumns) + 100*float64(stats.Valid)/total - 50*float64(stats.Errors)/total - 20*float64(stats.Empty)/total
	return int(math.Max(0, math.Min(100, math.Round(score))))
}

var optionalFields = []Field{
	FieldPriceEuro, FieldPricePound, FieldDescription, FieldSupplier, FieldProductReference,
	FieldColor, FieldSize, FieldColorCode, FieldSeason, FieldCreationSeason, FieldBrandCode,
}

func suggestions(diag Diagnostics, det *Detection) []string {
	out := []string{}
	out = append(out, fmt.Sprintf("%s format detected (%d columns recognised)", diag.Format, det.DetectedCount()))
	if diag.QualityScore < 70 {
		out = append(out, fmt.Sprintf("data quality is low (%d/100), check the barcode column content", diag.QualityScore))
	}
	if diag.Rows.Valid > 0 && float64(diag.Rows.Errors) > 0.1*float64(diag.Rows.Valid) {
		out = append(out, fmt.Sprintf("%d rows have invalid barcodes, expected 8 to 14 digits", diag.Rows.Errors))
	}
	if diag.Rows.Duplicates > 0 {
		out = append(out, fmt.Sprintf("%d duplicate barcodes removed, the first occurrence was kept", diag.Rows.Duplicates))
	}
	missing := []string{}
	for _, f := range optionalFields {
		if det.Column(f) < 0 {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		out = append(out, "columns not found: "+strings.Join(missing, ", "))
	}
	if diag.Duration > slowExtraction {
		out = append(out, fmt.Sprintf("extraction took %s, consider removing unused sheets or columns", diag.Duration.Round(time.Millisecond)))
	}
	switch {
	case diag.Rows.Valid == 0:
		out = append(out, "no product extracted, verify the selected sheet and header row")
	case diag.Rows.Valid < 10:
		out = append(out, fmt.Sprintf("only %d products extracted, verify the file is complete", diag.Rows.Valid))
	}
	return out
}
