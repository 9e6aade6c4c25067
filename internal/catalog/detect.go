package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"labelrecon/internal/util"
)

const (
	DefaultMinConfidence = 0.6
	DefaultMaxHeaderRows = 10
	DefaultSampleSize    = 20

	headerThreshold = 3
)

type signatureToken struct {
	name   string
	weight int
}

// Rich exports carry these exact headers.
var richSignature = []signatureToken{
	{"gencod", 5}, {"x300", 3}, {"x350", 3}, {"lib._coloris", 2}, {"taille", 2}, {"fournisseur", 2},
}

// Legacy exports are recognised by fragments.
var legacySignature = []signatureToken{
	{"code-barres", 3}, {"barcode", 3}, {"prix", 2}, {"price", 2},
}

type ColumnCandidate struct {
	Column     int     `json:"column"`
	Header     string  `json:"header"`
	Confidence float64 `json:"confidence"`
}

type FieldDetection struct {
	Field        Field             `json:"field"`
	Column       int               `json:"column"`
	Header       string            `json:"header,omitempty"`
	Confidence   float64           `json:"confidence"`
	Alternatives []ColumnCandidate `json:"alternatives,omitempty"`
}

func (f FieldDetection) Detected() bool {
	return f.Column >= 0
}

type Detection struct {
	HeaderIndex    int               `json:"-"`
	HeaderRow      int               `json:"headerRow"`
	HeaderScore    int               `json:"headerScore"`
	Headers        []string          `json:"headers"`
	Fields         []FieldDetection  `json:"fields"`
	BarcodeOptions []ColumnCandidate `json:"barcodeOptions"`
	Warnings       []string          `json:"warnings,omitempty"`
}

func (d *Detection) Column(field Field) int {
	for _, f := range d.Fields {
		if f.Field == field {
			return f.Column
		}
	}
	return -1
}

func (d *Detection) DetectedCount() int {
	n := 0
	for _, f := range d.Fields {
		if f.Detected() {
			n++
		}
	}
	return n
}

type Detector struct {
	MinConfidence float64
	MaxHeaderRows int
	SampleSize    int
}

func NewDetector() Detector {
	return Detector{MinConfidence: DefaultMinConfidence, MaxHeaderRows: DefaultMaxHeaderRows, SampleSize: DefaultSampleSize}
}

func headerScore(headers []string) int {
	score := 0
	for _, tok := range richSignature {
		for _, h := range headers {
			if h == tok.name {
				score += tok.weight
				break
			}
		}
	}
	for _, tok := range legacySignature {
		for _, h := range headers {
			if strings.Contains(h, tok.name) {
				score += tok.weight
				break
			}
		}
	}
	return score
}

func foldRow(row Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = util.FoldHeader(c)
	}
	return out
}

// DetectHeaderRow returns the index in rows of the header and its signature score.
// found is false when no row reached the threshold and the first non-blank row was used.
func (d Detector) DetectHeaderRow(rows []Row) (index int, score int, found bool) {
	limit := d.MaxHeaderRows
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if rows[i].IsBlank() {
			continue
		}
		if s := headerScore(foldRow(rows[i])); s >= headerThreshold {
			return i, s, true
		}
	}
	for i, r := range rows {
		if !r.IsBlank() {
			return i, 0, false
		}
	}
	return -1, 0, false
}

// columnConfidence combines header and data evidence. The result never exceeds 1.
func columnConfidence(nameScore, dataConfidence float64) float64 {
	return math.Min(1, nameScore+0.5*dataConfidence)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (d Detector) sample(rows []Row, headerIndex, col int) []string {
	out := make([]string, 0, d.SampleSize)
	for i := headerIndex + 1; i < len(rows) && i <= headerIndex+d.SampleSize; i++ {
		if v := strings.TrimSpace(rows[i].Cell(col)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DetectColumns finds the header row and maps each known field to a column.
// A missing barcode column is reported as a *ColumnError.
func (d Detector) DetectColumns(sheet Sheet, sheetNames []string) (*Detection, error) {
	headerIndex, score, found := d.DetectHeaderRow(sheet.Rows)
	if headerIndex < 0 {
		return nil, &ColumnError{Sheet: sheet.Name, Sheets: sheetNames, RowCount: len(sheet.Rows), Reason: "no header row found"}
	}

	header := sheet.Rows[headerIndex]
	folded := foldRow(header)
	det := &Detection{
		HeaderIndex: headerIndex,
		HeaderRow:   header.Number,
		HeaderScore: score,
		Headers:     make([]string, len(header.Cells)),
	}
	for i, c := range header.Cells {
		det.Headers[i] = strings.TrimSpace(c)
	}
	if !found {
		det.Warnings = append(det.Warnings, fmt.Sprintf("no header signature found in the first %d rows, using row %d", d.MaxHeaderRows, header.Number))
	}

	samples := make([][]string, len(folded))
	for col := range folded {
		samples[col] = d.sample(sheet.Rows, headerIndex, col)
	}

	for _, fd := range Detectors {
		fieldDet := FieldDetection{Field: fd.Field, Column: -1}
		all := make([]ColumnCandidate, 0, len(folded))
		best := 0.0
		for col, h := range folded {
			conf := columnConfidence(fd.NameScore(h), fd.Confidence(samples[col]))
			all = append(all, ColumnCandidate{Column: col, Header: det.Headers[col], Confidence: round2(conf)})
			if conf > best && conf >= d.MinConfidence {
				best = conf
				fieldDet.Column = col
				fieldDet.Header = det.Headers[col]
				fieldDet.Confidence = round2(conf)
			}
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Confidence > all[j].Confidence })
		for _, c := range all {
			if len(fieldDet.Alternatives) == 3 {
				break
			}
			if c.Confidence > 0 {
				fieldDet.Alternatives = append(fieldDet.Alternatives, c)
			}
		}
		if fd.Field == FieldBarcode {
			det.BarcodeOptions = all[:min(3, len(all))]
		}
		det.Fields = append(det.Fields, fieldDet)
	}

	if det.Column(FieldBarcode) < 0 {
		return det, &ColumnError{
			Sheet:      sheet.Name,
			Sheets:     sheetNames,
			Headers:    det.Headers,
			RowCount:   len(sheet.Rows),
			Candidates: det.BarcodeOptions,
			Reason:     fmt.Sprintf("no barcode column reached confidence %.2f", d.MinConfidence),
		}
	}
	return det, nil
}
