package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"labelrecon/internal/util"
)

var (
	ErrNoSheet         = errors.New("workbook has no worksheet")
	ErrLegacyWorkbook  = errors.New("binary .xls (OLE2) workbooks are not supported, save the file as .xlsx")
	ErrUnknownWorkbook = errors.New("unrecognised spreadsheet content")
)

type Row struct {
	Number int
	Cells  []string
}

func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type Sheet struct {
	Name string
	Rows []Row
}

type Workbook struct {
	Kind   string
	Sheets []Sheet
}

func (w *Workbook) SheetNames() []string {
	out := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		out = append(out, s.Name)
	}
	return out
}

var (
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	zipEmpty  = []byte{0x50, 0x4B, 0x05, 0x06}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

func SniffKind(content []byte, name string) string {
	switch {
	case bytes.HasPrefix(content, zipMagic), bytes.HasPrefix(content, zipEmpty):
		return "xlsx"
	case bytes.HasPrefix(content, ole2Magic):
		return "xls"
	}
	head := bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	if len(head) > 2048 {
		head = head[:2048]
	}
	if bytes.HasPrefix(head, []byte("<")) || bytes.Contains(head, []byte("<table")) {
		return "html"
	}
	if strings.EqualFold(filepath.Ext(name), ".csv") || looksDelimited(head) {
		return "csv"
	}
	return ""
}

func looksDelimited(head []byte) bool {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	return bytes.Count(line, []byte(";")) > 0 || bytes.Count(line, []byte(",")) > 0 || bytes.Count(line, []byte("\t")) > 0
}

func LoadWorkbook(content []byte, name string) (*Workbook, error) {
	kind := SniffKind(content, name)
	var (
		wb  *Workbook
		err error
	)
	switch kind {
	case "xlsx":
		wb, err = loadXLSX(content)
	case "html":
		wb, err = loadHTML(content)
	case "csv":
		wb, err = loadCSV(content)
	case "xls":
		return nil, ErrLegacyWorkbook
	default:
		return nil, ErrUnknownWorkbook
	}
	if err != nil {
		return nil, fmt.Errorf("read %s workbook: %w", kind, err)
	}
	if len(wb.Sheets) == 0 {
		return nil, ErrNoSheet
	}
	wb.Kind = kind
	return wb, nil
}

func loadXLSX(content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		sheet := Sheet{Name: name, Rows: make([]Row, 0, len(rows))}
		for i, cells := range rows {
			sheet.Rows = append(sheet.Rows, Row{Number: i + 1, Cells: cells})
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

// loadHTML reads the HTML tables that some ERPs export with an .xls extension.
func loadHTML(content []byte) (*Workbook, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	wb := &Workbook{}
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		sheet := Sheet{Name: fmt.Sprintf("Sheet%d", i+1)}
		table.Find("tr").Each(func(j int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			sheet.Rows = append(sheet.Rows, Row{Number: j + 1, Cells: cells})
		})
		if len(sheet.Rows) > 0 {
			wb.Sheets = append(wb.Sheets, sheet)
		}
	})
	return wb, nil
}

func loadCSV(content []byte) (*Workbook, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = sniffDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	sheet := Sheet{Name: "Sheet1"}
	for n := 1; ; n++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sheet.Rows = append(sheet.Rows, Row{Number: n, Cells: record})
	}
	return &Workbook{Sheets: []Sheet{sheet}}, nil
}

func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if c := bytes.Count(line, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}
