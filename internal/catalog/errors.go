package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrFileTooLarge = errors.New("spreadsheet exceeds size limit")

type ColumnError struct {
	Sheet      string
	Sheets     []string
	Headers    []string
	RowCount   int
	Candidates []ColumnCandidate
	Reason     string
}

func (e *ColumnError) Error() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "barcode column not found in sheet %q: %s", e.Sheet, e.Reason)
	fmt.Fprintf(&b, "; available sheets: [%s]", strings.Join(e.Sheets, ", "))
	fmt.Fprintf(&b, "; detected headers: [%s]", strings.Join(nonEmpty(e.Headers), ", "))
	fmt.Fprintf(&b, "; rows: %d", e.RowCount)
	if len(e.Candidates) > 0 {
		parts := make([]string, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			parts = append(parts, fmt.Sprintf("%q (%.0f%%)", c.Header, c.Confidence*100))
		}
		fmt.Fprintf(&b, "; best candidates: %s", strings.Join(parts, ", "))
	}
	b.WriteString("; rename the barcode column to GENCOD, EAN or Code-barres")
	return b.String()
}

type NoDataError struct {
	Sheet        string
	Rows         RowStats
	QualityScore int
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf(
		"no valid barcode extracted from sheet %q: %d rows read, %d valid, %d invalid, %d empty, %d duplicates, quality score %d/100; barcodes must hold 8 to 14 digits",
		e.Sheet, e.Rows.Total, e.Rows.Valid, e.Rows.Errors, e.Rows.Empty, e.Rows.Duplicates, e.QualityScore,
	)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
