package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"labelrecon/internal/catalog"
)

const (
	MaxPDFBytes         = 50 << 20
	MinPDFBytes         = 1024
	MaxUploadSheetBytes = 20 << 20
	MinSheetBytes       = 100
)

var sheetExtensions = []string{".xlsx", ".xlsm", ".xls", ".csv"}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type Limits struct {
	MaxPDFBytes   int64
	MaxSheetBytes int64
}

func DefaultLimits() Limits {
	return Limits{MaxPDFBytes: MaxPDFBytes, MaxSheetBytes: MaxUploadSheetBytes}
}

func ValidatePDF(name string, content []byte, limits Limits) ValidationErrors {
	var errs ValidationErrors
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		errs = append(errs, ValidationError{Field: "pdf", Message: fmt.Sprintf("%s is not a PDF document", name)})
	}
	if limits.MaxPDFBytes > 0 && int64(len(content)) > limits.MaxPDFBytes {
		errs = append(errs, ValidationError{Field: "pdf", Message: fmt.Sprintf("PDF must not exceed %dMB", limits.MaxPDFBytes>>20)})
	}
	if len(content) < MinPDFBytes {
		errs = append(errs, ValidationError{Field: "pdf", Message: "PDF looks corrupted or empty"})
	}
	return errs
}

func ValidateSpreadsheet(name string, content []byte, limits Limits) ValidationErrors {
	var errs ValidationErrors
	ext := strings.ToLower(filepath.Ext(name))
	known := false
	for _, e := range sheetExtensions {
		if ext == e {
			known = true
			break
		}
	}
	if !known && catalog.SniffKind(content, name) == "" {
		errs = append(errs, ValidationError{Field: "excel", Message: "file must be a spreadsheet (.xlsx, .xlsm, .xls) or CSV"})
	} else if catalog.SniffKind(content, name) == "" {
		errs = append(errs, ValidationError{Field: "excel", Message: fmt.Sprintf("%s content does not match a spreadsheet signature", name)})
	}
	if limits.MaxSheetBytes > 0 && int64(len(content)) > limits.MaxSheetBytes {
		errs = append(errs, ValidationError{Field: "excel", Message: fmt.Sprintf("spreadsheet must not exceed %dMB", limits.MaxSheetBytes>>20)})
	}
	if len(content) < MinSheetBytes {
		errs = append(errs, ValidationError{Field: "excel", Message: "spreadsheet looks corrupted or empty"})
	}
	return errs
}

var (
	reUnsafeName = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	reUnderscore = regexp.MustCompile(`_{2,}`)
)

func SanitizeFileName(name string) string {
	out := reUnderscore.ReplaceAllString(reUnsafeName.ReplaceAllString(name, "_"), "_")
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}
