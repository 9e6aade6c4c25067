package pipeline

import (
	"strings"

	"labelrecon/internal/util"
)

type DetectResult struct {
	IsRequest bool
	Score     float64
	Reason    string
}

// requestThreshold is the score an email with both attachments needs to be
// reconciled; at least one keyword must appear.
const requestThreshold = 0.45

var detectKeywords = []string{"etiquette", "label", "gencod", "barcode", "code-barre", "code barre", "ean", "catalogue", "catalog", "controle", "check"}

// DetectReconciliationRequest scores a stored email. A PDF and a spreadsheet
// attachment are both required, and keywords in the subject or body must lift
// the score to requestThreshold.
func DetectReconciliationRequest(subject, text string, attachments []Attachment) DetectResult {
	hasPDF, hasSheet := false, false
	for _, a := range attachments {
		switch a.Kind {
		case AttachmentPDF:
			hasPDF = true
		case AttachmentSpreadsheet:
			hasSheet = true
		}
	}
	if !hasPDF || !hasSheet {
		reason := "missing_pdf"
		if hasPDF {
			reason = "missing_spreadsheet"
		}
		return DetectResult{IsRequest: false, Score: 0, Reason: reason}
	}

	subject = util.FoldHeader(subject)
	text = util.FoldHeader(text)
	score := 0.3
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}
	if score > 1 {
		score = 1
	}
	if score < requestThreshold {
		return DetectResult{IsRequest: false, Score: score, Reason: "no_keywords"}
	}
	return DetectResult{IsRequest: true, Score: score, Reason: "attachments_present"}
}
