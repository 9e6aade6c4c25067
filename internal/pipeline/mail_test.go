package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	name, contentType string
	content           []byte
}

func mkEmail(t *testing.T, subject, text string, parts ...part) []byte {
	t.Helper()
	b := enmime.Builder().
		From("Supplier Ops", "ops@supplier.example").
		To("Labels", "labels@example.com").
		Date(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)).
		Subject(subject).
		Text([]byte(text))
	for _, p := range parts {
		b = b.AddAttachment(p.content, p.contentType, p.name)
	}
	root, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, root.Encode(&buf))
	return buf.Bytes()
}

func pdfPart() part {
	return part{"labels.pdf", "application/pdf", fakePDF()}
}

func sheetPart(t *testing.T) part {
	return part{"catalog.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", labelCatalog(t)}
}

func TestParseEmailClassifiesAttachments(t *testing.T) {
	raw := mkEmail(t, "Contrôle étiquettes", "Bonjour, voici les fichiers.",
		pdfPart(),
		sheetPart(t),
		part{"notes.txt", "text/plain", []byte("hello")},
	)

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Equal(t, "Contrôle étiquettes", parsed.Subject)
	assert.Contains(t, parsed.From, "ops@supplier.example")
	assert.Contains(t, parsed.Text, "voici les fichiers")
	assert.Equal(t, []string{"labels.pdf", "catalog.xlsx", "notes.txt"}, parsed.AttachmentNames())

	pdf, ok := parsed.First(AttachmentPDF)
	require.True(t, ok)
	assert.Equal(t, fakePDF(), pdf.Content)
	sheet, ok := parsed.First(AttachmentSpreadsheet)
	require.True(t, ok)
	assert.Equal(t, "catalog.xlsx", sheet.Name)
	assert.Equal(t, AttachmentOther, parsed.Attachments[2].Kind)
}

func TestClassifyAttachment(t *testing.T) {
	cases := []struct {
		name, ct string
		content  []byte
		want     AttachmentKind
	}{
		{"scan.PDF", "application/octet-stream", nil, AttachmentPDF},
		{"blob", "application/octet-stream", []byte("%PDF-1.7"), AttachmentPDF},
		{"export.csv", "", nil, AttachmentSpreadsheet},
		{"old.xls", "", nil, AttachmentSpreadsheet},
		{"book", "application/vnd.ms-excel", nil, AttachmentSpreadsheet},
		{"logo.png", "image/png", nil, AttachmentOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyAttachment(tc.name, tc.ct, tc.content), tc.name)
	}
}

func TestDetectReconciliationRequest(t *testing.T) {
	both := []Attachment{{Name: "a.pdf", Kind: AttachmentPDF}, {Name: "b.xlsx", Kind: AttachmentSpreadsheet}}

	res := DetectReconciliationRequest("Étiquettes GENCOD", "merci de contrôler", both)
	assert.True(t, res.IsRequest)
	assert.InDelta(t, 0.8, res.Score, 1e-9)
	assert.Equal(t, "attachments_present", res.Reason)

	res = DetectReconciliationRequest("Fichiers", "", both)
	assert.False(t, res.IsRequest)
	assert.InDelta(t, 0.3, res.Score, 1e-9)
	assert.Equal(t, "no_keywords", res.Reason)

	res = DetectReconciliationRequest("Fichiers", "merci de contrôler", both)
	assert.False(t, res.IsRequest)
	assert.InDelta(t, 0.4, res.Score, 1e-9)

	res = DetectReconciliationRequest("Etiquettes", "", both)
	assert.True(t, res.IsRequest)
	assert.InDelta(t, 0.5, res.Score, 1e-9)

	res = DetectReconciliationRequest("Etiquettes", "", both[:1])
	assert.False(t, res.IsRequest)
	assert.Equal(t, "missing_spreadsheet", res.Reason)

	res = DetectReconciliationRequest("Etiquettes", "", both[1:])
	assert.Equal(t, "missing_pdf", res.Reason)
}
