package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
)

type AttachmentKind string

const (
	AttachmentPDF         AttachmentKind = "pdf"
	AttachmentSpreadsheet AttachmentKind = "spreadsheet"
	AttachmentOther       AttachmentKind = "other"
)

type Attachment struct {
	Name    string
	Kind    AttachmentKind
	Content []byte
}

type ParsedEmail struct {
	Subject     string
	From        string
	Text        string
	HTML        string
	Attachments []Attachment
}

func (p ParsedEmail) AttachmentNames() []string {
	out := make([]string, 0, len(p.Attachments))
	for _, a := range p.Attachments {
		out = append(out, a.Name)
	}
	return out
}

// First returns the first attachment of a kind, in message order.
func (p ParsedEmail) First(kind AttachmentKind) (Attachment, bool) {
	for _, a := range p.Attachments {
		if a.Kind == kind {
			return a, true
		}
	}
	return Attachment{}, false
}

// ParseEmail reads a raw RFC 822 message. Inline parts with a file name count
// as attachments since some clients send spreadsheets inline.
func ParseEmail(raw []byte) (ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ParsedEmail{}, err
	}

	out := ParsedEmail{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    env.Text,
		HTML:    env.HTML,
	}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			if i >= len(env.Attachments) {
				continue
			}
			name = "attachment"
		}
		out.Attachments = append(out.Attachments, Attachment{
			Name:    name,
			Kind:    classifyAttachment(name, part.ContentType, part.Content),
			Content: part.Content,
		})
	}
	return out, nil
}

func classifyAttachment(name, contentType string, content []byte) AttachmentKind {
	ext := strings.ToLower(filepath.Ext(name))
	ct := strings.ToLower(contentType)
	switch {
	case ext == ".pdf" || strings.Contains(ct, "pdf") || bytes.HasPrefix(content, []byte("%PDF")):
		return AttachmentPDF
	case ext == ".xlsx" || ext == ".xlsm" || ext == ".xls" || ext == ".csv",
		strings.Contains(ct, "spreadsheet"), strings.Contains(ct, "ms-excel"), ct == "text/csv":
		return AttachmentSpreadsheet
	}
	return AttachmentOther
}
