package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"

	"labelrecon/internal"
	"labelrecon/internal/logger"
	"labelrecon/internal/observability"
	"labelrecon/internal/storage"
)

const (
	EmailFetched   = "fetched"
	EmailProcessed = "processed"
	EmailSkipped   = "skipped"
	EmailFailed    = "failed"
)

type Reconciler interface {
	Reconcile(ctx context.Context, in Input) (*Report, error)
}

type ProcessingService struct {
	db         *storage.DB
	reconciler Reconciler
	log        *logger.Logger
	metrics    *observability.Metrics
}

func NewProcessingService(db *storage.DB, reconciler Reconciler, log *logger.Logger, metrics *observability.Metrics) *ProcessingService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessingService{db: db, reconciler: reconciler, log: log, metrics: metrics}
}

type ProcessResult struct {
	EmailID        int
	Status         string
	RunID          string
	Supplier       string
	ComplianceRate float64
	Error          string
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes fetched emails and returns how many were handled
// and how many produced a run.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(EmailFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	runs := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, runs, err
		}
		processedEmails++
		if res.RunID != "" {
			runs++
		}
	}
	return processedEmails, runs, nil
}

// ProcessEmail reconciles the first PDF against the first spreadsheet of the
// email. Extraction failures mark the email failed without aborting a batch;
// storage errors and cancellation are returned.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	log := s.log.With("email", email.ID, "provider", email.Provider)
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	parsed, err := ParseEmail(raw)
	if err != nil {
		return s.finish(email, ProcessResult{EmailID: email.ID, Status: EmailFailed, Error: err.Error()})
	}
	if err := s.db.ClearEmailRuns(email.ID); err != nil {
		return ProcessResult{}, err
	}

	detect := DetectReconciliationRequest(firstNonEmpty(parsed.Subject, email.Subject), parsed.Text, parsed.Attachments)
	if !detect.IsRequest {
		log.Debug("email skipped", "reason", detect.Reason, "attachments", strings.Join(parsed.AttachmentNames(), ","))
		return s.finish(email, ProcessResult{EmailID: email.ID, Status: EmailSkipped})
	}

	pdf, _ := parsed.First(AttachmentPDF)
	sheet, _ := parsed.First(AttachmentSpreadsheet)
	id := email.ID
	report, err := s.reconciler.Reconcile(ctx, Input{
		Document: Source{Name: SanitizeFileName(pdf.Name), Content: pdf.Content},
		Catalog:  Source{Name: SanitizeFileName(sheet.Name), Content: sheet.Content},
		EmailID:  &id,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ProcessResult{}, err
		}
		log.Warn("reconciliation failed", "error", err)
		return s.finish(email, ProcessResult{EmailID: email.ID, Status: EmailFailed, Error: err.Error()})
	}

	return s.finish(email, ProcessResult{
		EmailID:        email.ID,
		Status:         EmailProcessed,
		RunID:          report.RunID,
		Supplier:       report.Match.SupplierName,
		ComplianceRate: report.Metrics.ComplianceRate,
	})
}

func (s *ProcessingService) finish(email internal.EmailRow, res ProcessResult) (ProcessResult, error) {
	if err := s.db.UpdateEmailStatus(email.ID, res.Status); err != nil {
		return ProcessResult{}, err
	}
	if s.metrics != nil {
		s.metrics.EmailsProcessed.WithLabelValues(res.Status).Inc()
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
