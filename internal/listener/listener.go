package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"labelrecon/internal/config"
	"labelrecon/internal/connectors"
	gmailconnector "labelrecon/internal/connectors/gmail"
	imapconnector "labelrecon/internal/connectors/imap"
	"labelrecon/internal/logger"
	"labelrecon/internal/observability"
	"labelrecon/internal/pipeline"
	"labelrecon/internal/storage"
)

const EmailExported = "exported"

// LastCycleKey is the metadata key holding the time of the last completed
// cycle for a provider.
func LastCycleKey(provider string) string {
	return "listener." + provider + ".last_cycle"
}

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	log       *logger.Logger
	metrics   *observability.Metrics

	connect func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, log *logger.Logger, metrics *observability.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{db: db, cfg: cfg, processor: processor, log: log.With("component", "listener"), metrics: metrics}
	s.connect = s.makeConnector
	return s
}

// Run polls the mailbox until ctx is canceled. A failed cycle is logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Runs      int
	Exported  int
}

func (s *Service) RunCycle(ctx context.Context) error {
	_, err := s.runCycle(ctx)
	return err
}

func (s *Service) runCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	conn, err := s.connect(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	var res CycleResult
	fetch := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.log)
	fetched, err := fetch.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	res.Processed, res.Runs, err = s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		if res.Exported, err = s.exportProcessed(provider); err != nil {
			return res, err
		}
	}

	if err := s.db.SetMetadata(LastCycleKey(provider), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return res, err
	}
	if s.metrics != nil {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
			s.log.Warn("metrics textfile not written", "error", err)
		}
	}

	s.log.Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"processed", res.Processed,
		"runs", res.Runs,
		"exported", res.Exported,
	)
	return res, nil
}

// exportProcessed writes one workbook per stored run of each processed email
// and marks the email exported.
func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus(pipeline.EmailProcessed, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, email := range emails {
		if email.Provider != provider {
			continue
		}
		runs, err := s.db.ListRunsByEmail(email.ID)
		if err != nil {
			return exported, err
		}
		for _, run := range runs {
			results, err := s.db.GetRunResults(run.RunID)
			if err != nil {
				return exported, err
			}
			filename := fmt.Sprintf("%d_%s_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID), run.RunID[:8])
			outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
			if err := pipeline.ExportReportToXLSX(pipeline.ExportDataFromRun(run, results), outputPath); err != nil {
				return exported, fmt.Errorf("export run %s: %w", run.RunID, err)
			}
			exported++
			s.log.Debug("run exported", "email", email.ID, "run", run.RunID, "path", outputPath)
		}
		if err := s.db.UpdateEmailStatus(email.ID, EmailExported); err != nil {
			return exported, err
		}
	}
	return exported, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	return NewConnector(ctx, s.cfg, provider)
}

func NewConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := strings.Trim(repl.Replace(input), "_")
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
