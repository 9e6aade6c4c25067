package connectors

import (
	"context"
	"fmt"

	"labelrecon/internal/logger"
	"labelrecon/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       *logger.Logger
}

type FetchResult struct {
	Fetched   int
	Stored    int
	Unchanged int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *logger.Logger) *FetchService {
	if log == nil {
		log = logger.Nop()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, stored, err := s.store.Store(msg)
		if err != nil {
			return res, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		if !stored {
			res.Unchanged++
			continue
		}
		res.Stored++
		s.log.Debug("mail stored", "email", row.ID, "provider", msg.Provider, "subject", msg.Subject)
	}
	return res, nil
}
