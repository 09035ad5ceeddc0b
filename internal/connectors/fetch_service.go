package connectors

import (
	"context"
	"log/slog"

	"clinicreport/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	Skipped int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logger,
	}
}

// FetchAndStore pulls report mails and keeps the new ones. Mails already
// known by provider and message ID are skipped.
func (s *FetchService) FetchAndStore(ctx context.Context, q Query) (FetchResult, error) {
	messages, err := s.connector.FetchReports(ctx, q)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Stored++
		s.logger.Debug("mail stored", "mail_id", row.ID, "subject", row.Subject, "provider", row.Provider)
	}

	return res, nil
}
