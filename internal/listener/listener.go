package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"clinicreport/internal/config"
	"clinicreport/internal/connectors"
	gmailconnector "clinicreport/internal/connectors/gmail"
	imapconnector "clinicreport/internal/connectors/imap"
	"clinicreport/internal/logging"
	"clinicreport/internal/pipeline"
	"clinicreport/internal/storage"
	"clinicreport/internal/util"
)

const (
	metaLastRun   = "listener.last_run"
	metaLastCycle = "listener.last_cycle"
)

type Service struct {
	db     *storage.DB
	cfg    config.Config
	logger *slog.Logger
}

func NewService(db *storage.DB, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{db: db, cfg: cfg, logger: logger.With("component", "listener")}
}

// Run polls the mailbox until ctx is cancelled. A failed cycle is logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	if last, err := s.db.GetMetadata(metaLastRun); err == nil && last != nil {
		s.logger.Info("resuming", "last_run", util.DerefString(last))
	}

	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	for {
		if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// CycleResult counts what one fetch, ingest and run cycle did.
type CycleResult struct {
	Fetched  int
	Stored   int
	Ingested int
	Files    int
	RunID    string
	Output   string
	Pushed   int
}

func (s *Service) RunCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	conn, err := MakeConnector(ctx, s.cfg, provider)
	if err != nil {
		return err
	}
	res, err := s.cycle(ctx, conn)
	if err != nil {
		return err
	}
	s.logger.Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"ingested", res.Ingested,
		"files", res.Files,
		"run_id", res.RunID,
		"output", res.Output,
		"pushed", res.Pushed,
	)
	return nil
}

func (s *Service) cycle(ctx context.Context, conn connectors.MailConnector) (CycleResult, error) {
	var res CycleResult

	fetch := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.logger)
	fetched, err := fetch.FetchAndStore(ctx, s.query(time.Now()))
	if err != nil {
		return res, fmt.Errorf("fetch: %w", err)
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	ingest := pipeline.NewIngestService(s.db, s.cfg, s.logger)
	res.Ingested, res.Files, err = ingest.IngestPending(s.cfg.MailListenerIngestBatch)
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}
	if err := s.db.SetMetadata(metaLastCycle, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("record listener cycle failed", "key", metaLastCycle, "error", err)
	}

	runner := pipeline.NewRunner(s.db, s.cfg, s.logger)
	run, err := runner.RunInbox(ctx)
	if errors.Is(err, pipeline.ErrIncompleteInbox) {
		s.logger.Debug("waiting for reports", "reason", err.Error())
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("run: %w", err)
	}
	res.RunID = run.RunID
	if err := s.db.SetMetadata(metaLastRun, run.RunID); err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		res.Output = filepath.Join(s.cfg.OutputDir, "listener", run.RunID+".xlsx")
		if err := runner.Export(run, res.Output); err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
	}
	if s.cfg.MailListenerAutoPush {
		pushed, err := runner.Push(ctx, run.RunID, false)
		if err != nil {
			return res, fmt.Errorf("push: %w", err)
		}
		res.Pushed = pushed.Saved
	}
	return res, nil
}

func (s *Service) query(now time.Time) connectors.Query {
	q := connectors.Query{
		Label:   s.cfg.MailListenerLabel,
		Subject: s.cfg.MailSubjectFilter,
		Max:     s.cfg.MailListenerFetchMax,
	}
	if s.cfg.MailSinceDays > 0 {
		q.Since = now.AddDate(0, 0, -s.cfg.MailSinceDays)
	}
	return q
}

func MakeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
