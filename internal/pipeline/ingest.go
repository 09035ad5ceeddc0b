package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"clinicreport/internal"
	"clinicreport/internal/config"
	"clinicreport/internal/connectors"
	"clinicreport/internal/logging"
	"clinicreport/internal/sources"
	"clinicreport/internal/storage"
	"clinicreport/internal/util"
)

const (
	MailStatusIngested = "ingested"
	MailStatusIgnored  = "ignored"
)

// IngestService turns fetched report mails into classified xlsx files under
// the inbox directory.
type IngestService struct {
	db       *storage.DB
	inboxDir string
	logger   *slog.Logger
}

func NewIngestService(db *storage.DB, cfg config.Config, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &IngestService{db: db, inboxDir: cfg.InboxDir, logger: logger}
}

type IngestResult struct {
	MailID int
	Files  []internal.ReportFile
}

// IngestPending ingests up to limit fetched mails. It returns the number of
// mails handled and the number of report files stored.
func (s *IngestService) IngestPending(limit int) (int, int, error) {
	pending, err := s.db.ListMailsByStatus(connectors.MailStatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	mails, files := 0, 0
	for _, m := range pending {
		res, err := s.IngestMail(m)
		if err != nil {
			return mails, files, err
		}
		mails++
		files += len(res.Files)
	}
	return mails, files, nil
}

func (s *IngestService) IngestMail(m internal.MailRow) (IngestResult, error) {
	res := IngestResult{MailID: m.ID}
	raw, err := os.ReadFile(m.RawRef)
	if err != nil {
		return res, err
	}

	extracted, err := ExtractTablesFromMailRaw(raw)
	if err != nil {
		s.logger.Warn("unreadable mail", "mail_id", m.ID, "error", err)
		return res, s.db.UpdateMailStatus(m.ID, MailStatusIgnored)
	}
	for _, w := range extracted.Warnings {
		s.logger.Warn("mail extraction warning", "mail_id", m.ID, "warning", w)
	}

	for i, mt := range extracted.Tables {
		if mt.Kind == internal.KindUnknown || len(mt.Table.Rows) == 0 {
			continue
		}
		path := filepath.Join(s.inboxDir, mt.Kind, fmt.Sprintf("%d_%d.xlsx", m.ID, i+1))
		if err := sources.WriteXLSX(mt.Table, path); err != nil {
			return res, err
		}
		f := internal.ReportFile{
			MailID:     util.IntPtr(m.ID),
			Kind:       mt.Kind,
			Source:     mt.Source,
			Name:       util.FirstNonEmpty(mt.Origin, mt.Table.Name),
			Path:       path,
			Rows:       len(mt.Table.Rows),
			ReceivedAt: m.ReceivedAt,
		}
		id, err := s.db.InsertReportFile(f)
		if err != nil {
			return res, err
		}
		f.ID = id
		res.Files = append(res.Files, f)
	}

	status := MailStatusIngested
	if len(res.Files) == 0 {
		status = MailStatusIgnored
	}
	if err := s.db.UpdateMailStatus(m.ID, status); err != nil {
		return res, err
	}
	s.logger.Info("mail ingested", "mail_id", m.ID, "subject", util.FirstNonEmpty(extracted.Subject, m.Subject), "files", len(res.Files), "status", status)
	return res, nil
}
