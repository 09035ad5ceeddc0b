package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"clinicreport/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS mails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS report_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  mailId INTEGER,
  kind TEXT NOT NULL,
  source TEXT NOT NULL,
  name TEXT NOT NULL,
  path TEXT NOT NULL UNIQUE,
  rowCount INTEGER NOT NULL,
  receivedAt TEXT NOT NULL,
  usedInRun TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(mailId) REFERENCES mails(id)
);
CREATE INDEX IF NOT EXISTS idx_report_files_kind ON report_files(kind, usedInRun);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  inputsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS outcomes (
  runId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  leadId TEXT NOT NULL,
  status TEXT NOT NULL,
  purchased INTEGER NOT NULL,
  payloadJson TEXT NOT NULL,
  PRIMARY KEY(runId, rowNo),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS export_state (
  runId TEXT PRIMARY KEY,
  submitted INTEGER NOT NULL DEFAULT 0,
  completed INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  saved INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertMail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.MailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO mails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.MailRow{}, err
	}

	row, err := d.GetMailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MailRow{}, err
	}
	if row == nil {
		return internal.MailRow{}, errors.New("failed to upsert mail")
	}
	return *row, nil
}

const mailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanMail(s interface{ Scan(...any) error }) (internal.MailRow, error) {
	var row internal.MailRow
	var subject, sender, receivedAt sql.NullString
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef)
	row.Subject, row.Sender, row.ReceivedAt = subject.String, sender.String, receivedAt.String
	return row, err
}

func (d *DB) GetMailByProviderMessageID(provider, messageID string) (*internal.MailRow, error) {
	row, err := scanMail(d.conn.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetMailByID(id int) (*internal.MailRow, error) {
	row, err := scanMail(d.conn.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListMailsByStatus(status string, limit int) ([]internal.MailRow, error) {
	rows, err := d.conn.Query(`SELECT `+mailColumns+` FROM mails WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MailRow
	for rows.Next() {
		row, err := scanMail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMailStatus(mailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE mails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, mailID)
	return err
}

// InsertReportFile records an ingested table. Re-ingesting the same path
// refreshes the row and clears its run marker.
func (d *DB) InsertReportFile(f internal.ReportFile) (int, error) {
	_, err := d.conn.Exec(`
INSERT INTO report_files (mailId, kind, source, name, path, rowCount, receivedAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  mailId=excluded.mailId,
  kind=excluded.kind,
  source=excluded.source,
  name=excluded.name,
  rowCount=excluded.rowCount,
  receivedAt=excluded.receivedAt,
  usedInRun=NULL
`, f.MailID, f.Kind, f.Source, f.Name, f.Path, f.Rows, f.ReceivedAt)
	if err != nil {
		return 0, err
	}
	var id int
	if err := d.conn.QueryRow(`SELECT id FROM report_files WHERE path = ?`, f.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestUnusedReportFiles returns, per kind, the most recently received file
// not yet consumed by a run.
func (d *DB) LatestUnusedReportFiles() (map[string]internal.ReportFile, error) {
	rows, err := d.conn.Query(`
SELECT id, mailId, kind, source, name, path, rowCount, receivedAt, usedInRun
FROM report_files
WHERE usedInRun IS NULL
ORDER BY receivedAt DESC, id DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]internal.ReportFile{}
	for rows.Next() {
		var f internal.ReportFile
		var mailID sql.NullInt64
		var usedIn sql.NullString
		if err := rows.Scan(&f.ID, &mailID, &f.Kind, &f.Source, &f.Name, &f.Path, &f.Rows, &f.ReceivedAt, &usedIn); err != nil {
			return nil, err
		}
		if mailID.Valid {
			id := int(mailID.Int64)
			f.MailID = &id
		}
		if _, seen := out[f.Kind]; !seen {
			out[f.Kind] = f
		}
	}
	return out, rows.Err()
}

func (d *DB) MarkReportFilesUsed(runID string, ids []int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE report_files SET usedInRun = ? WHERE id = ?`, runID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertRun stores a run with its outcomes in one transaction.
func (d *DB) InsertRun(run internal.RunRow, outcomes []internal.LeadOutcome) error {
	countsJSON, _ := json.Marshal(run.Counts)
	inputsJSON, _ := json.Marshal(run.Inputs)

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO runs (id, source, countsJson, inputsJson) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(countsJSON), string(inputsJSON)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO outcomes (runId, rowNo, leadId, status, purchased, payloadJson) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range outcomes {
		payload, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(run.ID, i+1, o.Lead.ID, o.Status, o.Purchased, string(payload)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`INSERT INTO export_state (runId) VALUES (?)`, run.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) GetRun(id string) (*internal.RunRow, error) {
	var run internal.RunRow
	var countsJSON, inputsJSON string
	err := d.conn.QueryRow(`SELECT id, source, countsJson, inputsJson, createdAt FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Source, &countsJSON, &inputsJSON, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
	_ = json.Unmarshal([]byte(inputsJSON), &run.Inputs)
	return &run, nil
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`SELECT id, source, countsJson, inputsJson, createdAt FROM runs ORDER BY createdAt DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var run internal.RunRow
		var countsJSON, inputsJSON string
		if err := rows.Scan(&run.ID, &run.Source, &countsJSON, &inputsJSON, &run.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		_ = json.Unmarshal([]byte(inputsJSON), &run.Inputs)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) GetOutcomes(runID string) ([]internal.LeadOutcome, error) {
	rows, err := d.conn.Query(`SELECT payloadJson FROM outcomes WHERE runId = ? ORDER BY rowNo ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LeadOutcome
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var o internal.LeadOutcome
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("decode outcome of run %s: %w", runID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (d *DB) GetExportState(runID string) (*internal.ExportStateRow, error) {
	var st internal.ExportStateRow
	err := d.conn.QueryRow(`SELECT runId, submitted, completed, error, saved, failed, updatedAt FROM export_state WHERE runId = ?`, runID).
		Scan(&st.RunID, &st.Submitted, &st.Completed, &st.Error, &st.Saved, &st.Failed, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (d *DB) SaveExportState(st internal.ExportStateRow) error {
	_, err := d.conn.Exec(`
INSERT INTO export_state (runId, submitted, completed, error, saved, failed) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(runId) DO UPDATE SET
  submitted=excluded.submitted,
  completed=excluded.completed,
  error=excluded.error,
  saved=excluded.saved,
  failed=excluded.failed,
  updatedAt=CURRENT_TIMESTAMP
`, st.RunID, st.Submitted, st.Completed, st.Error, st.Saved, st.Failed)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
