package connectors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clinicreport/internal"
	"clinicreport/internal/logging"
	"clinicreport/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	lastQ    Query
}

func (f *fakeConnector) FetchReports(_ context.Context, q Query) ([]internal.FetchedMailMessage, error) {
	f.lastQ = q
	return f.messages, nil
}

func TestFetchAndStoreSkipsKnownMails(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fc := &fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<a@x>", Subject: "Relatório leads", ReceivedAt: "2024-01-15T10:00:00Z", Raw: []byte("Subject: a\r\n\r\nbody a")},
		{Provider: "imap", MessageID: "<b@x>", Subject: "Relatório vendas", ReceivedAt: "2024-01-15T10:05:00Z", Raw: []byte("Subject: b\r\n\r\nbody b")},
	}}
	svc := NewFetchService(db, filepath.Join(dir, "raw"), fc, logging.Discard())

	q := Query{Label: "INBOX", Subject: "Relatório", Max: 10}
	res, err := svc.FetchAndStore(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 || res.Skipped != 0 {
		t.Fatalf("first=%+v", res)
	}
	if fc.lastQ.Subject != "Relatório" {
		t.Fatalf("query not forwarded: %+v", fc.lastQ)
	}

	res, err = svc.FetchAndStore(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored != 0 || res.Skipped != 2 {
		t.Fatalf("second=%+v", res)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "raw"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("raw files=%d", len(entries))
	}

	pending, err := db.ListMailsByStatus(MailStatusFetched, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending=%d", len(pending))
	}
}

func TestGmailSearch(t *testing.T) {
	q := Query{Subject: "Relatório agendamentos", Since: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)}
	if got := q.GmailSearch(); got != "subject:(Relatório agendamentos) after:2024/01/05" {
		t.Fatalf("got %q", got)
	}
	if got := (Query{}).GmailSearch(); got != "" {
		t.Fatalf("empty query rendered %q", got)
	}
}
