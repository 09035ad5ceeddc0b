package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicreport/internal"
)

// Query narrows a mailbox fetch to recent CRM report mails.
type Query struct {
	Label   string
	Subject string
	Since   time.Time
	Max     int
}

type MailConnector interface {
	FetchReports(ctx context.Context, q Query) ([]internal.FetchedMailMessage, error)
}

// GmailSearch renders q in Gmail search syntax.
func (q Query) GmailSearch() string {
	parts := []string{}
	if s := strings.TrimSpace(q.Subject); s != "" {
		parts = append(parts, fmt.Sprintf("subject:(%s)", s))
	}
	if !q.Since.IsZero() {
		parts = append(parts, "after:"+q.Since.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}
