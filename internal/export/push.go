package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicreport/internal"
	"clinicreport/internal/config"
	"clinicreport/internal/logging"
)

var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrAlreadyPushed      = errors.New("outcomes already pushed")
)

// SaveState tracks one push attempt. Completed is set once the attempt ends,
// also when it ends in error; Reset allows another attempt.
type SaveState struct {
	Submitted bool   `json:"submitted"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

func (s *SaveState) Reset() {
	*s = SaveState{}
}

type PushResult struct {
	Total  int
	Saved  int
	Errors []string
}

// Failed is the number of records the backend did not accept.
func (r PushResult) Failed() int {
	return r.Total - r.Saved
}

// LeadRecord is the JSON body accepted by the backend leads endpoint.
type LeadRecord struct {
	LeadID          *string `json:"lead_id,omitempty"`
	LeadEmail       *string `json:"lead_email,omitempty"`
	LeadPhone       *string `json:"lead_phone,omitempty"`
	LeadMessage     *string `json:"lead_message,omitempty"`
	LeadStore       *string `json:"lead_store,omitempty"`
	LeadSource      *string `json:"lead_source,omitempty"`
	LeadEntryDay    *int    `json:"lead_entry_day,omitempty"`
	LeadMktSource   *string `json:"lead_mkt_source,omitempty"`
	LeadMktMedium   *string `json:"lead_mkt_medium,omitempty"`
	LeadMktTerm     *string `json:"lead_mkt_term,omitempty"`
	LeadMktContent  *string `json:"lead_mkt_content,omitempty"`
	LeadMktCampaign *string `json:"lead_mkt_campaign,omitempty"`
	LeadMonth       *string `json:"lead_month,omitempty"`
	LeadCategory    *string `json:"lead_category,omitempty"`

	AppointmentDate      *string `json:"appointment_date,omitempty"`
	AppointmentProcedure *string `json:"appointment_procedure,omitempty"`
	AppointmentStatus    *string `json:"appointment_status,omitempty"`
	AppointmentStore     *string `json:"appointment_store,omitempty"`

	SaleCleanedPhone    *string `json:"sale_cleaned_phone,omitempty"`
	SalesPhone          *string `json:"sales_phone,omitempty"`
	SalesQuoteID        *string `json:"sales_quote_id,omitempty"`
	SalesDate           *string `json:"sales_date,omitempty"`
	SalesStore          *string `json:"sales_store,omitempty"`
	SalesFirstQuote     *string `json:"sales_first_quote,omitempty"`
	SalesTotalBought    *string `json:"sales_total_bought,omitempty"`
	SalesNumberOfQuotes *string `json:"sales_number_of_quotes,omitempty"`
	SalesDay            *int    `json:"sales_day,omitempty"`
	SalesMonth          *string `json:"sales_month,omitempty"`
	SalesDayOfWeek      *string `json:"sales_day_of_week,omitempty"`
	SalesPurchased      bool    `json:"sales_purchased"`
	SalesInterval       *int    `json:"sales_interval,omitempty"`
}

// NewLeadRecord maps an outcome to the backend payload. Empty values are
// left nil so they are omitted.
func NewLeadRecord(o internal.LeadOutcome) LeadRecord {
	l := o.Lead
	rec := LeadRecord{
		LeadID:          str(l.ID),
		LeadEmail:       str(l.Email),
		LeadPhone:       str(l.CleanPhone),
		LeadMessage:     str(l.Message),
		LeadStore:       str(l.Store),
		LeadSource:      str(l.Source),
		LeadMktSource:   str(l.UTMSource),
		LeadMktMedium:   str(l.UTMMedium),
		LeadMktTerm:     str(l.UTMTerm),
		LeadMktContent:  str(l.UTMContent),
		LeadMktCampaign: str(l.UTMCampaign),
		LeadMonth:       str(l.Month),
		LeadCategory:    str(l.Category),

		AppointmentStatus: str(o.Status),

		SalesPurchased: o.Purchased,
		SalesInterval:  o.PurchaseInterval,
	}
	if l.EntryAt != nil {
		d := l.EntryAt.Day()
		rec.LeadEntryDay = &d
	}

	if a := o.Appointment; a != nil {
		rec.AppointmentDate = isoTime(a.Date)
		rec.AppointmentProcedure = str(a.Procedure)
		rec.AppointmentStore = str(a.Store)
	}

	if s := o.Sales; s != nil {
		rec.SaleCleanedPhone = str(s.CleanPhones)
		rec.SalesPhone = str(s.Phones)
		rec.SalesQuoteID = str(s.QuoteID)
		rec.SalesDate = isoTime(s.Date)
		rec.SalesStore = str(s.Store)
		if s.FirstQuoteValue != nil {
			rec.SalesFirstQuote = str(formatFloat(*s.FirstQuoteValue))
		}
		rec.SalesTotalBought = str(formatFloat(s.TotalBought))
		rec.SalesNumberOfQuotes = str(strconv.Itoa(s.QuoteCount))
		if s.Date != nil {
			d := s.Date.Day()
			rec.SalesDay = &d
		}
		rec.SalesMonth = str(s.Month)
		rec.SalesDayOfWeek = str(s.Weekday)
	}
	return rec
}

// Pusher posts outcomes to the backend one record at a time.
type Pusher struct {
	healthURL  string
	leadsURL   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewPusher(cfg config.Config, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pusher{
		healthURL:  strings.TrimRight(cfg.BackendBaseURL, "/") + "/",
		leadsURL:   cfg.BackendLeadsURL(),
		httpClient: &http.Client{Timeout: time.Duration(cfg.BackendTimeoutMs) * time.Millisecond},
		logger:     logger,
	}
}

// Push checks backend health and then sends every outcome. A record that
// fails is collected in the result and the batch continues. state is updated
// in place and must not be completed already.
func (p *Pusher) Push(ctx context.Context, outcomes []internal.LeadOutcome, state *SaveState) (PushResult, error) {
	result := PushResult{Total: len(outcomes)}
	if state == nil {
		state = &SaveState{}
	}
	if state.Completed {
		return result, ErrAlreadyPushed
	}
	state.Submitted = true
	defer func() { state.Completed = true }()

	if err := p.health(ctx); err != nil {
		state.Error = err.Error()
		p.logger.Error("backend health check failed", "url", p.healthURL, "error", err)
		return result, err
	}

	p.logger.Info("pushing outcomes", "total", result.Total, "url", p.leadsURL)
	for i, o := range outcomes {
		if err := ctx.Err(); err != nil {
			state.Error = err.Error()
			return result, err
		}
		if err := p.post(ctx, NewLeadRecord(o)); err != nil {
			msg := fmt.Sprintf("record %d (lead %s): %v", i+1, o.Lead.ID, err)
			result.Errors = append(result.Errors, msg)
			p.logger.Warn("push record failed", "record", i+1, "lead_id", o.Lead.ID, "error", err)
			continue
		}
		result.Saved++
	}

	p.logger.Info("push finished", "saved", result.Saved, "failed", result.Failed())
	return result, nil
}

func (p *Pusher) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func (p *Pusher) post(ctx context.Context, rec LeadRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.leadsURL, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func str(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05")
	return &s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
