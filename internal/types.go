package internal

import "time"

// StatusNotScheduled is the final status for leads with no appointment match.
const StatusNotScheduled = "Não está na agenda"

const (
	StatusAttended       = "Atendido"
	CategoryUndefined    = "Indefinido"
	KindLeads            = "leads"
	KindAppointments     = "appointments"
	KindSales            = "sales"
	KindUnknown          = "unknown"
	SourceFile           = "xlsx"
	SourceAPI            = "api"
	SourceMailAttachment = "mail_attachment"
	SourceMailHTMLTable  = "mail_html_table"
)

type Lead struct {
	RowNo       int
	ID          string
	Name        string
	Email       string
	Phone       string
	CleanPhone  string
	Message     string
	Store       string
	Source      string
	UTMSource   string
	UTMMedium   string
	UTMTerm     string
	UTMContent  string
	UTMCampaign string
	EntryAt     *time.Time
	Day         string
	Month       string
	Category    string
}

type Appointment struct {
	RowNo       int
	ID          string
	ClientID    string
	ClientName  string
	Email       string
	Phones      string
	CleanPhones []string
	Date        *time.Time
	Status      string
	Procedure   string
	Store       string
	Comments    string
}

type Sale struct {
	RowNo           int
	QuoteID         string
	ClientName      string
	Phones          string
	CleanPhones     []string
	Date            *time.Time
	Store           string
	NetValue        float64
	FirstQuoteValue *float64
	QuoteCount      *int
	Day             string
	Month           string
	Weekday         string
}

// AppointmentMatch holds the appointment fields merged into an outcome row.
type AppointmentMatch struct {
	AppointmentID string
	Date          *time.Time
	Procedure     string
	Status        string
	Store         string
}

// SalesMatch aggregates every sale joined to one lead. The single-sale fields
// come from the relevant sale picked by the reconciler.
type SalesMatch struct {
	CleanPhones     string
	Phones          string
	QuoteID         string
	Date            *time.Time
	Store           string
	FirstQuoteValue *float64
	TotalBought     float64
	QuoteCount      int
	Day             string
	Month           string
	Weekday         string
}

type LeadOutcome struct {
	Lead             Lead
	Appointment      *AppointmentMatch
	Status           string
	Sales            *SalesMatch
	Purchased        bool
	PurchaseInterval *int
}

// Found reports whether the lead matched any appointment.
func (o LeadOutcome) Found() bool {
	return o.Appointment != nil
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type MailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type ReportFile struct {
	ID         int
	MailID     *int
	Kind       string
	Source     string
	Name       string
	Path       string
	Rows       int
	ReceivedAt string
	UsedInRun  *string
}

type RunRow struct {
	ID        string
	Source    string
	CreatedAt string
	Counts    map[string]int
	Inputs    map[string]string
}

// ExportStateRow is the persisted save state of one run.
type ExportStateRow struct {
	RunID     string
	Submitted bool
	Completed bool
	Error     string
	Saved     int
	Failed    int
	UpdatedAt string
}
