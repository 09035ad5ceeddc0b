package sources

import "clinicreport/internal"

// Spreadsheet column vocabulary. The first alias is the canonical header used
// on export; the rest are accepted on input.
var (
	colLeadID       = []string{"ID do lead", "ID"}
	colLeadName     = []string{"Nome do lead", "Nome"}
	colLeadEmail    = []string{"Email do lead", "Email", "E-mail"}
	colLeadPhone    = []string{"Telefone do lead", "Telefone"}
	colLeadMessage  = []string{"Mensagem"}
	colLeadStore    = []string{"Unidade", "Unidade do lead"}
	colLeadSource   = []string{"Fonte"}
	colLeadUTMSrc   = []string{"Source", "utmSource"}
	colLeadMedium   = []string{"Medium", "utmMedium"}
	colLeadTerm     = []string{"Term", "utmTerm"}
	colLeadContent  = []string{"Content", "utmContent"}
	colLeadCampaign = []string{"Campaign", "utmCampaign"}
	colLeadEntry    = []string{"Dia da entrada", "Data de entrada"}

	colApptID        = []string{"ID agendamento"}
	colApptClientID  = []string{"ID cliente"}
	colApptName      = []string{"Nome cliente", "Cliente"}
	colApptEmail     = []string{"Email", "E-mail"}
	colApptPhone     = []string{"Telefone", "Telefones"}
	colApptDate      = []string{"Data", "Data do agendamento"}
	colApptStatus    = []string{"Status"}
	colApptProcedure = []string{"Procedimento"}
	colApptStore     = []string{"Unidade do agendamento", "Unidade"}
	colApptComments  = []string{"Observação (mais recente)", "Observação", "Último comentário"}

	colSaleQuoteID    = []string{"ID orçamento"}
	colSaleName       = []string{"Nome cliente", "Cliente"}
	colSalePhone      = []string{"Telefone(s) do cliente", "Telefone"}
	colSaleDate       = []string{"Data venda", "Data"}
	colSaleStore      = []string{"Unidade", "Unidade da venda"}
	colSaleNet        = []string{"Valor líquido", "Valor"}
	colSaleFirstQuote = []string{"Valor primeiro orçamento"}
	colSaleQuotes     = []string{"Número de orçamentos do cliente"}
)

// Rename maps one API field to its spreadsheet column.
type Rename struct {
	API    string
	Column string
}

// LeadAPIColumns translates the CRM lead report to the spreadsheet vocabulary.
var LeadAPIColumns = []Rename{
	{API: "id", Column: "ID do lead"},
	{API: "name", Column: "Nome"},
	{API: "email", Column: "Email"},
	{API: "telephone", Column: "Telefone"},
	{API: "message", Column: "Mensagem"},
	{API: "createdAt", Column: "Dia da entrada"},
	{API: "store", Column: "Unidade"},
	{API: "source", Column: "Fonte"},
	{API: "status", Column: "Status"},
	{API: "utmSource", Column: "utmSource"},
	{API: "utmMedium", Column: "utmMedium"},
	{API: "utmTerm", Column: "utmTerm"},
	{API: "utmContent", Column: "Content"},
	{API: "utmCampaign", Column: "utmCampaign"},
	{API: "searchTerm", Column: "searchTerm"},
}

var AppointmentAPIColumns = []Rename{
	{API: "id", Column: "ID agendamento"},
	{API: "client_id", Column: "ID cliente"},
	{API: "startDate", Column: "Data"},
	{API: "endDate", Column: "Data término"},
	{API: "status_code", Column: "Status Código"},
	{API: "status_label", Column: "Status"},
	{API: "name", Column: "Nome cliente"},
	{API: "email", Column: "Email"},
	{API: "telephones", Column: "Telefone"},
	{API: "taxvatFormatted", Column: "CPF"},
	{API: "source", Column: "Fonte de cadastro do cliente"},
	{API: "store", Column: "Unidade do agendamento"},
	{API: "procedure", Column: "Procedimento"},
	{API: "procedure_groupLabel", Column: "Grupo do procedimento"},
	{API: "employee", Column: "Prestador"},
	{API: "comments", Column: "Observação (mais recente)"},
	{API: "updatedAt", Column: "Data de atualização"},
	{API: "latest_comment", Column: "Último comentário"},
}

var SaleAPIColumns = []Rename{
	{API: "id", Column: "ID orçamento"},
	{API: "client_name", Column: "Nome cliente"},
	{API: "client_telephones", Column: "Telefone(s) do cliente"},
	{API: "date", Column: "Data venda"},
	{API: "store", Column: "Unidade"},
	{API: "netValue", Column: "Valor líquido"},
	{API: "firstQuoteValue", Column: "Valor primeiro orçamento"},
	{API: "quotesCount", Column: "Número de orçamentos do cliente"},
}

// DetectKind classifies a table by the identifier column it carries.
func DetectKind(t Table) string {
	switch {
	case t.Column(colApptID...) >= 0:
		return internal.KindAppointments
	case t.Column(colSaleQuoteID...) >= 0:
		return internal.KindSales
	case t.Column(colLeadID[0]) >= 0, t.Column(colLeadEntry...) >= 0:
		return internal.KindLeads
	default:
		return internal.KindUnknown
	}
}
