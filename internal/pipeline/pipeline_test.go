package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clinicreport/internal"
	"clinicreport/internal/config"
	"clinicreport/internal/connectors"
	"clinicreport/internal/export"
	"clinicreport/internal/logging"
	"clinicreport/internal/storage"
)

var (
	leadRows = [][]any{
		{"ID do lead", "Nome do lead", "Telefone do lead", "Mensagem", "Unidade", "Fonte", "Dia da entrada"},
		{"101", "Ana Souza", "(11) 98765-4321", "Quero fazer Botox", "Moema", "Facebook Leads", "15/01/2024 10:00"},
		{"102", "Bia Lima", "(21) 99999-8888", "", "Moema", "Google Pesquisa", "15/01/2024 11:00"},
		{"103", "Caio", "(31) 97777-6666", "", "Loja Teste", "Facebook Leads", "15/01/2024 12:00"},
		{"104", "Duda", "(41) 96666-5555", "", "Moema", "Instagram", "15/01/2024 13:00"},
	}
	apptRows = [][]any{
		{"ID agendamento", "Nome cliente", "Telefone", "Data", "Status", "Procedimento", "Unidade do agendamento"},
		{"55", "Ana Souza", "11987654321", "16/01/2024 09:00", "Atendido", "Avaliação Estética", "Moema"},
	}
	saleRows = [][]any{
		{"ID orçamento", "Nome cliente", "Telefone(s) do cliente", "Data venda", "Unidade", "Valor líquido"},
		{"9001", "Ana Souza", "+55 11 98765-4321", "18/01/2024 14:00", "Moema", "150,00"},
	}
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func writeXLSX(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, mkXLSX(rows), 0o644))
	return path
}

func testConfig(dir string) config.Config {
	return config.Config{
		Timezone:             "UTC",
		InboxDir:             filepath.Join(dir, "inbox"),
		StoresToRemove:       []string{"Loja Teste"},
		MarketingSources:     []string{"Google Pesquisa", "Facebook Leads"},
		AttendanceStatuses:   []string{"Atendido"},
		SchedulingStatuses:   []string{"Agendado", "Confirmado", "Falta", "Cancelado"},
		EvaluationProcedures: []string{"Avaliação Estética"},
		BackendLeadsPath:     "/mkt-leads/",
		BackendTimeoutMs:     2000,
	}
}

func openDB(t *testing.T, dir string) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func buildMail(t *testing.T, subject, html string, attachments map[string][]byte) []byte {
	t.Helper()
	b := enmime.Builder().
		From("CRM", "relatorios@crm.example.com").
		To("Marketing", "mkt@clinic.example.com").
		Subject(subject).
		Text([]byte("segue relatório"))
	if html != "" {
		b = b.HTML([]byte(html))
	}
	for name, content := range attachments {
		b = b.AddAttachment(content, xlsxContentType, name)
	}
	part, err := b.Build()
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	require.NoError(t, part.Encode(buf))
	return buf.Bytes()
}

const salesHTML = `<html><body><p>Vendas do dia</p><table>
<tr><th>ID orçamento</th><th>Telefone(s) do cliente</th><th>Data venda</th><th>Valor líquido</th></tr>
<tr><td>9001</td><td>11987654321</td><td>18/01/2024</td><td>150,00</td></tr>
</table></body></html>`

func TestExtractTablesFromMailRaw(t *testing.T) {
	raw := buildMail(t, "Relatório diário", salesHTML, map[string][]byte{
		"agendamentos.xlsx": mkXLSX(apptRows),
	})

	got, err := ExtractTablesFromMailRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "Relatório diário", got.Subject)
	require.Len(t, got.Tables, 2)

	assert.Equal(t, internal.KindAppointments, got.Tables[0].Kind)
	assert.Equal(t, internal.SourceMailAttachment, got.Tables[0].Source)
	assert.Equal(t, "agendamentos.xlsx", got.Tables[0].Origin)

	assert.Equal(t, internal.KindSales, got.Tables[1].Kind)
	assert.Equal(t, internal.SourceMailHTMLTable, got.Tables[1].Source)
	assert.Len(t, got.Tables[1].Table.Rows, 1)
}

func TestIngestPendingStoresClassifiedFiles(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	cfg := testConfig(dir)

	mails := connectors.NewMailStoreService(db, filepath.Join(dir, "raw"))
	_, created, err := mails.Store(internal.FetchedMailMessage{
		Provider: "imap", MessageID: "<r1@crm>", Subject: "Relatório", ReceivedAt: "2024-01-19T08:00:00Z",
		Raw: buildMail(t, "Relatório", salesHTML, map[string][]byte{"leads.xlsx": mkXLSX(leadRows)}),
	})
	require.NoError(t, err)
	require.True(t, created)
	_, _, err = mails.Store(internal.FetchedMailMessage{
		Provider: "imap", MessageID: "<x@crm>", Subject: "Newsletter", ReceivedAt: "2024-01-19T09:00:00Z",
		Raw: buildMail(t, "Newsletter", "<p>sem tabelas</p>", nil),
	})
	require.NoError(t, err)

	svc := NewIngestService(db, cfg, logging.Discard())
	handled, files, err := svc.IngestPending(10)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, 2, files)

	latest, err := db.LatestUnusedReportFiles()
	require.NoError(t, err)
	require.Contains(t, latest, internal.KindLeads)
	require.Contains(t, latest, internal.KindSales)
	assert.NotContains(t, latest, internal.KindAppointments)
	assert.Equal(t, 4, latest[internal.KindLeads].Rows)
	assert.FileExists(t, latest[internal.KindSales].Path)

	ingested, err := db.ListMailsByStatus(MailStatusIngested, 10)
	require.NoError(t, err)
	assert.Len(t, ingested, 1)
	ignored, err := db.ListMailsByStatus(MailStatusIgnored, 10)
	require.NoError(t, err)
	assert.Len(t, ignored, 1)

	handled, _, err = svc.IngestPending(10)
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestRunFilesFiltersAndPersists(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	runner := NewRunner(db, testConfig(dir), nil)

	res, err := runner.RunFiles(context.Background(), Files{
		Leads:        writeXLSX(t, dir, "leads.xlsx", leadRows),
		Appointments: writeXLSX(t, dir, "agenda.xlsx", apptRows),
		Sales:        writeXLSX(t, dir, "vendas.xlsx", saleRows),
	})
	require.NoError(t, err)

	// 103 sits in an excluded store and 104 comes from a non-marketing source.
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 4, res.Counts["leadsLoaded"])
	ana := res.Outcomes[0]
	assert.Equal(t, "101", ana.Lead.ID)
	assert.Equal(t, "Botox", ana.Lead.Category)
	assert.Equal(t, internal.StatusAttended, ana.Status)
	assert.True(t, ana.Purchased)
	require.NotNil(t, ana.PurchaseInterval)
	assert.Equal(t, 3, *ana.PurchaseInterval)
	assert.Equal(t, internal.StatusNotScheduled, res.Outcomes[1].Status)
	assert.Equal(t, 1, res.Summary.NotFound)

	run, err := db.GetRun(res.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, internal.SourceFile, run.Source)

	stored, err := db.GetOutcomes(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Outcomes[0].Lead.ID, stored[0].Lead.ID)

	out := filepath.Join(dir, "out", "report.xlsx")
	require.NoError(t, runner.Export(res, out))
	assert.FileExists(t, out)
}

func TestRunFilesMissingColumns(t *testing.T) {
	dir := t.TempDir()
	runner := NewRunner(nil, testConfig(dir), nil)

	_, err := runner.RunFiles(context.Background(), Files{
		Leads:        writeXLSX(t, dir, "leads.xlsx", [][]any{{"Nome"}, {"Ana"}}),
		Appointments: writeXLSX(t, dir, "agenda.xlsx", apptRows),
		Sales:        writeXLSX(t, dir, "vendas.xlsx", saleRows),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID do lead")
}

func TestRunInboxConsumesLatestSet(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	cfg := testConfig(dir)
	runner := NewRunner(db, cfg, nil)

	_, err := runner.RunInbox(context.Background())
	require.ErrorIs(t, err, ErrIncompleteInbox)

	kinds := map[string][][]any{
		internal.KindLeads:        leadRows,
		internal.KindAppointments: apptRows,
		internal.KindSales:        saleRows,
	}
	for kind, rows := range kinds {
		path := writeXLSX(t, dir, kind+".xlsx", rows)
		_, err := db.InsertReportFile(internal.ReportFile{
			Kind: kind, Source: internal.SourceMailAttachment, Name: kind, Path: path,
			Rows: len(rows) - 1, ReceivedAt: time.Date(2024, 1, 19, 8, 0, 0, 0, time.UTC).Format(time.RFC3339),
		})
		require.NoError(t, err)
	}

	res, err := runner.RunInbox(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, 2)

	_, err = runner.RunInbox(context.Background())
	require.ErrorIs(t, err, ErrIncompleteInbox)
}

func TestPushStoredRun(t *testing.T) {
	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/mkt-leads/", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	db := openDB(t, dir)
	cfg := testConfig(dir)
	cfg.BackendBaseURL = srv.URL
	runner := NewRunner(db, cfg, nil)

	res, err := runner.RunFiles(context.Background(), Files{
		Leads:        writeXLSX(t, dir, "leads.xlsx", leadRows),
		Appointments: writeXLSX(t, dir, "agenda.xlsx", apptRows),
		Sales:        writeXLSX(t, dir, "vendas.xlsx", saleRows),
	})
	require.NoError(t, err)

	pushed, err := runner.Push(context.Background(), res.RunID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed.Saved)
	assert.EqualValues(t, 2, posts.Load())

	st, err := db.GetExportState(res.RunID)
	require.NoError(t, err)
	assert.True(t, st.Submitted)
	assert.True(t, st.Completed)
	assert.Equal(t, 2, st.Saved)

	_, err = runner.Push(context.Background(), res.RunID, false)
	require.ErrorIs(t, err, export.ErrAlreadyPushed)
	assert.EqualValues(t, 2, posts.Load())

	_, err = runner.Push(context.Background(), res.RunID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 4, posts.Load())

	_, err = runner.Push(context.Background(), "missing", false)
	require.Error(t, err)
}

func TestCategorizeFile(t *testing.T) {
	dir := t.TempDir()
	in := writeXLSX(t, dir, "leads.xlsx", leadRows)
	out := filepath.Join(dir, "categorized.xlsx")

	n, err := CategorizeFile(in, out, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Categoria", rows[0][len(rows[0])-1])
	assert.Equal(t, "Botox", rows[1][len(rows[1])-1])
	assert.Equal(t, internal.CategoryUndefined, rows[2][len(rows[2])-1])
}
