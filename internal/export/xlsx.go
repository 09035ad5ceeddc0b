package export

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"clinicreport/internal"
	"clinicreport/internal/reconcile"
)

const (
	SheetOutcomes = "Leads x Agenda x Vendas"
	SheetSummary  = "Resumo da Análise"
)

// OutcomeHeaders is the column layout of the outcome sheet.
var OutcomeHeaders = []string{
	"ID do lead", "Email do lead", "Telefone do lead",
	"Mensagem", "Unidade do lead", "Fonte", "Dia da entrada",
	"Source", "Medium", "Term", "Content", "Campaign",
	"Mês do lead", "Categoria",
	"data_agenda", "procedimento", "status", "unidade na agenda",
	"Telefones Limpos", "Telefone(s) do cliente", "ID orçamento",
	"Data venda", "Unidade da venda", "Valor primeiro orçamento",
	"Total comprado pelo cliente", "Número de orçamentos do cliente",
	"Dia", "Mês da venda", "Dia da Semana", "comprou", "intervalo da compra",
}

// WriteOutcomesXLSX writes the outcome table and the summary sheet.
func WriteOutcomesXLSX(outcomes []internal.LeadOutcome, summary reconcile.Summary, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, SheetOutcomes); err != nil {
		return err
	}
	sheet = SheetOutcomes

	for i, h := range OutcomeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return err
	}

	for i, o := range outcomes {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		setTime := func(col int, t *time.Time) {
			if t == nil {
				return
			}
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, *t)
			_ = f.SetCellStyle(sheet, cell, cell, dateStyle)
		}

		l := o.Lead
		set(1, l.ID)
		set(2, l.Email)
		set(3, l.CleanPhone)
		set(4, l.Message)
		set(5, l.Store)
		set(6, l.Source)
		setTime(7, l.EntryAt)
		set(8, l.UTMSource)
		set(9, l.UTMMedium)
		set(10, l.UTMTerm)
		set(11, l.UTMContent)
		set(12, l.UTMCampaign)
		set(13, l.Month)
		set(14, l.Category)

		if a := o.Appointment; a != nil {
			setTime(15, a.Date)
			set(16, a.Procedure)
			set(18, a.Store)
		}
		set(17, o.Status)

		if s := o.Sales; s != nil {
			set(19, s.CleanPhones)
			set(20, s.Phones)
			set(21, s.QuoteID)
			setTime(22, s.Date)
			set(23, s.Store)
			set(24, derefFloat(s.FirstQuoteValue))
			set(25, s.TotalBought)
			set(26, s.QuoteCount)
			set(27, saleDay(s.Date))
			set(28, s.Month)
			set(29, s.Weekday)
		}
		set(30, o.Purchased)
		set(31, derefInt(o.PurchaseInterval))
	}

	if err := writeSummarySheet(f, summary); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeSummarySheet(f *excelize.File, summary reconcile.Summary) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	_ = f.SetCellValue(SheetSummary, "A1", "Indicador")
	_ = f.SetCellValue(SheetSummary, "B1", "Valor")
	for i, row := range summary.Rows() {
		r := i + 2
		_ = f.SetCellValue(SheetSummary, "A"+strconv.Itoa(r), row.Indicator)
		_ = f.SetCellValue(SheetSummary, "B"+strconv.Itoa(r), row.Value)
	}
	return nil
}

func saleDay(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Day()
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
