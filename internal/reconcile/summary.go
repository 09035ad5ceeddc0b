package reconcile

import (
	"fmt"
	"strconv"

	"clinicreport/internal"
	"clinicreport/internal/util"
)

type Summary struct {
	Total          int
	NotFound       int
	ScheduledOther int
	Attended       int
	Purchased      int
	TotalBought    float64
}

// Summarize counts outcomes by appointment state. Purchased counts distinct
// lead IDs.
func Summarize(outcomes []internal.LeadOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	buyers := map[string]struct{}{}
	for _, o := range outcomes {
		switch {
		case !o.Found():
			s.NotFound++
		case o.Status == internal.StatusAttended:
			s.Attended++
		default:
			s.ScheduledOther++
		}
		if o.Purchased {
			buyers[o.Lead.ID] = struct{}{}
			if o.Sales != nil {
				s.TotalBought += o.Sales.TotalBought
			}
		}
	}
	s.Purchased = len(buyers)
	return s
}

// SummaryRow is one indicator line of the summary table.
type SummaryRow struct {
	Indicator string
	Value     string
}

func (s Summary) Rows() []SummaryRow {
	return []SummaryRow{
		{"Total de Leads", strconv.Itoa(s.Total)},
		{"Não encontrados na Agenda", s.share(s.NotFound)},
		{"Agendado, Confirmado, Falta e Cancelado", s.share(s.ScheduledOther)},
		{"Atendidos", s.share(s.Attended)},
		{"Total de leads que compraram", s.share(s.Purchased)},
		{"Total comprado pelos leads", util.FormatBRL(s.TotalBought)},
	}
}

func (s Summary) share(n int) string {
	pct := 0.0
	if s.Total > 0 {
		pct = float64(n) / float64(s.Total) * 100
	}
	return fmt.Sprintf("%d (%.1f%%)", n, pct)
}
