package reconcile

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"clinicreport/internal"
	"clinicreport/internal/config"
	"clinicreport/internal/util"
)

// Rules selects which appointments count as attended or scheduled.
type Rules struct {
	AttendanceStatuses   []string
	SchedulingStatuses   []string
	EvaluationProcedures []string
}

func RulesFromConfig(cfg config.Config) Rules {
	return Rules{
		AttendanceStatuses:   cfg.AttendanceStatuses,
		SchedulingStatuses:   cfg.SchedulingStatuses,
		EvaluationProcedures: cfg.EvaluationProcedures,
	}
}

// Reconcile builds one outcome per lead, in lead order.
//
// Appointments are matched in two passes: the attended subset first, then the
// scheduled subset for leads still unmatched. Among several candidates the
// most recent appointment wins, then the smallest appointment ID, then input
// order. Sales are joined for every lead independently of the appointment
// outcome. Inputs are not modified.
func Reconcile(leads []internal.Lead, appts []internal.Appointment, sales []internal.Sale, rules Rules) []internal.LeadOutcome {
	attendance := newSet(rules.AttendanceStatuses)
	scheduling := newSet(rules.SchedulingStatuses)
	procedures := newSet(rules.EvaluationProcedures)

	attended, scheduled := newContactIndex(), newContactIndex()
	for i, a := range appts {
		if !procedures.has(a.Procedure) {
			continue
		}
		if attendance.has(a.Status) {
			attended.add(i, a.CleanPhones, a.ClientName)
		}
		if scheduling.has(a.Status) {
			scheduled.add(i, a.CleanPhones, a.ClientName)
		}
	}

	salesIdx := newContactIndex()
	for i, s := range sales {
		salesIdx.add(i, s.CleanPhones, s.ClientName)
	}

	out := make([]internal.LeadOutcome, 0, len(leads))
	for _, lead := range leads {
		o := internal.LeadOutcome{Lead: lead}

		if pos, ok := pickAppointment(appts, attended.lookup(lead.CleanPhone, lead.Name)); ok {
			o.Appointment = appointmentMatch(appts[pos])
			o.Status = internal.StatusAttended
		} else if pos, ok := pickAppointment(appts, scheduled.lookup(lead.CleanPhone, lead.Name)); ok {
			o.Appointment = appointmentMatch(appts[pos])
			o.Status = appts[pos].Status
		} else {
			o.Status = internal.StatusNotScheduled
		}

		if hits := salesIdx.lookup(lead.CleanPhone, lead.Name); len(hits) > 0 {
			o.Sales = aggregateSales(sales, hits, lead.EntryAt)
			o.Purchased = true
			if lead.EntryAt != nil && o.Sales.Date != nil {
				days := util.DaysBetween(*lead.EntryAt, *o.Sales.Date)
				o.PurchaseInterval = &days
			}
		}

		out = append(out, o)
	}
	return out
}

// pickAppointment applies the tie-break over candidate positions. hits is
// always in input order, so a stable pass keeps the earliest row on full ties.
func pickAppointment(appts []internal.Appointment, hits []int) (int, bool) {
	if len(hits) == 0 {
		return 0, false
	}
	best := hits[0]
	for _, pos := range hits[1:] {
		if preferAppointment(appts[pos], appts[best]) {
			best = pos
		}
	}
	return best, true
}

func preferAppointment(a, b internal.Appointment) bool {
	switch {
	case a.Date != nil && b.Date == nil:
		return true
	case a.Date == nil && b.Date != nil:
		return false
	case a.Date != nil && b.Date != nil && !a.Date.Equal(*b.Date):
		return a.Date.After(*b.Date)
	}
	return lessID(a.ID, b.ID)
}

// lessID compares numerically when both IDs are integers.
func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func appointmentMatch(a internal.Appointment) *internal.AppointmentMatch {
	return &internal.AppointmentMatch{
		AppointmentID: a.ID,
		Date:          a.Date,
		Procedure:     a.Procedure,
		Status:        a.Status,
		Store:         a.Store,
	}
}

func aggregateSales(sales []internal.Sale, hits []int, entry *time.Time) *internal.SalesMatch {
	matched := make([]internal.Sale, 0, len(hits))
	total := 0.0
	for _, pos := range hits {
		matched = append(matched, sales[pos])
		total += sales[pos].NetValue
	}

	rel := relevantSale(matched, entry)
	return &internal.SalesMatch{
		CleanPhones:     strings.Join(rel.CleanPhones, ", "),
		Phones:          rel.Phones,
		QuoteID:         rel.QuoteID,
		Date:            rel.Date,
		Store:           rel.Store,
		FirstQuoteValue: rel.FirstQuoteValue,
		TotalBought:     total,
		QuoteCount:      len(matched),
		Day:             rel.Day,
		Month:           rel.Month,
		Weekday:         rel.Weekday,
	}
}

// relevantSale picks the earliest sale dated on or after the lead entry day,
// otherwise the latest sale before it. Undated sales are picked only when no
// sale carries a date.
func relevantSale(matched []internal.Sale, entry *time.Time) internal.Sale {
	dated := make([]internal.Sale, 0, len(matched))
	for _, s := range matched {
		if s.Date != nil {
			dated = append(dated, s)
		}
	}
	if len(dated) == 0 {
		return matched[0]
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(*dated[j].Date) })

	if entry == nil {
		return dated[0]
	}
	entryDay := calendarDay(*entry)
	for _, s := range dated {
		if !calendarDay(*s.Date).Before(entryDay) {
			return s
		}
	}
	return dated[len(dated)-1]
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
