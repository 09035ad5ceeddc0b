package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicreport/internal"
	"clinicreport/internal/category"
	"clinicreport/internal/util"
)

var testRules = Rules{
	AttendanceStatuses:   []string{"Atendido", "Em atendimento"},
	SchedulingStatuses:   []string{"Agendado", "Confirmado", "Falta", "Cancelado"},
	EvaluationProcedures: []string{"Avaliação Estética", "Avaliação Facial"},
}

func at(day, hour int) *time.Time {
	t := time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func lead(id, phone string, entry *time.Time) internal.Lead {
	return internal.Lead{
		ID:         id,
		Phone:      phone,
		CleanPhone: util.CleanTelephone(phone),
		EntryAt:    entry,
		Day:        util.DayLabel(entry),
		Month:      util.MonthBucket(entry),
	}
}

func appt(id, phone, status, procedure string, date *time.Time) internal.Appointment {
	return internal.Appointment{
		ID:          id,
		Phones:      phone,
		CleanPhones: util.CleanTelephones(phone),
		Status:      status,
		Procedure:   procedure,
		Date:        date,
		Store:       "Moema",
	}
}

func sale(id, phone string, net float64, date *time.Time) internal.Sale {
	return internal.Sale{
		QuoteID:     id,
		Phones:      phone,
		CleanPhones: util.CleanTelephones(phone),
		NetValue:    net,
		Date:        date,
		Store:       "Moema",
		Day:         util.DayLabel(date),
		Month:       util.MonthBucket(date),
		Weekday:     util.WeekdayPT(date),
	}
}

func TestBotoxLeadEndToEnd(t *testing.T) {
	l := lead("101", "(11) 98765-4321", at(15, 10))
	l.Message = "Quero fazer Botox"
	l.Source = "Facebook Leads"
	leads := category.ProcessLeads([]internal.Lead{l})

	net, ok := util.ParseAmount("150,00")
	require.True(t, ok)

	out := Reconcile(
		leads,
		[]internal.Appointment{appt("55", "11987654321", "Atendido", "Avaliação Estética", at(16, 9))},
		[]internal.Sale{sale("9001", "+55 11 98765-4321", net, at(18, 14))},
		testRules,
	)

	require.Len(t, out, 1)
	o := out[0]
	assert.Equal(t, "Botox", o.Lead.Category)
	assert.Equal(t, internal.StatusAttended, o.Status)
	assert.True(t, o.Found())
	assert.True(t, o.Purchased)
	require.NotNil(t, o.PurchaseInterval)
	assert.Equal(t, 3, *o.PurchaseInterval)
	require.NotNil(t, o.Sales)
	assert.Equal(t, 150.0, o.Sales.TotalBought)
	assert.Equal(t, "9001", o.Sales.QuoteID)
	assert.Equal(t, 1, o.Sales.QuoteCount)
}

func TestAttendanceTakesPriority(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 8))}
	appts := []internal.Appointment{
		appt("10", "11987654321", "Agendado", "Avaliação Estética", at(20, 9)),
		appt("11", "11987654321", "Atendido", "Avaliação Facial", at(12, 9)),
	}

	out := Reconcile(leads, appts, nil, testRules)

	require.Len(t, out, 1)
	assert.Equal(t, internal.StatusAttended, out[0].Status)
	assert.Equal(t, "11", out[0].Appointment.AppointmentID)
}

func TestScheduledStatusKeptVerbatim(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 8))}
	appts := []internal.Appointment{
		appt("10", "11987654321", "Falta", "Avaliação Estética", at(11, 9)),
		appt("11", "11987654321", "Atendido", "Botox", at(12, 9)),
	}

	out := Reconcile(leads, appts, nil, testRules)

	assert.Equal(t, "Falta", out[0].Status)
	assert.Equal(t, "10", out[0].Appointment.AppointmentID)
}

func TestUnmatchedLeadDefaultsToNotScheduled(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 8)), lead("2", "", at(10, 9))}
	appts := []internal.Appointment{appt("10", "21999998888", "Atendido", "Avaliação Estética", at(11, 9))}

	out := Reconcile(leads, appts, nil, testRules)

	for _, o := range out {
		assert.False(t, o.Found())
		assert.Nil(t, o.Appointment)
		assert.Equal(t, internal.StatusNotScheduled, o.Status)
	}
}

func TestZeroSalesMeansNotPurchased(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 8)), lead("2", "21999998888", nil)}
	sales := []internal.Sale{sale("1", "31988887777", 500, at(11, 9))}

	out := Reconcile(leads, nil, sales, testRules)

	for _, o := range out {
		assert.False(t, o.Purchased)
		assert.Nil(t, o.PurchaseInterval)
		assert.Nil(t, o.Sales)
	}
}

func TestTieBreakMostRecentThenSmallestID(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(1, 8))}

	out := Reconcile(leads, []internal.Appointment{
		appt("30", "11987654321", "Atendido", "Avaliação Estética", at(5, 9)),
		appt("20", "11987654321", "Atendido", "Avaliação Estética", at(9, 9)),
		appt("25", "11987654321", "Atendido", "Avaliação Estética", at(7, 9)),
	}, nil, testRules)
	assert.Equal(t, "20", out[0].Appointment.AppointmentID)

	out = Reconcile(leads, []internal.Appointment{
		appt("30", "11987654321", "Atendido", "Avaliação Estética", at(9, 9)),
		appt("4", "11987654321", "Atendido", "Avaliação Estética", at(9, 9)),
		appt("12", "11987654321", "Atendido", "Avaliação Estética", nil),
	}, nil, testRules)
	assert.Equal(t, "4", out[0].Appointment.AppointmentID)
}

func TestNameFallbackWhenNoPhoneMatches(t *testing.T) {
	l := lead("1", "", at(10, 8))
	l.Name = "  joão   DA silva "
	a := appt("10", "", "Confirmado", "Avaliação Estética", at(11, 9))
	a.ClientName = "João da Silva"

	out := Reconcile([]internal.Lead{l}, []internal.Appointment{a}, nil, testRules)

	assert.Equal(t, "Confirmado", out[0].Status)
}

func TestRelevantSaleAndAggregates(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 18))}
	first := 90.0
	s1 := sale("A", "11987654321", 100, at(5, 10))
	s2 := sale("B", "11 98765-4321 / 11 3333-4444", 200, at(20, 10))
	s3 := sale("C", "11987654321", 300, at(10, 9))
	s3.FirstQuoteValue = &first

	out := Reconcile(leads, nil, []internal.Sale{s1, s2, s3}, testRules)

	o := out[0]
	require.True(t, o.Purchased)
	assert.Equal(t, 600.0, o.Sales.TotalBought)
	assert.Equal(t, 3, o.Sales.QuoteCount)
	assert.Equal(t, "C", o.Sales.QuoteID)
	assert.Equal(t, &first, o.Sales.FirstQuoteValue)
	// C is on the entry day but 9 hours earlier.
	require.NotNil(t, o.PurchaseInterval)
	assert.Equal(t, -1, *o.PurchaseInterval)
}

func TestPurchaseBeforeEntryGivesNegativeInterval(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(10, 8))}
	sales := []internal.Sale{
		sale("A", "11987654321", 100, at(3, 10)),
		sale("B", "11987654321", 100, at(7, 10)),
	}

	out := Reconcile(leads, nil, sales, testRules)

	assert.Equal(t, "B", out[0].Sales.QuoteID)
	require.NotNil(t, out[0].PurchaseInterval)
	assert.Equal(t, -3, *out[0].PurchaseInterval)
}

func TestPurchaseIntervalCountsElapsedWholeDays(t *testing.T) {
	leads := []internal.Lead{lead("1", "11987654321", at(15, 18))}
	sales := []internal.Sale{sale("A", "11987654321", 100, at(18, 0))}

	out := Reconcile(leads, nil, sales, testRules)

	require.NotNil(t, out[0].PurchaseInterval)
	assert.Equal(t, 2, *out[0].PurchaseInterval)
}

func TestReconcileIsIdempotentAndPure(t *testing.T) {
	leads := []internal.Lead{
		lead("1", "11987654321", at(10, 8)),
		lead("2", "21999998888", at(11, 8)),
		lead("3", "", at(12, 8)),
	}
	appts := []internal.Appointment{
		appt("10", "11987654321", "Agendado", "Avaliação Estética", at(11, 9)),
		appt("11", "21999998888", "Em atendimento", "Avaliação Facial", at(13, 9)),
	}
	sales := []internal.Sale{sale("S1", "21999998888", 1234.56, at(14, 9))}

	leadsCopy := append([]internal.Lead(nil), leads...)
	first := Reconcile(leads, appts, sales, testRules)
	second := Reconcile(leads, appts, sales, testRules)

	assert.Equal(t, first, second)
	assert.Equal(t, leadsCopy, leads)
}

func TestSummarize(t *testing.T) {
	leads := []internal.Lead{
		lead("1", "11987654321", at(10, 8)),
		lead("2", "21999998888", at(11, 8)),
		lead("3", "", at(12, 8)),
		lead("4", "31977776666", at(12, 8)),
	}
	appts := []internal.Appointment{
		appt("10", "11987654321", "Agendado", "Avaliação Estética", at(11, 9)),
		appt("11", "21999998888", "Atendido", "Avaliação Facial", at(13, 9)),
	}
	sales := []internal.Sale{
		sale("S1", "21999998888", 1000, at(14, 9)),
		sale("S2", "21999998888", 234.56, at(15, 9)),
	}

	s := Summarize(Reconcile(leads, appts, sales, testRules))

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.NotFound)
	assert.Equal(t, 1, s.ScheduledOther)
	assert.Equal(t, 1, s.Attended)
	assert.Equal(t, 1, s.Purchased)
	assert.InDelta(t, 1234.56, s.TotalBought, 1e-9)
	rows := s.Rows()
	require.Len(t, rows, 6)
	assert.Equal(t, "2 (50.0%)", rows[1].Value)
	assert.Equal(t, "1 (25.0%)", rows[4].Value)
	assert.Equal(t, "R$ 1.234,56", rows[5].Value)
}

func TestSummaryEmpty(t *testing.T) {
	rows := Summarize(nil).Rows()
	assert.Equal(t, "0 (0.0%)", rows[1].Value)
	assert.Equal(t, "R$ 0,00", rows[5].Value)
}
