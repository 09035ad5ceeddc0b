package sources

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"clinicreport/internal"
	"clinicreport/internal/util"
)

func requireColumns(t Table, kind string, groups ...[]string) error {
	missing := []string{}
	for _, aliases := range groups {
		if t.Column(aliases...) < 0 {
			missing = append(missing, aliases[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s table %q: %w: %s", kind, t.Name, ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// LoadLeads converts a lead table. Rows without an ID are skipped.
func LoadLeads(t Table, loc *time.Location) ([]internal.Lead, error) {
	if err := requireColumns(t, internal.KindLeads, colLeadID, colLeadEntry); err != nil {
		return nil, err
	}

	idx := struct{ id, name, email, phone, msg, store, src, utmSrc, medium, term, content, campaign, entry int }{
		t.Column(colLeadID...), t.Column(colLeadName...), t.Column(colLeadEmail...), t.Column(colLeadPhone...),
		t.Column(colLeadMessage...), t.Column(colLeadStore...), t.Column(colLeadSource...), t.Column(colLeadUTMSrc...),
		t.Column(colLeadMedium...), t.Column(colLeadTerm...), t.Column(colLeadContent...), t.Column(colLeadCampaign...),
		t.Column(colLeadEntry...),
	}

	out := make([]internal.Lead, 0, len(t.Rows))
	for i, row := range t.Rows {
		id := normalizeID(t.Cell(row, idx.id))
		if id == "" {
			continue
		}
		entry := util.ParseDatePtr(t.Cell(row, idx.entry), loc)
		phone := t.Cell(row, idx.phone)
		out = append(out, internal.Lead{
			RowNo:       i + 1,
			ID:          id,
			Name:        t.Cell(row, idx.name),
			Email:       strings.ToLower(t.Cell(row, idx.email)),
			Phone:       phone,
			CleanPhone:  util.CleanTelephone(phone),
			Message:     t.Cell(row, idx.msg),
			Store:       t.Cell(row, idx.store),
			Source:      t.Cell(row, idx.src),
			UTMSource:   t.Cell(row, idx.utmSrc),
			UTMMedium:   t.Cell(row, idx.medium),
			UTMTerm:     t.Cell(row, idx.term),
			UTMContent:  t.Cell(row, idx.content),
			UTMCampaign: t.Cell(row, idx.campaign),
			EntryAt:     entry,
			Day:         util.DayLabel(entry),
			Month:       util.MonthBucket(entry),
		})
	}
	return out, nil
}

func LoadAppointments(t Table, loc *time.Location) ([]internal.Appointment, error) {
	if err := requireColumns(t, internal.KindAppointments, colApptID, colApptStatus, colApptProcedure); err != nil {
		return nil, err
	}

	idxID, idxClient, idxName := t.Column(colApptID...), t.Column(colApptClientID...), t.Column(colApptName...)
	idxEmail, idxPhone, idxDate := t.Column(colApptEmail...), t.Column(colApptPhone...), t.Column(colApptDate...)
	idxStatus, idxProc, idxStore := t.Column(colApptStatus...), t.Column(colApptProcedure...), t.Column(colApptStore...)
	idxComments := t.Column(colApptComments...)

	out := make([]internal.Appointment, 0, len(t.Rows))
	for i, row := range t.Rows {
		phones := t.Cell(row, idxPhone)
		out = append(out, internal.Appointment{
			RowNo:       i + 1,
			ID:          normalizeID(t.Cell(row, idxID)),
			ClientID:    normalizeID(t.Cell(row, idxClient)),
			ClientName:  t.Cell(row, idxName),
			Email:       strings.ToLower(t.Cell(row, idxEmail)),
			Phones:      phones,
			CleanPhones: util.CleanTelephones(phones),
			Date:        util.ParseDatePtr(t.Cell(row, idxDate), loc),
			Status:      t.Cell(row, idxStatus),
			Procedure:   t.Cell(row, idxProc),
			Store:       t.Cell(row, idxStore),
			Comments:    t.Cell(row, idxComments),
		})
	}
	return out, nil
}

// LoadSales converts a sales table. Unparseable net values count as zero.
func LoadSales(t Table, loc *time.Location) ([]internal.Sale, error) {
	if err := requireColumns(t, internal.KindSales, colSaleQuoteID, colSalePhone, colSaleDate); err != nil {
		return nil, err
	}

	idxQuote, idxName, idxPhone := t.Column(colSaleQuoteID...), t.Column(colSaleName...), t.Column(colSalePhone...)
	idxDate, idxStore, idxNet := t.Column(colSaleDate...), t.Column(colSaleStore...), t.Column(colSaleNet...)
	idxFirst, idxQuotes := t.Column(colSaleFirstQuote...), t.Column(colSaleQuotes...)

	out := make([]internal.Sale, 0, len(t.Rows))
	for i, row := range t.Rows {
		phones := t.Cell(row, idxPhone)
		date := util.ParseDatePtr(t.Cell(row, idxDate), loc)
		net, _ := t.Amount(i, idxNet)

		sale := internal.Sale{
			RowNo:       i + 1,
			QuoteID:     normalizeID(t.Cell(row, idxQuote)),
			ClientName:  t.Cell(row, idxName),
			Phones:      phones,
			CleanPhones: util.CleanTelephones(phones),
			Date:        date,
			Store:       t.Cell(row, idxStore),
			NetValue:    net,
			Day:         util.DayLabel(date),
			Month:       util.MonthBucket(date),
			Weekday:     util.WeekdayPT(date),
		}
		if v, ok := t.Amount(i, idxFirst); ok {
			sale.FirstQuoteValue = &v
		}
		if v, ok := t.Amount(i, idxQuotes); ok {
			n := int(math.Round(v))
			sale.QuoteCount = &n
		}
		out = append(out, sale)
	}
	return out, nil
}

// RecordsToTable renames API records to the spreadsheet vocabulary. Fields
// missing from renames are dropped.
func RecordsToTable(name string, records []map[string]any, renames []Rename) Table {
	t := Table{Name: name}
	for _, r := range renames {
		t.Headers = append(t.Headers, r.Column)
	}
	for _, rec := range records {
		row := make([]string, len(renames))
		for i, r := range renames {
			v := rec[r.API]
			row[i] = stringify(v)
			switch v.(type) {
			case float64, int, int64:
				t.markTyped(len(t.Rows), i)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, key := range []string{"label", "name", "number", "value"} {
			if s := stringify(t[key]); s != "" {
				return s
			}
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// normalizeID drops the ".0" suffix numeric IDs pick up in spreadsheets.
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}
