package sources

import (
	"clinicreport/internal"
	"clinicreport/internal/util"
)

type set map[string]struct{}

func newSet(values []string) set {
	s := set{}
	for _, v := range values {
		s[util.Fold(v)] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[util.Fold(v)]
	return ok
}

// DropLeadStores removes leads captured by excluded stores.
func DropLeadStores(leads []internal.Lead, stores []string) []internal.Lead {
	excluded := newSet(stores)
	out := make([]internal.Lead, 0, len(leads))
	for _, l := range leads {
		if !excluded.has(l.Store) {
			out = append(out, l)
		}
	}
	return out
}

func DropAppointmentStores(appts []internal.Appointment, stores []string) []internal.Appointment {
	excluded := newSet(stores)
	out := make([]internal.Appointment, 0, len(appts))
	for _, a := range appts {
		if !excluded.has(a.Store) {
			out = append(out, a)
		}
	}
	return out
}

func DropSaleStores(sales []internal.Sale, stores []string) []internal.Sale {
	excluded := newSet(stores)
	out := make([]internal.Sale, 0, len(sales))
	for _, s := range sales {
		if !excluded.has(s.Store) {
			out = append(out, s)
		}
	}
	return out
}

// KeepLeadSources keeps leads whose Fonte is listed. An empty list keeps all.
func KeepLeadSources(leads []internal.Lead, fontes []string) []internal.Lead {
	if len(fontes) == 0 {
		return leads
	}
	allowed := newSet(fontes)
	out := make([]internal.Lead, 0, len(leads))
	for _, l := range leads {
		if allowed.has(l.Source) {
			out = append(out, l)
		}
	}
	return out
}
