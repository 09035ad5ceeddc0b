package report

import (
	"fmt"
	"time"
)

const (
	PresetLeadsByUser  = "leads_by_user"
	PresetLeadsByStore = "leads_by_store"
	PresetFollowUp     = "follow_up"
)

// LeadsByUser colors "Leads Puxados" against the target for now's time of day.
// Outside every window the column keeps no color.
func LeadsByUser(now time.Time) Options {
	threshold, ok := DefaultLeadsPerHourThresholds.At(now)
	return Options{
		Formats: map[string]string{
			"Leads Puxados":          "%.0f",
			"Leads Puxados (únicos)": "%.0f",
			"Agendamentos por lead":  "%.0f",
			"Agendamentos na Agenda": "%.0f",
		},
		ThresholdColumn: "Leads Puxados",
		Threshold:       threshold,
		HasThreshold:    ok,
		HighlightTotal:  true,
	}
}

func LeadsByStore() Options {
	return Options{
		Formats: map[string]string{
			"Leads Puxados":          "%.0f",
			"Agendamentos por lead":  "%.0f",
			"Agendamentos na Agenda": "%.0f",
		},
		HighlightTotal: true,
	}
}

func FollowUp() Options {
	return Options{
		Formats: map[string]string{
			"Valor líquido":             "%.2f",
			"Novos Pós-Vendas":          "%.0f",
			"Comentários de Pós-Vendas": "%.0f",
			"Pedidos":                   "%.0f",
		},
		HighlightTotal: true,
	}
}

// Preset resolves a preset name as used on the command line.
func Preset(name string, now time.Time) (Options, error) {
	switch name {
	case PresetLeadsByUser:
		return LeadsByUser(now), nil
	case PresetLeadsByStore:
		return LeadsByStore(), nil
	case PresetFollowUp:
		return FollowUp(), nil
	default:
		return Options{}, fmt.Errorf("unknown preset %q", name)
	}
}
