// Package category assigns a procedure category to each lead from the free
// text captured by the intake forms.
package category

import (
	"fmt"
	"strings"

	"clinicreport/internal"
)

// Rule maps a keyword to a category label. Rules are evaluated in slice order
// and the first keyword found in the text wins.
type Rule struct {
	Keyword string
	Label   string
}

// Rules is ordered: a specific keyword must come before a broader one that
// overlaps it ("Corporal" before "Preenchimento", "Mamoplastia Redutora"
// before "Mamoplastia").
var Rules = []Rule{
	// Pró-Corpo
	{Keyword: "Corporal", Label: "Preenchimento Corporal"},
	{Keyword: "Preenchimento", Label: "Preenchimento"},
	{Keyword: "Botox", Label: "Botox"},
	{Keyword: "Ultraformer", Label: "Ultraformer"},
	{Keyword: "Ultrassom", Label: "Ultraformer"},
	{Keyword: "Gordura", Label: "Enzimas"},
	{Keyword: "Enzimas", Label: "Enzimas"},
	{Keyword: "Lavieen", Label: "Lavieen"},
	{Keyword: "Sculptra", Label: "Bioestimulador"},
	{Keyword: "Bioestimulador", Label: "Bioestimulador"},
	{Keyword: "Institucional", Label: "Institucional"},
	{Keyword: "Crio", Label: "Crio"},
	{Keyword: "Criolipólise", Label: "Crio"},
	{Keyword: "Limpeza", Label: "Limpeza"},
	{Keyword: "olheiras", Label: "Preenchimento"},
	{Keyword: "prolipo", Label: "Enzimas"},
	{Keyword: "rugas", Label: "Botox"},
	{Keyword: "Laser", Label: "Lavieen"},
	{Keyword: "Mancha", Label: "Lavieen"},
	{Keyword: "Melasma", Label: "Lavieen"},
	{Keyword: "gluteomax", Label: "Gluteo Max"},
	{Keyword: "Glúteo Max", Label: "Gluteo Max"},

	// Cirurgia
	{Keyword: "Lipoaspiração", Label: "Lipoaspiração"},
	{Keyword: "Abdominoplastia", Label: "Abdominoplastia"},
	{Keyword: "Mastopexia", Label: "Mastopexia"},
	{Keyword: "Rinoplastia", Label: "Rinoplastia"},
	{Keyword: "Prótese de Mama", Label: "Prótese de Mama"},
	{Keyword: "Mamoplastia Redutora", Label: "Mamoplastia"},
	{Keyword: "Mamoplastia", Label: "Mamoplastia"},
	{Keyword: "Cirurgia", Label: "Cirurgia"},
	{Keyword: "Silicone", Label: "Prótese de Mama"},
}

// Override forces Label on rows matching its condition.
type Override struct {
	Name  string
	Label string
	Match func(lead internal.Lead) bool
}

// Overrides run after keyword matching, in order, against rows still
// undefined. The last one re-labels an already assigned category.
var Overrides = []Override{
	{
		Name:  "fonte_indique",
		Label: "Cortesia Indique",
		Match: func(l internal.Lead) bool {
			return l.Source == "Indique e Multiplique" && l.Category == internal.CategoryUndefined
		},
	},
	{
		Name:  "fonte_crm_bonus",
		Label: "Cortesia CRM Bônus",
		Match: func(l internal.Lead) bool {
			return l.Source == "CRM BÔNUS" && l.Category == internal.CategoryUndefined
		},
	},
	{
		Name:  "popup_peeling",
		Label: "Cortesia PopUpSaida Peeling_D",
		Match: func(l internal.Lead) bool {
			return l.Message == "Lead Pop Up de Saída. Ganhou Peeling Diamante." && l.Category == internal.CategoryUndefined
		},
	},
	{
		Name:  "popup_massagem",
		Label: "Cortesia PopUpSaida Mass_Mod",
		Match: func(l internal.Lead) bool {
			return l.Message == "Lead Pop Up de Saída. Ganhou Massagem Modeladora." && l.Category == internal.CategoryUndefined
		},
	},
	{
		Name:  "whatsapp_modal",
		Label: "Quer Falar no Whatsapp",
		Match: func(l internal.Lead) bool {
			return l.Message == "Lead salvo pelo modal de WhatsApp da Isa" && l.Category == internal.CategoryUndefined
		},
	},
	{
		Name:  "content_preenchimento_corporal",
		Label: "Preenchimento Corporal",
		Match: func(l internal.Lead) bool {
			return strings.Contains(l.UTMContent, "preenchimentocorporal") && l.Category == "Preenchimento"
		},
	},
}

// Categorize returns the label of the first rule whose keyword occurs in
// text, case-insensitively, or "Indefinido".
func Categorize(text any) string {
	var s string
	switch v := text.(type) {
	case nil:
		s = ""
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}

	lower := strings.ToLower(s)
	if strings.TrimSpace(lower) == "" {
		return internal.CategoryUndefined
	}
	for _, rule := range Rules {
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule.Label
		}
	}
	return internal.CategoryUndefined
}

// ProcessLeads categorizes by UTM content, retries undefined rows with the
// message, then applies Overrides. The input slice is left untouched.
func ProcessLeads(leads []internal.Lead) []internal.Lead {
	out := make([]internal.Lead, len(leads))
	copy(out, leads)

	for i := range out {
		out[i].Category = Categorize(out[i].UTMContent)
		if out[i].Category == internal.CategoryUndefined {
			out[i].Category = Categorize(out[i].Message)
		}
	}

	for _, o := range Overrides {
		for i := range out {
			if o.Match(out[i]) {
				out[i].Category = o.Label
			}
		}
	}
	return out
}

// Labels lists every label ProcessLeads can produce.
func Labels() []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	for _, r := range Rules {
		add(r.Label)
	}
	for _, o := range Overrides {
		add(o.Label)
	}
	add(internal.CategoryUndefined)
	return out
}
