package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicreport/internal"
)

func TestCategorizeFirstRuleWins(t *testing.T) {
	cases := []struct {
		text any
		want string
	}{
		{text: "Quero fazer Botox", want: "Botox"},
		{text: "tenho rugas na testa", want: "Botox"},
		{text: "botox ou preenchimento labial?", want: "Preenchimento"},
		{text: "preenchimento corporal no glúteo", want: "Preenchimento Corporal"},
		{text: "Mamoplastia Redutora", want: "Mamoplastia"},
		{text: "CRIOLIPÓLISE", want: "Crio"},
		{text: "quero saber o preço", want: internal.CategoryUndefined},
		{text: "", want: internal.CategoryUndefined},
		{text: nil, want: internal.CategoryUndefined},
		{text: 12345, want: internal.CategoryUndefined},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.text), "text=%v", tc.text)
	}
}

func TestCategorizeReturnsKnownLabel(t *testing.T) {
	labels := map[string]struct{}{}
	for _, l := range Labels() {
		labels[l] = struct{}{}
	}
	for _, text := range []string{"laser", "silicone", "nada", "Ultrassom microfocado", "Sculptra"} {
		_, ok := labels[Categorize(text)]
		assert.True(t, ok, text)
	}
}

func TestProcessLeadsFallsBackToMessage(t *testing.T) {
	leads := []internal.Lead{
		{ID: "1", UTMContent: "campanha-verao", Message: "Quero fazer Botox"},
		{ID: "2", UTMContent: "lp-ultraformer", Message: "Quero fazer Botox"},
	}
	out := ProcessLeads(leads)

	require.Len(t, out, 2)
	assert.Equal(t, "Botox", out[0].Category)
	assert.Equal(t, "Ultraformer", out[1].Category)
	assert.Empty(t, leads[0].Category, "input must not be mutated")
}

func TestProcessLeadsOverrides(t *testing.T) {
	leads := []internal.Lead{
		{ID: "1", Source: "Indique e Multiplique", Message: "oi"},
		{ID: "2", Source: "Indique e Multiplique", Message: "quero botox"},
		{ID: "3", Source: "CRM BÔNUS"},
		{ID: "4", Message: "Lead Pop Up de Saída. Ganhou Peeling Diamante."},
		{ID: "5", Message: "Lead Pop Up de Saída. Ganhou Massagem Modeladora."},
		{ID: "6", Message: "Lead salvo pelo modal de WhatsApp da Isa"},
		{ID: "7", UTMContent: "ads-preenchimentocorporal", Message: "x"},
		{ID: "8", UTMContent: "ads-preenchimento-labial"},
	}
	out := ProcessLeads(leads)

	want := []string{
		"Cortesia Indique",
		"Botox",
		"Cortesia CRM Bônus",
		"Cortesia PopUpSaida Peeling_D",
		"Cortesia PopUpSaida Mass_Mod",
		"Quer Falar no Whatsapp",
		"Preenchimento Corporal",
		"Preenchimento",
	}
	for i, w := range want {
		assert.Equal(t, w, out[i].Category, "lead %s", out[i].ID)
	}
}

func TestProcessLeadsAlwaysAssigns(t *testing.T) {
	out := ProcessLeads([]internal.Lead{{ID: "1"}, {ID: "2", Message: "   "}})
	for _, l := range out {
		assert.NotEmpty(t, l.Category)
	}
}
