package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clinicreport/internal/sources"
)

func clock(h, m, s int) time.Time {
	return time.Date(2024, time.March, 4, h, m, s, 0, time.UTC)
}

func TestDefaultThresholdWindows(t *testing.T) {
	cases := []struct {
		at   time.Time
		want int
		ok   bool
	}{
		{clock(7, 59, 59), 0, false},
		{clock(8, 0, 0), 50, true},
		{clock(11, 59, 0), 50, true},
		{clock(11, 59, 30), 0, false},
		{clock(12, 0, 0), 100, true},
		{clock(13, 59, 0), 100, true},
		{clock(14, 0, 0), 150, true},
		{clock(16, 59, 0), 150, true},
		{clock(17, 0, 0), 200, true},
		{clock(20, 30, 0), 200, true},
		{clock(20, 30, 1), 0, false},
		{clock(23, 0, 0), 0, false},
	}
	for _, tc := range cases {
		got, ok := DefaultLeadsPerHourThresholds.At(tc.at)
		assert.Equal(t, tc.ok, ok, "at=%s", tc.at.Format("15:04:05"))
		assert.Equal(t, tc.want, got, "at=%s", tc.at.Format("15:04:05"))
	}
}

func TestThresholdWindowEdgeIsSubSecond(t *testing.T) {
	edge := clock(11, 59, 0)

	got, ok := DefaultLeadsPerHourThresholds.At(edge)
	require.True(t, ok)
	assert.Equal(t, 50, got)

	_, ok = DefaultLeadsPerHourThresholds.At(edge.Add(500 * time.Millisecond))
	assert.False(t, ok)
	_, ok = DefaultLeadsPerHourThresholds.At(edge.Add(time.Nanosecond))
	assert.False(t, ok)
}

func leadsByUserTable() sources.Table {
	return sources.Table{
		Name:    "Leads por usuário",
		Headers: []string{"Usuário", "Leads Puxados", "Agendamentos na Agenda"},
		Rows: [][]string{
			{"Ana", "40", "3"},
			{"Bia", "55.4", "7"},
			{"Caio", "n/d", ""},
			{"Total", "95.4", "10"},
		},
	}
}

func TestFormatLeadsByUserColorsAgainstThreshold(t *testing.T) {
	st := Format(leadsByUserTable(), LeadsByUser(clock(9, 30, 0)))

	assert.Equal(t, ClassRed, st.Classes[0][1])
	assert.Equal(t, ClassGreen, st.Classes[1][1])
	assert.Equal(t, "", st.Classes[2][1])
	assert.Equal(t, "", st.Classes[0][2])
	assert.Equal(t, "55", st.Rows[1][1])
	assert.Equal(t, "n/d", st.Rows[2][1])
	assert.Equal(t, ClassTotal, st.RowClass[3])
	assert.Equal(t, "", st.RowClass[0])
}

func TestFormatLeavesNonFiniteCellsUncolored(t *testing.T) {
	table := sources.Table{
		Headers: []string{"Usuário", "Leads Puxados"},
		Rows:    [][]string{{"Ana", "NaN"}, {"Bia", "+Inf"}, {"Caio", "-inf"}, {"Davi", "60"}},
	}
	st := Format(table, LeadsByUser(clock(9, 30, 0)))

	for r := 0; r < 3; r++ {
		assert.Equal(t, "", st.Classes[r][1], "row %d", r)
	}
	assert.Equal(t, "NaN", st.Rows[0][1])
	assert.Equal(t, ClassGreen, st.Classes[3][1])
}

func TestFormatOutsideWindowHasNoColor(t *testing.T) {
	st := Format(leadsByUserTable(), LeadsByUser(clock(22, 0, 0)))
	for r := range st.Rows {
		assert.Equal(t, "", st.Classes[r][1])
	}
	assert.Equal(t, "40", st.Rows[0][1])
}

func TestFormatIgnoresMissingColumns(t *testing.T) {
	table := sources.Table{
		Headers: []string{"Vendedor", "Valor líquido"},
		Rows:    [][]string{{"Ana", "1234.5"}, {"Total geral", "1234.5"}},
	}
	st := Format(table, FollowUp())

	assert.Equal(t, "1234.50", st.Rows[0][1])
	assert.Equal(t, []string{"", "%.2f"}, st.Formats)
	assert.Equal(t, ClassTotal, st.RowClass[1])
}

func TestPreset(t *testing.T) {
	_, err := Preset("nope", time.Now())
	assert.Error(t, err)

	opts, err := Preset(PresetLeadsByStore, time.Now())
	require.NoError(t, err)
	assert.False(t, opts.HasThreshold)
}

func TestWriteStyledXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leads_by_user.xlsx")
	st := Format(leadsByUserTable(), LeadsByUser(clock(9, 30, 0)))
	require.NoError(t, WriteStyledXLSX(st, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Leads por usuário"}, f.GetSheetList())
	v, err := f.GetCellValue("Leads por usuário", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "40", v)
}

func TestExcelNumFmt(t *testing.T) {
	assert.Equal(t, "0", excelNumFmt("%.0f"))
	assert.Equal(t, "0.00", excelNumFmt("%.2f"))
	assert.Equal(t, "", excelNumFmt("%d"))
}
