package sources

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"clinicreport/internal/util"
)

var ErrMissingColumns = errors.New("missing required columns")

// Table is one header row plus data rows, as read from a sheet or an HTML table.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string

	// typed marks cells that came from numeric xlsx cells or JSON numbers.
	// Their text is canonical, so "10.125" is ten and an eighth, not the
	// Brazilian "10.125" (ten thousand one hundred twenty-five).
	typed map[cellPos]bool
}

type cellPos struct{ row, col int }

func (t *Table) markTyped(row, col int) {
	if t.typed == nil {
		t.typed = map[cellPos]bool{}
	}
	t.typed[cellPos{row, col}] = true
}

// Typed reports whether the cell holds a machine-written number.
func (t Table) Typed(row, col int) bool {
	return t.typed[cellPos{row, col}]
}

// Amount parses the cell at row, col. Typed cells are read as canonical
// numbers, text cells with the Brazilian-first heuristics of ParseAmount.
func (t Table) Amount(row, col int) (float64, bool) {
	if row < 0 || row >= len(t.Rows) {
		return 0, false
	}
	s := t.Cell(t.Rows[row], col)
	if t.Typed(row, col) {
		return util.ParseNumber(s)
	}
	return util.ParseAmount(s)
}

// Column returns the index of the first header matching any alias, compared
// without case or accents, or -1.
func (t Table) Column(aliases ...string) int {
	for _, alias := range aliases {
		want := util.Fold(alias)
		for i, h := range t.Headers {
			if util.Fold(h) == want {
				return i
			}
		}
	}
	return -1
}

func (t Table) Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadXLSXFile reads the first non-empty sheet of an xlsx file.
func ReadXLSXFile(path string) (Table, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	t, err := ReadXLSX(blob)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func ReadXLSX(content []byte) (Table, error) {
	tables, err := ReadXLSXSheets(content)
	if err != nil {
		return Table{}, err
	}
	if len(tables) == 0 {
		return Table{}, errors.New("workbook has no data")
	}
	return tables[0], nil
}

// ReadXLSXSheets returns every sheet with a header row. Cells are read raw so
// dates come back as Excel serials and amounts without display formatting.
func ReadXLSXSheets(content []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []Table{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}

		headerIdx := -1
		for i, row := range rows {
			if len(normalizeCells(row)) > 0 && nonEmpty(row) >= 2 {
				headerIdx = i
				break
			}
		}
		if headerIdx < 0 {
			continue
		}

		t := Table{Name: sheet, Headers: normalizeCells(rows[headerIdx])}
		for i := headerIdx + 1; i < len(rows); i++ {
			if nonEmpty(rows[i]) == 0 {
				continue
			}
			cells := normalizeCells(rows[i])
			r := len(t.Rows)
			t.Rows = append(t.Rows, cells)
			for c, v := range cells {
				if v != "" && numericCell(f, sheet, c+1, i+1) {
					t.markTyped(r, c)
				}
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// numericCell reports whether the cell is stored as a number. Numbers carry
// no type attribute or "n"; text is shared, inline or a formula string.
func numericCell(f *excelize.File, sheet string, col, row int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return false
	}
	return typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber
}

// WriteXLSX stores a table as a single-sheet workbook. Typed cells are
// written back as numbers.
func WriteXLSX(t Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if n, ok := util.ParseNumber(v); ok && t.Typed(r, c) {
				_ = f.SetCellValue(sheet, cell, n)
				continue
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	// trailing empties carry no data
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func nonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
