package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var classColors = map[string]string{
	ClassRed:   "FF0000",
	ClassGreen: "008000",
}

// WriteStyledXLSX renders a styled table. Numeric cells stay numbers with a
// display format derived from the printf verb; classes become font colors and
// total rows are bold on a grey fill.
func WriteStyledXLSX(st StyledTable, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if name := sheetName(st.Name); name != "" && name != sheet {
		if err := f.SetSheetName(sheet, name); err == nil {
			sheet = name
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range st.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	styles := map[string]int{}
	styleFor := func(numFmt, class string, total bool) (int, error) {
		key := numFmt + "|" + class + "|" + boolKey(total)
		if id, ok := styles[key]; ok {
			return id, nil
		}
		s := &excelize.Style{}
		if numFmt != "" {
			s.CustomNumFmt = &numFmt
		}
		font := &excelize.Font{Color: classColors[class], Bold: total}
		if font.Color != "" || font.Bold {
			s.Font = font
		}
		if total {
			s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}}
		}
		id, err := f.NewStyle(s)
		if err != nil {
			return 0, err
		}
		styles[key] = id
		return id, nil
	}

	for r, row := range st.Rows {
		total := st.RowClass[r] == ClassTotal
		for c, text := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)

			numFmt := ""
			if st.Numeric[r][c] {
				_ = f.SetCellValue(sheet, cell, st.Values[r][c])
				if c < len(st.Formats) {
					numFmt = excelNumFmt(st.Formats[c])
				}
			} else {
				_ = f.SetCellValue(sheet, cell, text)
			}

			class := st.Classes[r][c]
			if numFmt == "" && class == "" && !total {
				continue
			}
			id, err := styleFor(numFmt, class, total)
			if err != nil {
				return err
			}
			_ = f.SetCellStyle(sheet, cell, cell, id)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// excelNumFmt maps "%.Nf" to a spreadsheet number format.
func excelNumFmt(verb string) string {
	switch verb {
	case "":
		return ""
	case "%.0f":
		return "0"
	}
	if strings.HasPrefix(verb, "%.") && strings.HasSuffix(verb, "f") {
		digits := strings.TrimSuffix(strings.TrimPrefix(verb, "%."), "f")
		n := 0
		for _, r := range digits {
			if r < '0' || r > '9' {
				return ""
			}
			n = n*10 + int(r-'0')
		}
		return "0." + strings.Repeat("0", n)
	}
	return ""
}

// sheetName trims a name to the 31 characters a sheet title allows.
func sheetName(name string) string {
	name = strings.TrimSpace(name)
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
