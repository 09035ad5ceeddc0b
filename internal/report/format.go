package report

import (
	"fmt"
	"strings"

	"clinicreport/internal/sources"
	"clinicreport/internal/util"
)

const (
	ClassRed   = "red"
	ClassGreen = "green"
	ClassTotal = "total"
)

// Options describes how one report table is displayed.
type Options struct {
	// Formats maps a column header to a printf verb for numeric cells.
	Formats map[string]string
	// ThresholdColumn is colored against Threshold when HasThreshold is set.
	ThresholdColumn string
	Threshold       int
	HasThreshold    bool
	HighlightTotal  bool
}

type StyledTable struct {
	Name     string
	Headers  []string
	Rows     [][]string
	Numeric  [][]bool
	Values   [][]float64
	Formats  []string
	Classes  [][]string
	RowClass []string
}

// Format applies column formats and cell classes. Formats naming a column
// the table lacks are ignored.
func Format(t sources.Table, opts Options) StyledTable {
	out := StyledTable{
		Name:     t.Name,
		Headers:  append([]string(nil), t.Headers...),
		Formats:  make([]string, len(t.Headers)),
		Rows:     make([][]string, len(t.Rows)),
		Numeric:  make([][]bool, len(t.Rows)),
		Values:   make([][]float64, len(t.Rows)),
		Classes:  make([][]string, len(t.Rows)),
		RowClass: make([]string, len(t.Rows)),
	}
	for col, fmtVerb := range opts.Formats {
		if i := t.Column(col); i >= 0 {
			out.Formats[i] = fmtVerb
		}
	}
	thresholdIdx := -1
	if opts.HasThreshold && opts.ThresholdColumn != "" {
		thresholdIdx = t.Column(opts.ThresholdColumn)
	}

	for r, row := range t.Rows {
		n := len(t.Headers)
		if len(row) > n {
			n = len(row)
		}
		out.Rows[r] = make([]string, n)
		out.Numeric[r] = make([]bool, n)
		out.Values[r] = make([]float64, n)
		out.Classes[r] = make([]string, n)

		for c := 0; c < n; c++ {
			raw := t.Cell(row, c)
			out.Rows[r][c] = raw

			v, ok := number(raw)
			if !ok {
				continue
			}
			out.Numeric[r][c] = true
			out.Values[r][c] = v
			if c < len(out.Formats) && out.Formats[c] != "" {
				out.Rows[r][c] = fmt.Sprintf(out.Formats[c], v)
			}
			if c == thresholdIdx {
				if v < float64(opts.Threshold) {
					out.Classes[r][c] = ClassRed
				} else {
					out.Classes[r][c] = ClassGreen
				}
			}
		}

		if opts.HighlightTotal && len(row) > 0 && strings.HasPrefix(strings.TrimSpace(row[0]), "Total") {
			out.RowClass[r] = ClassTotal
		}
	}
	return out
}

// number rejects NaN and infinities so such cells get no color.
func number(s string) (float64, bool) {
	return util.ParseNumber(s)
}
