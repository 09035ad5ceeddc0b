package sources

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"clinicreport/internal/util"
)

// ReadHTMLTables extracts every table with a header row and at least one
// data row. CRM report e-mails embed their data this way.
func ReadHTMLTables(html string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := []Table{}
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		t := Table{Name: fmt.Sprintf("html_table_%d", i+1)}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			t.Headers = append(t.Headers, util.NormalizeSpaces(cell.Text()))
		})
		if nonEmpty(t.Headers) < 2 {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if nonEmpty(cells) == 0 {
				return
			}
			t.Rows = append(t.Rows, cells)
		})
		if len(t.Rows) > 0 {
			out = append(out, t)
		}
	})
	return out, nil
}
