package htmltable

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("mtreport.htmltable")

// FooterLabel marks the subtotal row at the bottom of every report.
const FooterLabel = "合计"

// Table is the raw content of the currently rendered report page.
type Table struct {
	Header []HeaderCell
	Rows   [][]string
}

// RowFilter decides which body rows are data rows.
type RowFilter struct {
	// MinCells drops rows with fewer cells, group header rows are narrower than data rows.
	MinCells int
	// SkipFirst drops rows whose first cell is one of these values (repeated column titles).
	SkipFirst []string
	// SkipEmptyFirst drops rows whose first cell is empty.
	SkipEmptyFirst bool
}

func (f RowFilter) keep(cells []string) bool {
	if len(cells) < f.MinCells {
		return false
	}
	if len(cells) > 0 && cells[0] == FooterLabel {
		return false
	}
	if len(cells) > 1 && cells[1] == FooterLabel {
		return false
	}
	if len(cells) > 0 {
		if f.SkipEmptyFirst && cells[0] == "" {
			return false
		}
		for _, s := range f.SkipFirst {
			if cells[0] == s {
				return false
			}
		}
	}
	return true
}

func intAttr(sel *goquery.Selection, name string) int {
	value, ok := sel.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// virtualized reports rows the table keeps in the DOM for scrolling but
// renders with zero height.
func virtualized(tr *goquery.Selection) bool {
	if hidden, _ := tr.Attr("aria-hidden"); hidden == "true" {
		return true
	}
	style, _ := tr.Find("td").First().Find("div").First().Attr("style")
	style = strings.ReplaceAll(style, " ", "")
	return strings.Contains(style, "height:0px")
}

// HeaderCells reads every <th> under the first thead that has any, row
// indexes are the positions of their <tr> inside that thead.
func HeaderCells(table *goquery.Selection) []HeaderCell {
	var cells []HeaderCell
	thead := table.Find("thead").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("th").Length() > 0
	}).First()

	thead.Find("tr").Each(func(row int, tr *goquery.Selection) {
		tr.Find("th").Each(func(_ int, th *goquery.Selection) {
			cells = append(cells, HeaderCell{
				Text:    CellText(th.Get(0)),
				Row:     row,
				ColSpan: intAttr(th, "colspan"),
				RowSpan: intAttr(th, "rowspan"),
			})
		})
	})
	return cells
}

// BodyRows reads the text of every data row under tbody.
func BodyRows(table *goquery.Selection, filter RowFilter) [][]string {
	var rows [][]string
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if virtualized(tr) {
			return
		}
		tds := tr.Find("td")
		cells := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, CellText(td.Get(0)))
		})
		if !filter.keep(cells) {
			return
		}
		rows = append(rows, cells)
	})
	return rows
}

// Extract reads the header cells and data rows of the table matched by
// selector within doc.
func Extract(ctx context.Context, doc *goquery.Selection, selector string, filter RowFilter) Table {
	_, span := tracer.Start(ctx, "Extract")
	defer span.End()

	table := doc
	if selector != "" {
		table = doc.Find(selector)
	}
	out := Table{
		Header: HeaderCells(table),
		Rows:   BodyRows(table, filter),
	}
	span.SetAttributes(
		attribute.String("selector", selector),
		attribute.Int("header_cells", len(out.Header)),
		attribute.Int("rows", len(out.Rows)),
	)
	return out
}
