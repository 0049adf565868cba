package report

import (
	"context"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/records"

	"github.com/PuerkitoBio/goquery"
)

// PageSource is a report page already configured with its date range and
// filters, showing one page of results at a time.
type PageSource interface {
	HeaderCells(ctx context.Context) ([]htmltable.HeaderCell, error)
	Rows(ctx context.Context, filter htmltable.RowFilter) ([][]string, error)
	Pagination(ctx context.Context) (htmltable.Pagination, error)
	// GoToPage shows result page n, false when the page could not be reached.
	GoToPage(ctx context.Context, n int) (bool, error)
}

// Opener prepares the page of a report for a date range.
type Opener interface {
	Open(ctx context.Context, kind records.EntityType, dates chrono.DateRange) (PageSource, error)
}

// DocumentPage is a PageSource over an already rendered html document. It
// only ever shows the page it was rendered with.
type DocumentPage struct {
	Doc *goquery.Selection
	// TableSelector narrows the document to the report table, empty for the whole document.
	TableSelector string
}

func (p DocumentPage) table() *goquery.Selection {
	if p.TableSelector == "" {
		return p.Doc
	}
	return p.Doc.Find(p.TableSelector)
}

func (p DocumentPage) HeaderCells(context.Context) ([]htmltable.HeaderCell, error) {
	return htmltable.HeaderCells(p.table()), nil
}

func (p DocumentPage) Rows(_ context.Context, filter htmltable.RowFilter) ([][]string, error) {
	return htmltable.BodyRows(p.table(), filter), nil
}

func (p DocumentPage) Pagination(context.Context) (htmltable.Pagination, error) {
	return htmltable.ParsePagination(p.Doc), nil
}

func (p DocumentPage) GoToPage(ctx context.Context, n int) (bool, error) {
	current := htmltable.ParsePagination(p.Doc)
	return n == current.CurrentPage, nil
}
