package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/report"

	"github.com/PuerkitoBio/goquery"
)

// Evaluator runs scripts in a browser page.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Page reads a report rendered in a browser tab, optionally inside an
// iframe. It implements report.PageSource.
type Page struct {
	eval          Evaluator
	frameSelector string
	tableSelector string
	settle        time.Duration
	current       *report.DocumentPage
}

func NewPage(eval Evaluator, frameSelector, tableSelector string, settle time.Duration) *Page {
	return &Page{
		eval:          eval,
		frameSelector: frameSelector,
		tableSelector: tableSelector,
		settle:        settle,
	}
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// documentExpr resolves to the document holding the report.
func (p *Page) documentExpr() string {
	if p.frameSelector == "" {
		return "document"
	}
	return fmt.Sprintf(
		"(document.querySelector(%s) || {}).contentDocument",
		jsString(p.frameSelector),
	)
}

func (p *Page) document(ctx context.Context) (*report.DocumentPage, error) {
	if p.current != nil {
		return p.current, nil
	}
	var html string
	expr := fmt.Sprintf(
		`(() => { const doc = %s; return doc ? doc.documentElement.outerHTML : ""; })()`,
		p.documentExpr(),
	)
	if err := p.eval.Evaluate(ctx, expr, &html); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if html == "" {
		return nil, fmt.Errorf("report frame %q is not loaded", p.frameSelector)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	p.current = &report.DocumentPage{Doc: doc.Selection, TableSelector: p.tableSelector}
	return p.current, nil
}

func (p *Page) HeaderCells(ctx context.Context) ([]htmltable.HeaderCell, error) {
	doc, err := p.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.HeaderCells(ctx)
}

func (p *Page) Rows(ctx context.Context, filter htmltable.RowFilter) ([][]string, error) {
	doc, err := p.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Rows(ctx, filter)
}

func (p *Page) Pagination(ctx context.Context) (htmltable.Pagination, error) {
	doc, err := p.document(ctx)
	if err != nil {
		return htmltable.Pagination{}, err
	}
	return doc.Pagination(ctx)
}

// Wait sleeps for the settle delay or until ctx is done.
func (p *Page) Wait(ctx context.Context) error {
	if p.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(p.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GoToPage clicks the pager item of page n and reports whether the page
// became the active one.
func (p *Page) GoToPage(ctx context.Context, n int) (bool, error) {
	var clicked bool
	expr := fmt.Sprintf(
		`(() => {
	const doc = %s;
	const item = doc && doc.querySelector('li.ant-pagination-item[title="%d"]');
	if (!item) return false;
	item.click();
	return true;
})()`,
		p.documentExpr(), n,
	)
	if err := p.eval.Evaluate(ctx, expr, &clicked); err != nil {
		return false, fmt.Errorf("go to page %d: %w", n, err)
	}
	if !clicked {
		return false, nil
	}

	p.current = nil
	if err := p.Wait(ctx); err != nil {
		return false, err
	}
	pagination, err := p.Pagination(ctx)
	if err != nil {
		return false, err
	}
	return pagination.CurrentPage == n, nil
}
