// Package report reads the merchant backend's report pages and persists
// their rows in the local store, optionally mirroring them remotely.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("mtreport.report")

const (
	report_read     = "crawler.read"
	report_paginate = "crawler.paginate"
	report_mirror   = "crawler.mirror"
	report_log      = "crawler.log"
)

// LocalStore is the store crawls are persisted in, it also keeps the crawl log.
type LocalStore interface {
	Writer
	CrawlSucceeded(ctx context.Context, scope string, report records.EntityType, date string) (bool, error)
	LogCrawl(ctx context.Context, entry records.CrawlLogEntry) error
}

type Crawler struct {
	opener Opener
	local  LocalStore
	remote Writer
	tel    telemetry.API
}

// NewCrawler creates a crawler, remote may be nil when mirroring is never requested.
func NewCrawler(opener Opener, local LocalStore, remote Writer, tel telemetry.API) *Crawler {
	assert.NotNil(opener, "opener")
	assert.NotNil(local, "local store")
	assert.NotNil(tel, "telemetry")
	return &Crawler{
		opener: opener,
		local:  local,
		remote: remote,
		tel:    telemetry.NewScopedAPI("report", tel),
	}
}

type CrawlOptions struct {
	// Force recrawls dates already crawled and overwrites stored rows regardless of magnitude.
	Force bool
	// Mirror also writes the crawled records to the remote store.
	Mirror bool
}

type CrawlResult struct {
	Kind        records.EntityType
	Dates       chrono.DateRange
	RecordCount int
	// Rejected counts rows that did not parse as data rows.
	Rejected int
	Pages    int
	Local    records.WriteStats
	// Remote is nil unless the crawl was mirrored.
	Remote *records.WriteStats
	// Skipped lists dates already crawled successfully.
	Skipped []string
	// Failed lists dates whose pages could not be read.
	Failed []string
	// MirrorErrors lists the remote writes that stopped early, their unsent
	// records are counted in Remote.Failed.
	MirrorErrors []string
}

// contiguous splits sorted days into ranges of consecutive days.
func contiguous(days []time.Time) []chrono.DateRange {
	var out []chrono.DateRange
	for _, d := range days {
		if n := len(out); n > 0 && out[n-1].End.AddDate(0, 0, 1).Equal(d) {
			out[n-1].End = d
			continue
		}
		out = append(out, chrono.SingleDay(d))
	}
	return out
}

// CrawlAndPersist reads the report for every date of the range not crawled
// yet and merges the rows into the local store. Per date reports are opened
// once per day, the others once per run of consecutive dates.
func (c *Crawler) CrawlAndPersist(ctx context.Context, kind records.EntityType, dates chrono.DateRange, opts CrawlOptions) (CrawlResult, error) {
	ctx, span := tracer.Start(ctx, "CrawlAndPersist")
	defer span.End()
	span.SetAttributes(
		attribute.String("report", string(kind)),
		attribute.String("dates", dates.String()),
	)

	result := CrawlResult{Kind: kind, Dates: dates}
	def, err := Lookup(kind)
	if err != nil {
		return result, err
	}
	if opts.Mirror {
		if c.remote == nil {
			return result, errors.New("mirroring requested without a remote store")
		}
		result.Remote = &records.WriteStats{}
	}

	var pending []time.Time
	for _, day := range dates.Days() {
		date := chrono.FormatDate(day)
		if !opts.Force {
			done, err := c.local.CrawlSucceeded(ctx, records.GroupScope, kind, date)
			if err != nil {
				return result, fmt.Errorf("read crawl log: %w", err)
			}
			if done {
				result.Skipped = append(result.Skipped, date)
				continue
			}
		}
		pending = append(pending, day)
	}

	var units []chrono.DateRange
	if def.PerDate {
		for _, day := range pending {
			units = append(units, chrono.SingleDay(day))
		}
	} else {
		units = contiguous(pending)
	}

	for _, unit := range units {
		batch, pages, err := c.read(ctx, def, unit)
		result.Pages += pages
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			c.tel.ReportBroken(report_read, kind, unit.String(), err)
			c.log(ctx, kind, unit, &batch, err)
			for _, day := range unit.Days() {
				result.Failed = append(result.Failed, chrono.FormatDate(day))
			}
			continue
		}
		result.RecordCount += batch.Len()
		result.Rejected += batch.Rejected

		stats, err := batch.WriteTo(ctx, c.local, records.WriteOptions{Force: opts.Force})
		result.Local.Add(stats)
		if err != nil {
			c.log(ctx, kind, unit, &batch, err)
			return result, fmt.Errorf("persist %s %s: %w", kind, unit, err)
		}

		if opts.Mirror {
			stats, err := batch.WriteTo(ctx, c.remote, records.WriteOptions{Force: opts.Force})
			if err != nil {
				stats.Failed += max(batch.Len()-stats.Total(), 0)
				result.MirrorErrors = append(result.MirrorErrors, fmt.Sprintf("%s: %v", unit, err))
				c.tel.ReportBroken(report_mirror, kind, unit.String(), err)
			}
			result.Remote.Add(stats)
		}
		c.log(ctx, kind, unit, &batch, nil)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	span.SetAttributes(
		attribute.Int("records", result.RecordCount),
		attribute.Int("pages", result.Pages),
	)
	return result, nil
}

// read decodes every result page of the report for one unit of dates.
// Pagination stops at the first page that cannot be reached.
func (c *Crawler) read(ctx context.Context, def Definition, unit chrono.DateRange) (Batch, int, error) {
	batch := Batch{Kind: def.Kind}
	page, err := c.opener.Open(ctx, def.Kind, unit)
	if err != nil {
		return batch, 0, fmt.Errorf("open: %w", err)
	}
	header, err := page.HeaderCells(ctx)
	if err != nil {
		return batch, 0, fmt.Errorf("header: %w", err)
	}
	columns := htmltable.Flatten(header, htmltable.HeaderDepth)
	pagination, err := page.Pagination(ctx)
	if err != nil {
		return batch, 0, fmt.Errorf("pagination: %w", err)
	}

	date := chrono.FormatDate(unit.Start)
	pages := 0
	for n := 1; n <= pagination.TotalPages; n++ {
		if n > 1 || pagination.CurrentPage != 1 {
			ok, err := page.GoToPage(ctx, n)
			if ctx.Err() != nil {
				return batch, pages, ctx.Err()
			}
			if err != nil || !ok {
				c.tel.ReportWarning(report_paginate, def.Kind, unit.String(), n, err)
				break
			}
		}
		rows, err := page.Rows(ctx, def.Filter)
		if err != nil {
			return batch, pages, fmt.Errorf("rows of page %d: %w", n, err)
		}
		def.Decode(&batch, rows, columns, date)
		pages++
	}

	c.tel.ReportDebug("read report", string(def.Kind), unit.String(), pages, batch.Len(), batch.Rejected)
	return batch, pages, nil
}

func (c *Crawler) log(ctx context.Context, kind records.EntityType, unit chrono.DateRange, batch *Batch, crawlErr error) {
	for _, day := range unit.Days() {
		date := chrono.FormatDate(day)
		entry := records.CrawlLogEntry{
			Scope:       records.GroupScope,
			Report:      kind,
			Date:        date,
			Success:     crawlErr == nil,
			RecordCount: batch.CountDate(date),
		}
		if crawlErr != nil {
			entry.Error = crawlErr.Error()
		}
		if err := c.local.LogCrawl(ctx, entry); err != nil {
			c.tel.ReportWarning(report_log, kind, date, err)
		}
	}
}
