// Package localstore persists crawled report records in the embedded
// database, merging repeated crawls of the same day by magnitude.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mtreport.localstore")

const (
	report_write_record = "store.write-record"
	report_write        = "store.write"
)

// Store is the local record store. Every operation holds the store mutex
// for the lifetime of one transaction, the embedded database has a single writer.
type Store struct {
	db     *sql.DB
	makeTx makeTx
	clock  chrono.TimeAPI
	tel    telemetry.API
	mutex  sync.Mutex
}

func NewStore(db *sql.DB, clock chrono.TimeAPI, tel telemetry.API) *Store {
	assert.NotNil(db, "db")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	return &Store{
		db:     db,
		makeTx: newMakeTx(db),
		clock:  clock,
		tel:    telemetry.NewScopedAPI("localstore", tel),
	}
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	return nil
}

// withTx runs fn inside one transaction while holding the store mutex.
func (s *Store) withTx(ctx context.Context, fn func(q *queries) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	q, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(q); err != nil {
		return errors.Join(err, discard())
	}
	if err := commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) startSpan(ctx context.Context, name string, n int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("records", n)))
}

func (s *Store) finish(span trace.Span, entity records.EntityType, stats records.WriteStats) {
	span.SetAttributes(
		attribute.Int("inserted", stats.Inserted),
		attribute.Int("updated", stats.Updated),
		attribute.Int("skipped", stats.Skipped),
		attribute.Int("failed", stats.Failed),
	)
	span.End()
	s.tel.ReportDebug(
		"write finished",
		string(entity), stats.Inserted, stats.Updated, stats.Skipped, stats.Failed,
	)
}

// mergeOne applies the conditional merge to one record. A statement error
// fails only this record.
func mergeOne[T records.Superseder[T]](
	ctx context.Context,
	s *Store,
	q *queries,
	t table,
	keyArgs []any,
	incoming T,
	valueArgs []any,
	scan func(scanner) (T, error),
	opts records.WriteOptions,
	stats *records.WriteStats,
) {
	existing, exists, err := get(ctx, q, t, keyArgs, scan)
	if err != nil {
		s.tel.ReportBroken(report_write_record, t.name, keyArgs, err)
		stats.Failed++
		return
	}

	now := s.clock.Now()
	outcome := records.Decide(incoming, existing, exists, opts.Force)
	switch outcome {
	case records.Inserted:
		err = q.insert(ctx, t, keyArgs, valueArgs, now)
	case records.Updated:
		err = q.update(ctx, t, keyArgs, valueArgs, now)
	}
	if err != nil {
		s.tel.ReportBroken(report_write_record, t.name, keyArgs, err)
		stats.Failed++
		return
	}
	stats.Count(outcome)
}

// WriteEquity merges equity package sales in input order, upserting each
// record's store first.
func (s *Store) WriteEquity(ctx context.Context, recs []records.EquityPackageSale, opts records.WriteOptions) (records.WriteStats, error) {
	ctx, span := s.startSpan(ctx, "WriteEquity", len(recs))
	var stats records.WriteStats
	defer func() { s.finish(span, records.Equity, stats) }()

	err := s.withTx(ctx, func(q *queries) error {
		for _, r := range recs {
			if r.OrgCode == "" || r.Date == "" || r.PackageName == "" {
				stats.Skipped++
				continue
			}
			if err := q.UpsertStore(ctx, r.OrgCode, r.StoreName, s.clock.Now()); err != nil {
				s.tel.ReportBroken(report_write_record, "mt_stores", r.OrgCode, err)
				stats.Failed++
				continue
			}
			mergeOne(
				ctx, s, q, equityTable,
				equityKeyArgs(r.Key()), r, equityValueArgs(r), scanEquity,
				opts, &stats,
			)
		}
		return nil
	})
	if err != nil {
		s.tel.ReportBroken(report_write, records.Equity, err)
		return stats, err
	}
	return stats, nil
}

// WriteSummary merges business summaries in input order, rows without a
// store name or business date are skipped.
func (s *Store) WriteSummary(ctx context.Context, recs []records.BusinessSummary, opts records.WriteOptions) (records.WriteStats, error) {
	ctx, span := s.startSpan(ctx, "WriteSummary", len(recs))
	var stats records.WriteStats
	defer func() { s.finish(span, records.Summary, stats) }()

	err := s.withTx(ctx, func(q *queries) error {
		for _, r := range recs {
			if r.StoreName == "" || r.BusinessDate == "" {
				stats.Skipped++
				continue
			}
			mergeOne(
				ctx, s, q, summaryTable,
				summaryKeyArgs(r.Key()), r, summaryValueArgs(r), scanSummary,
				opts, &stats,
			)
		}
		return nil
	})
	if err != nil {
		s.tel.ReportBroken(report_write, records.Summary, err)
		return stats, err
	}
	return stats, nil
}

// WriteDish merges dish sales in input order, upserting the store when the
// row carries an org code.
func (s *Store) WriteDish(ctx context.Context, recs []records.DishSale, opts records.WriteOptions) (records.WriteStats, error) {
	ctx, span := s.startSpan(ctx, "WriteDish", len(recs))
	var stats records.WriteStats
	defer func() { s.finish(span, records.Dish, stats) }()

	err := s.withTx(ctx, func(q *queries) error {
		for _, r := range recs {
			if r.StoreName == "" || r.BusinessDate == "" || r.DishName == "" {
				stats.Skipped++
				continue
			}
			if r.OrgCode != "" {
				if err := q.UpsertStore(ctx, r.OrgCode, r.StoreName, s.clock.Now()); err != nil {
					s.tel.ReportBroken(report_write_record, "mt_stores", r.OrgCode, err)
					stats.Failed++
					continue
				}
			}
			mergeOne(
				ctx, s, q, dishTable,
				dishKeyArgs(r.Key()), r, dishValueArgs(r), scanDish,
				opts, &stats,
			)
		}
		return nil
	})
	if err != nil {
		s.tel.ReportBroken(report_write, records.Dish, err)
		return stats, err
	}
	return stats, nil
}
