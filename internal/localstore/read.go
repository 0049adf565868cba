package localstore

import (
	"context"
	"fmt"

	"mtreport-backend/internal/records"
)

func (s *Store) Stores(ctx context.Context) ([]records.Store, error) {
	var out []records.Store
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		out, err = q.GetStores(ctx)
		return err
	})
	return out, err
}

func (s *Store) EquityKeys(ctx context.Context) ([]records.EquityKey, error) {
	var out []records.EquityKey
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		out, err = q.EquityKeys(ctx)
		return err
	})
	return out, err
}

func (s *Store) SummaryKeys(ctx context.Context) ([]records.SummaryKey, error) {
	var out []records.SummaryKey
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		out, err = q.SummaryKeys(ctx)
		return err
	})
	return out, err
}

func (s *Store) DishKeys(ctx context.Context) ([]records.DishKey, error) {
	var out []records.DishKey
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		out, err = q.DishKeys(ctx)
		return err
	})
	return out, err
}

// fetch looks up the full record of every key, keys that vanished in the
// meantime are left out.
func fetch[K any, T any](ctx context.Context, s *Store, t table, keys []K, keyArgs func(K) []any, scan func(scanner) (T, error)) ([]T, error) {
	out := make([]T, 0, len(keys))
	err := s.withTx(ctx, func(q *queries) error {
		for _, k := range keys {
			r, found, err := get(ctx, q, t, keyArgs(k), scan)
			if err != nil {
				return fmt.Errorf("fetch %s %v: %w", t.name, k, err)
			}
			if found {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FetchEquity(ctx context.Context, keys []records.EquityKey) ([]records.EquityPackageSale, error) {
	return fetch(ctx, s, equityTable, keys, equityKeyArgs, scanEquity)
}

func (s *Store) FetchSummary(ctx context.Context, keys []records.SummaryKey) ([]records.BusinessSummary, error) {
	return fetch(ctx, s, summaryTable, keys, summaryKeyArgs, scanSummary)
}

func (s *Store) FetchDish(ctx context.Context, keys []records.DishKey) ([]records.DishSale, error) {
	return fetch(ctx, s, dishTable, keys, dishKeyArgs, scanDish)
}

// EquityFilter narrows QueryEquity, an empty OrgCode matches every store.
type EquityFilter struct {
	OrgCode string
	Start   string
	End     string
}

func (s *Store) QueryEquity(ctx context.Context, filter EquityFilter) ([]records.EquityPackageSale, error) {
	var out []records.EquityPackageSale
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		out, err = q.EquityInRange(ctx, filter.OrgCode, filter.Start, filter.End)
		return err
	})
	return out, err
}

// CrawlSucceeded reports whether the report was already crawled successfully
// for the date.
func (s *Store) CrawlSucceeded(ctx context.Context, scope string, report records.EntityType, date string) (bool, error) {
	var ok bool
	err := s.withTx(ctx, func(q *queries) error {
		var err error
		ok, err = q.CrawlSucceeded(ctx, scope, report, date)
		return err
	})
	return ok, err
}

// LogCrawl records the latest outcome of crawling a report for a date.
func (s *Store) LogCrawl(ctx context.Context, entry records.CrawlLogEntry) error {
	if entry.CrawledAt.IsZero() {
		entry.CrawledAt = s.clock.Now()
	}
	return s.withTx(ctx, func(q *queries) error {
		return q.LogCrawl(ctx, entry)
	})
}
