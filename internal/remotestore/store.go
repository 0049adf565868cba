// Package remotestore writes report records to the shared postgres store,
// where restaurants are identified by generated ids instead of org codes.
package remotestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/retry"
	"mtreport-backend/internal/telemetry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("mtreport.remotestore")

const (
	report_batch_retry = "store.batch-retry"
	report_batch       = "store.batch"
	report_register    = "store.register"
)

const DefaultBatchSize = 100

// Store is the remote record store. Batches are sent one at a time.
type Store struct {
	pool       *pgxpool.Pool
	identities *IdentityCache
	policy     retry.Policy
	batchSize  int
	tel        telemetry.API
	mutex      sync.Mutex
}

func NewStore(pool *pgxpool.Pool, aliases map[string]string, policy retry.Policy, batchSize int, tel telemetry.API) *Store {
	assert.NotNil(pool, "pool")
	assert.NotNil(tel, "telemetry")
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	s := &Store{
		pool:      pool,
		policy:    policy,
		batchSize: batchSize,
		tel:       telemetry.NewScopedAPI("remotestore", tel),
	}
	s.identities = NewIdentityCache(s.Restaurants, aliases, s.tel)
	return s
}

// Identities returns the identity cache owned by the store.
func (s *Store) Identities() *IdentityCache {
	return s.identities
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate remote store: %w", err)
	}
	return nil
}

func (s *Store) notify(id string) retry.Notify {
	return func(err error, attempt int, wait time.Duration) {
		s.tel.ReportWarning(report_batch_retry, id, attempt, wait.String(), err.Error())
	}
}

// Restaurants lists every registered restaurant.
func (s *Store) Restaurants(ctx context.Context) ([]Restaurant, error) {
	var out []Restaurant
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(
			ctx,
			`select id::text, restaurant_name, coalesce(meituan_org_code, '')
			from master_restaurant order by restaurant_name`,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Restaurant, error) {
			var id string
			var r Restaurant
			if err := row.Scan(&id, &r.Name, &r.OrgCode); err != nil {
				return r, err
			}
			parsed, err := uuid.Parse(id)
			if err != nil {
				return r, retry.Permanent(fmt.Errorf("restaurant id %q: %w", id, err))
			}
			r.ID = parsed
			return r, nil
		})
		return err
	}, s.notify("master_restaurant"))
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return out, nil
}

// RegisterStore adds a restaurant for an org code, renaming it if the code
// is already registered, and drops the identity cache.
func (s *Store) RegisterStore(ctx context.Context, code, name string) (uuid.UUID, error) {
	if code == "" || name == "" {
		return uuid.Nil, fmt.Errorf("register store: code and name are required")
	}

	var id string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(
			ctx,
			`insert into master_restaurant (id, restaurant_name, meituan_org_code)
			values ($1::uuid, $2, $3)
			on conflict (meituan_org_code) do update set restaurant_name = excluded.restaurant_name
			returning id::text`,
			uuid.New().String(), name, code,
		).Scan(&id)
	}, s.notify("master_restaurant"))
	if err != nil {
		s.tel.ReportBroken(report_register, code, name, err)
		return uuid.Nil, fmt.Errorf("register store %s: %w", code, err)
	}
	s.identities.Invalidate()
	return uuid.Parse(id)
}

// pending is a record whose restaurant has been resolved, ready to be sent.
type pending struct {
	key  string
	args []any
}

// resolver returns the restaurant id of a record, or the identity that
// failed to resolve.
type resolver[T any] func(ctx context.Context, r T) (id uuid.UUID, identity string, ok bool, err error)

// write resolves every record and sends the resolved ones in batches. A
// record whose restaurant is unknown is counted and dropped, a batch that
// still fails after its retries is counted as failed, neither stops the
// remaining records.
func write[T any](
	ctx context.Context,
	s *Store,
	entity records.EntityType,
	t table,
	recs []T,
	valid func(T) bool,
	resolve resolver[T],
	args func(uuid.UUID, T) []any,
	opts records.WriteOptions,
) (records.WriteStats, error) {
	ctx, span := tracer.Start(ctx, "Write"+string(entity))
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(recs)))

	var stats records.WriteStats
	queue := make([]pending, 0, len(recs))
	for _, r := range recs {
		if !valid(r) {
			stats.Skipped++
			continue
		}
		id, identity, ok, err := resolve(ctx, r)
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.AddUnknown(identity)
			continue
		}
		queue = append(queue, pending{
			key:  identity,
			args: append(args(id, r), opts.Force),
		})
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := t.upsertSQL()
	for start := 0; start < len(queue); start += s.batchSize {
		chunk := queue[start:min(start+s.batchSize, len(queue))]
		batchStats, err := s.sendBatch(ctx, t, query, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			s.tel.ReportBroken(report_batch, t.name, start, len(chunk), err)
			stats.Failed += len(chunk)
			continue
		}
		stats.Add(batchStats)
	}

	span.SetAttributes(
		attribute.Int("inserted", stats.Inserted),
		attribute.Int("updated", stats.Updated),
		attribute.Int("skipped", stats.Skipped),
		attribute.Int("failed", stats.Failed),
		attribute.Int("unknown_stores", stats.UnknownStores),
	)
	s.tel.ReportDebug(
		"write finished",
		string(entity), stats.Inserted, stats.Updated, stats.Skipped, stats.Failed, stats.UnknownStores,
	)
	return stats, nil
}

// sendBatch upserts one chunk in a single transaction, the whole chunk is
// retried together.
func (s *Store) sendBatch(ctx context.Context, t table, query string, chunk []pending) (records.WriteStats, error) {
	var stats records.WriteStats
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		stats = records.WriteStats{}
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, p := range chunk {
				batch.Queue(query, p.args...)
			}
			results := tx.SendBatch(ctx, batch)
			for _, p := range chunk {
				var inserted bool
				err := results.QueryRow().Scan(&inserted)
				switch {
				case errors.Is(err, pgx.ErrNoRows):
					stats.Count(records.Skipped)
				case err != nil:
					results.Close()
					return fmt.Errorf("%s %s: %w", t.name, p.key, err)
				case inserted:
					stats.Count(records.Inserted)
				default:
					stats.Count(records.Updated)
				}
			}
			return results.Close()
		})
	}, s.notify(t.name))
	return stats, err
}

func (s *Store) resolveEquity(ctx context.Context, r records.EquityPackageSale) (uuid.UUID, string, bool, error) {
	id, ok, err := s.identities.ResolveCode(ctx, r.OrgCode)
	return id, r.OrgCode, ok, err
}

func (s *Store) resolveSummary(ctx context.Context, r records.BusinessSummary) (uuid.UUID, string, bool, error) {
	id, ok, err := s.identities.ResolveName(ctx, r.StoreName)
	return id, r.StoreName, ok, err
}

// resolveDish prefers the org code and falls back to the store name for
// rows exported without one.
func (s *Store) resolveDish(ctx context.Context, r records.DishSale) (uuid.UUID, string, bool, error) {
	if r.OrgCode != "" {
		id, ok, err := s.identities.ResolveCode(ctx, r.OrgCode)
		return id, r.OrgCode, ok, err
	}
	id, ok, err := s.identities.ResolveName(ctx, r.StoreName)
	return id, r.StoreName, ok, err
}

func (s *Store) WriteEquity(ctx context.Context, recs []records.EquityPackageSale, opts records.WriteOptions) (records.WriteStats, error) {
	return write(
		ctx, s, records.Equity, equityTable, recs,
		func(r records.EquityPackageSale) bool {
			return r.OrgCode != "" && r.Date != "" && r.PackageName != ""
		},
		s.resolveEquity,
		func(id uuid.UUID, r records.EquityPackageSale) []any {
			return []any{
				id.String(), r.Date, r.PackageName,
				r.UnitPrice, r.QuantitySold, r.TotalSales, r.RefundQuantity, r.RefundAmount,
			}
		},
		opts,
	)
}

func (s *Store) WriteSummary(ctx context.Context, recs []records.BusinessSummary, opts records.WriteOptions) (records.WriteStats, error) {
	return write(
		ctx, s, records.Summary, summaryTable, recs,
		func(r records.BusinessSummary) bool {
			return r.StoreName != "" && r.BusinessDate != ""
		},
		s.resolveSummary,
		func(id uuid.UUID, r records.BusinessSummary) []any {
			return []any{
				id.String(), r.BusinessDate,
				r.City, r.StoreCreatedAt, r.OperatingDays, r.Revenue, r.DiscountAmount,
				r.BusinessIncome, r.OrderCount, r.DinerCount, r.TableCount,
				r.PerCapitaBeforeDiscount, r.PerCapitaAfterDiscount,
				r.AvgOrderBeforeDiscount, r.AvgOrderAfterDiscount,
				r.TableOpeningRate, r.TableTurnoverRate, r.OccupancyRate,
				r.AvgDiningTime, r.CompositionJSON(),
			}
		},
		opts,
	)
}

func (s *Store) WriteDish(ctx context.Context, recs []records.DishSale, opts records.WriteOptions) (records.WriteStats, error) {
	return write(
		ctx, s, records.Dish, dishTable, recs,
		func(r records.DishSale) bool {
			return r.StoreName != "" && r.BusinessDate != "" && r.DishName != ""
		},
		s.resolveDish,
		func(id uuid.UUID, r records.DishSale) []any {
			return []any{
				id.String(), r.BusinessDate, r.DishName,
				r.OrgCode, r.SalesQuantity, r.SalesQuantityPct, r.PriceBeforeDiscount,
				r.PriceAfterDiscount, r.SalesAmount, r.SalesAmountPct, r.DiscountAmount,
				r.DishDiscountPct, r.DishIncome, r.DishIncomePct, r.OrderQuantity,
				r.OrderAmount, r.ReturnQuantity, r.ReturnAmount, r.ReturnQuantityPct,
				r.ReturnAmountPct, r.ReturnRate, r.ReturnOrderCount, r.GiftQuantity,
				r.GiftAmount, r.GiftQuantityPct, r.GiftAmountPct, r.DishOrderCount,
				r.RelatedOrderAmount, r.SalesPerThousand, r.OrderRate, r.CustomerClickRate,
			}
		},
		opts,
	)
}
