package remotestore

import (
	"context"
	"fmt"

	"mtreport-backend/internal/records"
	"mtreport-backend/internal/rowparse"

	"github.com/jackc/pgx/v5"
)

// collect runs query under the retry policy and scans every row with scan,
// rows for which scan reports false are left out.
func collect[T any](ctx context.Context, s *Store, query string, scan func(pgx.CollectableRow) (T, bool, error)) ([]T, error) {
	// names are translated back through the alias table
	if err := s.identities.Load(ctx); err != nil {
		return nil, err
	}

	var out []T
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, keep, err := scan(rows)
			if err != nil {
				return err
			}
			if keep {
				out = append(out, v)
			}
		}
		return rows.Err()
	}, s.notify("read"))
	return out, err
}

// EquityKeys lists the stored equity keys by org code, rows of restaurants
// without a code cannot be represented locally and are left out.
func (s *Store) EquityKeys(ctx context.Context) ([]records.EquityKey, error) {
	keys, err := collect(ctx, s, equityTable.keysSQL(), func(row pgx.CollectableRow) (records.EquityKey, bool, error) {
		var name string
		var k records.EquityKey
		err := row.Scan(&name, &k.OrgCode, &k.Date, &k.PackageName)
		return k, k.OrgCode != "", err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s keys: %w", equityTable.name, err)
	}
	return keys, nil
}

func (s *Store) SummaryKeys(ctx context.Context) ([]records.SummaryKey, error) {
	keys, err := collect(ctx, s, summaryTable.keysSQL(), func(row pgx.CollectableRow) (records.SummaryKey, bool, error) {
		var name, code string
		var k records.SummaryKey
		err := row.Scan(&name, &code, &k.BusinessDate)
		k.StoreName = s.identities.LocalName(name)
		return k, true, err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s keys: %w", summaryTable.name, err)
	}
	return keys, nil
}

func (s *Store) DishKeys(ctx context.Context) ([]records.DishKey, error) {
	keys, err := collect(ctx, s, dishTable.keysSQL(), func(row pgx.CollectableRow) (records.DishKey, bool, error) {
		var name, code string
		var k records.DishKey
		err := row.Scan(&name, &code, &k.BusinessDate, &k.DishName)
		k.StoreName = s.identities.LocalName(name)
		return k, true, err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s keys: %w", dishTable.name, err)
	}
	return keys, nil
}

func keySet[K comparable](keys []K) map[K]struct{} {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// FetchEquity returns the stored records of the given keys.
func (s *Store) FetchEquity(ctx context.Context, keys []records.EquityKey) ([]records.EquityPackageSale, error) {
	want := keySet(keys)
	out, err := collect(ctx, s, equityTable.selectSQL(), func(row pgx.CollectableRow) (records.EquityPackageSale, bool, error) {
		var name string
		var r records.EquityPackageSale
		err := row.Scan(
			&name, &r.OrgCode, &r.Date, &r.PackageName,
			&r.UnitPrice, &r.QuantitySold, &r.TotalSales, &r.RefundQuantity, &r.RefundAmount,
			&r.UpdatedAt,
		)
		r.StoreName = s.identities.LocalName(name)
		_, ok := want[r.Key()]
		return r, ok, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", equityTable.name, err)
	}
	return out, nil
}

func (s *Store) FetchSummary(ctx context.Context, keys []records.SummaryKey) ([]records.BusinessSummary, error) {
	want := keySet(keys)
	out, err := collect(ctx, s, summaryTable.selectSQL(), func(row pgx.CollectableRow) (records.BusinessSummary, bool, error) {
		var name, code, composition string
		var r records.BusinessSummary
		err := row.Scan(
			&name, &code, &r.BusinessDate,
			&r.City, &r.StoreCreatedAt, &r.OperatingDays, &r.Revenue, &r.DiscountAmount,
			&r.BusinessIncome, &r.OrderCount, &r.DinerCount, &r.TableCount,
			&r.PerCapitaBeforeDiscount, &r.PerCapitaAfterDiscount,
			&r.AvgOrderBeforeDiscount, &r.AvgOrderAfterDiscount,
			&r.TableOpeningRate, &r.TableTurnoverRate, &r.OccupancyRate,
			&r.AvgDiningTime, &composition, &r.UpdatedAt,
		)
		if err != nil {
			return r, false, err
		}
		r.StoreName = s.identities.LocalName(name)
		if _, ok := want[r.Key()]; !ok {
			return r, false, nil
		}
		r.Composition, err = rowparse.ParseComposition(composition)
		return r, true, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", summaryTable.name, err)
	}
	return out, nil
}

func (s *Store) FetchDish(ctx context.Context, keys []records.DishKey) ([]records.DishSale, error) {
	want := keySet(keys)
	out, err := collect(ctx, s, dishTable.selectSQL(), func(row pgx.CollectableRow) (records.DishSale, bool, error) {
		var name, code string
		var r records.DishSale
		err := row.Scan(
			&name, &code, &r.BusinessDate, &r.DishName,
			&r.OrgCode, &r.SalesQuantity, &r.SalesQuantityPct, &r.PriceBeforeDiscount,
			&r.PriceAfterDiscount, &r.SalesAmount, &r.SalesAmountPct, &r.DiscountAmount,
			&r.DishDiscountPct, &r.DishIncome, &r.DishIncomePct, &r.OrderQuantity,
			&r.OrderAmount, &r.ReturnQuantity, &r.ReturnAmount, &r.ReturnQuantityPct,
			&r.ReturnAmountPct, &r.ReturnRate, &r.ReturnOrderCount, &r.GiftQuantity,
			&r.GiftAmount, &r.GiftQuantityPct, &r.GiftAmountPct, &r.DishOrderCount,
			&r.RelatedOrderAmount, &r.SalesPerThousand, &r.OrderRate, &r.CustomerClickRate,
			&r.UpdatedAt,
		)
		r.StoreName = s.identities.LocalName(name)
		if r.OrgCode == "" {
			r.OrgCode = code
		}
		_, ok := want[r.Key()]
		return r, ok, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", dishTable.name, err)
	}
	return out, nil
}

