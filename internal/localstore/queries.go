package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mtreport-backend/internal/records"
	"mtreport-backend/internal/rowparse"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// table describes a fact table by its natural key and the columns a
// conditional write overwrites.
type table struct {
	name   string
	keys   []string
	values []string
	// extra is appended to the select list, it may refer to the table as t.
	extra string
}

func (t table) where() string {
	conds := make([]string, len(t.keys))
	for i, k := range t.keys {
		conds[i] = k + " = ?"
	}
	return strings.Join(conds, " and ")
}

func (t table) selectSQL() string {
	cols := append(append(append([]string{}, t.keys...), t.values...), "updated_at")
	if t.extra != "" {
		cols = append(cols, t.extra)
	}
	return fmt.Sprintf("select %s from %s t", strings.Join(cols, ", "), t.name)
}

func (t table) getSQL() string {
	return t.selectSQL() + " where " + t.where()
}

func (t table) keysSQL() string {
	return fmt.Sprintf("select %s from %s order by %s", strings.Join(t.keys, ", "), t.name, strings.Join(t.keys, ", "))
}

func (t table) insertSQL() string {
	cols := append(append(append([]string{}, t.keys...), t.values...), "created_at", "updated_at")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("insert into %s (%s) values (%s)", t.name, strings.Join(cols, ", "), marks)
}

func (t table) updateSQL() string {
	sets := make([]string, 0, len(t.values)+1)
	for _, v := range t.values {
		sets = append(sets, v+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	return fmt.Sprintf("update %s set %s where %s", t.name, strings.Join(sets, ", "), t.where())
}

var equityTable = table{
	name:   "mt_equity_package_sales",
	keys:   []string{"org_code", "date", "package_name"},
	values: []string{"unit_price", "quantity_sold", "total_sales", "refund_quantity", "refund_amount"},
	extra:  "coalesce((select s.store_name from mt_stores s where s.org_code = t.org_code), '')",
}

var summaryTable = table{
	name: "mt_business_summary",
	keys: []string{"store_name", "business_date"},
	values: []string{
		"city", "store_created_at", "operating_days", "revenue", "discount_amount",
		"business_income", "order_count", "diner_count", "table_count",
		"per_capita_before_discount", "per_capita_after_discount",
		"avg_order_before_discount", "avg_order_after_discount",
		"table_opening_rate", "table_turnover_rate", "occupancy_rate",
		"avg_dining_time", "composition_data",
	},
}

var dishTable = table{
	name: "mt_dish_sales",
	keys: []string{"store_name", "business_date", "dish_name"},
	values: []string{
		"org_code", "sales_quantity", "sales_quantity_pct", "price_before_discount",
		"price_after_discount", "sales_amount", "sales_amount_pct", "discount_amount",
		"dish_discount_pct", "dish_income", "dish_income_pct", "order_quantity",
		"order_amount", "return_quantity", "return_amount", "return_quantity_pct",
		"return_amount_pct", "return_rate", "return_order_count", "gift_quantity",
		"gift_amount", "gift_quantity_pct", "gift_amount_pct", "dish_order_count",
		"related_order_amount", "sales_per_thousand", "order_rate", "customer_click_rate",
	},
}

func equityKeyArgs(k records.EquityKey) []any {
	return []any{k.OrgCode, k.Date, k.PackageName}
}

func equityValueArgs(r records.EquityPackageSale) []any {
	return []any{r.UnitPrice, r.QuantitySold, r.TotalSales, r.RefundQuantity, r.RefundAmount}
}

func scanEquity(s scanner) (records.EquityPackageSale, error) {
	var r records.EquityPackageSale
	var updatedAt int64
	err := s.Scan(
		&r.OrgCode, &r.Date, &r.PackageName,
		&r.UnitPrice, &r.QuantitySold, &r.TotalSales, &r.RefundQuantity, &r.RefundAmount,
		&updatedAt, &r.StoreName,
	)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, err
}

func summaryKeyArgs(k records.SummaryKey) []any {
	return []any{k.StoreName, k.BusinessDate}
}

func summaryValueArgs(r records.BusinessSummary) []any {
	return []any{
		r.City, r.StoreCreatedAt, r.OperatingDays, r.Revenue, r.DiscountAmount,
		r.BusinessIncome, r.OrderCount, r.DinerCount, r.TableCount,
		r.PerCapitaBeforeDiscount, r.PerCapitaAfterDiscount,
		r.AvgOrderBeforeDiscount, r.AvgOrderAfterDiscount,
		r.TableOpeningRate, r.TableTurnoverRate, r.OccupancyRate,
		r.AvgDiningTime, r.CompositionJSON(),
	}
}

func scanSummary(s scanner) (records.BusinessSummary, error) {
	var r records.BusinessSummary
	var composition string
	var updatedAt int64
	err := s.Scan(
		&r.StoreName, &r.BusinessDate,
		&r.City, &r.StoreCreatedAt, &r.OperatingDays, &r.Revenue, &r.DiscountAmount,
		&r.BusinessIncome, &r.OrderCount, &r.DinerCount, &r.TableCount,
		&r.PerCapitaBeforeDiscount, &r.PerCapitaAfterDiscount,
		&r.AvgOrderBeforeDiscount, &r.AvgOrderAfterDiscount,
		&r.TableOpeningRate, &r.TableTurnoverRate, &r.OccupancyRate,
		&r.AvgDiningTime, &composition,
		&updatedAt,
	)
	if err != nil {
		return r, err
	}
	r.UpdatedAt = time.Unix(updatedAt, 0)
	r.Composition, err = rowparse.ParseComposition(composition)
	if err != nil {
		return r, fmt.Errorf("decode composition of %s/%s: %w", r.StoreName, r.BusinessDate, err)
	}
	return r, nil
}

func dishKeyArgs(k records.DishKey) []any {
	return []any{k.StoreName, k.BusinessDate, k.DishName}
}

func dishValueArgs(r records.DishSale) []any {
	return []any{
		r.OrgCode, r.SalesQuantity, r.SalesQuantityPct, r.PriceBeforeDiscount,
		r.PriceAfterDiscount, r.SalesAmount, r.SalesAmountPct, r.DiscountAmount,
		r.DishDiscountPct, r.DishIncome, r.DishIncomePct, r.OrderQuantity,
		r.OrderAmount, r.ReturnQuantity, r.ReturnAmount, r.ReturnQuantityPct,
		r.ReturnAmountPct, r.ReturnRate, r.ReturnOrderCount, r.GiftQuantity,
		r.GiftAmount, r.GiftQuantityPct, r.GiftAmountPct, r.DishOrderCount,
		r.RelatedOrderAmount, r.SalesPerThousand, r.OrderRate, r.CustomerClickRate,
	}
}

func scanDish(s scanner) (records.DishSale, error) {
	var r records.DishSale
	var updatedAt int64
	err := s.Scan(
		&r.StoreName, &r.BusinessDate, &r.DishName,
		&r.OrgCode, &r.SalesQuantity, &r.SalesQuantityPct, &r.PriceBeforeDiscount,
		&r.PriceAfterDiscount, &r.SalesAmount, &r.SalesAmountPct, &r.DiscountAmount,
		&r.DishDiscountPct, &r.DishIncome, &r.DishIncomePct, &r.OrderQuantity,
		&r.OrderAmount, &r.ReturnQuantity, &r.ReturnAmount, &r.ReturnQuantityPct,
		&r.ReturnAmountPct, &r.ReturnRate, &r.ReturnOrderCount, &r.GiftQuantity,
		&r.GiftAmount, &r.GiftQuantityPct, &r.GiftAmountPct, &r.DishOrderCount,
		&r.RelatedOrderAmount, &r.SalesPerThousand, &r.OrderRate, &r.CustomerClickRate,
		&updatedAt,
	)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, err
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

const upsertStore = `insert into mt_stores (org_code, store_name, created_at, updated_at)
values (?, ?, ?, ?)
on conflict (org_code) do update set
    store_name = case when excluded.store_name = '' then mt_stores.store_name else excluded.store_name end,
    updated_at = excluded.updated_at`

func (q *queries) UpsertStore(ctx context.Context, orgCode, name string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertStore, orgCode, name, now.Unix(), now.Unix())
	return err
}

const getStores = `select org_code, store_name, updated_at from mt_stores order by org_code`

func (q *queries) GetStores(ctx context.Context) ([]records.Store, error) {
	rows, err := q.db.QueryContext(ctx, getStores)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.Store
	for rows.Next() {
		var s records.Store
		var updatedAt int64
		if err := rows.Scan(&s.OrgCode, &s.Name, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// get runs a single row lookup, found is false when the key is absent.
func get[T any](ctx context.Context, q *queries, t table, args []any, scan func(scanner) (T, error)) (T, bool, error) {
	value, err := scan(q.db.QueryRowContext(ctx, t.getSQL(), args...))
	if err == sql.ErrNoRows {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	return value, true, nil
}

func (q *queries) insert(ctx context.Context, t table, keys, values []any, now time.Time) error {
	args := append(append(append([]any{}, keys...), values...), now.Unix(), now.Unix())
	_, err := q.db.ExecContext(ctx, t.insertSQL(), args...)
	return err
}

func (q *queries) update(ctx context.Context, t table, keys, values []any, now time.Time) error {
	args := append(append(append([]any{}, values...), now.Unix()), keys...)
	_, err := q.db.ExecContext(ctx, t.updateSQL(), args...)
	return err
}

func listKeys[K any](ctx context.Context, q *queries, t table, scan func(*sql.Rows) (K, error)) ([]K, error) {
	rows, err := q.db.QueryContext(ctx, t.keysSQL())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []K
	for rows.Next() {
		k, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (q *queries) EquityKeys(ctx context.Context) ([]records.EquityKey, error) {
	return listKeys(ctx, q, equityTable, func(rows *sql.Rows) (records.EquityKey, error) {
		var k records.EquityKey
		err := rows.Scan(&k.OrgCode, &k.Date, &k.PackageName)
		return k, err
	})
}

func (q *queries) SummaryKeys(ctx context.Context) ([]records.SummaryKey, error) {
	return listKeys(ctx, q, summaryTable, func(rows *sql.Rows) (records.SummaryKey, error) {
		var k records.SummaryKey
		err := rows.Scan(&k.StoreName, &k.BusinessDate)
		return k, err
	})
}

func (q *queries) DishKeys(ctx context.Context) ([]records.DishKey, error) {
	return listKeys(ctx, q, dishTable, func(rows *sql.Rows) (records.DishKey, error) {
		var k records.DishKey
		err := rows.Scan(&k.StoreName, &k.BusinessDate, &k.DishName)
		return k, err
	})
}

const equityInRange = ` where date >= ? and date <= ? and (? = '' or org_code = ?) order by date, org_code, package_name`

func (q *queries) EquityInRange(ctx context.Context, orgCode, start, end string) ([]records.EquityPackageSale, error) {
	rows, err := q.db.QueryContext(ctx, equityTable.selectSQL()+equityInRange, start, end, orgCode, orgCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.EquityPackageSale
	for rows.Next() {
		r, err := scanEquity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const getCrawlLog = `select success from mt_crawl_log where scope = ? and report = ? and date = ?`

func (q *queries) CrawlSucceeded(ctx context.Context, scope string, report records.EntityType, date string) (bool, error) {
	var success bool
	err := q.db.QueryRowContext(ctx, getCrawlLog, scope, string(report), date).Scan(&success)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return success, err
}

const upsertCrawlLog = `insert into mt_crawl_log (scope, report, date, success, record_count, error, crawled_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (scope, report, date) do update set
    success = excluded.success,
    record_count = excluded.record_count,
    error = excluded.error,
    crawled_at = excluded.crawled_at`

func (q *queries) LogCrawl(ctx context.Context, e records.CrawlLogEntry) error {
	_, err := q.db.ExecContext(
		ctx, upsertCrawlLog,
		e.Scope, string(e.Report), e.Date, e.Success, e.RecordCount, e.Error, e.CrawledAt.Unix(),
	)
	return err
}
