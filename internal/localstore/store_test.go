package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/rowparse"
	"mtreport-backend/internal/telemetry"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var testNow = time.Date(2025, 2, 1, 9, 30, 0, 0, chrono.Shanghai())

func setup(t testing.TB) (*Store, context.Context) {
	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })

	store := NewStore(sqlite, chrono.FixedTime{At: testNow}, telemetry.NewRecorderAPI())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	require.NoError(t, store.Migrate(ctx))
	return store, ctx
}

func equity(quantity int64, total float64) records.EquityPackageSale {
	return records.EquityPackageSale{
		OrgCode:      "MD00007",
		StoreName:    "一号店",
		Date:         "2025-01-31",
		PackageName:  "双人套餐",
		UnitPrice:    20,
		QuantitySold: quantity,
		TotalSales:   total,
	}
}

func TestEquityMonotonicMerge(t *testing.T) {
	store, ctx := setup(t)

	stats, err := store.WriteEquity(ctx, []records.EquityPackageSale{equity(5, 100)}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Inserted: 1}, stats)

	stats, err = store.WriteEquity(ctx, []records.EquityPackageSale{equity(3, 50)}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Skipped: 1}, stats)

	got, err := store.FetchEquity(ctx, []records.EquityKey{equity(0, 0).Key()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(5), got[0].QuantitySold)
	require.Equal(t, float64(100), got[0].TotalSales)

	stats, err = store.WriteEquity(ctx, []records.EquityPackageSale{equity(7, 80)}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Updated: 1}, stats)

	got, err = store.FetchEquity(ctx, []records.EquityKey{equity(0, 0).Key()})
	require.NoError(t, err)
	require.Equal(t, int64(7), got[0].QuantitySold)
	require.Equal(t, float64(80), got[0].TotalSales)
	require.Equal(t, "一号店", got[0].StoreName)
	require.Equal(t, testNow.Unix(), got[0].UpdatedAt.Unix())

	stats, err = store.WriteEquity(ctx, []records.EquityPackageSale{equity(1, 1)}, records.WriteOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Updated: 1}, stats)
}

func TestEquityIdempotentAndInBatchOrdering(t *testing.T) {
	store, ctx := setup(t)

	stats, err := store.WriteEquity(ctx, []records.EquityPackageSale{
		equity(5, 100),
		equity(5, 100),
		equity(4, 120),
		equity(1, 1),
	}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Inserted: 1, Updated: 1, Skipped: 2}, stats)

	got, err := store.FetchEquity(ctx, []records.EquityKey{equity(0, 0).Key()})
	require.NoError(t, err)
	require.Equal(t, int64(4), got[0].QuantitySold)
	require.Equal(t, float64(120), got[0].TotalSales)
}

func TestStoreNameLastWriteWins(t *testing.T) {
	store, ctx := setup(t)

	first := equity(1, 10)
	renamed := equity(1, 10)
	renamed.PackageName = "单人套餐"
	renamed.StoreName = "一号店(新)"

	_, err := store.WriteEquity(ctx, []records.EquityPackageSale{first, renamed}, records.WriteOptions{})
	require.NoError(t, err)

	stores, err := store.Stores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	require.Equal(t, "MD00007", stores[0].OrgCode)
	require.Equal(t, "一号店(新)", stores[0].Name)
}

func TestSummaryRoundTrip(t *testing.T) {
	store, ctx := setup(t)

	composition := rowparse.NewComposition()
	composition.Set("渠道营业构成-堂食", 300.0)
	composition.Set("备注", "新店")

	summary := records.BusinessSummary{
		City:             "上海",
		StoreName:        "一号店",
		BusinessDate:     "2025-01-31",
		Revenue:          1200.5,
		OrderCount:       40,
		DinerCount:       88,
		TableOpeningRate: "85.5%",
		Composition:      composition,
	}

	stats, err := store.WriteSummary(ctx, []records.BusinessSummary{
		summary,
		{StoreName: "", BusinessDate: "2025-01-31"},
		{StoreName: "二号店", BusinessDate: ""},
	}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Inserted: 1, Skipped: 2}, stats)

	lower := summary
	lower.Revenue = 1000
	lower.DinerCount = 999
	stats, err = store.WriteSummary(ctx, []records.BusinessSummary{lower}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Skipped: 1}, stats)

	keys, err := store.SummaryKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []records.SummaryKey{{StoreName: "一号店", BusinessDate: "2025-01-31"}}, keys)

	got, err := store.FetchSummary(ctx, keys)
	require.NoError(t, err)
	require.Len(t, got, 1)

	expected := summary
	expected.UpdatedAt = time.Unix(testNow.Unix(), 0)
	if diff := cmp.Diff(expected, got[0], cmp.Comparer(func(a, b *rowparse.Composition) bool {
		return a.String() == b.String()
	})); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestDishMerge(t *testing.T) {
	store, ctx := setup(t)

	dish := records.DishSale{
		StoreName:     "一号店",
		OrgCode:       "MD00007",
		BusinessDate:  "2025-01-31",
		DishName:      "乳扇酒酿冰露",
		SalesQuantity: 10,
		SalesAmount:   200,
		ReturnRate:    0.5,
	}
	stats, err := store.WriteDish(ctx, []records.DishSale{dish}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Inserted)

	rateOnly := dish
	rateOnly.ReturnRate = 0.9
	stats, err = store.WriteDish(ctx, []records.DishSale{rateOnly}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)

	more := dish
	more.SalesAmount = 210
	more.ReturnRate = 0.7
	stats, err = store.WriteDish(ctx, []records.DishSale{more}, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)

	got, err := store.FetchDish(ctx, []records.DishKey{dish.Key(), {StoreName: "missing"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 0.7, got[0].ReturnRate)

	stores, err := store.Stores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
}

func TestRandomBatchesAreIdempotent(t *testing.T) {
	store, ctx := setup(t)
	faker := gofakeit.New(42)

	var batch []records.EquityPackageSale
	for i := 0; i < 50; i++ {
		batch = append(batch, records.EquityPackageSale{
			OrgCode:      fmt.Sprintf("MD%05d", faker.Number(1, 5)),
			StoreName:    faker.Company(),
			Date:         faker.DateRange(testNow.AddDate(0, -1, 0), testNow).Format(chrono.DateLayout),
			PackageName:  fmt.Sprintf("%s-%d", faker.Word(), i),
			UnitPrice:    faker.Float64Range(1, 100),
			QuantitySold: int64(faker.Number(0, 500)),
			TotalSales:   faker.Float64Range(0, 10000),
		})
	}

	stats, err := store.WriteEquity(ctx, batch, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, len(batch), stats.Inserted)

	stats, err = store.WriteEquity(ctx, batch, records.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, records.WriteStats{Skipped: len(batch)}, stats)

	keys, err := store.EquityKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, len(batch))

	fetched, err := store.FetchEquity(ctx, keys)
	require.NoError(t, err)
	for i := range fetched {
		fetched[i].StoreName = ""
		fetched[i].UpdatedAt = time.Time{}
	}
	for i := range batch {
		batch[i].StoreName = ""
	}
	less := func(a, b records.EquityPackageSale) bool { return a.PackageName < b.PackageName }
	if diff := cmp.Diff(batch, fetched, cmpopts.SortSlices(less)); diff != "" {
		t.Fatalf("fetched records differ (-want +got):\n%s", diff)
	}
}

func TestQueryEquity(t *testing.T) {
	store, ctx := setup(t)

	a := equity(1, 10)
	b := equity(2, 20)
	b.Date = "2025-02-05"
	c := equity(3, 30)
	c.OrgCode = "MD00008"
	_, err := store.WriteEquity(ctx, []records.EquityPackageSale{a, b, c}, records.WriteOptions{})
	require.NoError(t, err)

	got, err := store.QueryEquity(ctx, EquityFilter{Start: "2025-01-01", End: "2025-01-31"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = store.QueryEquity(ctx, EquityFilter{OrgCode: "MD00007", Start: "2025-01-01", End: "2025-12-31"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2025-02-05", got[1].Date)
}

func TestCrawlLog(t *testing.T) {
	store, ctx := setup(t)

	ok, err := store.CrawlSucceeded(ctx, records.GroupScope, records.Summary, "2025-01-31")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.LogCrawl(ctx, records.CrawlLogEntry{
		Scope: records.GroupScope, Report: records.Summary, Date: "2025-01-31",
		Success: false, Error: "table did not render",
	}))
	ok, err = store.CrawlSucceeded(ctx, records.GroupScope, records.Summary, "2025-01-31")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.LogCrawl(ctx, records.CrawlLogEntry{
		Scope: records.GroupScope, Report: records.Summary, Date: "2025-01-31",
		Success: true, RecordCount: 12,
	}))
	ok, err = store.CrawlSucceeded(ctx, records.GroupScope, records.Summary, "2025-01-31")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.CrawlSucceeded(ctx, records.GroupScope, records.Dish, "2025-01-31")
	require.NoError(t, err)
	require.False(t, ok)
}
