package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideEquity(t *testing.T) {
	existing := EquityPackageSale{QuantitySold: 5, TotalSales: 100}

	require.Equal(t, Inserted, Decide(EquityPackageSale{QuantitySold: 1}, EquityPackageSale{}, false, false))
	require.Equal(t, Skipped, Decide(EquityPackageSale{QuantitySold: 3, TotalSales: 50}, existing, true, false))
	require.Equal(t, Updated, Decide(EquityPackageSale{QuantitySold: 7, TotalSales: 80}, existing, true, false))
	require.Equal(t, Updated, Decide(EquityPackageSale{QuantitySold: 5, TotalSales: 100.01}, existing, true, false))
	require.Equal(t, Skipped, Decide(existing, existing, true, false), "ties never update")
	require.Equal(t, Updated, Decide(EquityPackageSale{QuantitySold: 1}, existing, true, true), "force overwrites")
}

func TestDecideSummaryAndDish(t *testing.T) {
	summary := BusinessSummary{Revenue: 1000, OrderCount: 40}
	require.Equal(t, Updated, Decide(BusinessSummary{Revenue: 900, OrderCount: 41}, summary, true, false))
	require.Equal(t, Skipped, Decide(BusinessSummary{Revenue: 1000, OrderCount: 40, DinerCount: 99}, summary, true, false))

	dish := DishSale{SalesQuantity: 10, SalesAmount: 200}
	require.Equal(t, Updated, Decide(DishSale{SalesQuantity: 10, SalesAmount: 210}, dish, true, false))
	require.Equal(t, Skipped, Decide(DishSale{SalesQuantity: 9, SalesAmount: 200}, dish, true, false))
}

func TestWriteStats(t *testing.T) {
	var stats WriteStats
	stats.Count(Inserted)
	stats.Count(Skipped)
	stats.AddUnknown("Nonexistent")
	stats.AddUnknown("Nonexistent")

	other := WriteStats{Updated: 2, Failed: 3}
	other.AddUnknown("Ghost")
	stats.Add(other)

	require.Equal(t, WriteStats{
		Inserted:      1,
		Updated:       2,
		Skipped:       1,
		Failed:        3,
		UnknownStores: 3,
		Unknown:       []string{"Nonexistent", "Ghost"},
	}, stats)
	require.Equal(t, 3, stats.Written())
	require.Equal(t, 10, stats.Total())
}

func TestParseEntityType(t *testing.T) {
	for _, e := range EntityTypes {
		parsed, err := ParseEntityType(string(e))
		require.NoError(t, err)
		require.Equal(t, e, parsed)
	}
	_, err := ParseEntityType("members")
	require.Error(t, err)
}
