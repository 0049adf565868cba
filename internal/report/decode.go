package report

import (
	"context"
	"fmt"

	"mtreport-backend/internal/records"
	"mtreport-backend/internal/rowparse"
)

// Batch holds the records decoded from one or more report pages, only the
// slice matching Kind is used.
type Batch struct {
	Kind    records.EntityType
	Equity  []records.EquityPackageSale
	Summary []records.BusinessSummary
	Dish    []records.DishSale
	// Rejected counts rows that were not data rows.
	Rejected int
}

func (b *Batch) Len() int {
	return len(b.Equity) + len(b.Summary) + len(b.Dish)
}

// CountDate is the number of records of one business date.
func (b *Batch) CountDate(date string) int {
	n := 0
	for _, r := range b.Equity {
		if r.Date == date {
			n++
		}
	}
	for _, r := range b.Summary {
		if r.BusinessDate == date {
			n++
		}
	}
	for _, r := range b.Dish {
		if r.BusinessDate == date {
			n++
		}
	}
	return n
}

// Writer is a record store with the conditional merge write path.
type Writer interface {
	WriteEquity(ctx context.Context, recs []records.EquityPackageSale, opts records.WriteOptions) (records.WriteStats, error)
	WriteSummary(ctx context.Context, recs []records.BusinessSummary, opts records.WriteOptions) (records.WriteStats, error)
	WriteDish(ctx context.Context, recs []records.DishSale, opts records.WriteOptions) (records.WriteStats, error)
}

// WriteTo merges the batch into w.
func (b *Batch) WriteTo(ctx context.Context, w Writer, opts records.WriteOptions) (records.WriteStats, error) {
	switch b.Kind {
	case records.Equity:
		return w.WriteEquity(ctx, b.Equity, opts)
	case records.Summary:
		return w.WriteSummary(ctx, b.Summary, opts)
	case records.Dish:
		return w.WriteDish(ctx, b.Dish, opts)
	}
	return records.WriteStats{}, fmt.Errorf("unknown report %q", b.Kind)
}

func equityFromRow(row rowparse.Row) records.EquityPackageSale {
	return records.EquityPackageSale{
		OrgCode:        row.Text("org_code"),
		StoreName:      row.Text("store_name"),
		Date:           row.Text("date"),
		PackageName:    row.Text("package_name"),
		UnitPrice:      row.Float("unit_price"),
		QuantitySold:   row.Int("quantity_sold"),
		TotalSales:     row.Float("total_sales"),
		RefundQuantity: row.Int("refund_quantity"),
		RefundAmount:   row.Float("refund_amount"),
	}
}

func summaryFromRow(row rowparse.Row) records.BusinessSummary {
	return records.BusinessSummary{
		City:                    row.Text("city"),
		StoreName:               row.Text("store_name"),
		BusinessDate:            row.Text("business_date"),
		StoreCreatedAt:          row.Text("store_created_at"),
		OperatingDays:           row.Int("operating_days"),
		Revenue:                 row.Float("revenue"),
		DiscountAmount:          row.Float("discount_amount"),
		BusinessIncome:          row.Float("business_income"),
		OrderCount:              row.Int("order_count"),
		DinerCount:              row.Int("diner_count"),
		TableCount:              row.Int("table_count"),
		PerCapitaBeforeDiscount: row.Float("per_capita_before_discount"),
		PerCapitaAfterDiscount:  row.Float("per_capita_after_discount"),
		AvgOrderBeforeDiscount:  row.Float("avg_order_before_discount"),
		AvgOrderAfterDiscount:   row.Float("avg_order_after_discount"),
		TableOpeningRate:        row.Text("table_opening_rate"),
		TableTurnoverRate:       row.Float("table_turnover_rate"),
		OccupancyRate:           row.Text("occupancy_rate"),
		AvgDiningTime:           row.Int("avg_dining_time"),
		Composition:             row.Composition,
	}
}

func dishFromRow(row rowparse.Row, date string) records.DishSale {
	return records.DishSale{
		StoreName:           row.Text("store_name"),
		OrgCode:             row.Text("org_code"),
		BusinessDate:        date,
		DishName:            row.Text("dish_name"),
		SalesQuantity:       row.Int("sales_quantity"),
		SalesQuantityPct:    row.Float("sales_quantity_pct"),
		PriceBeforeDiscount: row.Float("price_before_discount"),
		PriceAfterDiscount:  row.Float("price_after_discount"),
		SalesAmount:         row.Float("sales_amount"),
		SalesAmountPct:      row.Float("sales_amount_pct"),
		DiscountAmount:      row.Float("discount_amount"),
		DishDiscountPct:     row.Float("dish_discount_pct"),
		DishIncome:          row.Float("dish_income"),
		DishIncomePct:       row.Float("dish_income_pct"),
		OrderQuantity:       row.Int("order_quantity"),
		OrderAmount:         row.Float("order_amount"),
		ReturnQuantity:      row.Int("return_quantity"),
		ReturnAmount:        row.Float("return_amount"),
		ReturnQuantityPct:   row.Float("return_quantity_pct"),
		ReturnAmountPct:     row.Float("return_amount_pct"),
		ReturnRate:          row.Float("return_rate"),
		ReturnOrderCount:    row.Int("return_order_count"),
		GiftQuantity:        row.Int("gift_quantity"),
		GiftAmount:          row.Float("gift_amount"),
		GiftQuantityPct:     row.Float("gift_quantity_pct"),
		GiftAmountPct:       row.Float("gift_amount_pct"),
		DishOrderCount:      row.Int("dish_order_count"),
		RelatedOrderAmount:  row.Float("related_order_amount"),
		SalesPerThousand:    row.Float("sales_per_thousand"),
		OrderRate:           row.Float("order_rate"),
		CustomerClickRate:   row.Float("customer_click_rate"),
	}
}

// Decode parses raw rows into the batch. date is the business date of
// reports whose rows carry none.
func (d Definition) Decode(batch *Batch, rows [][]string, columns []string, date string) {
	batch.Kind = d.Kind
	for _, cells := range rows {
		row, ok := d.Schema.Parse(cells, columns)
		if !ok {
			batch.Rejected++
			continue
		}
		switch d.Kind {
		case records.Equity:
			batch.Equity = append(batch.Equity, equityFromRow(row))
		case records.Summary:
			batch.Summary = append(batch.Summary, summaryFromRow(row))
		case records.Dish:
			batch.Dish = append(batch.Dish, dishFromRow(row, date))
		}
	}
}
