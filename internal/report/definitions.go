package report

import (
	"fmt"

	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/rowparse"
)

// Definition is how one report page is read.
type Definition struct {
	Kind   records.EntityType
	Schema rowparse.Schema
	Filter htmltable.RowFilter
	// PerDate reports are queried one business date at a time because
	// their rows carry no date.
	PerDate bool
}

func field(position int, name string, t rowparse.FieldType) rowparse.Field {
	return rowparse.Field{Position: position, Name: name, Type: t}
}

var equityDefinition = Definition{
	Kind: records.Equity,
	Schema: rowparse.Schema{
		Fields: []rowparse.Field{
			field(0, "org_code", rowparse.Text),
			field(1, "store_name", rowparse.Text),
			field(2, "date", rowparse.Date),
			field(3, "package_name", rowparse.Text),
			field(4, "unit_price", rowparse.Decimal),
			field(5, "quantity_sold", rowparse.Number),
			field(6, "total_sales", rowparse.Decimal),
			field(7, "refund_quantity", rowparse.Number),
			field(8, "refund_amount", rowparse.Decimal),
		},
		DateField:   "date",
		NameField:   "store_name",
		MinCells:    9,
		IndexColumn: true,
	},
	Filter: htmltable.RowFilter{
		MinCells:       9,
		SkipFirst:      []string{"序号"},
		SkipEmptyFirst: true,
	},
}

var summaryDefinition = Definition{
	Kind: records.Summary,
	Schema: rowparse.Schema{
		Fields: []rowparse.Field{
			field(1, "city", rowparse.Text),
			field(2, "store_name", rowparse.Text),
			field(3, "business_date", rowparse.Date),
			field(4, "store_created_at", rowparse.DateTime),
			field(5, "operating_days", rowparse.Number),
			field(6, "revenue", rowparse.Decimal),
			field(7, "discount_amount", rowparse.Decimal),
			field(8, "business_income", rowparse.Decimal),
			field(9, "order_count", rowparse.Number),
			field(10, "diner_count", rowparse.Number),
			field(11, "table_count", rowparse.Number),
			field(12, "per_capita_before_discount", rowparse.Decimal),
			field(13, "per_capita_after_discount", rowparse.Decimal),
			field(14, "avg_order_before_discount", rowparse.Decimal),
			field(15, "avg_order_after_discount", rowparse.Decimal),
			field(16, "table_opening_rate", rowparse.Percentage),
			field(17, "table_turnover_rate", rowparse.Decimal),
			field(18, "occupancy_rate", rowparse.Percentage),
			field(19, "avg_dining_time", rowparse.Number),
		},
		DateField:       "business_date",
		NameField:       "store_name",
		MinCells:        20,
		CompositionFrom: 20,
	},
	Filter: htmltable.RowFilter{MinCells: 20},
}

// dishMetrics are the dish report columns from position 4 on.
var dishMetrics = []struct {
	name string
	t    rowparse.FieldType
}{
	{"sales_quantity", rowparse.Number},
	{"sales_quantity_pct", rowparse.Decimal},
	{"price_before_discount", rowparse.Decimal},
	{"price_after_discount", rowparse.Decimal},
	{"sales_amount", rowparse.Decimal},
	{"sales_amount_pct", rowparse.Decimal},
	{"discount_amount", rowparse.Decimal},
	{"dish_discount_pct", rowparse.Decimal},
	{"dish_income", rowparse.Decimal},
	{"dish_income_pct", rowparse.Decimal},
	{"order_quantity", rowparse.Number},
	{"order_amount", rowparse.Decimal},
	{"return_quantity", rowparse.Number},
	{"return_amount", rowparse.Decimal},
	{"return_quantity_pct", rowparse.Decimal},
	{"return_amount_pct", rowparse.Decimal},
	{"return_rate", rowparse.Decimal},
	{"return_order_count", rowparse.Number},
	{"gift_quantity", rowparse.Number},
	{"gift_amount", rowparse.Decimal},
	{"gift_quantity_pct", rowparse.Decimal},
	{"gift_amount_pct", rowparse.Decimal},
	{"dish_order_count", rowparse.Number},
	{"related_order_amount", rowparse.Decimal},
	{"sales_per_thousand", rowparse.Decimal},
	{"order_rate", rowparse.Decimal},
	// older exports stop before this column
	{"customer_click_rate", rowparse.Decimal},
}

func dishFields() []rowparse.Field {
	fields := []rowparse.Field{
		field(1, "store_name", rowparse.Text),
		field(2, "org_code", rowparse.Text),
		field(3, "dish_name", rowparse.Text),
	}
	for i, m := range dishMetrics {
		fields = append(fields, field(4+i, m.name, m.t))
	}
	return fields
}

var dishDefinition = Definition{
	Kind: records.Dish,
	Schema: rowparse.Schema{
		Fields:    dishFields(),
		NameField: "store_name",
		MinCells:  30,
	},
	Filter:  htmltable.RowFilter{MinCells: 30},
	PerDate: true,
}

// Lookup returns the definition of a report kind.
func Lookup(kind records.EntityType) (Definition, error) {
	switch kind {
	case records.Equity:
		return equityDefinition, nil
	case records.Summary:
		return summaryDefinition, nil
	case records.Dish:
		return dishDefinition, nil
	}
	return Definition{}, fmt.Errorf("unknown report %q", kind)
}
