package remotestore

import (
	"fmt"
	"strings"
)

// table describes a remote fact table: the natural key columns that follow
// restaurant_id, the overwritten value columns and the two primacy columns
// whose growth allows an overwrite.
type table struct {
	name    string
	keys    []string
	values  []string
	primacy [2]string
}

var casts = map[string]string{
	"date":             "date",
	"business_date":    "date",
	"composition_data": "jsonb",
}

func (t table) columns() []string {
	return append(append([]string{"restaurant_id"}, t.keys...), t.values...)
}

// upsertSQL inserts a record or overwrites the stored one when the last
// parameter is true or a primacy column grew. It returns one row telling
// whether the row was inserted, and no row when the record was skipped.
func (t table) upsertSQL() string {
	cols := t.columns()
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
		if c == "restaurant_id" {
			params[i] += "::uuid"
		} else if cast, ok := casts[c]; ok {
			params[i] += "::" + cast
		}
	}

	sets := make([]string, 0, len(t.values)+1)
	for _, v := range t.values {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", v, v))
	}
	sets = append(sets, "updated_at = now()")

	conflict := append([]string{"restaurant_id"}, t.keys...)
	return fmt.Sprintf(
		`insert into %s as t (%s) values (%s)
on conflict (%s) do update set %s
where $%d::boolean or excluded.%s > t.%s or excluded.%s > t.%s
returning (xmax = 0) as inserted`,
		t.name, strings.Join(cols, ", "), strings.Join(params, ", "),
		strings.Join(conflict, ", "), strings.Join(sets, ", "),
		len(cols)+1, t.primacy[0], t.primacy[0], t.primacy[1], t.primacy[1],
	)
}

func selectExpr(column string) string {
	switch casts[column] {
	case "date":
		return fmt.Sprintf("to_char(t.%s, 'YYYY-MM-DD')", column)
	case "jsonb":
		return fmt.Sprintf("t.%s::text", column)
	}
	return "t." + column
}

// selectSQL reads every row joined with its restaurant, the first three
// columns are the restaurant name, org code and the row's own key columns.
func (t table) selectSQL() string {
	cols := []string{"r.restaurant_name", "coalesce(r.meituan_org_code, '')"}
	for _, c := range append(append([]string{}, t.keys...), t.values...) {
		cols = append(cols, selectExpr(c))
	}
	cols = append(cols, "t.updated_at")
	return fmt.Sprintf(
		"select %s from %s t join master_restaurant r on r.id = t.restaurant_id",
		strings.Join(cols, ", "), t.name,
	)
}

// keysSQL lists the natural keys with the restaurant identity they belong to.
func (t table) keysSQL() string {
	cols := []string{"r.restaurant_name", "coalesce(r.meituan_org_code, '')"}
	for _, c := range t.keys {
		cols = append(cols, selectExpr(c))
	}
	return fmt.Sprintf(
		"select %s from %s t join master_restaurant r on r.id = t.restaurant_id",
		strings.Join(cols, ", "), t.name,
	)
}

var equityTable = table{
	name:    "mt_equity_package_sales",
	keys:    []string{"date", "package_name"},
	values:  []string{"unit_price", "quantity_sold", "total_sales", "refund_quantity", "refund_amount"},
	primacy: [2]string{"quantity_sold", "total_sales"},
}

var summaryTable = table{
	name: "mt_business_summary",
	keys: []string{"business_date"},
	values: []string{
		"city", "store_created_at", "operating_days", "revenue", "discount_amount",
		"business_income", "order_count", "diner_count", "table_count",
		"per_capita_before_discount", "per_capita_after_discount",
		"avg_order_before_discount", "avg_order_after_discount",
		"table_opening_rate", "table_turnover_rate", "occupancy_rate",
		"avg_dining_time", "composition_data",
	},
	primacy: [2]string{"revenue", "order_count"},
}

var dishTable = table{
	name: "mt_dish_sales",
	keys: []string{"business_date", "dish_name"},
	values: []string{
		"org_code", "sales_quantity", "sales_quantity_pct", "price_before_discount",
		"price_after_discount", "sales_amount", "sales_amount_pct", "discount_amount",
		"dish_discount_pct", "dish_income", "dish_income_pct", "order_quantity",
		"order_amount", "return_quantity", "return_amount", "return_quantity_pct",
		"return_amount_pct", "return_rate", "return_order_count", "gift_quantity",
		"gift_amount", "gift_quantity_pct", "gift_amount_pct", "dish_order_count",
		"related_order_amount", "sales_per_thousand", "order_rate", "customer_click_rate",
	},
	primacy: [2]string{"sales_quantity", "sales_amount"},
}
