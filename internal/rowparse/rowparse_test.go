package rowparse

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{"1,234.50", 1234.5, true},
		{"¥88", 88, true},
		{"￥ 1 000元", 1000, true},
		{"12.5%", 12.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"--", 0, false},
		{"abc", 0, false},
		{"NaN%", 0, false},
		{"Infinity", 0, false},
		{"-Inf", 0, false},
	}
	for _, c := range cases {
		n, ok := TryParseNumber(c.in)
		require.Equal(t, c.ok, ok, c.in)
		require.Equal(t, c.expected, n, c.in)
		require.Equal(t, c.expected, ParseNumber(c.in), c.in)
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2025-01-31", "2025/1/9", "2024-12-01"}
	invalid := []string{"", "abc", "1999-01-01", "25-01-01", "2025-13-01", "2025-00-10", "2025-01-32", "2025-01", "20x5-01-01", "2025-01-01-01"}
	for _, s := range valid {
		require.True(t, IsValidDate(s, "20"), s)
	}
	for _, s := range invalid {
		require.False(t, IsValidDate(s, "20"), s)
	}
}

func TestIsNumeric(t *testing.T) {
	require.True(t, IsNumeric("12345"))
	require.False(t, IsNumeric(""))
	require.False(t, IsNumeric("一号店"))
	require.False(t, IsNumeric("12a"))
}

var summarySchema = Schema{
	Fields: []Field{
		{Position: 1, Name: "store_name", Type: Text},
		{Position: 2, Name: "business_date", Type: Date},
		{Position: 3, Name: "revenue", Type: Decimal},
		{Position: 4, Name: "order_count", Type: Number},
		{Position: 5, Name: "table_opening_rate", Type: Percentage},
	},
	DateField:       "business_date",
	NameField:       "store_name",
	MinCells:        6,
	CompositionFrom: 6,
}

var summaryColumns = []string{"序号", "门店", "营业日期", "营业额", "订单数", "开台率", "渠道-堂食", "渠道-外卖", "备注"}

func TestParseRow(t *testing.T) {
	row, ok := summarySchema.Parse(
		[]string{"1", "一号店", "2025/01/31", "1,200.50", "garbage", "85.5%", "300", "¥12", "新店开业"},
		summaryColumns,
	)
	require.True(t, ok)
	require.Equal(t, "一号店", row.Text("store_name"))
	require.Equal(t, "2025-01-31", row.Text("business_date"))
	require.Equal(t, 1200.5, row.Float("revenue"))
	require.Equal(t, int64(0), row.Int("order_count"))
	require.Equal(t, "85.5%", row.Text("table_opening_rate"))

	require.Equal(t, []string{"渠道-堂食", "渠道-外卖", "备注"}, row.Composition.Keys())
	payload, err := json.Marshal(row.Composition)
	require.NoError(t, err)
	require.Equal(t, `{"渠道-堂食":300,"渠道-外卖":12,"备注":"新店开业"}`, string(payload))
}

func TestParseRowRejections(t *testing.T) {
	_, ok := summarySchema.Parse([]string{"1", "一号店", "abc", "1", "1", "1"}, summaryColumns)
	require.False(t, ok, "invalid date")

	_, ok = summarySchema.Parse([]string{"1", "12345", "2025-01-01", "1", "1", "1"}, summaryColumns)
	require.False(t, ok, "numeric name")

	_, ok = summarySchema.Parse([]string{"1", "", "2025-01-01", "1", "1", "1"}, summaryColumns)
	require.False(t, ok, "empty name")

	_, ok = summarySchema.Parse([]string{"1", "一号店", "2025-01-01"}, summaryColumns)
	require.False(t, ok, "too narrow")
}

func TestParseRowCompositionBoundedByColumns(t *testing.T) {
	row, ok := summarySchema.Parse(
		[]string{"1", "一号店", "2025-01-31", "1", "2", "3%", "", "7", "x", "extra", "extra"},
		summaryColumns,
	)
	require.True(t, ok)
	require.Equal(t, 3, row.Composition.Len())
	v, _ := row.Composition.Get("渠道-堂食")
	require.Equal(t, float64(0), v)
}

func TestParseRowIndexColumn(t *testing.T) {
	schema := Schema{
		Fields: []Field{
			{Position: 0, Name: "org_code", Type: Text},
			{Position: 1, Name: "store_name", Type: Text},
			{Position: 2, Name: "date", Type: Date},
			{Position: 3, Name: "quantity", Type: Number},
		},
		DateField:   "date",
		NameField:   "store_name",
		MinCells:    4,
		IndexColumn: true,
	}

	plain, ok := schema.Parse([]string{"MD001", "一号店", "2025-01-01", "5"}, nil)
	require.True(t, ok)
	require.Equal(t, "MD001", plain.Text("org_code"))
	require.Nil(t, plain.Composition)

	indexed, ok := schema.Parse([]string{"1", "MD001", "一号店", "2025-01-01", "5"}, nil)
	require.True(t, ok)
	require.Equal(t, "MD001", indexed.Text("org_code"))
	require.Equal(t, int64(5), indexed.Int("quantity"))
}

func TestCompositionRoundTripKeepsOrder(t *testing.T) {
	c, err := ParseComposition(`{"z":1,"a":"text","m":2.5}`)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, c.Keys())
	require.Equal(t, `{"z":1,"a":"text","m":2.5}`, c.String())

	empty, err := ParseComposition("")
	require.NoError(t, err)
	require.Equal(t, "{}", empty.String())

	_, err = ParseComposition(`[1,2]`)
	require.Error(t, err)
}

func TestParseRowNonFiniteCells(t *testing.T) {
	row, ok := summarySchema.Parse(
		[]string{"1", "一号店", "2025-01-31", "NaN", "Infinity", "NaN%", "12.5", "NaN%", "x"},
		summaryColumns,
	)
	require.True(t, ok)
	require.Equal(t, 0.0, row.Float("revenue"))
	require.Equal(t, int64(0), row.Int("order_count"))
	require.Equal(t, `{"渠道-堂食":12.5,"渠道-外卖":"NaN%","备注":"x"}`, row.Composition.String())
}

func TestCompositionKeepsUnencodableValuesAsText(t *testing.T) {
	c := NewComposition()
	c.Set("堂食", 1.5)
	c.Set("外卖", math.NaN())
	c.Set("团购", math.Inf(1))
	require.Equal(t, `{"堂食":1.5,"外卖":"NaN","团购":"+Inf"}`, c.String())
}
