package report

import (
	"strings"
	"testing"

	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/localstore"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

const equityPage = `<html><body>
<div class="report">
<table>
<thead>
  <tr><th rowspan="2">序号</th><th rowspan="2">机构编码</th><th rowspan="2">门店</th><th rowspan="2">日期</th>
      <th colspan="6">权益包</th></tr>
  <tr><th>名称</th><th>单价</th><th>售卖数量</th><th>售卖金额</th><th>退款数量</th><th>退款金额</th></tr>
</thead>
<tbody>
  <tr aria-hidden="true"><td><div style="height: 0px"></div></td></tr>
  <tr><td>序号</td><td>机构编码</td><td>门店</td><td>日期</td><td>名称</td><td>单价</td><td>数量</td><td>金额</td><td>退款</td><td>退款金额</td></tr>
  <tr><td>1</td><td>MD001</td><td>一号店</td><td>2025/01/31</td><td>双人套餐</td><td>¥20.00</td><td>5</td><td>¥100.00</td><td>1</td><td>¥20.00</td></tr>
  <tr><td>2</td><td>MD002</td><td>二号店</td><td>2025/01/31</td><td>单人套餐</td><td>￥9.90</td><td>1,200</td><td>11,880元</td><td>0</td><td>-</td></tr>
  <tr><td>合计</td><td></td><td></td><td></td><td></td><td></td><td>1,205</td><td>11,980</td><td>1</td><td>20</td></tr>
</tbody>
</table>
</div>
<ul class="ant-pagination"><li class="ant-pagination-total-text">共 2 条记录</li>
<li class="ant-pagination-item ant-pagination-item-1 ant-pagination-item-active" title="1"><a>1</a></li></ul>
</body></html>`

func TestDecodeEquityDocument(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(equityPage))
	require.NoError(t, err)

	page := DocumentPage{Doc: doc.Selection, TableSelector: "div.report table"}
	opener := &fakeOpener{source: page}
	local := setupLocal(t)
	crawler := NewCrawler(opener, local, nil, telemetry.NewRecorderAPI())

	result, err := crawler.CrawlAndPersist(t.Context(), records.Equity, dateRange(t, "2025-01-31", ""), CrawlOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordCount)
	require.Equal(t, 1, result.Pages)

	got, err := local.QueryEquity(t.Context(), localstore.EquityFilter{Start: "2025-01-31", End: "2025-01-31"})
	require.NoError(t, err)
	want := []records.EquityPackageSale{
		{
			OrgCode: "MD001", StoreName: "一号店", Date: "2025-01-31", PackageName: "双人套餐",
			UnitPrice: 20, QuantitySold: 5, TotalSales: 100, RefundQuantity: 1, RefundAmount: 20,
		},
		{
			OrgCode: "MD002", StoreName: "二号店", Date: "2025-01-31", PackageName: "单人套餐",
			UnitPrice: 9.9, QuantitySold: 1200, TotalSales: 11880,
		},
	}
	require.Empty(t, cmp.Diff(want, got, cmpopts.IgnoreFields(records.EquityPackageSale{}, "UpdatedAt")))
}

func TestDocumentPageColumns(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(equityPage))
	require.NoError(t, err)
	page := DocumentPage{Doc: doc.Selection, TableSelector: "div.report table"}

	header, err := page.HeaderCells(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{
		"序号", "机构编码", "门店", "日期",
		"权益包-名称", "权益包-单价", "权益包-售卖数量", "权益包-售卖金额", "权益包-退款数量", "权益包-退款金额",
	}, htmltable.Flatten(header, htmltable.HeaderDepth))

	ok, err := page.GoToPage(t.Context(), 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookup(t *testing.T) {
	for _, kind := range records.EntityTypes {
		def, err := Lookup(kind)
		require.NoError(t, err)
		require.Equal(t, kind, def.Kind)
	}
	_, err := Lookup("members")
	require.Error(t, err)

	dish, _ := Lookup(records.Dish)
	require.Equal(t, 31, dish.Schema.Width())
	require.True(t, dish.PerDate)
}
