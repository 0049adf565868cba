package commands

import (
	"os"
	"path/filepath"
	"testing"

	"mtreport-backend/internal/records"
	"mtreport-backend/internal/reconcile"
	"mtreport-backend/internal/report"
	"mtreport-backend/internal/testutil"

	"github.com/stretchr/testify/require"
)

const summaryPage = `<table><thead><tr>
<th>序号</th><th>城市</th><th>门店</th><th>营业日期</th><th>开店时间</th><th>营业天数</th><th>营业额</th>
<th>优惠</th><th>收入</th><th>订单数</th><th>就餐人数</th><th>开台数</th><th>人均(前)</th><th>人均(后)</th>
<th>单均(前)</th><th>单均(后)</th><th>开台率</th><th>翻台率</th><th>上座率</th><th>用餐时长</th><th>外卖</th>
</tr></thead><tbody>
<tr><td>1</td><td>上海</td><td>一号店</td><td>2025/01/31</td><td>2023-05-01</td><td>400</td><td>1,000</td>
<td>0</td><td>1,000</td><td>40</td><td>80</td><td>30</td><td>12.5</td><td>12.5</td>
<td>25</td><td>25</td><td>85%</td><td>1.3</td><td>90%</td><td>55</td><td>300</td></tr>
<tr><td>合计</td><td></td><td></td><td></td><td></td><td></td><td>1,000</td>
<td>0</td><td>1,000</td><td>40</td><td>80</td><td>30</td><td></td><td></td>
<td></td><td></td><td></td><td></td><td></td><td></td><td>300</td></tr>
</tbody></table>`

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.html")
	require.NoError(t, os.WriteFile(path, []byte(summaryPage), 0600))

	def, err := report.Lookup(records.Summary)
	require.NoError(t, err)
	batch, err := decodeFile(t.Context(), path, def, "2025-01-31")
	require.NoError(t, err)
	require.Len(t, batch.Summary, 1)
	require.Equal(t, "一号店", batch.Summary[0].StoreName)
	require.Equal(t, 1000.0, batch.Summary[0].Revenue)
	require.Equal(t, `{"外卖":300}`, batch.Summary[0].CompositionJSON())
}

func TestDirection(t *testing.T) {
	cases := []struct {
		pull, push bool
		want       reconcile.Direction
	}{
		{false, false, reconcile.Both},
		{true, false, reconcile.Pull},
		{false, true, reconcile.Push},
		{true, true, reconcile.Both},
	}
	for _, c := range cases {
		syncFlags.pull, syncFlags.push = c.pull, c.push
		require.Equal(t, c.want, direction())
	}
}

func TestQueryEquity(t *testing.T) {
	local, _ := testutil.LocalStore(t)
	sale := func(code, date, pkg string) records.EquityPackageSale {
		return records.EquityPackageSale{
			OrgCode: code, StoreName: "店" + code, Date: date, PackageName: pkg,
			UnitPrice: 9.9, QuantitySold: 3, TotalSales: 29.7,
		}
	}
	_, err := local.WriteEquity(t.Context(), []records.EquityPackageSale{
		sale("MD001", "2025-01-30", "双人餐"),
		sale("MD001", "2025-01-31", "双人餐"),
		sale("MD002", "2025-01-31", "单人餐"),
	}, records.WriteOptions{})
	require.NoError(t, err)

	got, err := queryEquity(t.Context(), local, "", "2025-01-31", "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = queryEquity(t.Context(), local, "MD001", "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2025-01-30", got[0].Date)

	_, err = queryEquity(t.Context(), local, "", "2025-02-01", "2025-01-01")
	require.Error(t, err)
}
