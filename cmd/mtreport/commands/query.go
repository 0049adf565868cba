package commands

import (
	"context"
	"fmt"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/localstore"
	"mtreport-backend/internal/records"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var queryFlags struct {
	code  string
	start string
	end   string
}

func init() {
	queryEquityCmd.Flags().StringVar(&queryFlags.code, "code", "", "Org code of one store, every store by default.")
	queryEquityCmd.Flags().StringVar(&queryFlags.start, "start", "", "First business date, YYYY-MM-DD. Defaults to yesterday.")
	queryEquityCmd.Flags().StringVar(&queryFlags.end, "end", "", "Last business date, YYYY-MM-DD. Defaults to the start date.")
	queryCmd.AddCommand(queryEquityCmd)
	rootCmd.AddCommand(queryCmd)
}

// queryEquity reads the locally stored equity sales of a store over a date range.
func queryEquity(ctx context.Context, local *localstore.Store, code, start, end string) ([]records.EquityPackageSale, error) {
	if start == "" {
		start = chrono.Yesterday(chrono.NewStandardTime())
	}
	dates, err := chrono.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return local.QueryEquity(ctx, localstore.EquityFilter{
		OrgCode: code,
		Start:   chrono.FormatDate(dates.Start),
		End:     chrono.FormatDate(dates.End),
	})
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Reads stored records.",
}

var queryEquityCmd = &cobra.Command{
	Use:   "equity [--code <org code>] [--start YYYY-MM-DD] [--end YYYY-MM-DD]",
	Short: "Prints the stored equity package sales.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		sales, err := queryEquity(ctx, e.local, queryFlags.code, queryFlags.start, queryFlags.end)
		if err != nil {
			return err
		}
		t := newTable()
		t.AppendHeader(table.Row{"Org code", "Store", "Date", "Package", "Sold", "Sales", "Refunds"})
		var sold int64
		var total float64
		for _, r := range sales {
			t.AppendRow(table.Row{r.OrgCode, r.StoreName, r.Date, r.PackageName, r.QuantitySold, r.TotalSales, r.RefundAmount})
			sold += r.QuantitySold
			total += r.TotalSales
		}
		t.AppendFooter(table.Row{"", "", "", "total", sold, total, ""})
		t.Render()
		fmt.Printf("%d records\n", len(sales))
		return nil
	},
}
