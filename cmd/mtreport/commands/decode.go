package commands

import (
	"context"
	"fmt"
	"os"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/htmltable"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/report"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var decodeFlags struct {
	report   string
	date     string
	selector string
}

func init() {
	decodeCmd.Flags().StringVar(&decodeFlags.report, "report", "", "equity, summary or dish.")
	decodeCmd.Flags().StringVar(&decodeFlags.date, "date", "", "Business date of dish reports, YYYY-MM-DD.")
	decodeCmd.Flags().StringVar(&decodeFlags.selector, "selector", "", "Selector of the report table, the whole document by default.")
	decodeCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(decodeCmd)
}

// decodeFile reads a saved report page the same way a crawl reads the live one.
func decodeFile(ctx context.Context, path string, def report.Definition, date string) (report.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return report.Batch{}, err
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return report.Batch{}, fmt.Errorf("parse %s: %w", path, err)
	}

	extracted := htmltable.Extract(ctx, doc.Selection, decodeFlags.selector, def.Filter)
	batch := report.Batch{Kind: def.Kind}
	def.Decode(&batch, extracted.Rows, htmltable.Flatten(extracted.Header, htmltable.HeaderDepth), date)
	return batch, nil
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file.html> --report <equity|summary|dish> [--date YYYY-MM-DD]",
	Short: "Decodes a saved report page and prints its records without storing them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := records.ParseEntityType(decodeFlags.report)
		if err != nil {
			return err
		}
		def, err := report.Lookup(kind)
		if err != nil {
			return err
		}
		date := decodeFlags.date
		if date == "" {
			date = chrono.Yesterday(chrono.NewStandardTime())
		}

		batch, err := decodeFile(cmd.Context(), args[0], def, date)
		if err != nil {
			return err
		}

		t := newTable()
		switch kind {
		case records.Equity:
			t.AppendHeader(table.Row{"Org code", "Store", "Date", "Package", "Sold", "Sales", "Refunds"})
			for _, r := range batch.Equity {
				t.AppendRow(table.Row{r.OrgCode, r.StoreName, r.Date, r.PackageName, r.QuantitySold, r.TotalSales, r.RefundAmount})
			}
		case records.Summary:
			t.AppendHeader(table.Row{"Store", "Date", "Revenue", "Orders", "Diners", "Composition"})
			for _, r := range batch.Summary {
				t.AppendRow(table.Row{r.StoreName, r.BusinessDate, r.Revenue, r.OrderCount, r.DinerCount, r.CompositionJSON()})
			}
		case records.Dish:
			t.AppendHeader(table.Row{"Store", "Date", "Dish", "Quantity", "Amount", "Returns"})
			for _, r := range batch.Dish {
				t.AppendRow(table.Row{r.StoreName, r.BusinessDate, r.DishName, r.SalesQuantity, r.SalesAmount, r.ReturnQuantity})
			}
		}
		t.Render()
		fmt.Printf("%d records, %d rows rejected\n", batch.Len(), batch.Rejected)
		return nil
	},
}
