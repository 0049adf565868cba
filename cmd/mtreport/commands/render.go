package commands

import (
	"fmt"
	"os"
	"strings"

	"mtreport-backend/internal/records"
	"mtreport-backend/internal/reconcile"
	"mtreport-backend/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func statsRow(label string, s records.WriteStats) table.Row {
	return table.Row{label, s.Inserted, s.Updated, s.Skipped, s.Failed, s.UnknownStores}
}

var statsHeader = table.Row{"", "Inserted", "Updated", "Skipped", "Failed", "Unknown stores"}

func renderCrawl(result report.CrawlResult) {
	fmt.Printf(
		"%s %s: %d records from %d pages, %d rows rejected\n",
		result.Kind, result.Dates, result.RecordCount, result.Pages, result.Rejected,
	)
	if len(result.Skipped) > 0 {
		fmt.Printf("already crawled: %s\n", strings.Join(result.Skipped, ", "))
	}
	if len(result.Failed) > 0 {
		fmt.Printf("failed: %s\n", strings.Join(result.Failed, ", "))
	}

	t := newTable()
	t.AppendHeader(statsHeader)
	t.AppendRow(statsRow("local", result.Local))
	if result.Remote != nil {
		t.AppendRow(statsRow("remote", *result.Remote))
	}
	t.Render()

	if result.Remote != nil && len(result.Remote.Unknown) > 0 {
		fmt.Printf("stores missing remotely: %s\n", strings.Join(result.Remote.Unknown, ", "))
	}
	for _, e := range result.MirrorErrors {
		fmt.Printf("remote write failed: %s\n", e)
	}
}

func renderSync(all []reconcile.Stats, dryRun bool) {
	t := newTable()
	if dryRun {
		t.AppendHeader(table.Row{"Table", "Missing locally", "Missing remotely"})
		for _, s := range all {
			t.AppendRow(table.Row{s.Entity, s.MissingLocal, s.MissingRemote})
		}
		t.Render()
		return
	}

	t.AppendHeader(append(table.Row{"Table", "Direction"}, statsHeader[1:]...))
	var unknown []string
	for _, s := range all {
		for _, side := range []struct {
			name  string
			stats records.WriteStats
		}{{"pull", s.Pulled}, {"push", s.Pushed}} {
			row := statsRow(side.name, side.stats)
			t.AppendRow(append(table.Row{s.Entity}, row...))
			unknown = append(unknown, side.stats.Unknown...)
		}
	}
	t.Render()
	if len(unknown) > 0 {
		fmt.Printf("stores missing remotely: %s\n", strings.Join(unknown, ", "))
	}
}

// renderMisses prints how many store lookups the remote identity cache
// could not resolve during the command.
func renderMisses(misses int) {
	if misses > 0 {
		fmt.Printf("%d store lookups matched no remote restaurant\n", misses)
	}
}
