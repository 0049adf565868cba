package commands

import (
	"fmt"
	"time"

	"mtreport-backend/internal/cdp"
	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/report"
	"mtreport-backend/internal/telemetry"

	"github.com/spf13/cobra"
)

var crawlFlags struct {
	start  string
	end    string
	force  bool
	mirror bool
}

func init() {
	crawlCmd.Flags().StringVar(&crawlFlags.start, "start", "", "First business date, YYYY-MM-DD. Defaults to yesterday.")
	crawlCmd.Flags().StringVar(&crawlFlags.end, "end", "", "Last business date, YYYY-MM-DD. Defaults to the start date.")
	crawlCmd.Flags().BoolVar(&crawlFlags.force, "force", false, "Recrawl logged dates and overwrite stored rows.")
	crawlCmd.Flags().BoolVar(&crawlFlags.mirror, "mirror", false, "Also write the records to the remote store.")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <equity|summary|dish> [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--force] [--mirror]",
	Short: "Reads a report from the browser and stores its rows.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := records.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		start := crawlFlags.start
		if start == "" {
			start = chrono.Yesterday(chrono.NewStandardTime())
		}
		dates, err := chrono.NewDateRange(start, crawlFlags.end)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx, crawlFlags.mirror)
		if err != nil {
			return err
		}
		defer e.Close()
		telemetry.InstrumentPerfStats(ctx, 30*time.Second)

		opener := cdp.NewOpener(cdp.NewClient(e.cfg.Browser.Endpoint, e.tel), e.cfg.Browser.Pages)
		defer opener.Close()

		var remote report.Writer
		if e.remote != nil {
			remote = e.remote
		}
		crawler := report.NewCrawler(opener, e.local, remote, e.tel)
		result, err := crawler.CrawlAndPersist(ctx, kind, dates, report.CrawlOptions{
			Force:  crawlFlags.force,
			Mirror: crawlFlags.mirror,
		})
		renderCrawl(result)
		if e.remote != nil {
			renderMisses(e.remote.Identities().Misses())
		}
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d dates failed", len(result.Failed))
		}
		if len(result.MirrorErrors) > 0 {
			return fmt.Errorf("%d remote writes failed", len(result.MirrorErrors))
		}
		return nil
	},
}
