package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls GitHub trending once and writes the report",
		Long: `Fetches the trending listing, enriches the top repositories with
their detail pages and README previews, and writes trending_summary.json and
trending_summary.html to the configured storage backend.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	cmd.Flags().Int("limit", 0, "number of repositories to keep (overrides crawler.limit)")
	cmd.Flags().String("fetcher", "", "fetcher mode: colly, retry, headless or auto")
	cmd.Flags().Bool("readme", true, "fetch README previews")
	cmd.Flags().Bool("notify", false, "e-mail the report to notify.recipient afterwards")
	_ = viper.BindPFlag("crawler.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("crawler.fetcher", cmd.Flags().Lookup("fetcher"))
	_ = viper.BindPFlag("crawler.fetch_readme", cmd.Flags().Lookup("readme"))
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	result, artifacts, err := appInstance.Crawl(cmd.Context())
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}

	out := cmd.OutOrStdout()
	if result.Summary.TotalRepos == 0 {
		fmt.Fprintln(out, "No repositories found.")
	}
	for _, repo := range result.Summary.Repositories {
		fmt.Fprintf(out, "  - %s (%s stars)\n", repo.Name, humanize.Comma(repo.TotalStars))
	}
	if result.Partial {
		fmt.Fprintln(out, "Run budget expired; the report is partial.")
	}
	fmt.Fprintf(out, "Report written:\n  - %s\n  - %s\n", artifacts.JSONURI, artifacts.HTMLURI)

	appInstance.Logger().Info("Crawl command finished.",
		zap.String("run_id", result.RunID),
		zap.Bool("partial", result.Partial),
	)

	if notifyAfter, _ := cmd.Flags().GetBool("notify"); notifyAfter {
		return sendNotification(cmd, appInstance, "")
	}
	return nil
}
