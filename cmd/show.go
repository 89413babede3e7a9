package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/trending-digest/internal/trending"
)

// newShowCmd creates and configures the 'show' subcommand.
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Prints the most recent report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("load report: %w", err)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func printSummary(w io.Writer, summary trending.Summary) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "GitHub Trending - %s\n", summary.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintln(w, rule)
	if summary.TotalRepos == 0 {
		fmt.Fprintln(w, "No repositories found.")
		return
	}
	for i, repo := range summary.Repositories {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, repo.Name)
		fmt.Fprintf(w, "   %s stars (+%s today)\n", humanize.Comma(repo.TotalStars), humanize.Comma(repo.StarsToday))
		fmt.Fprintf(w, "   %s forks\n", humanize.Comma(repo.Forks))
		fmt.Fprintf(w, "   %s\n", repo.Language)
		fmt.Fprintf(w, "   %s\n", repo.Description)
	}
	if in := summary.Insights; in != nil {
		fmt.Fprintf(w, "\n%s\nINSIGHTS\n%s\n", rule, rule)
		if in.MostCommonLanguage != "" {
			fmt.Fprintf(w, "Most Common Language: %s\n", in.MostCommonLanguage)
		}
		fmt.Fprintf(w, "Total Stars: %s\n", humanize.Comma(in.TotalStars))
		fmt.Fprintf(w, "Total Forks: %s\n", humanize.Comma(in.TotalForks))
	}
}
