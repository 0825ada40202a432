package main

import (
	"github.com/spf13/cobra"
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Download the best of your personalized recommendations",
	Long: `Walk the personalized recommendation feed, keep the best works by
bookmark count, and download the selected resolutions.

The feed is effectively endless, so the crawl stops once the limit's worth
of candidates has been considered.`,
	Example: `  # Best 300 recommended works
  pixdown recommend

  # A quick pass with a small working set
  pixdown recommend -n 30 --min-bookmarks 1000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		// The recommendation feed never ends, so take the first limit's worth
		// of qualifying works rather than draining the stream.
		items := collect(s.crawler.Recommended(ctx), s.cfg.Crawl.MaxItems, true)
		return s.finish(ctx, items)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	addCrawlFlags(recommendCmd)
}
