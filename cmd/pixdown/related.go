package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// relatedCmd represents the related command
var relatedCmd = &cobra.Command{
	Use:   "related <illust_id>",
	Short: "Download works related to an illustration",
	Long: `Walk the related-works feed of an illustration, keep qualifying works,
and download the selected resolutions.

Like recommendations, the related feed is effectively endless; the crawl
stops once the limit's worth of qualifying works has been taken.`,
	Example: `  # Works related to one illustration
  pixdown related 59580629

  # A short exploration
  pixdown related 59580629 -n 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		illustID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid illust id %q", args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		items := collect(s.crawler.Related(ctx, illustID), s.cfg.Crawl.MaxItems, true)
		return s.finish(ctx, items)
	},
}

func init() {
	rootCmd.AddCommand(relatedCmd)
	addCrawlFlags(relatedCmd)
}
