package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pixdown/pkg/pixiv"
	"pixdown/pkg/ui"
)

// illustCmd represents the illust command
var illustCmd = &cobra.Command{
	Use:   "illust <illust_id> [illust_id...]",
	Short: "Download specific illustrations by id",
	Long: `Fetch specific illustrations by id and download the selected
resolutions. The filter criteria do not apply: an explicitly named work is
always taken, as long as it is still visible upstream.`,
	Example: `  # One illustration, original resolution
  pixdown illust 59580629 -r o

  # Several at once
  pixdown illust 59580629 59580630 59580631`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		var items []*pixiv.Illust
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid illust id %q", arg)
			}

			il, err := s.crawler.FetchIllust(ctx, id)
			if err != nil {
				ui.PrintWarning("Fetch failed", fmt.Sprintf("iid=%d: %v", id, err))
				continue
			}
			if il == nil || !il.Visible {
				ui.PrintWarning("Not available", fmt.Sprintf("iid=%d", id))
				continue
			}
			printIllust(il)
			items = append(items, il)
		}

		return s.finish(ctx, items)
	},
}

func init() {
	rootCmd.AddCommand(illustCmd)
	addCrawlFlags(illustCmd)
}
