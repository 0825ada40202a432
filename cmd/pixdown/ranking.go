package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pixdown/pkg/pixiv"
	"pixdown/pkg/ui"
)

var (
	rankingOnlyNew       bool
	rankingWithoutIllust bool
)

// rankingCmd represents the ranking command
var rankingCmd = &cobra.Command{
	Use:   "ranking <date> [date...]",
	Short: "Download qualifying works from daily rankings",
	Long: `Fetch the daily ranking for one or more dates and download every ranked
illustration that passes the filter criteria.

Dates are given as YYYY-MM-DD. A "start,end" pair expands to every day in
the inclusive range. With --only-new, works that already ranked the day
before are skipped. With --without-illust only the ranking lists are
fetched and cached, no illustrations.`,
	Example: `  # One day's ranking
  pixdown ranking 2024-06-01

  # A whole month, new entries only
  pixdown ranking 2024-06-01,2024-06-30 --only-new

  # Just cache the ranking lists
  pixdown ranking 2024-06-01,2024-06-30 --without-illust --keep-json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := expandDates(args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		var items []*pixiv.Illust
		for _, date := range dates {
			ui.PrintInfo("Ranking", date.Format("2006-01-02"))

			if rankingWithoutIllust {
				entries, err := s.crawler.FetchWebRanking(ctx, date)
				if err != nil {
					ui.PrintWarning("Ranking fetch failed", err)
					continue
				}
				ui.PrintInfo("Entries", fmt.Sprintf("%d", len(entries)))
				continue
			}

			for il := range s.crawler.Ranking(ctx, date, rankingOnlyNew) {
				printIllust(il)
				items = append(items, il)
			}
			if ctx.Err() != nil {
				break
			}
		}

		if rankingWithoutIllust {
			return nil
		}
		return s.finish(ctx, items)
	},
}

// expandDates parses date arguments, expanding "start,end" pairs into every
// day of the inclusive range.
func expandDates(args []string) ([]time.Time, error) {
	var dates []time.Time
	for _, arg := range args {
		if start, end, found := strings.Cut(arg, ","); found {
			from, err := time.Parse("2006-01-02", start)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q", start)
			}
			to, err := time.Parse("2006-01-02", end)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q", end)
			}
			if to.Before(from) {
				return nil, fmt.Errorf("date range %q runs backwards", arg)
			}
			for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
				dates = append(dates, d)
			}
			continue
		}

		d, err := time.Parse("2006-01-02", arg)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", arg)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func init() {
	rootCmd.AddCommand(rankingCmd)
	addCrawlFlags(rankingCmd)
	rankingCmd.Flags().BoolVar(&rankingOnlyNew, "only-new", false, "skip works that ranked the previous day")
	rankingCmd.Flags().BoolVar(&rankingWithoutIllust, "without-illust", false, "fetch ranking lists only, no illustrations")
}
