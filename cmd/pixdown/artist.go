package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pixdown/pkg/ui"
)

var withAvatar bool

// artistCmd represents the artist command
var artistCmd = &cobra.Command{
	Use:   "artist <user_id>",
	Short: "Download an artist's best illustrations",
	Long: `Walk an artist's works newest-first, keep every illustration that passes
the filter criteria, and download the selected resolutions.

The stream stops once the limit is reached.`,
	Example: `  # Download an artist's qualifying works
  pixdown artist 660788

  # Keep metadata and fetch the artist's avatar too
  pixdown artist 660788 --keep-json --avatar

  # Lower the bookmark threshold and keep at most 50 works
  pixdown artist 660788 --min-bookmarks 500 -n 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		artistID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		if withAvatar {
			detail, err := s.crawler.FetchArtist(ctx, artistID)
			if err != nil {
				ui.PrintWarning("Could not fetch artist profile", err)
			} else {
				ui.PrintInfo("Artist", detail.User.Name)
				if err := s.crawler.DownloadAvatar(ctx, detail); err != nil {
					ui.PrintWarning("Avatar download failed", err)
				}
			}
		}

		// The feed is consumed newest-first up to the limit, then the crawl
		// stops.
		items := collect(s.crawler.ArtistWorks(ctx, artistID), s.cfg.Crawl.MaxItems, true)
		return s.finish(ctx, items)
	},
}

func init() {
	rootCmd.AddCommand(artistCmd)
	addCrawlFlags(artistCmd)
	artistCmd.Flags().BoolVar(&withAvatar, "avatar", false, "also download the artist's profile image")
}
