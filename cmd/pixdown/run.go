package main

import (
	"context"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pixdown/pkg/auth"
	"pixdown/pkg/config"
	"pixdown/pkg/crawler"
	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
	"pixdown/pkg/storage"
	"pixdown/pkg/ui"
)

// crawl command flags shared by the listing subcommands
var (
	outputDir    string
	minBookmarks int
	maxPages     int
	minQuality   float64
	sexLevel     int
	limit        int
	keepJSON     bool
	resolutions  string
	profileName  string
	noDownload   bool
)

// addCrawlFlags registers the flags every listing subcommand shares.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory")
	cmd.Flags().IntVar(&minBookmarks, "min-bookmarks", -1, "minimum total bookmarks")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum page count per work")
	cmd.Flags().Float64Var(&minQuality, "min-quality", 0, "minimum bookmark/view percentage (0 disables)")
	cmd.Flags().IntVar(&sexLevel, "sex-level", 0, "content level ceiling, 1-3")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum illustrations to keep")
	cmd.Flags().BoolVar(&keepJSON, "keep-json", false, "cache illustration metadata as JSON")
	cmd.Flags().StringVarP(&resolutions, "resolutions", "r", "", "image tiers to download, letters from smlo")
	cmd.Flags().StringVarP(&profileName, "profile", "a", "", "use a specific stored token profile")
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "list matches without downloading images")
}

// session bundles everything a listing command needs.
type session struct {
	cfg     *config.Config
	client  *pixiv.Client
	store   *storage.Manager
	crawler *crawler.Crawler
	res     crawler.Resolutions
}

// buildFlags collects the changed command-line flags for the config merge.
func buildFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if minBookmarks >= 0 {
		flags["min-bookmarks"] = minBookmarks
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if minQuality > 0 {
		flags["min-quality"] = minQuality
	}
	if sexLevel > 0 {
		flags["sex-level"] = sexLevel
	}
	if limit > 0 {
		flags["limit"] = limit
	}
	if keepJSON {
		flags["keep-json"] = true
	}
	if resolutions != "" {
		flags["resolutions"] = resolutions
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// newSession loads configuration, resolves credentials, authenticates and
// wires the pipeline.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configFile, buildFlags())
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	token := cfg.Pixiv.RefreshToken
	if token == "" {
		manager, err := auth.NewManager()
		if err != nil {
			return nil, err
		}
		cred, err := manager.Retrieve(profileName)
		if err != nil {
			return nil, fmt.Errorf("no refresh token: run 'pixdown auth login' or set PIXDOWN_REFRESH_TOKEN")
		}
		token = cred.RefreshToken
	}

	res, err := crawler.ParseResolutions(cfg.Download.Resolutions)
	if err != nil {
		return nil, err
	}

	client := pixiv.NewClient(token, cfg.Download.Timeout, log)
	if cfg.Pixiv.AcceptLanguage != "" {
		client.SetAcceptLanguage(cfg.Pixiv.AcceptLanguage)
	}

	account, err := client.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	ui.PrintInfo("Logged in", account.Name)

	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		client:  client,
		store:   store,
		crawler: crawler.New(client, store, cfg, log),
		res:     res,
	}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// collect runs a listing stream through the top-K accumulator and returns
// the working set, best-first. With trustOrder the stream is abandoned as
// soon as the set is full.
func collect(seq iter.Seq[*pixiv.Illust], capacity int, trustOrder bool) []*pixiv.Illust {
	topk := crawler.NewTopK(capacity, trustOrder)
	for il := range seq {
		topk.Offer(il)
		printIllust(il)
		if trustOrder && topk.Full() {
			break
		}
	}
	return topk.Drain()
}

// printIllust prints one progress line per qualifying illustration.
func printIllust(il *pixiv.Illust) {
	if quiet {
		return
	}
	fmt.Printf("iid=%d  bookmark=%.1fk  q=%.2f  %s\n",
		il.ID, float64(il.TotalBookmarks)/1000, il.Quality(), il.Title)
}

// finish downloads the working set and prints the run summary.
func (s *session) finish(ctx context.Context, items []*pixiv.Illust) error {
	if len(items) == 0 {
		ui.PrintWarning("No illustrations matched the criteria")
		return nil
	}
	ui.PrintInfo("Selected", fmt.Sprintf("%d illustrations", len(items)))

	if noDownload {
		return nil
	}

	succeeded := s.crawler.DownloadAll(ctx, items, s.res)
	if succeeded < len(items) {
		ui.PrintWarning("Some downloads failed", fmt.Sprintf("%d/%d succeeded", succeeded, len(items)))
	} else {
		ui.PrintSuccess(fmt.Sprintf("Downloaded %d illustrations", succeeded))
	}
	return nil
}
