package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	errs "pixdown/pkg/errors"
	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
	"pixdown/pkg/retry"
	"pixdown/pkg/storage"
)

// Resolutions selects which image tiers to download.
type Resolutions struct {
	Square bool
	Medium bool
	Large  bool
	Origin bool
}

// ParseResolutions decodes a resolution selector string where each letter
// enables one tier: s=square, m=medium, l=large, o=origin.
func ParseResolutions(spec string) (Resolutions, error) {
	var r Resolutions
	for _, ch := range spec {
		switch ch {
		case 's':
			r.Square = true
		case 'm':
			r.Medium = true
		case 'l':
			r.Large = true
		case 'o':
			r.Origin = true
		default:
			return Resolutions{}, errs.New(errs.ErrorTypeUnknown,
				fmt.Sprintf("unknown resolution %q, want letters from smlo", string(ch)))
		}
	}
	if r == (Resolutions{}) {
		return Resolutions{}, errs.New(errs.ErrorTypeUnknown, "empty resolution selector")
	}
	return r, nil
}

// String renders the selector back to its compact form.
func (r Resolutions) String() string {
	var b strings.Builder
	if r.Square {
		b.WriteByte('s')
	}
	if r.Medium {
		b.WriteByte('m')
	}
	if r.Large {
		b.WriteByte('l')
	}
	if r.Origin {
		b.WriteByte('o')
	}
	return b.String()
}

// DownloadAll fetches the selected tiers for every illustration, best
// effort: a failed item is logged and skipped, never fatal for the batch.
// It returns how many illustrations downloaded without error.
func (c *Crawler) DownloadAll(ctx context.Context, items []*pixiv.Illust, res Resolutions) int {
	succeeded := 0
	for i, il := range items {
		c.logger.InfoWithFields("downloading", map[string]interface{}{
			"illust_id": il.ID,
			"progress":  fmt.Sprintf("%d/%d", i+1, len(items)),
		})
		if err := c.DownloadIllust(ctx, il, res); err != nil {
			if ctx.Err() != nil {
				return succeeded
			}
			c.logger.WithError(err).WithField("illust_id", il.ID).Error("download failed")
			continue
		}
		succeeded++
	}
	return succeeded
}

// DownloadIllust fetches every selected tier of one illustration, all pages
// included. Already-present files are skipped.
func (c *Crawler) DownloadIllust(ctx context.Context, il *pixiv.Illust, res Resolutions) error {
	var firstErr error
	record := func(tier storage.ImageTier, err error) {
		logger.LogDownload(il.ID, string(tier), err == nil, err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, urls := range c.tierURLs(il) {
		if res.Square && urls.SquareMedium != "" {
			record(storage.TierSquare, c.fetchAsset(ctx, storage.TierSquare, urls.SquareMedium))
		}
		if res.Medium && urls.Medium != "" {
			record(storage.TierMedium, c.fetchAsset(ctx, storage.TierMedium, urls.Medium))
		}
		if res.Large && urls.Large != "" {
			record(storage.TierLarge, c.fetchAsset(ctx, storage.TierLarge, urls.Large))
		}
		if res.Origin && urls.Original != "" {
			record(storage.TierOrigin, c.fetchAsset(ctx, storage.TierOrigin, urls.Original))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}

// tierURLs flattens an illustration into per-page tier URL sets. Single-page
// works carry the original URL in a separate field.
func (c *Crawler) tierURLs(il *pixiv.Illust) []pixiv.ImageURLs {
	if len(il.MetaPages) > 0 {
		urls := make([]pixiv.ImageURLs, 0, len(il.MetaPages))
		for _, page := range il.MetaPages {
			urls = append(urls, page.ImageURLs)
		}
		return urls
	}

	single := il.ImageURLs
	if single.Original == "" {
		single.Original = il.MetaSinglePage.OriginalImageURL
	}
	return []pixiv.ImageURLs{single}
}

// fetchAsset downloads one binary asset into a tier directory, skipping
// files that are already on disk.
func (c *Crawler) fetchAsset(ctx context.Context, tier storage.ImageTier, assetURL string) error {
	filename := pixiv.FileNameFromURL(assetURL)
	if filename == "" {
		return errs.New(errs.ErrorTypeParsing, fmt.Sprintf("cannot derive filename from %q", assetURL))
	}
	if c.store.IsDownloaded(tier, filename) {
		c.logger.WithField("filename", filename).Debug("already downloaded, skipping")
		return nil
	}

	c.throttle(ctx)
	data, err := retry.Do(
		func() ([]byte, error) { return c.api.Download(ctx, assetURL) },
		nil,
		c.retryConfig(ctx, "download", map[string]interface{}{
			"tier": string(tier),
			"url":  assetURL,
		}),
	)
	if err != nil {
		return err
	}
	return c.store.SaveImage(tier, filename, bytes.NewReader(data))
}
