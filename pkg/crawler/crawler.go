package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand"
	"os"
	"time"

	"pixdown/pkg/config"
	errs "pixdown/pkg/errors"
	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
	"pixdown/pkg/ratelimit"
	"pixdown/pkg/retry"
	"pixdown/pkg/storage"
)

const dateLayout = "2006-01-02"

// Crawler drives the fetch-filter-dedupe pipeline over the upstream API.
// One logical thread of control per run: pages are fetched strictly in
// sequence and the consumer controls how far pagination goes.
type Crawler struct {
	api     API
	store   *storage.Manager
	filter  *Filter
	limiter ratelimit.Limiter
	logger  logger.Logger

	keepJSON      string // empty disables the metadata cache sink
	retrySchedule []time.Duration

	// sleep and jitter are injectable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// New creates a crawler from configuration. The API client must already be
// constructed; authentication is the caller's concern.
func New(api API, store *storage.Manager, cfg *config.Config, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}

	keepJSON := ""
	if cfg.Crawl.KeepJSON {
		keepJSON = "1"
	}

	minJitter := time.Duration(cfg.RateLimit.PageJitterMinSeconds) * time.Second
	maxJitter := time.Duration(cfg.RateLimit.PageJitterMaxSeconds) * time.Second

	return &Crawler{
		api:           api,
		store:         store,
		filter:        NewFilter(NewCriteria(cfg.Filter), log),
		limiter:       ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute),
		logger:        log,
		keepJSON:      keepJSON,
		retrySchedule: retry.DefaultSchedule(),
		sleep:         retry.Wait,
		jitter: func() time.Duration {
			if maxJitter <= minJitter {
				return minJitter
			}
			return minJitter + time.Duration(rand.Int63n(int64(maxJitter-minJitter)))
		},
	}
}

// KeepJSON toggles the per-item metadata cache sink.
func (c *Crawler) KeepJSON(keep bool) {
	if keep {
		c.keepJSON = "1"
	} else {
		c.keepJSON = ""
	}
}

// ArtistWorks streams an artist's qualifying works in upstream order.
func (c *Crawler) ArtistWorks(ctx context.Context, artistID uint64) iter.Seq[*pixiv.Illust] {
	return c.pageSeq(ctx, "user_illusts", map[string]interface{}{"user_id": artistID},
		func(ctx context.Context) (*pixiv.Page, error) {
			return c.api.UserIllusts(ctx, artistID)
		})
}

// Recommended streams qualifying recommendations in upstream order.
func (c *Crawler) Recommended(ctx context.Context) iter.Seq[*pixiv.Illust] {
	return c.pageSeq(ctx, "illust_recommended", nil,
		func(ctx context.Context) (*pixiv.Page, error) {
			return c.api.IllustRecommended(ctx)
		})
}

// Related streams works related to an illustration in upstream order.
func (c *Crawler) Related(ctx context.Context, illustID uint64) iter.Seq[*pixiv.Illust] {
	return c.pageSeq(ctx, "illust_related", map[string]interface{}{"illust_id": illustID},
		func(ctx context.Context) (*pixiv.Page, error) {
			return c.api.IllustRelated(ctx, illustID)
		})
}

// SearchTag streams qualifying works for a tag. Premium accounts get
// popularity-sorted delivery in a single pagination pass; everyone else
// walks shrinking date windows between start and end to reach past the
// upstream offset ceiling.
func (c *Crawler) SearchTag(ctx context.Context, word string, start, end time.Time) (iter.Seq[*pixiv.Illust], error) {
	if account := c.api.Account(); account != nil && account.IsPremium {
		return c.pageSeq(ctx, "search_illust", map[string]interface{}{"word": word},
			func(ctx context.Context) (*pixiv.Page, error) {
				return c.api.SearchIllust(ctx, word, pixiv.SortPopularDesc, "", "")
			}), nil
	}

	if start.IsZero() || end.IsZero() {
		return nil, errs.New(errs.ErrorTypeUnknown, "account is not premium and no date range given")
	}
	return c.DateWindowSearch(ctx, word, start, end), nil
}

// Ranking streams qualifying works from the daily ranking of a given date.
// With onlyNew, entries that already ranked the previous day are skipped.
func (c *Crawler) Ranking(ctx context.Context, date time.Time, onlyNew bool) iter.Seq[*pixiv.Illust] {
	return func(yield func(*pixiv.Illust) bool) {
		entries, err := c.FetchWebRanking(ctx, date)
		if err != nil {
			c.logger.WithError(err).WithField("date", date.Format(dateLayout)).Error("ranking fetch failed")
			return
		}

		for _, entry := range entries {
			if onlyNew && entry.YesRank != 0 {
				continue
			}

			il, err := c.FetchIllust(ctx, entry.IllustID)
			if err != nil || il == nil {
				continue
			}
			if !c.filter.Qualified(il) {
				continue
			}
			c.cacheIllust(il)
			logger.LogFetched(il.ID, shortDate(il.CreateDate), il.TotalBookmarks)
			if !yield(il) {
				return
			}

			if err := c.sleep(ctx, c.jitter()); err != nil {
				return
			}
		}
	}
}

// FetchWebRanking returns the full ranking list for a day, cache-first.
// The web endpoint paginates by page number instead of a cursor.
func (c *Crawler) FetchWebRanking(ctx context.Context, date time.Time) ([]pixiv.RankingEntry, error) {
	name := date.Format("20060102")
	if c.store != nil && c.store.HasJSON(storage.KindRanking, name) {
		var cached []pixiv.RankingEntry
		if err := c.store.LoadJSON(storage.KindRanking, name, &cached); err == nil {
			return cached, nil
		}
	}

	var entries []pixiv.RankingEntry
	page := 1
	for page > 0 {
		c.throttle(ctx)
		current := page
		ranking, err := retry.Do(
			func() (*pixiv.RankingPage, error) { return c.api.FetchRanking(ctx, date, current) },
			nil,
			c.retryConfig(ctx, "web_ranking", map[string]interface{}{
				"date": name,
				"page": current,
			}),
		)
		if err != nil {
			if len(entries) > 0 {
				break
			}
			return nil, err
		}
		entries = append(entries, ranking.Contents...)
		page = int(ranking.Next)
		if page > 0 {
			if err := c.sleep(ctx, c.jitter()); err != nil {
				break
			}
		}
	}

	if c.keepJSON != "" && c.store != nil {
		if err := c.store.SaveJSON(storage.KindRanking, name, entries); err != nil {
			c.logger.WithError(err).Warn("failed to cache ranking")
		}
	}
	return entries, nil
}

// FetchIllust returns one illustration document, cache-first. A nil result
// without error means the upstream has nothing for the id.
func (c *Crawler) FetchIllust(ctx context.Context, illustID uint64) (*pixiv.Illust, error) {
	name := fmt.Sprintf("%d", illustID)
	if c.store != nil && c.store.HasJSON(storage.KindIllust, name) {
		data, err := os.ReadFile(c.store.JSONPath(storage.KindIllust, name))
		if err == nil {
			if il, decodeErr := pixiv.DecodeIllust(data); decodeErr == nil {
				return il, nil
			}
		}
	}

	c.throttle(ctx)
	il, err := retry.Do(
		func() (*pixiv.Illust, error) { return c.api.IllustDetail(ctx, illustID) },
		nil,
		c.retryConfig(ctx, "illust_detail", map[string]interface{}{"illust_id": illustID}),
	)
	if err != nil {
		if isEndOfData(err) {
			return nil, nil
		}
		return nil, err
	}

	if il != nil && il.Visible {
		c.cacheIllust(il)
	}
	return il, nil
}

// FetchArtist returns an author profile, cache-first.
func (c *Crawler) FetchArtist(ctx context.Context, artistID uint64) (*pixiv.UserDetail, error) {
	name := fmt.Sprintf("%d", artistID)
	if c.store != nil && c.store.HasJSON(storage.KindUser, name) {
		var cached pixiv.UserDetail
		if err := c.store.LoadJSON(storage.KindUser, name, &cached); err == nil {
			return &cached, nil
		}
	}

	c.throttle(ctx)
	detail, err := retry.Do(
		func() (*pixiv.UserDetail, error) { return c.api.UserDetail(ctx, artistID) },
		nil,
		c.retryConfig(ctx, "user_detail", map[string]interface{}{"user_id": artistID}),
	)
	if err != nil {
		return nil, err
	}

	if c.keepJSON != "" && c.store != nil {
		if err := c.store.SaveJSON(storage.KindUser, name, detail); err != nil {
			c.logger.WithError(err).Warn("failed to cache artist")
		}
	}
	return detail, nil
}

// DownloadAvatar fetches an author's profile image into the avatar tier.
func (c *Crawler) DownloadAvatar(ctx context.Context, detail *pixiv.UserDetail) error {
	avatarURL := detail.User.ProfileImageURLs.Medium
	if avatarURL == "" {
		return errs.New(errs.ErrorTypeNotFound, "artist has no avatar")
	}
	return c.fetchAsset(ctx, storage.TierAvatar, avatarURL)
}

// retryConfig builds the retry governor configuration for one call. The
// OnRetry hook refreshes the session when the failure was an expired token,
// so the next attempt observes valid credentials.
func (c *Crawler) retryConfig(ctx context.Context, name string, params map[string]interface{}) *retry.Config {
	return &retry.Config{
		Schedule: c.retrySchedule,
		RetryIf:  retry.DefaultRetryIf,
		Context:  ctx,
		Logger:   c.logger,
		Sleep:    c.sleep,
		Name:     name,
		Params:   params,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			var typed *errs.Error
			if !errors.As(err, &typed) {
				return
			}
			switch typed.Type {
			case errs.ErrorTypeAuth:
				c.logger.WithField("attempt", attempt).Info("refreshing expired session")
				if _, authErr := c.api.Authenticate(ctx); authErr != nil {
					c.logger.WithError(authErr).Error("re-authentication failed")
				}
			case errs.ErrorTypeRateLimit:
				logger.LogRateLimit(name, delay)
			}
		},
	}
}

// inspectPage adapts the client's envelope inspector to the governor.
func (c *Crawler) inspectPage(ctx context.Context) retry.Inspector[*pixiv.Page] {
	return func(page *pixiv.Page) error {
		return c.api.InspectPage(page)
	}
}

// throttle applies the token bucket before an upstream call.
func (c *Crawler) throttle(ctx context.Context) {
	if c.limiter == nil {
		return
	}
	if !c.limiter.Allow() {
		c.logger.Debug("rate limiter engaged, waiting")
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.WithError(err).Debug("rate limit wait cancelled")
		}
	}
}

// cacheIllust persists one qualifying item to the metadata cache sink.
func (c *Crawler) cacheIllust(il *pixiv.Illust) {
	if c.keepJSON == "" || c.store == nil {
		return
	}
	if err := c.store.SaveJSON(storage.KindIllust, fmt.Sprintf("%d", il.ID), il); err != nil {
		c.logger.WithError(err).WithField("illust_id", il.ID).Warn("failed to cache illust")
	}
}

// isEndOfData reports whether an error means the upstream has no result,
// as opposed to the call itself having failed.
func isEndOfData(err error) bool {
	if errors.Is(err, retry.ErrScheduleExhausted) {
		return true
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return typed.Type == errs.ErrorTypeNotFound || typed.Type == errs.ErrorTypeOffsetLimit
	}
	return false
}

func shortDate(createDate string) string {
	if len(createDate) >= 10 {
		return createDate[:10]
	}
	return createDate
}
