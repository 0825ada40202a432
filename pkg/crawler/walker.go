package crawler

import (
	"context"
	"errors"
	"iter"
	"time"

	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
	"pixdown/pkg/retry"
)

// pageFunc fetches the first page of a listing.
type pageFunc func(ctx context.Context) (*pixiv.Page, error)

// roundResult summarizes one full pagination pass.
type roundResult struct {
	// yielded counts qualifying items delivered to the consumer.
	yielded int
	// last is the final qualifying item of the pass, nil when none.
	last *pixiv.Illust
	// stopped is true when the consumer broke out of the stream.
	stopped bool
}

// pageSeq wraps walkPages as a lazy sequence of qualifying illustrations.
// Nothing is fetched until the sequence is ranged over, and abandoning the
// range stops pagination immediately.
func (c *Crawler) pageSeq(ctx context.Context, name string, params map[string]interface{}, first pageFunc) iter.Seq[*pixiv.Illust] {
	return func(yield func(*pixiv.Illust) bool) {
		c.walkPages(ctx, name, params, first, yield)
	}
}

// walkPages runs one pagination pass: fetch a page under the retry
// governor, filter its items, hand survivors to the consumer, then follow
// the page cursor verbatim until it runs out. A brief random pause
// separates page fetches.
func (c *Crawler) walkPages(ctx context.Context, name string, params map[string]interface{}, first pageFunc, yield func(*pixiv.Illust) bool) roundResult {
	var result roundResult

	fetch := first
	for pageNum := 1; ; pageNum++ {
		c.throttle(ctx)
		callParams := map[string]interface{}{"page": pageNum}
		for k, v := range params {
			callParams[k] = v
		}

		page, err := retry.Do(
			func() (*pixiv.Page, error) { return fetch(ctx) },
			c.inspectPage(ctx),
			c.retryConfig(ctx, name, callParams),
		)
		if err != nil {
			// A governed call that never recovered marks the end of what the
			// upstream will give us; anything else aborts the listing.
			if !errors.Is(err, retry.ErrScheduleExhausted) {
				c.logger.WithError(err).WithField("call", name).Error("listing aborted")
			}
			return result
		}

		for _, il := range page.Illusts {
			if !c.filter.Qualified(il) {
				continue
			}
			c.cacheIllust(il)
			logger.LogFetched(il.ID, shortDate(il.CreateDate), il.TotalBookmarks)

			result.yielded++
			result.last = il
			if !yield(il) {
				result.stopped = true
				return result
			}
		}

		if page.NextURL == "" {
			return result
		}
		nextURL := page.NextURL
		fetch = func(ctx context.Context) (*pixiv.Page, error) {
			return c.api.NextPage(ctx, nextURL)
		}

		if err := c.sleep(ctx, c.jitter()); err != nil {
			return result
		}
	}
}

// DateWindowSearch streams qualifying works for a tag newest-first across
// the whole [start, end] range, one shrinking window per pass. Each pass
// searches [start, windowEnd], and the next window ends the day before the
// oldest item the pass produced. This sidesteps the upstream pagination
// ceiling that a single newest-first search would hit.
func (c *Crawler) DateWindowSearch(ctx context.Context, word string, start, end time.Time) iter.Seq[*pixiv.Illust] {
	return func(yield func(*pixiv.Illust) bool) {
		windowEnd := end
		for !start.After(windowEnd) {
			result := c.walkPages(ctx, "search_illust",
				map[string]interface{}{
					"word":  word,
					"start": start.Format(dateLayout),
					"end":   windowEnd.Format(dateLayout),
				},
				func(ctx context.Context) (*pixiv.Page, error) {
					return c.api.SearchIllust(ctx, word, pixiv.SortDateDesc,
						start.Format(dateLayout), windowEnd.Format(dateLayout))
				},
				yield,
			)
			if result.stopped {
				return
			}
			// An empty pass means the window holds nothing more to find.
			if result.last == nil {
				return
			}

			oldest, err := result.last.CreatedDate()
			if err != nil {
				c.logger.WithError(err).WithField("illust_id", result.last.ID).
					Warn("cannot advance search window")
				return
			}
			windowEnd = oldest.AddDate(0, 0, -1)
		}
	}
}
