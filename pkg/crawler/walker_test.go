package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pixdown/pkg/config"
	errs "pixdown/pkg/errors"
	"pixdown/pkg/pixiv"
)

// mockAPI scripts upstream responses for pipeline tests.
type mockAPI struct {
	account *pixiv.Account

	// firstPages are served in order by the first-page listing calls.
	firstPages []*pixiv.Page
	firstIdx   int

	// pages maps a cursor to the page it fetches.
	pages map[string]*pixiv.Page

	// searchFn overrides tag search behavior when set.
	searchFn func(word, sort, startDate, endDate string) (*pixiv.Page, error)

	searchCalls []searchCall
	nextCalls   []string
	authCalls   int

	detailFn func(illustID uint64) (*pixiv.Illust, error)
	download func(assetURL string) ([]byte, error)
}

type searchCall struct {
	word, sort, startDate, endDate string
}

func (m *mockAPI) Authenticate(ctx context.Context) (*pixiv.Account, error) {
	m.authCalls++
	if m.account == nil {
		m.account = &pixiv.Account{ID: "1", Name: "tester"}
	}
	return m.account, nil
}

func (m *mockAPI) Account() *pixiv.Account { return m.account }

func (m *mockAPI) nextFirstPage() (*pixiv.Page, error) {
	if m.firstIdx >= len(m.firstPages) {
		return &pixiv.Page{}, nil
	}
	page := m.firstPages[m.firstIdx]
	m.firstIdx++
	return page, nil
}

func (m *mockAPI) SearchIllust(ctx context.Context, word, sort, startDate, endDate string) (*pixiv.Page, error) {
	m.searchCalls = append(m.searchCalls, searchCall{word, sort, startDate, endDate})
	if m.searchFn != nil {
		return m.searchFn(word, sort, startDate, endDate)
	}
	return m.nextFirstPage()
}

func (m *mockAPI) UserIllusts(ctx context.Context, userID uint64) (*pixiv.Page, error) {
	return m.nextFirstPage()
}

func (m *mockAPI) IllustRelated(ctx context.Context, illustID uint64) (*pixiv.Page, error) {
	return m.nextFirstPage()
}

func (m *mockAPI) IllustRecommended(ctx context.Context) (*pixiv.Page, error) {
	return m.nextFirstPage()
}

func (m *mockAPI) NextPage(ctx context.Context, nextURL string) (*pixiv.Page, error) {
	m.nextCalls = append(m.nextCalls, nextURL)
	if page, ok := m.pages[nextURL]; ok {
		return page, nil
	}
	return &pixiv.Page{}, nil
}

func (m *mockAPI) IllustDetail(ctx context.Context, illustID uint64) (*pixiv.Illust, error) {
	if m.detailFn != nil {
		return m.detailFn(illustID)
	}
	return nil, errs.New(errs.ErrorTypeNotFound, "no such illust")
}

func (m *mockAPI) UserDetail(ctx context.Context, userID uint64) (*pixiv.UserDetail, error) {
	return &pixiv.UserDetail{}, nil
}

func (m *mockAPI) FetchRanking(ctx context.Context, date time.Time, page int) (*pixiv.RankingPage, error) {
	return &pixiv.RankingPage{}, nil
}

func (m *mockAPI) InspectPage(page *pixiv.Page) error {
	if page.Error == nil {
		return nil
	}
	return errs.New(errs.ErrorTypeRateLimit, page.Error.Text())
}

func (m *mockAPI) Download(ctx context.Context, assetURL string) ([]byte, error) {
	if m.download != nil {
		return m.download(assetURL)
	}
	return []byte("image-bytes"), nil
}

// newTestCrawler wires a crawler around the mock with no pacing and no
// storage.
func newTestCrawler(api API, minBookmarks int) *Crawler {
	cfg := config.DefaultConfig()
	cfg.Filter.MinBookmarks = minBookmarks
	c := New(api, nil, cfg, nil)
	c.limiter = nil
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	c.jitter = func() time.Duration { return 0 }
	return c
}

func pageOf(nextURL string, illusts ...*pixiv.Illust) *pixiv.Page {
	return &pixiv.Page{Illusts: illusts, NextURL: nextURL}
}

func datedIllust(id uint64, bookmarks int, created string) *pixiv.Illust {
	il := illustWithBookmarks(id, bookmarks)
	il.CreateDate = created + "T12:00:00+09:00"
	return il
}

func TestWalkPagesStreamsInUpstreamOrder(t *testing.T) {
	api := &mockAPI{
		firstPages: []*pixiv.Page{
			pageOf("cursor-2", illustWithBookmarks(1, 5000), illustWithBookmarks(2, 4000)),
		},
		pages: map[string]*pixiv.Page{
			"cursor-2": pageOf("cursor-3", illustWithBookmarks(3, 3000), illustWithBookmarks(4, 2000)),
			"cursor-3": pageOf("", illustWithBookmarks(5, 1500), illustWithBookmarks(6, 1200)),
		},
	}
	c := newTestCrawler(api, 1000)

	var seen []uint64
	for il := range c.ArtistWorks(context.Background(), 42) {
		seen = append(seen, il.ID)
	}

	expected := []uint64{1, 2, 3, 4, 5, 6}
	if len(seen) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(seen))
	}
	for i, id := range expected {
		if seen[i] != id {
			t.Errorf("Position %d: expected iid=%d, got iid=%d", i, id, seen[i])
		}
	}

	// Cursors must be followed verbatim.
	if len(api.nextCalls) != 2 || api.nextCalls[0] != "cursor-2" || api.nextCalls[1] != "cursor-3" {
		t.Errorf("Expected cursors [cursor-2 cursor-3], got %v", api.nextCalls)
	}
}

func TestWalkPagesFiltersBeforeYield(t *testing.T) {
	api := &mockAPI{
		firstPages: []*pixiv.Page{
			pageOf("", illustWithBookmarks(1, 5000), illustWithBookmarks(2, 10), illustWithBookmarks(3, 4000)),
		},
	}
	c := newTestCrawler(api, 1000)

	var seen []uint64
	for il := range c.ArtistWorks(context.Background(), 42) {
		seen = append(seen, il.ID)
	}

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("Expected [1 3], got %v", seen)
	}
}

func TestWalkPagesConsumerBreakStopsFetching(t *testing.T) {
	api := &mockAPI{
		firstPages: []*pixiv.Page{
			pageOf("cursor-2", illustWithBookmarks(1, 5000), illustWithBookmarks(2, 4000)),
		},
		pages: map[string]*pixiv.Page{
			"cursor-2": pageOf("", illustWithBookmarks(3, 3000)),
		},
	}
	c := newTestCrawler(api, 1000)

	count := 0
	for range c.ArtistWorks(context.Background(), 42) {
		count++
		break
	}

	if count != 1 {
		t.Fatalf("Expected 1 item, got %d", count)
	}
	if len(api.nextCalls) != 0 {
		t.Errorf("Expected no further page fetches after break, got %v", api.nextCalls)
	}
}

func TestWalkPagesRetriesEmbeddedRateLimit(t *testing.T) {
	calls := 0
	api := &mockAPI{}
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		calls++
		if calls == 1 {
			return &pixiv.Page{Error: &pixiv.APIError{Message: "Rate Limit"}}, nil
		}
		return pageOf("", illustWithBookmarks(1, 5000)), nil
	}
	api.account = &pixiv.Account{ID: "1", IsPremium: true}

	c := newTestCrawler(api, 1000)
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	seq, err := c.SearchTag(context.Background(), "landscape", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	var seen []uint64
	for il := range seq {
		seen = append(seen, il.ID)
	}

	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("Expected the retried page's item, got %v", seen)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
	if len(delays) != 1 || delays[0] != 5*time.Second {
		t.Errorf("Expected one 5s retry delay, got %v", delays)
	}
}

func TestWalkPagesExhaustionEndsStreamQuietly(t *testing.T) {
	api := &mockAPI{}
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		return &pixiv.Page{Error: &pixiv.APIError{Message: "Rate Limit"}}, nil
	}
	api.account = &pixiv.Account{ID: "1", IsPremium: true}
	c := newTestCrawler(api, 1000)

	seq, err := c.SearchTag(context.Background(), "landscape", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for range seq {
		count++
	}
	if count != 0 {
		t.Errorf("Expected an empty stream, got %d items", count)
	}
	if len(api.searchCalls) != 5 {
		t.Errorf("Expected 5 attempts before giving up, got %d", len(api.searchCalls))
	}
}

func TestDateWindowSearchShrinksWindow(t *testing.T) {
	api := &mockAPI{}
	round := 0
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		round++
		switch round {
		case 1:
			return pageOf("",
				datedIllust(1, 5000, "2020-05-01"),
				datedIllust(2, 4000, "2020-04-10"),
			), nil
		default:
			return &pixiv.Page{}, nil
		}
	}
	c := newTestCrawler(api, 1000)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)

	var seen []uint64
	for il := range c.DateWindowSearch(context.Background(), "landscape", start, end) {
		seen = append(seen, il.ID)
	}

	if len(seen) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(seen))
	}
	if len(api.searchCalls) != 2 {
		t.Fatalf("Expected 2 window passes, got %d", len(api.searchCalls))
	}

	first, second := api.searchCalls[0], api.searchCalls[1]
	if first.sort != pixiv.SortDateDesc {
		t.Errorf("Expected date-descending sort, got %q", first.sort)
	}
	if first.startDate != "2020-01-01" || first.endDate != "2020-05-15" {
		t.Errorf("First window: got [%s, %s]", first.startDate, first.endDate)
	}
	// Next window ends the day before the oldest item of the first pass.
	if second.startDate != "2020-01-01" || second.endDate != "2020-04-09" {
		t.Errorf("Second window: got [%s, %s]", second.startDate, second.endDate)
	}
}

func TestDateWindowSearchAdvancesByWallClockDate(t *testing.T) {
	api := &mockAPI{}
	round := 0
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		round++
		if round == 1 {
			// Oldest item created before 09:00 JST: its UTC instant falls on
			// the previous day, but the window must advance by its wall-clock
			// date, or everything dated 2020-04-09 would be skipped.
			il := illustWithBookmarks(1, 5000)
			il.CreateDate = "2020-04-10T08:00:00+09:00"
			return pageOf("", il), nil
		}
		return &pixiv.Page{}, nil
	}
	c := newTestCrawler(api, 1000)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)

	for range c.DateWindowSearch(context.Background(), "landscape", start, end) {
	}

	if len(api.searchCalls) != 2 {
		t.Fatalf("Expected 2 window passes, got %d", len(api.searchCalls))
	}
	if got := api.searchCalls[1].endDate; got != "2020-04-09" {
		t.Errorf("Expected the second window to end 2020-04-09, got %s", got)
	}
}

func TestDateWindowSearchEmptyRange(t *testing.T) {
	api := &mockAPI{}
	c := newTestCrawler(api, 1000)

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	count := 0
	for range c.DateWindowSearch(context.Background(), "landscape", start, end) {
		count++
	}
	if count != 0 {
		t.Errorf("Expected nothing from an inverted range, got %d items", count)
	}
	if len(api.searchCalls) != 0 {
		t.Errorf("Expected no searches for an inverted range, got %d", len(api.searchCalls))
	}
}

func TestDateWindowSearchConsumerBreak(t *testing.T) {
	api := &mockAPI{}
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		return pageOf("",
			datedIllust(1, 5000, "2020-05-01"),
			datedIllust(2, 4000, "2020-04-10"),
		), nil
	}
	c := newTestCrawler(api, 1000)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)

	count := 0
	for range c.DateWindowSearch(context.Background(), "landscape", start, end) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("Expected 1 item, got %d", count)
	}
	if len(api.searchCalls) != 1 {
		t.Errorf("Expected a single pass before the break, got %d", len(api.searchCalls))
	}
}

func TestSearchTagRequiresRangeForFreeAccounts(t *testing.T) {
	api := &mockAPI{account: &pixiv.Account{ID: "1", IsPremium: false}}
	c := newTestCrawler(api, 1000)

	if _, err := c.SearchTag(context.Background(), "landscape", time.Time{}, time.Time{}); err == nil {
		t.Error("Expected an error without a date range on a free account")
	}
}

func TestSearchTagPremiumUsesPopularSort(t *testing.T) {
	api := &mockAPI{account: &pixiv.Account{ID: "1", IsPremium: true}}
	api.searchFn = func(word, sort, startDate, endDate string) (*pixiv.Page, error) {
		return pageOf("", illustWithBookmarks(1, 5000)), nil
	}
	c := newTestCrawler(api, 1000)

	seq, err := c.SearchTag(context.Background(), "landscape", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
	}

	if len(api.searchCalls) == 0 {
		t.Fatal("Expected at least one search call")
	}
	if got := api.searchCalls[0].sort; got != pixiv.SortPopularDesc {
		t.Errorf("Expected popularity sort, got %q", got)
	}
}

func TestFetchIllustEndOfDataIsNil(t *testing.T) {
	api := &mockAPI{}
	api.detailFn = func(illustID uint64) (*pixiv.Illust, error) {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("illust %d gone", illustID))
	}
	c := newTestCrawler(api, 1000)

	il, err := c.FetchIllust(context.Background(), 99)
	if err != nil {
		t.Fatalf("Expected no error for a missing illustration, got %v", err)
	}
	if il != nil {
		t.Errorf("Expected nil result, got %+v", il)
	}
}
