package crawler

import (
	"context"
	"time"

	"pixdown/pkg/pixiv"
)

// API is the upstream collaborator contract the pipeline depends on. The
// production implementation is pixiv.Client; tests substitute a mock.
type API interface {
	// Authenticate establishes or refreshes the session. The session object
	// is mutated in place; safe because pipeline runs are sequential.
	Authenticate(ctx context.Context) (*pixiv.Account, error)
	// Account returns the authenticated account, nil before Authenticate.
	Account() *pixiv.Account

	// Listing sources. Each returns the first page; NextPage follows the
	// page cursor verbatim.
	SearchIllust(ctx context.Context, word, sort, startDate, endDate string) (*pixiv.Page, error)
	UserIllusts(ctx context.Context, userID uint64) (*pixiv.Page, error)
	IllustRelated(ctx context.Context, illustID uint64) (*pixiv.Page, error)
	IllustRecommended(ctx context.Context) (*pixiv.Page, error)
	NextPage(ctx context.Context, nextURL string) (*pixiv.Page, error)

	IllustDetail(ctx context.Context, illustID uint64) (*pixiv.Illust, error)
	UserDetail(ctx context.Context, userID uint64) (*pixiv.UserDetail, error)
	FetchRanking(ctx context.Context, date time.Time, page int) (*pixiv.RankingPage, error)

	// InspectPage classifies embedded error payloads in a page envelope.
	InspectPage(page *pixiv.Page) error

	// Download fetches a binary asset.
	Download(ctx context.Context, assetURL string) ([]byte, error)
}
