package pixiv

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// AppBaseURL is the base URL for the pixiv app API.
	AppBaseURL = "https://app-api.pixiv.net"

	// AuthURL is the OAuth token endpoint.
	AuthURL = "https://oauth.secure.pixiv.net/auth/token"

	// WebBaseURL is the base URL of the public website.
	WebBaseURL = "https://www.pixiv.net"

	// RankingEndpoint is the public web ranking endpoint, keyed by date.
	RankingEndpoint = "/ranking.php"

	// Public app client credentials, shared by every app-API consumer.
	clientID       = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	clientSecret   = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtDaKeqrdwj"
	clientHashSalt = "28c1fdd170a5204386cb1313c7077b34f83e4aaf4aa829ce78c231e05b0bae2c"

	// apiFilter tags every app-API request; the API rejects calls without it.
	apiFilter = "for_ios"
)

// Sort orders accepted by the search endpoint.
const (
	SortDateDesc    = "date_desc"
	SortPopularDesc = "popular_desc"
)

// SearchIllustURL constructs the tag search URL. Empty start/end dates are
// omitted; the upstream then searches its full history.
func SearchIllustURL(word, sort, startDate, endDate string) string {
	params := url.Values{}
	params.Set("word", word)
	params.Set("search_target", "partial_match_for_tags")
	params.Set("sort", sort)
	params.Set("filter", apiFilter)
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}
	return fmt.Sprintf("%s/v1/search/illust?%s", AppBaseURL, params.Encode())
}

// UserIllustsURL constructs the artist works listing URL.
func UserIllustsURL(userID uint64) string {
	params := url.Values{}
	params.Set("user_id", fmt.Sprintf("%d", userID))
	params.Set("type", IllustTypeIllust)
	params.Set("filter", apiFilter)
	return fmt.Sprintf("%s/v1/user/illusts?%s", AppBaseURL, params.Encode())
}

// IllustRelatedURL constructs the related-works listing URL.
func IllustRelatedURL(illustID uint64) string {
	params := url.Values{}
	params.Set("illust_id", fmt.Sprintf("%d", illustID))
	params.Set("filter", apiFilter)
	return fmt.Sprintf("%s/v2/illust/related?%s", AppBaseURL, params.Encode())
}

// IllustRecommendedURL constructs the recommendation listing URL.
func IllustRecommendedURL() string {
	params := url.Values{}
	params.Set("content_type", IllustTypeIllust)
	params.Set("include_ranking_label", "true")
	params.Set("filter", apiFilter)
	return fmt.Sprintf("%s/v1/illust/recommended?%s", AppBaseURL, params.Encode())
}

// IllustDetailURL constructs the single illustration detail URL.
func IllustDetailURL(illustID uint64) string {
	params := url.Values{}
	params.Set("illust_id", fmt.Sprintf("%d", illustID))
	return fmt.Sprintf("%s/v1/illust/detail?%s", AppBaseURL, params.Encode())
}

// UserDetailURL constructs the author profile URL.
func UserDetailURL(userID uint64) string {
	params := url.Values{}
	params.Set("user_id", fmt.Sprintf("%d", userID))
	params.Set("filter", apiFilter)
	return fmt.Sprintf("%s/v1/user/detail?%s", AppBaseURL, params.Encode())
}

// RankingURL constructs the public web ranking URL for a day and page.
func RankingURL(date time.Time, page int) string {
	params := url.Values{}
	params.Set("mode", "daily")
	params.Set("content", IllustTypeIllust)
	params.Set("date", date.Format("20060102"))
	params.Set("p", fmt.Sprintf("%d", page))
	params.Set("format", "json")
	return fmt.Sprintf("%s%s?%s", WebBaseURL, RankingEndpoint, params.Encode())
}
