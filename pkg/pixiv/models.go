package pixiv

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	errs "pixdown/pkg/errors"
)

// QualityNotApplicable is the sentinel for illustrations whose quality
// cannot be computed (invisible, or zero views). It sorts below every real
// quality value, which is never negative.
const QualityNotApplicable = -1

// IllustTypeIllust is the only content kind the pipeline accepts; manga and
// novels share the listing endpoints but are out of scope.
const IllustTypeIllust = "illust"

// ImageURLs maps resolution tiers to image URLs.
type ImageURLs struct {
	SquareMedium string `json:"square_medium"`
	Medium       string `json:"medium"`
	Large        string `json:"large"`
	Original     string `json:"original,omitempty"`
}

// MetaSinglePage carries the original-resolution URL for single-page works.
type MetaSinglePage struct {
	OriginalImageURL string `json:"original_image_url"`
}

// MetaPage is one page of a multi-page work.
type MetaPage struct {
	ImageURLs ImageURLs `json:"image_urls"`
}

// Tag is a single illustration tag.
type Tag struct {
	Name           string `json:"name"`
	TranslatedName string `json:"translated_name,omitempty"`
}

// IllustUser identifies the author of an illustration.
type IllustUser struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	Account          string `json:"account"`
	ProfileImageURLs struct {
		Medium string `json:"medium"`
	} `json:"profile_image_urls"`
}

// Illust is one unit of creative content as returned by the app API.
// Instances are immutable once decoded.
type Illust struct {
	ID             uint64         `json:"id"`
	Title          string         `json:"title"`
	Type           string         `json:"type"`
	ImageURLs      ImageURLs      `json:"image_urls"`
	Caption        string         `json:"caption,omitempty"`
	User           IllustUser     `json:"user"`
	Tags           []Tag          `json:"tags,omitempty"`
	CreateDate     string         `json:"create_date"`
	PageCount      int            `json:"page_count"`
	SanityLevel    int            `json:"sanity_level"`
	XRestrict      int            `json:"x_restrict"`
	MetaSinglePage MetaSinglePage `json:"meta_single_page"`
	MetaPages      []MetaPage     `json:"meta_pages,omitempty"`
	TotalView      int            `json:"total_view"`
	TotalBookmarks int            `json:"total_bookmarks"`
	Visible        bool           `json:"visible"`
}

// Quality is the bookmark-to-view ratio percentage rounded to two decimals,
// a proxy for engagement density. Invisible or zero-view illustrations get
// QualityNotApplicable.
func (il *Illust) Quality() float64 {
	if !il.Visible || il.TotalView == 0 {
		return QualityNotApplicable
	}
	return math.Round(float64(il.TotalBookmarks)/float64(il.TotalView)*10000) / 100
}

// Less orders illustrations by total bookmarks, breaking ties by quality.
// It is the ordering relation used by the top-K accumulator.
func (il *Illust) Less(other *Illust) bool {
	if il.TotalBookmarks == other.TotalBookmarks {
		return il.Quality() < other.Quality()
	}
	return il.TotalBookmarks < other.TotalBookmarks
}

// CreatedDate parses the upstream creation timestamp as a calendar date in
// the timestamp's own zone. Upstream timestamps carry +09:00; truncating to
// UTC day boundaries would date early-morning works one day early.
func (il *Illust) CreatedDate() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, il.CreateDate)
	if err != nil {
		// Some cached documents carry a bare date.
		t, err = time.Parse("2006-01-02", il.CreateDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable create_date %q: %w", il.CreateDate, err)
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
}

// DecodeIllust decodes a raw illustration document, failing loudly when
// required fields are missing instead of surfacing zero values downstream.
func DecodeIllust(data []byte) (*Illust, error) {
	var il Illust
	if err := json.Unmarshal(data, &il); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to decode illust: %v", err),
		}
	}
	if il.ID == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, "illust document missing id")
	}
	if il.Type == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "illust document missing type")
	}
	return &il, nil
}

// APIError is the embedded error payload of an API response envelope.
type APIError struct {
	Message     string `json:"message"`
	UserMessage string `json:"user_message"`
}

// Text returns whichever error message field is populated.
func (e *APIError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.UserMessage
}

// Page is the envelope of a paginated listing response. NextURL is the
// opaque page cursor: empty means the listing is exhausted, otherwise it is
// passed back verbatim to fetch the next page.
type Page struct {
	Illusts []*Illust `json:"illusts"`
	NextURL string    `json:"next_url"`
	Error   *APIError `json:"error,omitempty"`
}

// Account is the authenticated pixiv account.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Account   string `json:"account"`
	IsPremium bool   `json:"is_premium"`
}

// authResponse is the OAuth token endpoint response.
type authResponse struct {
	Response struct {
		AccessToken  string  `json:"access_token"`
		ExpiresIn    int     `json:"expires_in"`
		RefreshToken string  `json:"refresh_token"`
		User         Account `json:"user"`
	} `json:"response"`
	HasError bool `json:"has_error,omitempty"`
	Errors   *struct {
		System struct {
			Message string `json:"message"`
		} `json:"system"`
	} `json:"errors,omitempty"`
}

// UserDetail is the author profile document.
type UserDetail struct {
	User    IllustUser `json:"user"`
	Profile struct {
		TotalIllusts int    `json:"total_illusts"`
		TotalManga   int    `json:"total_manga"`
		IsPremium    bool   `json:"is_premium"`
		Region       string `json:"region,omitempty"`
	} `json:"profile"`
	Error *APIError `json:"error,omitempty"`
}

// RankingEntry is one row of the public web ranking endpoint.
type RankingEntry struct {
	IllustID uint64   `json:"illust_id"`
	Title    string   `json:"title"`
	UserID   uint64   `json:"user_id"`
	UserName string   `json:"user_name"`
	Rank     int      `json:"rank"`
	YesRank  int      `json:"yes_rank"`
	Tags     []string `json:"tags,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// RankingPage is one page of the web ranking response. Next is zero when
// there are no further pages (the endpoint sends `false`).
type RankingPage struct {
	Contents []RankingEntry `json:"contents"`
	Date     string         `json:"date,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Next     NextPageNumber `json:"next"`
}

// NextPageNumber decodes the ranking endpoint's `next` field, which is
// either a page number or the literal false.
type NextPageNumber int

func (n *NextPageNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "false" || string(data) == "null" {
		*n = 0
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unexpected next page value %s: %w", data, err)
	}
	*n = NextPageNumber(v)
	return nil
}
