package pixiv

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	errs "pixdown/pkg/errors"
	"pixdown/pkg/logger"
)

// Client is the pixiv app API client. It owns the OAuth session: the access
// token is refreshed in place by Authenticate, which is safe because every
// pipeline run is strictly sequential.
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	authURL      string
	refreshToken string
	accessToken  string
	account      *Account
	logger       logger.Logger
}

// NewClient creates a new pixiv API client for the given refresh token.
func NewClient(refreshToken string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      "PixivIOSApp/7.13.3 (iOS 14.6; iPhone13,2)",
			"App-OS":          "ios",
			"App-OS-Version":  "14.6",
			"Accept-Language": "en-us",
		},
		authURL:      AuthURL,
		refreshToken: refreshToken,
		logger:       log,
	}
}

// SetAcceptLanguage changes the language for translated tag names.
func (c *Client) SetAcceptLanguage(lang string) {
	c.headers["Accept-Language"] = lang
}

// Account returns the authenticated account, nil before Authenticate.
func (c *Client) Account() *Account {
	return c.account
}

// Authenticate exchanges the refresh token for an access token and records
// the account. It is called once at startup and again from the retry
// governor's inspector when the upstream reports an expired token.
func (c *Client) Authenticate(ctx context.Context) (*Account, error) {
	c.logger.Info("authenticating with refresh token")

	form := url.Values{}
	form.Set("get_secure_url", "1")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create auth request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read auth response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorWithFields("authentication failed", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: fmt.Sprintf("authentication failed: %s", firstLine(body)),
			Code:    resp.StatusCode,
		}
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse auth response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	c.accessToken = auth.Response.AccessToken
	if auth.Response.RefreshToken != "" {
		c.refreshToken = auth.Response.RefreshToken
	}
	c.account = &auth.Response.User

	c.logger.InfoWithFields("authenticated", map[string]interface{}{
		"account":    c.account.Account,
		"is_premium": c.account.IsPremium,
	})

	return c.account, nil
}

// SearchIllust fetches the first page of a tag search.
func (c *Client) SearchIllust(ctx context.Context, word, sort, startDate, endDate string) (*Page, error) {
	return c.fetchPage(ctx, SearchIllustURL(word, sort, startDate, endDate))
}

// UserIllusts fetches the first page of an artist's works.
func (c *Client) UserIllusts(ctx context.Context, userID uint64) (*Page, error) {
	return c.fetchPage(ctx, UserIllustsURL(userID))
}

// IllustRelated fetches the first page of works related to an illustration.
func (c *Client) IllustRelated(ctx context.Context, illustID uint64) (*Page, error) {
	return c.fetchPage(ctx, IllustRelatedURL(illustID))
}

// IllustRecommended fetches the first page of recommended works.
func (c *Client) IllustRecommended(ctx context.Context) (*Page, error) {
	return c.fetchPage(ctx, IllustRecommendedURL())
}

// NextPage follows a page cursor verbatim.
func (c *Client) NextPage(ctx context.Context, nextURL string) (*Page, error) {
	return c.fetchPage(ctx, nextURL)
}

// IllustDetail fetches a single illustration document.
func (c *Client) IllustDetail(ctx context.Context, illustID uint64) (*Illust, error) {
	var envelope struct {
		Illust *Illust   `json:"illust"`
		Error  *APIError `json:"error,omitempty"`
	}
	if err := c.getJSON(ctx, IllustDetailURL(illustID), &envelope); err != nil {
		return nil, err
	}
	if envelope.Error != nil {
		return nil, classifyMessage(envelope.Error.Text())
	}
	if envelope.Illust == nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: fmt.Sprintf("illust %d not found", illustID),
		}
	}
	return envelope.Illust, nil
}

// UserDetail fetches an author profile.
func (c *Client) UserDetail(ctx context.Context, userID uint64) (*UserDetail, error) {
	var detail UserDetail
	if err := c.getJSON(ctx, UserDetailURL(userID), &detail); err != nil {
		return nil, err
	}
	if detail.Error != nil {
		return nil, classifyMessage(detail.Error.Text())
	}
	if detail.User.ID == 0 {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: fmt.Sprintf("user %d not found", userID),
		}
	}
	return &detail, nil
}

// FetchRanking fetches one page of the public web ranking for a day.
func (c *Client) FetchRanking(ctx context.Context, date time.Time, page int) (*RankingPage, error) {
	rankingURL := RankingURL(date, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rankingURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Referer", WebBaseURL+RankingEndpoint)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read ranking response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if resp.StatusCode != http.StatusOK {
		var webErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &webErr) == nil && webErr.Error != "" {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: webErr.Error,
				Code:    resp.StatusCode,
			}
		}
		return nil, statusError(resp.StatusCode)
	}

	var ranking RankingPage
	if err := json.Unmarshal(body, &ranking); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse ranking page: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return &ranking, nil
}

// Download fetches a binary asset. Image hosts require the pixiv Referer.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Referer", AppBaseURL+"/")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read asset: %v", err),
		}
	}

	c.logger.DebugWithFields("asset downloaded", map[string]interface{}{
		"url":  assetURL,
		"size": len(data),
	})

	return data, nil
}

// InspectPage examines a page envelope for embedded error payloads. Rate
// limiting and expired credentials come back as classified retryable
// errors; offset exhaustion is logged and swallowed so the empty page
// terminates pagination normally; anything else is logged and the degraded
// result stands.
func (c *Client) InspectPage(page *Page) error {
	if page == nil || page.Error == nil {
		return nil
	}

	apiErr := classifyMessage(page.Error.Text())
	switch apiErr.Type {
	case errs.ErrorTypeRateLimit, errs.ErrorTypeAuth:
		return apiErr
	case errs.ErrorTypeOffsetLimit:
		c.logger.Warn(apiErr.Message)
		return nil
	default:
		if msg := page.Error.Text(); msg != "" {
			c.logger.Error(msg)
		} else {
			c.logger.ErrorWithFields("api error", map[string]interface{}{
				"error": fmt.Sprintf("%+v", page.Error),
			})
		}
		return nil
	}
}

// fetchPage performs a listing request. The body is decoded even on error
// statuses so embedded error payloads stay visible to the inspector.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var page Page
	if err := json.Unmarshal(body, &page); err == nil {
		if resp.StatusCode == http.StatusOK || page.Error != nil {
			return &page, nil
		}
	}

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return nil, &errs.Error{
		Type:    errs.ErrorTypeParsing,
		Message: fmt.Sprintf("failed to parse page: %s", firstLine(body)),
		Code:    resp.StatusCode,
	}
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, reqURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		if statusErr := statusError(resp.StatusCode); statusErr != nil {
			return statusErr
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          reqURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": firstLine(body),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// do performs an HTTP request with the client headers and session token.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	// The OAuth host rejects requests without a client hash.
	clientTime := time.Now().Format(time.RFC3339)
	req.Header.Set("X-Client-Time", clientTime)
	req.Header.Set("X-Client-Hash", fmt.Sprintf("%x", md5.Sum([]byte(clientTime+clientHashSalt))))

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// classifyMessage maps an embedded API error message to a typed error.
func classifyMessage(msg string) *errs.Error {
	switch {
	case strings.Contains(msg, "Rate Limit"):
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "request rate limit"}
	case strings.Contains(msg, "Please check your Access Token"),
		strings.Contains(msg, "OAuth"),
		strings.Contains(msg, "invalid_grant"):
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "access token expired"}
	case strings.Contains(msg, "Offset must be no more than"):
		return &errs.Error{Type: errs.ErrorTypeOffsetLimit, Message: msg}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: msg}
	}
}

// statusError maps an HTTP status to a typed error, nil for success.
func statusError(statusCode int) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "authentication required", Code: statusCode}
	case statusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: statusCode}
	case errs.IsRetryableStatusCode(statusCode):
		// Remaining retryable statuses are transient upstream failures.
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: statusCode}
	case statusCode >= 400:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: fmt.Sprintf("unexpected status code: %d", statusCode), Code: statusCode}
	default:
		return nil
	}
}

// FileNameFromURL derives the destination file name from an asset URL.
func FileNameFromURL(assetURL string) string {
	u, err := url.Parse(assetURL)
	if err != nil {
		return path.Base(assetURL)
	}
	return path.Base(u.Path)
}

func firstLine(body []byte) string {
	s := string(body)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
