package pixiv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "pixdown/pkg/errors"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		message  string
		expected errs.ErrorType
	}{
		{"Rate Limit", errs.ErrorTypeRateLimit},
		{"Error occurred at the OAuth process. Please check your Access Token to fix this.", errs.ErrorTypeAuth},
		{"invalid_grant", errs.ErrorTypeAuth},
		{"Offset must be no more than 5000", errs.ErrorTypeOffsetLimit},
		{"something else entirely", errs.ErrorTypeUnknown},
	}

	for _, test := range tests {
		t.Run(test.message, func(t *testing.T) {
			if got := classifyMessage(test.message); got.Type != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, got.Type)
			}
		})
	}
}

func TestInspectPage(t *testing.T) {
	client := NewClient("token", time.Second, nil)

	// Clean pages and nil pages pass.
	if err := client.InspectPage(nil); err != nil {
		t.Errorf("Expected nil for a nil page, got %v", err)
	}
	if err := client.InspectPage(&Page{}); err != nil {
		t.Errorf("Expected nil for a clean page, got %v", err)
	}

	// Rate limiting and expired tokens must surface as retryable errors.
	err := client.InspectPage(&Page{Error: &APIError{Message: "Rate Limit"}})
	typed, ok := err.(*errs.Error)
	if !ok || typed.Type != errs.ErrorTypeRateLimit {
		t.Errorf("Expected a rate limit error, got %v", err)
	}

	err = client.InspectPage(&Page{Error: &APIError{UserMessage: "Please check your Access Token"}})
	typed, ok = err.(*errs.Error)
	if !ok || typed.Type != errs.ErrorTypeAuth {
		t.Errorf("Expected an auth error, got %v", err)
	}

	// Offset exhaustion is benign: logged, not raised.
	if err := client.InspectPage(&Page{Error: &APIError{Message: "Offset must be no more than 5000"}}); err != nil {
		t.Errorf("Expected the offset ceiling to be swallowed, got %v", err)
	}

	// Unknown embedded errors leave the degraded page standing.
	if err := client.InspectPage(&Page{Error: &APIError{Message: "mystery"}}); err != nil {
		t.Errorf("Expected unknown errors to be swallowed, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code     int
		expected errs.ErrorType
		isNil    bool
	}{
		{200, "", true},
		{401, errs.ErrorTypeAuth, false},
		{403, errs.ErrorTypeAuth, false},
		{404, errs.ErrorTypeNotFound, false},
		{429, errs.ErrorTypeRateLimit, false},
		{500, errs.ErrorTypeServerError, false},
		{503, errs.ErrorTypeServerError, false},
		{418, errs.ErrorTypeUnknown, false},
	}

	for _, test := range tests {
		err := statusError(test.code)
		if test.isNil {
			if err != nil {
				t.Errorf("Code %d: expected nil, got %v", test.code, err)
			}
			continue
		}
		typed, ok := err.(*errs.Error)
		if !ok {
			t.Errorf("Code %d: expected a typed error, got %v", test.code, err)
			continue
		}
		if typed.Type != test.expected {
			t.Errorf("Code %d: expected %s, got %s", test.code, test.expected, typed.Type)
		}
	}
}

func TestFetchPageDecodesEmbeddedErrorOnBadStatus(t *testing.T) {
	// The API reports rate limiting with a 403 plus an error envelope; the
	// envelope must win over the bare status so the inspector can classify it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "Rate Limit"},
		})
	}))
	defer server.Close()

	client := NewClient("token", time.Second, nil)
	page, err := client.fetchPage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected the envelope to decode, got %v", err)
	}
	if page.Error == nil || page.Error.Message != "Rate Limit" {
		t.Errorf("Expected the embedded error to survive, got %+v", page.Error)
	}
}

func TestFetchPageParsesListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"illusts": []map[string]interface{}{
				{"id": 1, "type": "illust", "visible": true},
				{"id": 2, "type": "illust", "visible": true},
			},
			"next_url": "https://app-api.pixiv.net/v1/user/illusts?offset=30",
		})
	}))
	defer server.Close()

	client := NewClient("token", time.Second, nil)
	page, err := client.fetchPage(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Illusts) != 2 {
		t.Fatalf("Expected 2 illusts, got %d", len(page.Illusts))
	}
	if page.NextURL == "" {
		t.Error("Expected the page cursor to be preserved")
	}
}

func TestDownloadSendsReferer(t *testing.T) {
	var referer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	client := NewClient("token", time.Second, nil)
	data, err := client.Download(context.Background(), server.URL+"/img/1_p0.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("Unexpected body %q", data)
	}
	if referer != AppBaseURL+"/" {
		t.Errorf("Expected the app Referer, got %q", referer)
	}
}

func TestAuthenticateStoresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("Expected refresh_token grant, got %q", r.PostForm.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{
				"access_token":  "access-123",
				"refresh_token": "refresh-456",
				"expires_in":    3600,
				"user": map[string]interface{}{
					"id":         "660788",
					"name":       "tester",
					"account":    "tester",
					"is_premium": true,
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient("refresh-old", time.Second, nil)
	client.authURL = server.URL

	account, err := client.Authenticate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if account.Name != "tester" || !account.IsPremium {
		t.Errorf("Unexpected account %+v", account)
	}
	if client.accessToken != "access-123" {
		t.Errorf("Expected the access token to be stored, got %q", client.accessToken)
	}
	if client.refreshToken != "refresh-456" {
		t.Errorf("Expected the rotated refresh token to be stored, got %q", client.refreshToken)
	}
	if client.Account() != account {
		t.Error("Account() must return the authenticated session")
	}
}
