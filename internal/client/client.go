// Package client provides an HTTP client for the mela REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/matcher"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/school"
	"github.com/evcraddock/mela/internal/wanted"
)

// Client is an HTTP client for the mela API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error: %s", http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusUnauthorized
}

// ListingOptions controls filtering for ListListings.
type ListingOptions struct {
	Category string
	Locality string
	Query    string
	Status   string
	UserID   string
	// School filters listings by school ID.
	School string
	Limit  int
}

func (o ListingOptions) values() url.Values {
	v := url.Values{}
	set(v, "category", o.Category)
	set(v, "locality", o.Locality)
	set(v, "q", o.Query)
	set(v, "status", o.Status)
	set(v, "user_id", o.UserID)
	set(v, "school", o.School)
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

func set(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// ListListings returns listings, optionally filtered.
func (c *Client) ListListings(ctx context.Context, opts ListingOptions) ([]*listing.Listing, error) {
	var listings []*listing.Listing
	if err := c.get(ctx, "/api/listings", opts.values(), &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetListing returns one listing.
func (c *Client) GetListing(ctx context.Context, id string) (*listing.Listing, error) {
	var l listing.Listing
	if err := c.get(ctx, "/api/listings/"+url.PathEscape(id), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListWanted returns active wanted ads. opts.Status and opts.School are
// ignored.
func (c *Client) ListWanted(ctx context.Context, opts ListingOptions) ([]*wanted.Ad, error) {
	opts.Status = ""
	opts.School = ""
	var ads []*wanted.Ad
	if err := c.get(ctx, "/api/wanted", opts.values(), &ads); err != nil {
		return nil, err
	}
	return ads, nil
}

// Schools returns the schools in city, or every school when city is empty.
func (c *Client) Schools(ctx context.Context, city string) ([]*school.School, error) {
	v := url.Values{}
	set(v, "city", city)
	var schools []*school.School
	if err := c.get(ctx, "/api/schools", v, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// MatchResult is the response of POST /api/match-brands.
type MatchResult struct {
	Success           bool   `json:"success"`
	Brand             string `json:"brand"`
	MatchedUsersCount int    `json:"matchedUsersCount"`
	Message           string `json:"message,omitempty"`
}

// Match runs a brand match for a listing or wanted ad.
func (c *Client) Match(ctx context.Context, req matcher.Request) (*MatchResult, error) {
	var res MatchResult
	if err := c.post(ctx, "/api/match-brands", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := c.get(ctx, "/api/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// BrandCatalog returns the known brand names.
func (c *Client) BrandCatalog(ctx context.Context) ([]string, error) {
	var resp struct {
		Brands []string `json:"brands"`
	}
	if err := c.get(ctx, "/api/brands", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Brands, nil
}

// GetBrands returns the caller's brand preferences.
func (c *Client) GetBrands(ctx context.Context) (*brand.Preferences, error) {
	var prefs brand.Preferences
	if err := c.get(ctx, "/api/me/brands", nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SetBrands replaces the caller's brand preferences.
func (c *Client) SetBrands(ctx context.Context, prefs brand.Preferences) (*brand.Preferences, error) {
	var saved brand.Preferences
	if err := c.send(ctx, http.MethodPut, "/api/me/brands", prefs, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Notifications lists the caller's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]*notification.Notification, error) {
	var q url.Values
	if unreadOnly {
		q = url.Values{"unread": {"true"}}
	}
	var notes []*notification.Notification
	if err := c.get(ctx, "/api/notifications", q, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.post(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllRead marks every notification read and returns how many changed.
func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.post(ctx, "/api/notifications/read-all", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// DigestResponse is the response of POST /api/notifications/digest.
type DigestResponse struct {
	Sent    bool   `json:"sent"`
	Count   int    `json:"count"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Digest emails the caller's pending notifications, or previews the
// email when dryRun is set.
func (c *Client) Digest(ctx context.Context, dryRun bool) (*DigestResponse, error) {
	var resp DigestResponse
	if err := c.post(ctx, "/api/notifications/digest", map[string]bool{"dry_run": dryRun}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recommend returns service suggestions for a free-text query.
func (c *Client) Recommend(ctx context.Context, query string) (string, error) {
	var resp struct {
		Recommendation string `json:"recommendation"`
	}
	if err := c.post(ctx, "/api/services/recommend", map[string]string{"query": query}, &resp); err != nil {
		return "", err
	}
	return resp.Recommendation, nil
}

// RequestCLILogin asks the server to email a CLI login link.
func (c *Client) RequestCLILogin(ctx context.Context, email string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/cli/auth", map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Message, apiErr.Code = errResp.Error, errResp.Code
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
