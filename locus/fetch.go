package locus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Bucknalla/go-robot-locus/internal/httputil"
)

// DefaultPath is the positions path used when no prefix is configured.
const DefaultPath = "/positions/"

// Fetcher retrieves the samples of a query in chronological order.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]Sample, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, q Query) ([]Sample, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, q Query) ([]Sample, error) {
	return f(ctx, q)
}

// PathFor builds the positions path under an optional prefix:
// "" and "/" give "/positions/", "foo", "/foo" and "/foo/" give "/foo/positions/".
func PathFor(prefix string) string {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return DefaultPath
	}
	return "/" + trimmed + DefaultPath
}

// HTTPFetcher queries a positions endpoint over HTTP.
type HTTPFetcher struct {
	client   httputil.HTTPClient
	endpoint string
	path     string
	bearer   string
	rawTimes bool
}

// NewHTTPFetcher creates a fetcher for cfg.Endpoint. A nil client uses
// an http.Client with cfg.Timeout.
func NewHTTPFetcher(cfg Config, client httputil.HTTPClient) *HTTPFetcher {
	if client == nil {
		client = httputil.NewStandardClient(&http.Client{Timeout: cfg.Timeout})
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	return &HTTPFetcher{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		path:     path,
		bearer:   cfg.Bearer,
		rawTimes: cfg.RawTimes,
	}
}

// CheckPath validates a positions path override. It must be an absolute
// path on the configured endpoint: no scheme, host, query or fragment.
func CheckPath(path string) error {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.ContainsAny(path, "?#\\") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// URL returns the request URL for q. The host always comes from the
// configured endpoint.
func (f *HTTPFetcher) URL(q Query) (string, error) {
	path := f.path
	if q.Path != "" {
		if err := CheckPath(q.Path); err != nil {
			return "", err
		}
		path = q.Path
	}

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: missing scheme or host", f.endpoint)
	}

	params := url.Values{}
	params.Set("st", FormatQueryTime(q.Start, f.rawTimes))
	params.Set("et", FormatQueryTime(q.End, f.rawTimes))

	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = params.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Fetch issues one GET for q. It does not retry; any transport error,
// non-2xx status or undecodable body is returned as an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, q Query) ([]Sample, error) {
	target, err := f.URL(q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	bearer := f.bearer
	if q.Bearer != "" {
		bearer = q.Bearer
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("positions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrFetchStatus, resp.StatusCode)
	}

	var samples []Sample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return samples, nil
}
