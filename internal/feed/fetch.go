package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "neucal/internal/log"
)

// DefaultFetchTimeout bounds a single feed request.
const DefaultFetchTimeout = 15 * time.Second

// Validators are the HTTP cache validators of the last accepted response.
// They are sent back as If-None-Match / If-Modified-Since.
type Validators struct {
	ETag         string
	LastModified string
}

// Response is the outcome of one feed request.
type Response struct {
	Body        []byte
	NotModified bool // server answered 304 for the given validators
	Validators  Validators
}

// Fetcher retrieves the raw calendar payload.
type Fetcher interface {
	Fetch(ctx context.Context, v Validators) (Response, error)
}

// HTTPFetcher fetches a single ICS URL with a plain GET.
type HTTPFetcher struct {
	client *http.Client
	url    string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the per-request timeout. Zero or negative keeps the default.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewHTTPFetcher creates a fetcher for feedURL.
func NewHTTPFetcher(feedURL string, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: DefaultFetchTimeout,
		},
		url: feedURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the feed URL this fetcher targets.
func (f *HTTPFetcher) URL() string {
	return f.url
}

// Fetch performs one GET. Any non-2xx status other than 304 is returned
// as a *StatusError; timeouts surface as the client's error.
func (f *HTTPFetcher) Fetch(ctx context.Context, v Validators) (Response, error) {
	if f.url == "" {
		return Response{}, errors.New("feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	// Conditional headers from the snapshot we already hold.
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	}
	if v.LastModified != "" {
		req.Header.Set("If-Modified-Since", v.LastModified)
	}

	appLog.Debug("feed fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Response{NotModified: true, Validators: v}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, err
		}
		appLog.Debug("feed fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "bytes", len(body))
		return Response{
			Body: body,
			Validators: Validators{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			},
		}, nil

	default:
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

// redactURL hides path and query of a feed URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	if parsed.Path == "" && parsed.RawQuery == "" {
		return parsed.Scheme + "://" + parsed.Host
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
