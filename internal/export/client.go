// Package export implements the bulk-export pipeline: it drains every
// user out of a running users-api instance over HTTP and writes the
// result to analytics-friendly formats (JSON, JSONL, Parquet — local
// or S3).
//
// The package is consumed by cmd/users-export but deliberately knows
// nothing about flags or config files; callers hand it a base URL and
// get back records.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// User is the export-side view of a user record. It mirrors the JSON
// the API returns and adds the parquet schema tags the writers need.
// Kept separate from types.User so the API types stay free of
// format-specific tags.
type User struct {
	ID    int64  `json:"id" parquet:"name=id, type=INT64"`
	Name  string `json:"name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Email string `json:"email" parquet:"name=email, type=BYTE_ARRAY, convertedtype=UTF8"`
	Age   int32  `json:"age" parquet:"name=age, type=INT32"`
}

// Defaults for the HTTP client. Each attempt gets its own timeout; the
// caller's context bounds the whole job including backoff sleeps.
const (
	defaultPageLimit = 50 // per page; the API caps limit at 100
	defaultRetryMax  = 5
	defaultWaitMin   = 1 * time.Second
	defaultWaitMax   = 30 * time.Second
	requestTimeout   = 15 * time.Second
)

// Client fetches users from a users-api instance, page by page, with
// automatic retries on transient failures (network errors, 429, 5xx).
type Client struct {
	http      *retryablehttp.Client
	baseURL   string
	pageLimit int
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithPageLimit sets how many users to request per page. The API
// rejects values outside [1,100], so stay inside that range.
func WithPageLimit(limit int) ClientOption {
	return func(c *Client) {
		c.pageLimit = limit
	}
}

// WithRetryPolicy overrides the retry count and backoff window.
// Tests use this to keep retry exhaustion fast.
func WithRetryPolicy(retryMax int, waitMin, waitMax time.Duration) ClientOption {
	return func(c *Client) {
		c.http.RetryMax = retryMax
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// NewClient returns a Client targeting baseURL, which should be the
// listing endpoint of a users-api instance, e.g.
// "http://localhost:8082/users/".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = defaultRetryMax
	client.RetryWaitMin = defaultWaitMin
	client.RetryWaitMax = defaultWaitMax
	client.HTTPClient.Timeout = requestTimeout

	// The library logs every attempt on its own; nil keeps it quiet.
	// Retry exhaustion still surfaces as an error from Do.
	client.Logger = nil

	c := &Client{
		http:      client,
		baseURL:   baseURL,
		pageLimit: defaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll walks the listing endpoint until a short or empty page
// signals the end of the data, and returns every user seen.
//
// The context bounds the entire job: pass context.WithTimeout if the
// export must finish within a deadline.
func (c *Client) FetchAll(ctx context.Context) ([]User, error) {
	var all []User
	skip := 0

	for {
		// Stop between pages if the job has been cancelled; a fetch in
		// flight is cancelled through the request context below.
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("export cancelled: %w", ctx.Err())
		default:
		}

		slog.Debug("fetching page",
			slog.Int("skip", skip),
			slog.Int("limit", c.pageLimit))

		page, err := c.fetchPage(ctx, skip, c.pageLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch page at skip %d: %w", skip, err)
		}

		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		// A short page means the table is exhausted — no need for one
		// more round trip just to see the empty page.
		if len(page) < c.pageLimit {
			break
		}

		skip += c.pageLimit
	}

	return all, nil
}

// fetchPage requests a single page. Retries are handled inside
// c.http.Do; an error here means retries were exhausted, the response
// was non-retryable, or the context was cancelled.
func (c *Client) fetchPage(ctx context.Context, skip, limit int) ([]User, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))
	parsed.RawQuery = query.Encode()
	pageURL := parsed.String()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s after retries: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s (status %d): %w", pageURL, resp.StatusCode, err)
	}

	// Non-retryable statuses (404, 422, …) come back as a normal
	// response, so check explicitly.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d for %s: %s", resp.StatusCode, pageURL, body)
	}

	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", pageURL, err)
	}

	return users, nil
}
