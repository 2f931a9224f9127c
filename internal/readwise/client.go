package readwise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://readwise.io"

	authPath       = "/api/v2/auth/"
	booksPath      = "/api/v2/books/"
	highlightsPath = "/api/v2/highlights/"

	highlightsPageSize = 1000

	defaultTimeout     = 30 * time.Second
	maxRetries         = 3
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2
)

// Client talks to the Readwise v2 REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	retryDelay func(attempt int) time.Duration
}

// NewClient creates a new Readwise API client. An empty baseURL selects the
// public API.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		retryDelay: calculateRetryDelay,
	}
}

// BooksResponse is one page of /api/v2/books/.
type BooksResponse struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []BookData `json:"results"`
}

// BookData is a book (or article, tweet, podcast) as returned by Readwise.
type BookData struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Source          string `json:"source"`
	NumHighlights   int    `json:"num_highlights"`
	LastHighlightAt string `json:"last_highlight_at"`
	Updated         string `json:"updated"`
}

// HighlightsResponse is one page of /api/v2/highlights/.
type HighlightsResponse struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results []HighlightData `json:"results"`
}

// HighlightData is a single highlight as returned by Readwise. Timestamps are
// kept as strings so that a malformed value can be reported per record.
type HighlightData struct {
	ID            int64  `json:"id"`
	Text          string `json:"text"`
	Note          string `json:"note"`
	Location      int    `json:"location"`
	LocationType  string `json:"location_type"`
	HighlightedAt string `json:"highlighted_at"`
	Updated       string `json:"updated"`
	BookID        int64  `json:"book_id"`
}

// ValidateToken checks the configured token against the auth endpoint.
func (c *Client) ValidateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// BooksURL returns the first page URL of the books listing.
func (c *Client) BooksURL() string {
	return c.baseURL + booksPath
}

// HighlightsURL returns the first page URL of the highlights of one book
// updated after the given time.
func (c *Client) HighlightsURL(bookID int64, updatedAfter time.Time) string {
	q := url.Values{}
	q.Set("book_id", strconv.FormatInt(bookID, 10))
	q.Set("page_size", strconv.Itoa(highlightsPageSize))
	if !updatedAfter.IsZero() {
		q.Set("updated__gt", updatedAfter.UTC().Format(time.RFC3339Nano))
	}
	return c.baseURL + highlightsPath + "?" + q.Encode()
}

// BooksPage fetches one page of books.
func (c *Client) BooksPage(ctx context.Context, pageURL string) (*BooksResponse, error) {
	var page BooksResponse
	if err := c.get(ctx, pageURL, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// HighlightsPage fetches one page of highlights.
func (c *Client) HighlightsPage(ctx context.Context, pageURL string) (*HighlightsResponse, error) {
	var page HighlightsResponse
	if err := c.get(ctx, pageURL, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListBooks follows next links until every book page was read.
func (c *Client) ListBooks(ctx context.Context) ([]BookData, error) {
	var books []BookData
	pages := newPager(c.BooksURL())

	for next := pages.first(); next != ""; {
		page, err := c.BooksPage(ctx, next)
		if err != nil {
			return nil, err
		}
		books = append(books, page.Results...)
		if next, err = pages.advance(page.Next); err != nil {
			return nil, err
		}
	}

	return books, nil
}

func (c *Client) get(ctx context.Context, pageURL string, out any) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.doRequest(ctx, pageURL, out)
		if lastErr == nil {
			return nil
		}

		// Only retry on rate limits or server errors
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, pageURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// maxPages bounds a single listing; at 1000 highlights per page no real
// book comes close.
const maxPages = 10000

// pager follows next links and stops a listing whose links repeat.
type pager struct {
	start   string
	visited map[string]struct{}
}

func newPager(start string) *pager {
	return &pager{start: start, visited: map[string]struct{}{start: {}}}
}

func (p *pager) first() string {
	return p.start
}

// advance returns the next page URL, or "" when the listing is complete.
func (p *pager) advance(next *string) (string, error) {
	if next == nil || *next == "" {
		return "", nil
	}
	if _, seen := p.visited[*next]; seen {
		return "", fmt.Errorf("%w: %s was already read", ErrPaginationLoop, *next)
	}
	if len(p.visited) >= maxPages {
		return "", fmt.Errorf("%w: more than %d pages", ErrPaginationLoop, maxPages)
	}
	p.visited[*next] = struct{}{}
	return *next, nil
}

func calculateRetryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
