package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxPageBytes        = 5 << 20
	maxContentLen       = 20000
)

// Page is the readable text extracted from a web page.
type Page struct {
	Title   string
	Content string
	Excerpt string
	URL     string
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// URLFetcher downloads a page and extracts its main text with go-readability.
type URLFetcher struct {
	client *http.Client
}

func NewURLFetcher(timeout time.Duration) *URLFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &URLFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *URLFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pulse/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch URL: unexpected status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}

	content := truncate(strings.TrimSpace(article.TextContent), maxContentLen)
	return &Page{
		Title:   strings.TrimSpace(article.Title),
		Content: content,
		Excerpt: strings.TrimSpace(article.Excerpt),
		URL:     rawURL,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
