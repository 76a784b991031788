// Package scraper fetches web pages and extracts their readable text.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	// DefaultUserAgent mimics a desktop browser so sites do not block the request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultTimeout   = 10 * time.Second
	defaultMaxChars  = 12000
	maxBodyBytes     = 5 << 20
)

// Page is the readable content of a fetched URL.
type Page struct {
	URL   string
	Title string
	Body  string
}

// Text renders the page for a prompt.
func (p Page) Text() string {
	return "Title: " + p.Title + "\n\n" + p.Body
}

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxChars  int
}

// NewFetcher returns a Fetcher. Zero arguments select defaults.
func NewFetcher(timeout time.Duration, maxChars int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
		maxChars:  maxChars,
	}
}

// Fetch downloads link and extracts its main content with readability.
func (f *Fetcher) Fetch(ctx context.Context, link string) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, errors.New("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), u)
	if err != nil {
		return Page{}, fmt.Errorf("extract content: %w", err)
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = "No title found"
	}
	body := strings.Join(strings.Fields(article.TextContent), " ")
	if r := []rune(body); len(r) > f.maxChars {
		body = string(r[:f.maxChars])
	}
	return Page{URL: link, Title: title, Body: body}, nil
}
