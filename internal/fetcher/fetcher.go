// Package fetcher retrieves a single service description page and extracts
// its readable text for extraction.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/govextract/internal/logger"
)

// ErrNoText is returned when a page has no readable text.
var ErrNoText = errors.New("page contains no readable text")

// Config holds fetcher settings.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// Selector picks the content root. The first selector in the list that
	// matches is used; "body" is the fallback.
	Selector string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
		Selector:  "main, article, #content",
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// blockSelector lists the elements whose text becomes one line each.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, th, td, blockquote, pre"

// Page is a fetched page.
type Page struct {
	URL        string
	Title      string
	Text       string
	StatusCode int
	FetchedAt  time.Time
}

// Fetcher fetches static HTML pages with colly.
type Fetcher struct {
	config Config
}

// New creates a Fetcher. Zero values in cfg fall back to DefaultConfig.
func New(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Selector == "" {
		cfg.Selector = def.Selector
	}
	return &Fetcher{config: cfg}
}

// Fetch retrieves targetURL and returns its readable text.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	logger.Debug("fetch starting", "url", targetURL)

	page := &Page{URL: targetURL, FetchedAt: time.Now()}

	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.config.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		body = r.Body
		logger.Debug("fetch response received",
			"status", r.StatusCode,
			"content_type", r.Headers.Get("Content-Type"),
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.StatusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	title, text, err := f.extractText(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	if text == "" {
		return nil, ErrNoText
	}
	page.Title = title
	page.Text = text

	logger.Debug("fetch complete", "url", targetURL, "title", title, "text_size", len(text))
	return page, nil
}

// ExtractText returns the readable text of an HTML document.
func (f *Fetcher) ExtractText(html string) (string, error) {
	_, text, err := f.extractText(html)
	return text, err
}

func (f *Fetcher) extractText(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title = cleanText(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, form").Remove()

	root := doc.Find(f.config.Selector).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var lines []string
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Only leaf blocks, so nested lists are not repeated.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if line := cleanText(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return title, cleanText(root.Text()), nil
	}
	return title, strings.Join(lines, "\n"), nil
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
