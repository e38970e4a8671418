package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/pkg/logger"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultUserAgent    = "NewsletterAgent/1.0"
	defaultMaxBodyBytes = 10 << 20
	defaultMaxLinks     = 50
)

// Config holds fetcher settings
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxLinks     int // cap on candidate links returned per page
}

// Fetcher downloads pages and extracts readable text plus candidate article links
type Fetcher struct {
	client *http.Client
	config Config
	log    *logger.Logger
}

// New creates a fetcher; zero config values fall back to defaults
func New(cfg Config, log *logger.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = defaultMaxLinks
	}

	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		log:    log.WithComponent("fetcher"),
	}
}

// Fetch downloads rawURL and returns its text and candidate article links.
// Every failure, including an empty extraction, is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.ExtractedDocument, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("invalid url")}
	}

	body, contentType, err := f.download(ctx, rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	doc := &models.ExtractedDocument{URL: rawURL}

	if looksLikeFeed(contentType, body) {
		if text, links, ok := parseFeed(body, pageURL); ok {
			doc.Text = text
			doc.Links = f.limitLinks(rawURL, links)
			f.log.Debug().
				Str("url", rawURL).
				Int("links", len(doc.Links)).
				Msg("Parsed feed")
			if doc.Text == "" {
				return nil, &FetchError{URL: rawURL, Err: ErrNoContent}
			}
			return doc, nil
		}
	}

	doc.Text = ExtractText(body, pageURL)
	if doc.Text == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrNoContent}
	}
	doc.Links = f.limitLinks(rawURL, DiscoverLinks(body, pageURL))

	f.log.Debug().
		Str("url", rawURL).
		Int("text_length", len(doc.Text)).
		Int("links", len(doc.Links)).
		Msg("Fetched page")

	return doc, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	return string(raw), resp.Header.Get("Content-Type"), nil
}

func looksLikeFeed(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") ||
		strings.Contains(ct, "application/xml") || strings.Contains(ct, "text/xml") ||
		strings.Contains(ct, "application/feed+json") {
		return true
	}

	head := strings.TrimSpace(body)
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.ToLower(head)
	return strings.HasPrefix(head, "<?xml") || strings.HasPrefix(head, "<rss") || strings.HasPrefix(head, "<feed")
}

// limitLinks keeps the first MaxLinks links in document order
func (f *Fetcher) limitLinks(rawURL string, links []string) []string {
	max := f.config.MaxLinks
	if max <= 0 || len(links) <= max {
		return links
	}
	f.log.Info().
		Str("url", rawURL).
		Int("found", len(links)).
		Int("kept", max).
		Msg("Link cap reached, dropping the rest")
	return links[:max]
}
