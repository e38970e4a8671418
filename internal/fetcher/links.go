package fetcher

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkSelectors find anchors inside likely article containers and the main content area
var linkSelectors = []string{
	"article a[href]",
	"[class*='article'] a[href]",
	"[class*='post'] a[href]",
	"[class*='story'] a[href]",
	"[class*='news'] a[href]",
	"main a[href]",
	"[role='main'] a[href]",
	"#main a[href]",
	"#content a[href]",
	".content a[href]",
}

var (
	nonArticlePath  = regexp.MustCompile(`(?i)/(tags?|category|categories|author|authors|search|page|topics?|archive|login|signup|subscribe|feed|rss)(/|$)`)
	nonArticleQuery = regexp.MustCompile(`(?i)(^|&)(page|p|s|q|query|search)=`)
	articlePath     = regexp.MustCompile(`(?i)(article|news|story|stories|post|blog)|(^|/)(19|20)\d{2}(/|-|$)`)
)

// DiscoverLinks returns deduplicated candidate article URLs found on the page.
// Links are resolved against pageURL; off-origin links and listing pages are dropped.
func DiscoverLinks(raw string, pageURL *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	seen := map[string]bool{normalizeLink(pageURL): true}
	var links []string

	doc.Find(strings.Join(linkSelectors, ", ")).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := resolveLink(pageURL, href)
		if !ok || !sameOrigin(pageURL, u) || !IsArticleLink(u) {
			return
		}

		key := normalizeLink(u)
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, key)
	})

	return links
}

// IsArticleLink applies the path heuristics: listing pages are rejected,
// paths that look like articles or carry a year segment are kept
func IsArticleLink(u *url.URL) bool {
	if nonArticlePath.MatchString(u.Path) || nonArticleQuery.MatchString(u.RawQuery) {
		return false
	}
	return articlePath.MatchString(u.Path)
}

func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// sameOrigin compares hosts; an http to https upgrade on the same host is allowed
func sameOrigin(base, u *url.URL) bool {
	return strings.EqualFold(base.Host, u.Host)
}

func normalizeLink(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
