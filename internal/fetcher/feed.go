package fetcher

import (
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// parseFeed reads an RSS/Atom/JSON feed. Item links become candidate links
// and titles plus descriptions become the page text.
func parseFeed(body string, pageURL *url.URL) (string, []string, bool) {
	// gofeed parsers keep per-parse state, so one parser per call
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return "", nil, false
	}

	var parts []string
	if feed.Title != "" {
		parts = append(parts, normalizeWhitespace(feed.Title))
	}

	seen := map[string]bool{}
	var links []string
	for _, item := range feed.Items {
		if item.Title != "" {
			parts = append(parts, normalizeWhitespace(item.Title))
		}
		if item.Description != "" {
			if text := stripTags(item.Description); text != "" {
				parts = append(parts, text)
			}
		}

		u, ok := resolveLink(pageURL, item.Link)
		if !ok {
			continue
		}
		key := normalizeLink(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, key)
	}

	return strings.Join(parts, "\n\n"), links, true
}
