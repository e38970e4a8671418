package fetcher

import (
	"html"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// minReadableLength is the shortest readability result trusted over the fallback.
// Shorter results are usually just a title or byline.
const minReadableLength = 200

// noiseSelectors are removed before readability runs
var noiseSelectors = []string{
	"head, script, style, noscript, template, svg",
	"nav, header, footer, aside, form",
	"iframe, embed, object, video, audio, canvas",
	"[class*='cookie'], [id*='cookie'], [class*='consent']",
	"[class*='advert'], [id*='advert'], [class*='sponsor'], [class*='promo']",
	"[class*='social'], [class*='share'], [id*='social'], [id*='share']",
	"[class*='comment'], [id*='comment'], [class*='newsletter-signup']",
	"[role='navigation'], [role='banner'], [role='contentinfo'], [aria-hidden='true']",
}

// ExtractText returns the readable body text of an HTML page with
// navigation, ads and footers dropped. Paragraphs are separated by blank lines.
func ExtractText(raw string, pageURL *url.URL) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Already plain text
	if !strings.Contains(trimmed, "<") {
		return normalizeWhitespace(trimmed)
	}

	cleaned := trimmed
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err == nil {
		for _, sel := range noiseSelectors {
			doc.Find(sel).Remove()
		}
		if out, err := doc.Html(); err == nil && out != "" {
			cleaned = out
		}
	}

	if text := extractWithReadability(cleaned, pageURL); len(text) >= minReadableLength {
		return text
	}

	return extractParagraphs(cleaned)
}

func extractWithReadability(raw string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil {
		return ""
	}

	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return normalizeParagraphs(buf.String())
}

// extractParagraphs collects headings, paragraphs and list items in document order
func extractParagraphs(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return stripTags(raw)
	}

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := normalizeWhitespace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return stripTags(raw)
	}
	return strings.Join(paragraphs, "\n\n")
}

// stripTags removes all markup with bluemonday's strict policy
func stripTags(raw string) string {
	p := bluemonday.StrictPolicy()
	return normalizeWhitespace(html.UnescapeString(p.Sanitize(raw)))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeParagraphs collapses whitespace inside lines and keeps one blank line between paragraphs
func normalizeParagraphs(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = normalizeWhitespace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n\n")
}
