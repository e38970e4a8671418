package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsletter-agent/pkg/logger"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Example News</title><script>var tracking = true;</script></head>
<body>
  <header><nav><a href="/">Home</a> <a href="/about">About</a> <a href="/tag/ai">AI tag</a></nav></header>
  <main>
    <article>
      <h1>Open models reach new milestone</h1>
      <p>Researchers released a family of open language models that match proprietary systems on several reasoning benchmarks while using far less compute during training.</p>
      <p>The release includes model weights, evaluation code and a detailed report describing the data mixture, which the authors say will help other groups reproduce the results.</p>
      <p>Read more: <a href="/news/2024/open-models-follow-up">follow-up coverage</a> and
         <a href="https://other.example.org/news/2024/mirror">a mirror elsewhere</a>.</p>
    </article>
    <div class="related-posts">
      <a href="/blog/how-we-evaluate">How we evaluate</a>
      <a href="/category/research">Research category</a>
      <a href="/news/2024/open-models-follow-up#comments">duplicate with fragment</a>
      <a href="/search?q=models">Search</a>
      <a href="mailto:editor@example.com">Mail us</a>
    </div>
  </main>
  <footer>Copyright Example News. All rights reserved.</footer>
</body>
</html>`

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <link>https://example.com</link>
  <item>
    <title>First story</title>
    <link>https://example.com/2024/first-story</link>
    <description>&lt;p&gt;The first story in the feed.&lt;/p&gt;</description>
  </item>
  <item>
    <title>Second story</title>
    <link>https://example.com/2024/second-story</link>
    <description>Another item.</description>
  </item>
</channel>
</rss>`

func newTestFetcher() *Fetcher {
	return New(Config{Timeout: 5 * time.Second}, logger.Nop())
}

func TestFetch_HTMLPage(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	doc, err := newTestFetcher().Fetch(context.Background(), server.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, defaultUserAgent, gotUA)
	assert.Contains(t, doc.Text, "open language models")
	assert.Contains(t, doc.Text, "detailed report")
	assert.NotContains(t, doc.Text, "Copyright")
	assert.NotContains(t, doc.Text, "tracking")

	assert.ElementsMatch(t, []string{
		server.URL + "/news/2024/open-models-follow-up",
		server.URL + "/blog/how-we-evaluate",
	}, doc.Links)
}

func TestFetch_Feed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	doc, err := newTestFetcher().Fetch(context.Background(), server.URL+"/feed.xml")
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "First story")
	assert.Contains(t, doc.Text, "The first story in the feed.")
	assert.Equal(t, []string{
		"https://example.com/2024/first-story",
		"https://example.com/2024/second-story",
	}, doc.Links)
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	doc, err := newTestFetcher().Fetch(context.Background(), server.URL)
	assert.Nil(t, doc)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, server.URL, fetchErr.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetch_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><nav><a href="/">Home</a></nav><footer>Footer only</footer></body></html>`))
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "not a url")
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestIsArticleLink(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/news/ai-update", true},
		{"https://example.com/2024/05/some-title", true},
		{"https://example.com/blog/post-title", true},
		{"https://example.com/stories/launch", true},
		{"https://example.com/articles/123", true},
		{"https://example.com/tag/ai", false},
		{"https://example.com/category/news", false},
		{"https://example.com/author/jane", false},
		{"https://example.com/news/page/2", false},
		{"https://example.com/news?page=3", false},
		{"https://example.com/about", false},
		{"https://example.com/products/12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, IsArticleLink(u))
		})
	}
}

func TestExtractText_PlainText(t *testing.T) {
	assert.Equal(t, "just some text", ExtractText("  just   some\n text ", nil))
	assert.Equal(t, "", ExtractText("   ", nil))
}

func TestExtractText_ShortPageFallsBackToParagraphs(t *testing.T) {
	raw := `<html><body><nav>Menu</nav><h2>Brief</h2><p>Short note.</p><ul><li>One point</li></ul></body></html>`
	text := ExtractText(raw, nil)
	assert.Equal(t, "Brief\n\nShort note.\n\nOne point", text)
	assert.False(t, strings.Contains(text, "Menu"))
}

func TestDiscoverLinks_SameHostAnyScheme(t *testing.T) {
	page := `<html><body><article>
  <a href="https://example.com/news/upgraded">https</a>
  <a href="http://example.com/news/plain">http</a>
  <a href="https://sub.example.com/news/elsewhere">subdomain</a>
  <a href="https://other.org/news/mirror">other host</a>
</article></body></html>`
	base, err := url.Parse("http://example.com/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/news/upgraded",
		"http://example.com/news/plain",
	}, DiscoverLinks(page, base))
}

func TestFetch_CapsLinksInDocumentOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><article><p>Daily digest of research news with several linked stories below.</p>`)
	for i := 1; i <= 10; i++ {
		b.WriteString(`<p><a href="/news/story-` + string(rune('a'+i-1)) + `">story</a></p>`)
	}
	b.WriteString(`</article></body></html>`)
	page := b.String()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxLinks: 3}, logger.Nop())
	doc, err := f.Fetch(context.Background(), server.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		server.URL + "/news/story-a",
		server.URL + "/news/story-b",
		server.URL + "/news/story-c",
	}, doc.Links)
}
