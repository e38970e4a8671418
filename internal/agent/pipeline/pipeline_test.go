package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsletter-agent/internal/agent"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

type fakeFetcher struct {
	pages    map[string]*models.ExtractedDocument
	delay    time.Duration
	mu       sync.Mutex
	fetched  []string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*models.ExtractedDocument, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	doc, ok := f.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return doc, nil
}

func (f *fakeFetcher) wasFetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.fetched {
		if u == url {
			return true
		}
	}
	return false
}

// keywordClassifier marks text containing "relevant" (and not "irrelevant") as relevant
type keywordClassifier struct {
	fail map[string]bool
}

func (c keywordClassifier) Classify(ctx context.Context, text, interest string) (bool, string, error) {
	if c.fail[text] {
		return false, "", errors.New("malformed response")
	}
	if strings.Contains(text, "irrelevant") {
		return false, "off topic", nil
	}
	return strings.Contains(text, "relevant"), "matches " + interest, nil
}

// titleSummarizer uses the last word of the text as the title
type titleSummarizer struct {
	mu    sync.Mutex
	texts []string
}

func (s *titleSummarizer) Summarize(ctx context.Context, text, directive string) (string, string, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	words := strings.Fields(text)
	return words[len(words)-1], "summary of " + text, nil
}

func (s *titleSummarizer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type memStore struct {
	mu       sync.Mutex
	articles map[string]*models.Article
	// racy reports every URL as unknown, like a worker losing the check-then-insert race
	racy bool
}

func newMemStore() *memStore {
	return &memStore{articles: make(map[string]*models.Article)}
}

func (s *memStore) ArticleExists(ctx context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.racy {
		return false, nil
	}
	_, ok := s.articles[url]
	return ok, nil
}

func (s *memStore) InsertArticle(ctx context.Context, article *models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[article.URL]; ok {
		return storage.ErrDuplicate
	}
	article.ID = uint(len(s.articles) + 1)
	s.articles[article.URL] = article
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) sink(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) mentioning(s string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if strings.Contains(m, s) {
			n++
		}
	}
	return n
}

const (
	seedA = "https://example.com/a"
	linkB = "https://example.com/news/b"
	linkC = "https://example.com/news/c"
)

func scenarioPages() map[string]*models.ExtractedDocument {
	return map[string]*models.ExtractedDocument{
		seedA: {URL: seedA, Text: "relevant page X", Links: []string{linkB, linkC}},
		linkB: {URL: linkB, Text: "irrelevant sports B"},
		linkC: {URL: linkC, Text: "relevant follow-up Y"},
	}
}

func newPipeline(f Fetcher, s Summarizer, store ArticleStore) *Pipeline {
	return New(f, keywordClassifier{}, s, store, 5, logger.Nop())
}

func TestRun_SeedWithRelevantAndIrrelevantLinks(t *testing.T) {
	fetcher := &fakeFetcher{pages: scenarioPages()}
	summarizer := &titleSummarizer{}
	store := newMemStore()

	result, err := newPipeline(fetcher, summarizer, store).Run(context.Background(), Request{
		Seeds:     []string{seedA},
		Interest:  "AI",
		Directive: "brief",
	})
	require.NoError(t, err)

	require.Len(t, result.Articles, 2)
	titles := map[string]string{}
	for _, a := range result.Articles {
		titles[a.URL] = a.Title
		assert.Equal(t, seedA, a.SourceURL)
		assert.False(t, a.ProcessedAt.IsZero())
	}
	assert.Equal(t, map[string]string{seedA: "X", linkC: "Y"}, titles)

	assert.Equal(t, 2, store.count())
	assert.Equal(t, 1, result.SourcesProcessed)
	assert.Equal(t, 2, result.LinksEvaluated)
	assert.Equal(t, 2, result.Relevant)
	assert.Equal(t, 2, result.Stored)
	assert.Zero(t, result.Failures)
}

func TestRun_IrrelevantArticlesAreNeverSummarized(t *testing.T) {
	fetcher := &fakeFetcher{pages: scenarioPages()}
	summarizer := &titleSummarizer{}

	_, err := newPipeline(fetcher, summarizer, newMemStore()).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Directive: "brief",
	})
	require.NoError(t, err)

	calls := summarizer.calls()
	assert.ElementsMatch(t, []string{"relevant page X", "relevant follow-up Y"}, calls)
}

func TestRun_FailingSeedIsIsolated(t *testing.T) {
	const bad = "https://down.example.org/"
	fetcher := &fakeFetcher{pages: scenarioPages()}
	rec := &recorder{}

	result, err := newPipeline(fetcher, &titleSummarizer{}, newMemStore()).Run(context.Background(), Request{
		Seeds: []string{bad, seedA}, Interest: "AI", Directive: "brief", Status: rec.sink,
	})
	require.NoError(t, err)

	assert.Len(t, result.Articles, 2)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, rec.mentioning(bad))
	for _, a := range result.Articles {
		assert.NotEqual(t, bad, a.SourceURL)
	}
}

func TestRun_LinkFailuresDoNotAffectSiblings(t *testing.T) {
	pages := scenarioPages()
	pages[seedA].Links = append(pages[seedA].Links, "https://example.com/news/missing")
	fetcher := &fakeFetcher{pages: pages}

	result, err := New(fetcher, keywordClassifier{fail: map[string]bool{"relevant page X": true}}, &titleSummarizer{}, newMemStore(), 5, logger.Nop()).
		Run(context.Background(), Request{Seeds: []string{seedA}, Interest: "AI", Directive: "brief"})
	require.NoError(t, err)

	require.Len(t, result.Articles, 1)
	assert.Equal(t, linkC, result.Articles[0].URL)
	assert.Equal(t, 2, result.Failures)
}

func TestRun_SkipsStoredDiscoveredLinks(t *testing.T) {
	fetcher := &fakeFetcher{pages: scenarioPages()}
	store := newMemStore()
	require.NoError(t, store.InsertArticle(context.Background(), &models.Article{URL: linkC, Title: "old"}))

	result, err := newPipeline(fetcher, &titleSummarizer{}, store).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Directive: "brief",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, store.count())
	assert.Equal(t, 1, result.Duplicates)
	assert.False(t, fetcher.wasFetched(linkC))
	assert.Equal(t, "old", store.articles[linkC].Title)

	// a second run stores nothing new
	again, err := newPipeline(fetcher, &titleSummarizer{}, store).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Directive: "brief",
	})
	require.NoError(t, err)
	assert.Empty(t, again.Articles)
	assert.Equal(t, 2, store.count())
}

func TestRun_InsertConflictCountsAsDuplicate(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.InsertArticle(context.Background(), &models.Article{URL: linkC, Title: "old"}))
	store.racy = true

	result, err := newPipeline(&fakeFetcher{pages: scenarioPages()}, &titleSummarizer{}, store).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Directive: "brief",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Duplicates)
	assert.Zero(t, result.Failures)
	assert.Equal(t, 2, store.count())
}

func TestRun_MissingPrompts(t *testing.T) {
	fetcher := &fakeFetcher{pages: scenarioPages()}
	rec := &recorder{}

	_, err := newPipeline(fetcher, &titleSummarizer{}, newMemStore()).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Status: rec.sink,
	})

	var cfgErr *agent.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{models.SettingSummaryPrompt}, cfgErr.Missing)
	assert.Equal(t, 1, rec.mentioning("Missing prompts configuration"))
	assert.False(t, fetcher.wasFetched(seedA))
}

func TestRun_PanickingStatusSink(t *testing.T) {
	result, err := newPipeline(&fakeFetcher{pages: scenarioPages()}, &titleSummarizer{}, newMemStore()).Run(context.Background(), Request{
		Seeds: []string{seedA}, Interest: "AI", Directive: "brief",
		Status: func(string) { panic("sink exploded") },
	})
	require.NoError(t, err)
	assert.Len(t, result.Articles, 2)
}

func TestRun_BoundsLinkConcurrency(t *testing.T) {
	pages := map[string]*models.ExtractedDocument{}
	var links []string
	for _, c := range "abcdefghijklmnop" {
		link := "https://example.com/news/" + string(c)
		links = append(links, link)
		pages[link] = &models.ExtractedDocument{URL: link, Text: "irrelevant " + string(c)}
	}
	pages[seedA] = &models.ExtractedDocument{URL: seedA, Text: "irrelevant index", Links: links}

	fetcher := &fakeFetcher{pages: pages, delay: 20 * time.Millisecond}
	result, err := New(fetcher, keywordClassifier{}, &titleSummarizer{}, newMemStore(), 3, logger.Nop()).
		Run(context.Background(), Request{Seeds: []string{seedA}, Interest: "AI", Directive: "brief"})
	require.NoError(t, err)

	assert.Equal(t, len(links), result.LinksEvaluated)
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(3))
	assert.Greater(t, fetcher.peak.Load(), int32(1))
}

// panickingClassifier panics on one text and defers to keywordClassifier otherwise
type panickingClassifier struct {
	on string
}

func (c panickingClassifier) Classify(ctx context.Context, text, interest string) (bool, string, error) {
	if text == c.on {
		panic("service client bug")
	}
	return keywordClassifier{}.Classify(ctx, text, interest)
}

func TestRun_PanicOnSeedPageIsIsolated(t *testing.T) {
	rec := &recorder{}
	store := newMemStore()
	p := New(&fakeFetcher{pages: scenarioPages()}, panickingClassifier{on: "relevant page X"},
		&titleSummarizer{}, store, 5, logger.Nop())

	var (
		result *Result
		err    error
	)
	require.NotPanics(t, func() {
		result, err = p.Run(context.Background(), Request{
			Seeds: []string{seedA}, Interest: "AI", Directive: "brief", Status: rec.sink,
		})
	})
	require.NoError(t, err)

	require.Len(t, result.Articles, 1)
	assert.Equal(t, linkC, result.Articles[0].URL)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, rec.mentioning("Error processing "+seedA+":"))
	assert.Equal(t, 1, rec.mentioning("Processed "+seedA))
	assert.Equal(t, 1, store.count())
}
