// Package pipeline fetches monitored pages and the articles they link to,
// keeps the relevant ones, summarizes them and stores each URL once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsletter-agent/internal/agent"
	"github.com/newsletter-agent/internal/metrics"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

// DefaultConcurrency bounds in-flight evaluations per fan-out
const DefaultConcurrency = 5

// Fetcher downloads a page and extracts its text and candidate links
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.ExtractedDocument, error)
}

// Classifier decides relevance
type Classifier interface {
	Classify(ctx context.Context, text, interest string) (bool, string, error)
}

// Summarizer produces a title and summary
type Summarizer interface {
	Summarize(ctx context.Context, text, directive string) (string, string, error)
}

// ArticleStore is the subset of the article store the pipeline writes to
type ArticleStore interface {
	ArticleExists(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, article *models.Article) error
}

// Request is one pipeline invocation
type Request struct {
	Seeds     []string
	Interest  string
	Directive string
	Status    status.Sink
}

// Result contains the results of a pipeline run
type Result struct {
	Articles         []*models.Article
	SourcesProcessed int
	LinksEvaluated   int
	Relevant         int
	Stored           int
	Duplicates       int
	Failures         int
	Duration         time.Duration
}

// Pipeline runs fetch, classify, summarize and store over seed URLs
type Pipeline struct {
	fetcher     Fetcher
	classifier  Classifier
	summarizer  Summarizer
	store       ArticleStore
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

// New creates a new pipeline
func New(
	fetcher Fetcher,
	classifier Classifier,
	summarizer Summarizer,
	store ArticleStore,
	concurrency int,
	log *logger.Logger,
) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		fetcher:     fetcher,
		classifier:  classifier,
		summarizer:  summarizer,
		store:       store,
		concurrency: concurrency,
		log:         log.WithComponent("pipeline"),
		now:         time.Now,
	}
}

// run holds the per-invocation state shared by all workers
type run struct {
	req Request

	mu     sync.Mutex
	result *Result
}

func (r *run) update(fn func(res *Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.result)
}

// Run processes every seed concurrently and the links of each seed
// concurrently below it. A failing URL is reported through req.Status and
// skipped; it never fails the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()
	result := &Result{Articles: make([]*models.Article, 0)}

	if req.Interest == "" || req.Directive == "" {
		var missing []string
		if req.Interest == "" {
			missing = append(missing, models.SettingInterestPrompt)
		}
		if req.Directive == "" {
			missing = append(missing, models.SettingSummaryPrompt)
		}
		req.Status.Emit("Missing prompts configuration")
		return result, &agent.ConfigurationError{Missing: missing}
	}

	p.log.Info().Int("sources", len(req.Seeds)).Msg("Starting article pipeline")
	req.Status.Emitf("Processing %d sources", len(req.Seeds))

	r := &run{req: req, result: result}

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, seed := range req.Seeds {
		g.Go(func() error {
			defer p.recoverURL(r, seed)
			p.processSeed(ctx, r, seed)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(startTime)
	metrics.RecordPipeline(result.Duration.Seconds())

	p.log.Info().
		Int("sources", result.SourcesProcessed).
		Int("links", result.LinksEvaluated).
		Int("relevant", result.Relevant).
		Int("stored", result.Stored).
		Int("duplicates", result.Duplicates).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Article pipeline completed")
	req.Status.Emitf("Finished processing: %d new articles, %d duplicates, %d failures",
		result.Stored, result.Duplicates, result.Failures)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("pipeline interrupted: %w", err)
	}
	return result, nil
}

// processSeed evaluates the seed page itself, then its candidate links
func (p *Pipeline) processSeed(ctx context.Context, r *run, seed string) {
	log := p.log.WithURL(seed)

	doc, err := p.fetcher.Fetch(ctx, seed)
	metrics.RecordFetch("seed", err)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch source")
		r.update(func(res *Result) { res.Failures++ })
		r.req.Status.Emitf("Error processing %s: %v", seed, err)
		return
	}
	r.update(func(res *Result) { res.SourcesProcessed++ })

	stored := 0
	if p.evaluateSeed(ctx, r, seed, doc.Text) {
		stored++
	}

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	var mu sync.Mutex
	for _, link := range doc.Links {
		g.Go(func() error {
			if p.processLink(ctx, r, seed, link) {
				mu.Lock()
				stored++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Int("links", len(doc.Links)).Int("stored", stored).Msg("Source processed")
	r.req.Status.Emitf("Processed %s: %d links checked, %d new articles", seed, len(doc.Links), stored)
}

// evaluateSeed evaluates the seed page's own text. A panic fails the seed
// page only; its links are still processed.
func (p *Pipeline) evaluateSeed(ctx context.Context, r *run, seed, text string) bool {
	defer p.recoverURL(r, seed)
	return p.evaluate(ctx, r, seed, seed, text)
}

// processLink fetches and evaluates one discovered link
func (p *Pipeline) processLink(ctx context.Context, r *run, seed, link string) bool {
	defer p.recoverURL(r, link)

	r.update(func(res *Result) { res.LinksEvaluated++ })

	known, err := p.store.ArticleExists(ctx, link)
	if err != nil {
		p.fail(r, link, err)
		return false
	}
	if known {
		r.update(func(res *Result) { res.Duplicates++ })
		metrics.RecordArticle("duplicate")
		return false
	}

	doc, err := p.fetcher.Fetch(ctx, link)
	metrics.RecordFetch("link", err)
	if err != nil {
		p.fail(r, link, err)
		return false
	}

	return p.evaluate(ctx, r, seed, link, doc.Text)
}

// evaluate classifies text and, when relevant, summarizes and stores it.
// It returns true when a new article was stored.
func (p *Pipeline) evaluate(ctx context.Context, r *run, seed, url, text string) bool {
	known, err := p.store.ArticleExists(ctx, url)
	if err != nil {
		p.fail(r, url, err)
		return false
	}
	if known {
		p.log.Debug().Str("url", url).Msg("Article already stored")
		r.update(func(res *Result) { res.Duplicates++ })
		metrics.RecordArticle("duplicate")
		return false
	}

	relevant, reason, err := p.classifier.Classify(ctx, text, r.req.Interest)
	metrics.RecordClassification(relevant, err)
	if err != nil {
		p.fail(r, url, err)
		return false
	}
	if !relevant {
		p.log.Debug().Str("url", url).Str("reason", reason).Msg("Article not relevant")
		return false
	}
	r.update(func(res *Result) { res.Relevant++ })

	title, summary, err := p.summarizer.Summarize(ctx, text, r.req.Directive)
	if err != nil {
		p.fail(r, url, err)
		return false
	}

	article := &models.Article{
		URL:         url,
		Title:       title,
		Summary:     summary,
		Content:     text,
		SourceURL:   seed,
		Reason:      reason,
		ProcessedAt: p.now(),
	}

	// the pre-check above can race with another worker; the unique index decides
	if err := p.store.InsertArticle(ctx, article); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			r.update(func(res *Result) { res.Duplicates++ })
			metrics.RecordArticle("duplicate")
			r.req.Status.Emitf("Skipping duplicate article: %s", url)
			return false
		}
		metrics.RecordArticle("failed")
		p.fail(r, url, err)
		return false
	}

	metrics.RecordArticle("stored")
	r.update(func(res *Result) {
		res.Stored++
		res.Articles = append(res.Articles, article)
	})
	p.log.WithArticleID(article.ID).Info().Str("url", url).Str("title", title).Msg("Article stored")
	r.req.Status.Emitf("Saved new article: %s", title)
	return true
}

// recoverURL turns a panic while handling url into a failure of that URL.
// It must be deferred directly.
func (p *Pipeline) recoverURL(r *run, url string) {
	if rec := recover(); rec != nil {
		p.log.Error().Interface("panic", rec).Str("url", url).Msg("URL evaluation panicked")
		r.update(func(res *Result) { res.Failures++ })
		r.req.Status.Emitf("Error processing %s: %v", url, rec)
	}
}

func (p *Pipeline) fail(r *run, url string, err error) {
	p.log.Warn().Err(err).Str("url", url).Msg("Failed to process URL")
	r.update(func(res *Result) { res.Failures++ })
	r.req.Status.Emitf("Error processing %s: %v", url, err)
}
