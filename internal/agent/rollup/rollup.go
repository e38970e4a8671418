// Package rollup runs one full cycle: ingest articles from every monitored
// source, then compile the last day's articles into a newsletter.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newsletter-agent/internal/agent/compiler"
	"github.com/newsletter-agent/internal/agent/pipeline"
	"github.com/newsletter-agent/internal/metrics"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

// Window is how far back Compile looks for articles
const Window = 24 * time.Hour

// ErrNothingToCompile is returned by Compile when no article falls in the window
var ErrNothingToCompile = errors.New("no articles processed in the last 24 hours")

// Archiver exports a stored newsletter somewhere outside the database
type Archiver interface {
	Export(ctx context.Context, newsletter *models.Newsletter) error
}

// Store is the persistence the rollup reads and writes
type Store interface {
	storage.SourceStore
	storage.ArticleStore
	storage.NewsletterStore
}

// Runner wires settings, sources, pipeline and compiler together
type Runner struct {
	settings *settings.Service
	store    Store
	pipeline *pipeline.Pipeline
	compiler *compiler.Compiler
	archive  Archiver
	status   status.Sink
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new runner. archive may be nil.
func New(
	settingsSvc *settings.Service,
	store Store,
	p *pipeline.Pipeline,
	c *compiler.Compiler,
	archive Archiver,
	sink status.Sink,
	log *logger.Logger,
) *Runner {
	return &Runner{
		settings: settingsSvc,
		store:    store,
		pipeline: p,
		compiler: c,
		archive:  archive,
		status:   sink,
		log:      log.WithComponent("rollup"),
		now:      time.Now,
	}
}

// Run ingests and then compiles. A configuration problem aborts this run only.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() { metrics.RecordRollup(err) }()

	if _, err := r.Ingest(ctx); err != nil {
		r.log.Error().Err(err).Msg("Rollup aborted during ingestion")
		return err
	}

	if _, err := r.Compile(ctx); err != nil {
		if errors.Is(err, ErrNothingToCompile) {
			return nil
		}
		r.log.Error().Err(err).Msg("Rollup aborted during compilation")
		return err
	}
	return nil
}

// Ingest runs the article pipeline over every monitored source
func (r *Runner) Ingest(ctx context.Context) (*pipeline.Result, error) {
	snap, err := r.settings.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	sources, err := r.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	if len(sources) == 0 {
		r.log.Warn().Msg("No sources configured")
		r.status.Emit("No URLs configured")
		return &pipeline.Result{}, nil
	}

	return r.pipeline.Run(ctx, pipeline.Request{
		Seeds:     sources,
		Interest:  snap.InterestPrompt,
		Directive: snap.SummaryPrompt,
		Status:    r.status,
	})
}

// Compile builds, stores and archives a newsletter from the trailing window
func (r *Runner) Compile(ctx context.Context) (*models.Newsletter, error) {
	snap, err := r.settings.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	since := r.now().Add(-Window)
	articles, err := r.store.ArticlesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent articles: %w", err)
	}
	if len(articles) == 0 {
		r.log.Info().Time("since", since).Msg("No articles to compile")
		r.status.Emit("No new articles for the newsletter")
		return nil, ErrNothingToCompile
	}

	newsletter, err := r.compiler.Compile(ctx, compiler.Request{
		Articles:         articles,
		Template:         snap.NewsletterTemplate,
		CreatePodcast:    snap.CreatePodcast,
		PodcastDirective: snap.PodcastPrompt,
		Status:           r.status,
	})
	if err != nil {
		r.status.Emitf("Error generating newsletter: %v", err)
		return nil, err
	}

	id, err := r.store.InsertNewsletter(ctx, newsletter)
	if err != nil {
		return nil, fmt.Errorf("failed to save newsletter: %w", err)
	}
	newsletter.ID = id

	log := r.log.WithNewsletterID(id)
	log.Info().Int("articles", len(newsletter.Articles)).Bool("podcast", newsletter.HasPodcast()).Msg("Newsletter saved")

	if r.archive != nil {
		if err := r.archive.Export(ctx, newsletter); err != nil {
			log.Warn().Err(err).Msg("Failed to archive newsletter")
		}
	}

	return newsletter, nil
}
