package compiler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newsletter-agent/internal/agent"
	"github.com/newsletter-agent/internal/metrics"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/pkg/logger"
)

// Writer generates the newsletter body and the optional podcast script
type Writer interface {
	WriteNewsletter(ctx context.Context, template string, entries []models.NewsletterEntry) (string, error)
	WritePodcastScript(ctx context.Context, directive string, entries []models.NewsletterEntry) (*models.PodcastScript, error)
}

// Request is one newsletter compilation
type Request struct {
	Articles         []*models.Article
	Template         string
	CreatePodcast    bool
	PodcastDirective string
	Status           status.Sink
}

// Compiler turns a batch of stored articles into a newsletter
type Compiler struct {
	writer Writer
	log    *logger.Logger
	now    func() time.Time
}

// New creates a new compiler
func New(writer Writer, log *logger.Logger) *Compiler {
	return &Compiler{
		writer: writer,
		log:    log.WithComponent("compiler"),
		now:    time.Now,
	}
}

// Compile generates a newsletter. It does not persist it.
func (c *Compiler) Compile(ctx context.Context, req Request) (*models.Newsletter, error) {
	var missing []string
	if len(req.Articles) == 0 {
		missing = append(missing, "articles")
	}
	if strings.TrimSpace(req.Template) == "" {
		missing = append(missing, models.SettingNewsletterTemplate)
	}
	if len(missing) > 0 {
		return nil, &agent.ConfigurationError{Missing: missing}
	}

	entries := make(models.Entries, 0, len(req.Articles))
	for _, article := range req.Articles {
		entries = append(entries, article.Entry())
	}

	c.log.Info().Int("articles", len(entries)).Msg("Generating newsletter")
	req.Status.Emit("Generating newsletter...")

	content, err := c.writer.WriteNewsletter(ctx, req.Template, entries)
	if err != nil {
		return nil, fmt.Errorf("newsletter generation failed: %w", err)
	}

	newsletter := &models.Newsletter{
		Date:     c.now(),
		Content:  content,
		Articles: entries,
	}
	metrics.NewslettersTotal.Inc()

	if req.CreatePodcast && strings.TrimSpace(req.PodcastDirective) != "" {
		req.Status.Emit("Generating podcast script...")

		script, err := c.writer.WritePodcastScript(ctx, req.PodcastDirective, entries)
		if err != nil {
			metrics.PodcastFailuresTotal.Inc()
			c.log.Warn().Err(err).Msg("Podcast script generation failed, keeping newsletter without it")
			req.Status.Emitf("Error generating podcast script: %v", err)
		} else {
			newsletter.Podcast = script
			c.log.Info().Int("lines", len(script.Dialogue)).Msg("Podcast script generated")
		}
	}

	req.Status.Emit("Newsletter generated!")
	return newsletter, nil
}
