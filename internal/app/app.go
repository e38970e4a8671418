// Package app wires configuration, storage and agents into a rollup runner
// shared by the daemon and the CLI.
package app

import (
	"context"

	"github.com/newsletter-agent/internal/agent/compiler"
	"github.com/newsletter-agent/internal/agent/pipeline"
	"github.com/newsletter-agent/internal/agent/rollup"
	"github.com/newsletter-agent/internal/ai"
	"github.com/newsletter-agent/internal/archive"
	"github.com/newsletter-agent/internal/config"
	"github.com/newsletter-agent/internal/fetcher"
	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

// NewRunner builds the rollup runner. The archive is attached when enabled;
// a failure to connect to it is logged and the runner works without it.
func NewRunner(ctx context.Context, cfg *config.Config, repo storage.Repository, settingsSvc *settings.Service, sink status.Sink, log *logger.Logger) *rollup.Runner {
	llm := ai.NewClient(cfg.Anthropic, log)

	f := fetcher.New(fetcher.Config{
		Timeout:   cfg.Pipeline.FetchTimeout,
		UserAgent: cfg.Pipeline.UserAgent,
	}, log)

	p := pipeline.New(
		f,
		ai.NewClassifier(llm, cfg.Pipeline.ContentLimit),
		ai.NewSummarizer(llm, cfg.Pipeline.ContentLimit),
		repo,
		cfg.Pipeline.Concurrency,
		log,
	)
	c := compiler.New(ai.NewWriter(llm), log)

	var exporter rollup.Archiver
	if cfg.Archive.Enabled {
		sheetsExporter, err := archive.NewSheetsExporter(ctx, cfg.Archive, log)
		if err != nil {
			log.Warn().Err(err).Msg("Newsletter archive disabled")
		} else {
			exporter = sheetsExporter
		}
	}

	return rollup.New(settingsSvc, repo, p, c, exporter, sink, log)
}
