package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsletter-agent/internal/api"
	"github.com/newsletter-agent/internal/app"
	"github.com/newsletter-agent/internal/config"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/scheduler"
	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/status"
	"github.com/newsletter-agent/internal/storage/sqlite"
	"github.com/newsletter-agent/pkg/logger"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsletter-scheduler",
		Short: "Background scheduler for the newsletter agent",
		Long: `Runs the daily rollup (ingest monitored sources, compile the newsletter)
and serves the HTTP API. This daemon should be run as a service.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting Newsletter Agent Scheduler")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statusLog := status.NewLog(cfg.Server.StatusHistory)
	settingsSvc := settings.New(repo, cfg.Scheduler.DefaultTime, log)
	runner := app.NewRunner(ctx, cfg, repo, settingsSvc, statusLog.Sink(), log)

	handle := scheduler.New(func(ctx context.Context) {
		if err := runner.Run(ctx); err != nil {
			statusLog.Add(fmt.Sprintf("Rollup failed: %v", err))
		}
	}, loc, log)

	// rearm live when the generation time changes
	settingsSvc.OnChange(func(key, value string) {
		if key != models.SettingNewsletterTime {
			return
		}
		if err := handle.Rearm(value); err != nil {
			log.Error().Err(err).Str("time", value).Msg("Failed to rearm scheduler")
			return
		}
		statusLog.Add(fmt.Sprintf("Newsletter time changed to %s", value))
	})

	at, err := settingsSvc.Get(ctx, models.SettingNewsletterTime)
	if err != nil {
		return fmt.Errorf("failed to read newsletter time: %w", err)
	}
	if err := handle.Start(at); err != nil {
		log.Warn().Err(err).Str("time", at).Msg("Stored newsletter time is invalid, using default")
		at = cfg.Scheduler.DefaultTime
		if err := handle.Start(at); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	log.Info().Str("time", at).Time("next", handle.Next()).Msg("Scheduler started")

	server := api.NewServer(repo, settingsSvc, statusLog, handle, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}

	log.Info().Msg("Shutting down scheduler")
	handle.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown failed")
	}
	if err := handle.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Rollup still running at shutdown")
	}
	return nil
}
