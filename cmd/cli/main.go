package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsletter-agent/internal/agent/rollup"
	"github.com/newsletter-agent/internal/app"
	"github.com/newsletter-agent/internal/archive"
	"github.com/newsletter-agent/internal/config"
	"github.com/newsletter-agent/internal/settings"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/internal/storage/sqlite"
	"github.com/newsletter-agent/pkg/logger"
)

var (
	cfgFile     string
	cfg         *config.Config
	log         *logger.Logger
	repo        storage.Repository
	settingsSvc *settings.Service
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsletter-agent",
		Short: "Newsletter agent powered by AI",
		Long: `Monitors web sources, keeps the articles matching your interests,
summarizes them and compiles a daily newsletter using Claude AI.`,
		PersistentPreRunE: initializeApp,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if repo != nil {
				_ = repo.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(urlsCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(newslettersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	settingsSvc = settings.New(repo, cfg.Scheduler.DefaultTime, log)
	return nil
}

// newRunner builds a rollup runner that prints status messages
func newRunner(ctx context.Context) (*rollup.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewRunner(ctx, cfg, repo, settingsSvc, printStatus, log), nil
}

func printStatus(msg string) {
	fmt.Printf("  > %s\n", msg)
}

// ============ URL COMMANDS ============

func urlsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Manage monitored source URLs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [url]",
		Short: "Add a source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := repo.AddSource(context.Background(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if !added {
				return fmt.Errorf("URL already exists or is invalid: %s", args[0])
			}
			fmt.Printf("Added %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [url]",
		Short: "Remove a source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.RemoveSource(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List source URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := repo.ListSources(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Sources (%d) ===\n\n", len(urls))
			for _, u := range urls {
				fmt.Printf("  %s\n", u)
			}
			return nil
		},
	})

	return cmd
}

// ============ SETTINGS COMMANDS ============

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write runtime settings",
		Long: `Read and write runtime settings. A running scheduler picks up a new
newsletter_time only when it is changed through its HTTP API.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := settingsSvc.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settingsSvc.Set(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s updated\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := settingsSvc.List(context.Background())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Printf("%-20s %s\n", k, preview(all[k], 80))
			}
			return nil
		},
	})

	return cmd
}

// ============ RUN COMMANDS ============

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ingest all sources and compile a newsletter now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run the article pipeline over all sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}

			result, err := runner.Ingest(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Ingest Results ===\n")
			fmt.Printf("Sources:    %d\n", result.SourcesProcessed)
			fmt.Printf("Links:      %d\n", result.LinksEvaluated)
			fmt.Printf("Relevant:   %d\n", result.Relevant)
			fmt.Printf("Stored:     %d\n", result.Stored)
			fmt.Printf("Duplicates: %d\n", result.Duplicates)
			fmt.Printf("Failures:   %d\n", result.Failures)
			fmt.Printf("Duration:   %s\n", result.Duration.Round(time.Millisecond))

			for _, a := range result.Articles {
				fmt.Printf("\n[%d] %s\n    %s\n", a.ID, a.Title, a.URL)
			}
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile a newsletter from the last 24 hours of articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}

			newsletter, err := runner.Compile(ctx)
			if errors.Is(err, rollup.ErrNothingToCompile) {
				fmt.Println("No articles processed in the last 24 hours")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("=== Newsletter #%d (%d articles) ===\n\n%s\n", newsletter.ID, len(newsletter.Articles), newsletter.Content)
			return nil
		},
	}
}

// ============ ARTICLE COMMANDS ============

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Inspect stored articles",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, err := repo.RecentArticles(context.Background(), limit)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Articles (%d) ===\n\n", len(articles))
			for _, a := range articles {
				fmt.Printf("[%d] %s\n", a.ID, a.Title)
				fmt.Printf("    %s | %s\n", a.URL, a.ProcessedAt.Format("2006-01-02 15:04"))
				fmt.Printf("    %s\n\n", preview(a.Summary, 160))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", storage.DefaultRecentLimit, "Maximum articles to show")

	cmd.AddCommand(list)
	return cmd
}

// ============ NEWSLETTER COMMANDS ============

func newslettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsletters",
		Short: "Browse generated newsletters",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List newsletters, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			newsletters, err := repo.QueryNewsletters(context.Background(), search)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Newsletters (%d) ===\n\n", len(newsletters))
			for _, n := range newsletters {
				podcast := ""
				if n.HasPodcast() {
					podcast = " | podcast"
				}
				fmt.Printf("[%d] %s | %d articles%s\n", n.ID, n.Date.Format("2006-01-02 15:04"), len(n.Articles), podcast)
			}
			return nil
		},
	}
	list.Flags().StringVar(&search, "search", "", "Case-insensitive text to search for")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Print a newsletter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := repo.GetNewsletter(context.Background(), id)
			if err != nil {
				return err
			}

			fmt.Printf("=== Newsletter #%d (%s) ===\n\n%s\n", n.ID, n.Date.Format(time.RFC1123), n.Content)
			fmt.Printf("\n--- Articles ---\n")
			for _, e := range n.Articles {
				fmt.Printf("  - %s\n    %s\n", e.Title, e.URL)
			}
			if n.HasPodcast() {
				fmt.Printf("\n--- Podcast: %s ---\n", n.Podcast.Title)
				for _, line := range n.Podcast.Dialogue {
					fmt.Printf("%s: %s\n", line.Speaker, line.Text)
				}
			}
			if n.AudioURL != "" {
				fmt.Printf("\nAudio: %s\n", n.AudioURL)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "attach-audio [id] [audio-url]",
		Short: "Attach a synthesized audio file to a newsletter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.AttachAudio(context.Background(), id, args[1]); err != nil {
				return err
			}
			fmt.Printf("Audio attached to newsletter %d\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export [id]",
		Short: "Append a newsletter to the archive spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := repo.GetNewsletter(ctx, id)
			if err != nil {
				return err
			}

			exporter, err := archive.NewSheetsExporter(ctx, cfg.Archive, log)
			if err != nil {
				return err
			}
			if err := exporter.Export(ctx, n); err != nil {
				return err
			}
			fmt.Printf("Newsletter %d exported\n", id)
			return nil
		},
	})

	return cmd
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID: %w", err)
	}
	return uint(id), nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
