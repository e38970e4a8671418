package storage

import (
	"context"
	"time"

	"github.com/newsletter-agent/internal/models"
)

// SettingsStore is the global key/value settings table
type SettingsStore interface {
	GetSetting(ctx context.Context, key, defaultValue string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

// SourceStore holds the set of monitored seed URLs
type SourceStore interface {
	// AddSource returns false when the URL is invalid or already present
	AddSource(ctx context.Context, url string) (bool, error)
	RemoveSource(ctx context.Context, url string) error
	ListSources(ctx context.Context) ([]string, error)
}

// ArticleStore is the append-only article record store
type ArticleStore interface {
	ArticleExists(ctx context.Context, url string) (bool, error)
	// InsertArticle returns ErrDuplicate if an article with the same URL exists
	InsertArticle(ctx context.Context, article *models.Article) error
	ArticlesSince(ctx context.Context, since time.Time) ([]*models.Article, error)
	RecentArticles(ctx context.Context, limit int) ([]*models.Article, error)
}

// NewsletterStore is the append-only newsletter record store
type NewsletterStore interface {
	InsertNewsletter(ctx context.Context, newsletter *models.Newsletter) (uint, error)
	GetNewsletter(ctx context.Context, id uint) (*models.Newsletter, error)
	// QueryNewsletters returns newsletters newest first, filtered by a
	// case-insensitive substring of the content when search is non-empty
	QueryNewsletters(ctx context.Context, search string) ([]*models.Newsletter, error)
	AttachAudio(ctx context.Context, id uint, audioURL string) error
}

// Repository defines the interface for data persistence
type Repository interface {
	SettingsStore
	SourceStore
	ArticleStore
	NewsletterStore

	// Maintenance
	Close() error
	Migrate() error
}

// DefaultRecentLimit is used when callers ask for recent articles without a limit
const DefaultRecentLimit = 10
