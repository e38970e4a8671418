package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

var _ storage.Repository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; pipeline workers share this one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Setting{},
		&models.MonitoredSource{},
		&models.Article{},
		&models.Newsletter{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Settings operations

func (r *Repository) GetSetting(ctx context.Context, key, defaultValue string) (string, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultValue, nil
	}
	if err != nil {
		return "", storage.Wrap("get setting", err)
	}
	return setting.Value, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	return storage.Wrap("set setting", err)
}

func (r *Repository) ListSettings(ctx context.Context) (map[string]string, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, storage.Wrap("list settings", err)
	}
	result := make(map[string]string, len(settings))
	for _, s := range settings {
		result[s.Key] = s.Value
	}
	return result, nil
}

// Source operations

func (r *Repository) AddSource(ctx context.Context, rawURL string) (bool, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validSourceURL(rawURL) {
		return false, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MonitoredSource{}).Where("url = ?", rawURL).Count(&count).Error; err != nil {
		return false, storage.Wrap("add source", err)
	}
	if count > 0 {
		return false, nil
	}

	err := r.db.WithContext(ctx).Create(&models.MonitoredSource{URL: rawURL}).Error
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil {
		return false, storage.Wrap("add source", err)
	}
	return true, nil
}

func (r *Repository) RemoveSource(ctx context.Context, rawURL string) error {
	err := r.db.WithContext(ctx).Where("url = ?", rawURL).Delete(&models.MonitoredSource{}).Error
	return storage.Wrap("remove source", err)
}

func (r *Repository) ListSources(ctx context.Context) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).Model(&models.MonitoredSource{}).Order("id ASC").Pluck("url", &urls).Error
	if err != nil {
		return nil, storage.Wrap("list sources", err)
	}
	return urls, nil
}

// Article operations

func (r *Repository) ArticleExists(ctx context.Context, rawURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Article{}).Where("url = ?", rawURL).Count(&count).Error
	if err != nil {
		return false, storage.Wrap("article exists", err)
	}
	return count > 0, nil
}

func (r *Repository) InsertArticle(ctx context.Context, article *models.Article) error {
	if article.ProcessedAt.IsZero() {
		article.ProcessedAt = time.Now()
	}
	err := r.db.WithContext(ctx).Create(article).Error
	if isDuplicate(err) {
		return storage.ErrDuplicate
	}
	return storage.Wrap("insert article", err)
}

func (r *Repository) ArticlesSince(ctx context.Context, since time.Time) ([]*models.Article, error) {
	var articles []*models.Article
	err := r.db.WithContext(ctx).
		Where("processed_at > ?", since).
		Order("processed_at ASC").
		Find(&articles).Error
	if err != nil {
		return nil, storage.Wrap("articles since", err)
	}
	return articles, nil
}

func (r *Repository) RecentArticles(ctx context.Context, limit int) ([]*models.Article, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}
	var articles []*models.Article
	err := r.db.WithContext(ctx).
		Order("processed_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, storage.Wrap("recent articles", err)
	}
	return articles, nil
}

// Newsletter operations

func (r *Repository) InsertNewsletter(ctx context.Context, newsletter *models.Newsletter) (uint, error) {
	if newsletter.Date.IsZero() {
		newsletter.Date = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(newsletter).Error; err != nil {
		return 0, storage.Wrap("insert newsletter", err)
	}
	return newsletter.ID, nil
}

func (r *Repository) GetNewsletter(ctx context.Context, id uint) (*models.Newsletter, error) {
	var newsletter models.Newsletter
	err := r.db.WithContext(ctx).First(&newsletter, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get newsletter", err)
	}
	return &newsletter, nil
}

// QueryNewsletters returns newsletters newest first. A non-empty search keeps
// those whose content contains it, ignoring case. SQLite's LOWER and LIKE
// only fold ASCII, so the match runs here.
func (r *Repository) QueryNewsletters(ctx context.Context, search string) ([]*models.Newsletter, error) {
	var newsletters []*models.Newsletter
	if err := r.db.WithContext(ctx).Order("date DESC").Find(&newsletters).Error; err != nil {
		return nil, storage.Wrap("query newsletters", err)
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return newsletters, nil
	}

	matched := newsletters[:0]
	for _, n := range newsletters {
		if strings.Contains(strings.ToLower(n.Content), search) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

func (r *Repository) AttachAudio(ctx context.Context, id uint, audioURL string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Newsletter{}).
		Where("id = ?", id).
		Update("audio_url", audioURL)
	if result.Error != nil {
		return storage.Wrap("attach audio", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// validSourceURL requires an http(s) scheme and a host
func validSourceURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
