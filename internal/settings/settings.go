// Package settings reads and writes the runtime settings that users edit
// while the daemon is running, and notifies observers about changes.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/internal/scheduler"
	"github.com/newsletter-agent/internal/storage"
	"github.com/newsletter-agent/pkg/logger"
)

// DefaultNewsletterTime is returned for newsletter_time when it was never set
const DefaultNewsletterTime = "08:00"

// Snapshot is a typed view of every setting, read once per run
type Snapshot struct {
	InterestPrompt     string `json:"interest_prompt"`
	SummaryPrompt      string `json:"summary_prompt"`
	NewsletterTemplate string `json:"newsletter_template"`
	NewsletterTime     string `json:"newsletter_time"`
	CreatePodcast      bool   `json:"create_podcast"`
	PodcastPrompt      string `json:"podcast_prompt"`
}

// Observer is called after a setting value actually changed
type Observer func(key, value string)

// Service wraps the settings store with defaults, validation and observers
type Service struct {
	store    storage.SettingsStore
	defaults map[string]string
	log      *logger.Logger

	mu        sync.RWMutex
	observers []Observer

	// writeMu orders writes and their notifications
	writeMu sync.Mutex
}

// New creates a settings service. defaultTime overrides DefaultNewsletterTime when non-empty.
func New(store storage.SettingsStore, defaultTime string, log *logger.Logger) *Service {
	if defaultTime == "" {
		defaultTime = DefaultNewsletterTime
	}
	return &Service{
		store: store,
		defaults: map[string]string{
			models.SettingNewsletterTime: defaultTime,
			models.SettingCreatePodcast:  "false",
		},
		log: log.WithComponent("settings"),
	}
}

// OnChange registers an observer for every changed key. Observers run in
// write order and must not write settings themselves.
func (s *Service) OnChange(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Get returns the stored value or the key's default
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	return s.store.GetSetting(ctx, key, s.defaults[key])
}

// Set validates and stores a single setting
func (s *Service) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany validates every pair first, then stores them one by one and
// notifies observers for the ones whose value changed.
func (s *Service) SetMany(ctx context.Context, values map[string]string) error {
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		v, err := normalize(key, value)
		if err != nil {
			return err
		}
		normalized[key] = v
	}

	keys := make([]string, 0, len(normalized))
	for key := range normalized {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, key := range keys {
		value := normalized[key]
		old, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := s.store.SetSetting(ctx, key, value); err != nil {
			return err
		}
		s.log.Info().Str("key", key).Msg("Setting updated")

		if old != value {
			s.notify(key, value)
		}
	}
	return nil
}

// List returns every known setting, defaults included
func (s *Service) List(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(stored)+len(models.SettingKeys))
	for _, key := range models.SettingKeys {
		out[key] = s.defaults[key]
	}
	for key, value := range stored {
		out[key] = value
	}
	return out, nil
}

// Snapshot reads all settings into a typed struct
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	podcast, _ := strconv.ParseBool(all[models.SettingCreatePodcast])
	return &Snapshot{
		InterestPrompt:     all[models.SettingInterestPrompt],
		SummaryPrompt:      all[models.SettingSummaryPrompt],
		NewsletterTemplate: all[models.SettingNewsletterTemplate],
		NewsletterTime:     all[models.SettingNewsletterTime],
		CreatePodcast:      podcast,
		PodcastPrompt:      all[models.SettingPodcastPrompt],
	}, nil
}

func (s *Service) notify(key, value string) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(key, value)
	}
}

// ValidationError reports a value that cannot be stored under its key
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Reason)
}

func normalize(key, value string) (string, error) {
	switch key {
	case models.SettingNewsletterTime:
		value = strings.TrimSpace(value)
		if _, _, err := scheduler.ParseTime(value); err != nil {
			return "", &ValidationError{Key: key, Reason: err.Error()}
		}
	case models.SettingCreatePodcast:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return "", &ValidationError{Key: key, Reason: fmt.Sprintf("%q is not true or false", value)}
		}
		value = strconv.FormatBool(b)
	case "":
		return "", &ValidationError{Reason: "setting key is required"}
	}
	return value, nil
}
