package models

import (
	"time"
)

// MonitoredSource is a seed URL the pipeline iterates on every run
type MonitoredSource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	URL       string    `gorm:"uniqueIndex;not null" json:"url"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Setting is a single runtime key/value pair edited by the user
type Setting struct {
	Key       string    `gorm:"column:name;primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Setting keys
const (
	SettingInterestPrompt     = "interest_prompt"
	SettingSummaryPrompt      = "summary_prompt"
	SettingNewsletterTemplate = "newsletter_template"
	SettingNewsletterTime     = "newsletter_time"
	SettingCreatePodcast      = "create_podcast"
	SettingPodcastPrompt      = "podcast_prompt"
)

// SettingKeys lists every key the application reads
var SettingKeys = []string{
	SettingInterestPrompt,
	SettingSummaryPrompt,
	SettingNewsletterTemplate,
	SettingNewsletterTime,
	SettingCreatePodcast,
	SettingPodcastPrompt,
}
