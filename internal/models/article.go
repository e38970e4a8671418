package models

import (
	"time"
)

// ExtractedDocument is the transient result of fetching a page
type ExtractedDocument struct {
	URL   string
	Text  string
	Links []string
}

// Article is a relevant, summarized page. URL is the deduplication key.
type Article struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	URL         string    `gorm:"uniqueIndex;not null" json:"url"`
	Title       string    `gorm:"not null" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	Content     string    `gorm:"type:text" json:"content,omitempty"`
	SourceURL   string    `gorm:"index" json:"source_url"` // seed page the article was found on
	Reason      string    `json:"reason"`                  // classifier's relevance reason
	ProcessedAt time.Time `gorm:"index;not null" json:"processed_at"`
}

// Entry projects the article to the fields a newsletter is built from
func (a *Article) Entry() NewsletterEntry {
	return NewsletterEntry{
		Title:   a.Title,
		Summary: a.Summary,
		URL:     a.URL,
	}
}
