package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NewsletterEntry is the {title, summary, url} projection of an article
type NewsletterEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Entries is stored as a JSON column
type Entries []NewsletterEntry

func (e Entries) Value() (driver.Value, error) {
	return json.Marshal(e)
}

func (e *Entries) Scan(value interface{}) error {
	if value == nil {
		*e = nil
		return nil
	}
	return json.Unmarshal(toBytes(value), e)
}

// DialogueLine is one spoken line of a podcast script
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// PodcastScript is the optional structured script attached to a newsletter
type PodcastScript struct {
	Title    string         `json:"title"`
	Dialogue []DialogueLine `json:"dialogue"`
}

func (p PodcastScript) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PodcastScript) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	return json.Unmarshal(toBytes(value), p)
}

// Newsletter is one generated rollup. Immutable after creation except AudioURL.
type Newsletter struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Date      time.Time      `gorm:"index;not null" json:"date"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Articles  Entries        `gorm:"type:json" json:"articles"`
	Podcast   *PodcastScript `gorm:"type:json" json:"podcast_script,omitempty"`
	AudioURL  string         `json:"audio_url,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// HasPodcast reports whether a script with at least one line is attached
func (n *Newsletter) HasPodcast() bool {
	return n.Podcast != nil && len(n.Podcast.Dialogue) > 0
}

func toBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
