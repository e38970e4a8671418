package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/newsletter-agent/internal/models"
)

type podcastResponse struct {
	Title    *string `json:"title"`
	Dialogue []struct {
		Speaker *string `json:"speaker"`
		Text    *string `json:"text"`
	} `json:"dialogue"`
}

// Writer generates newsletter bodies and podcast scripts from article entries
type Writer struct {
	llm LLM
}

// NewWriter creates a new writer
func NewWriter(llm LLM) *Writer {
	return &Writer{llm: llm}
}

// WriteNewsletter renders entries into a newsletter following template
func (w *Writer) WriteNewsletter(ctx context.Context, template string, entries []models.NewsletterEntry) (string, error) {
	articles, err := encodeEntries(entries)
	if err != nil {
		return "", &GenerationError{Stage: "newsletter", Err: err}
	}

	content, err := w.llm.Complete(ctx, NewsletterSystemPrompt, fmt.Sprintf(NewsletterUserPrompt, template, articles))
	if err != nil {
		return "", &GenerationError{Stage: "newsletter", Err: err}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", &GenerationError{Stage: "newsletter", Err: errors.New("empty newsletter body")}
	}
	return content, nil
}

// WritePodcastScript produces a titled dialogue about entries following directive
func (w *Writer) WritePodcastScript(ctx context.Context, directive string, entries []models.NewsletterEntry) (*models.PodcastScript, error) {
	articles, err := encodeEntries(entries)
	if err != nil {
		return nil, &GenerationError{Stage: "podcast", Err: err}
	}

	response, err := w.llm.CompleteWithJSON(ctx, PodcastSystemPrompt, fmt.Sprintf(PodcastUserPrompt, directive, articles))
	if err != nil {
		return nil, &GenerationError{Stage: "podcast", Err: err}
	}

	var result podcastResponse
	if err := decodeJSON(response, &result); err != nil {
		return nil, &GenerationError{Stage: "podcast", Err: err}
	}
	if result.Title == nil || strings.TrimSpace(*result.Title) == "" {
		return nil, &GenerationError{Stage: "podcast", Err: errors.New(`response is missing "title"`)}
	}
	if len(result.Dialogue) == 0 {
		return nil, &GenerationError{Stage: "podcast", Err: errors.New(`response has no "dialogue" lines`)}
	}

	script := &models.PodcastScript{
		Title:    strings.TrimSpace(*result.Title),
		Dialogue: make([]models.DialogueLine, 0, len(result.Dialogue)),
	}
	for i, line := range result.Dialogue {
		if line.Speaker == nil || line.Text == nil {
			return nil, &GenerationError{Stage: "podcast", Err: fmt.Errorf("dialogue line %d is missing speaker or text", i)}
		}
		script.Dialogue = append(script.Dialogue, models.DialogueLine{
			Speaker: *line.Speaker,
			Text:    *line.Text,
		})
	}

	return script, nil
}

func encodeEntries(entries []models.NewsletterEntry) (string, error) {
	if entries == nil {
		entries = []models.NewsletterEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode articles: %w", err)
	}
	return string(data), nil
}
