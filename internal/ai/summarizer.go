package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type summaryResponse struct {
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
}

// Summarizer produces a title and summary for an article
type Summarizer struct {
	llm          LLM
	contentLimit int
}

// NewSummarizer creates a summarizer that sends at most contentLimit characters per article
func NewSummarizer(llm LLM, contentLimit int) *Summarizer {
	if contentLimit <= 0 {
		contentLimit = DefaultContentLimit
	}
	return &Summarizer{llm: llm, contentLimit: contentLimit}
}

// Summarize returns the title and summary of text following directive.
// Both fields must be present and non-empty; otherwise a SummarizationError is returned.
func (s *Summarizer) Summarize(ctx context.Context, text, directive string) (string, string, error) {
	userMsg := fmt.Sprintf(SummaryUserPrompt, directive, truncate(text, s.contentLimit))

	response, err := s.llm.CompleteWithJSON(ctx, SummarySystemPrompt, userMsg)
	if err != nil {
		return "", "", &SummarizationError{Err: err}
	}

	var result summaryResponse
	if err := decodeJSON(response, &result); err != nil {
		return "", "", &SummarizationError{Err: err}
	}
	if result.Title == nil || strings.TrimSpace(*result.Title) == "" {
		return "", "", &SummarizationError{Err: errors.New(`response is missing "title"`)}
	}
	if result.Summary == nil || strings.TrimSpace(*result.Summary) == "" {
		return "", "", &SummarizationError{Err: errors.New(`response is missing "summary"`)}
	}

	return strings.TrimSpace(*result.Title), strings.TrimSpace(*result.Summary), nil
}
