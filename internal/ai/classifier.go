package ai

import (
	"context"
	"errors"
	"fmt"
)

// relevanceResponse mirrors the relevance JSON; pointers detect missing fields
type relevanceResponse struct {
	Relevant *bool   `json:"relevant"`
	Reason   *string `json:"reason"`
}

// Classifier decides whether an article matches the interest description
type Classifier struct {
	llm          LLM
	contentLimit int
}

// NewClassifier creates a classifier that sends at most contentLimit characters per article
func NewClassifier(llm LLM, contentLimit int) *Classifier {
	if contentLimit <= 0 {
		contentLimit = DefaultContentLimit
	}
	return &Classifier{llm: llm, contentLimit: contentLimit}
}

// Classify returns whether text matches interest together with the model's reason.
// Any failure or malformed response is reported as a ClassificationError.
func (c *Classifier) Classify(ctx context.Context, text, interest string) (bool, string, error) {
	userMsg := fmt.Sprintf(RelevanceUserPrompt, interest, truncate(text, c.contentLimit))

	response, err := c.llm.CompleteWithJSON(ctx, RelevanceSystemPrompt, userMsg)
	if err != nil {
		return false, "", &ClassificationError{Err: err}
	}

	var result relevanceResponse
	if err := decodeJSON(response, &result); err != nil {
		return false, "", &ClassificationError{Err: err}
	}
	if result.Relevant == nil {
		return false, "", &ClassificationError{Err: errors.New(`response is missing "relevant"`)}
	}
	if result.Reason == nil {
		return false, "", &ClassificationError{Err: errors.New(`response is missing "reason"`)}
	}

	return *result.Relevant, *result.Reason, nil
}
