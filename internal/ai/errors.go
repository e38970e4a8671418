package ai

import "fmt"

// ClassificationError reports a failed or malformed relevance response
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("failed to check relevance: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// SummarizationError reports a failed or malformed summary response
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("failed to summarize article: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// GenerationError reports a failed newsletter or podcast generation step
type GenerationError struct {
	Stage string // newsletter or podcast
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
