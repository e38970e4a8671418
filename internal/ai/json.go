package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultContentLimit is the number of characters of article text sent to the model
const DefaultContentLimit = 4000

// stripMarkdownCodeBlock removes markdown code block delimiters from AI responses
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}

// decodeJSON unmarshals the first JSON object in response into v
func decodeJSON(response string, v interface{}) error {
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), v); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// truncate returns at most limit characters of s without splitting a rune
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
