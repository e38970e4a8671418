package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newsletter-agent/internal/models"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	args := m.Called(systemPrompt, userMessage)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) CompleteWithJSON(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	args := m.Called(systemPrompt, userMessage)
	return args.String(0), args.Error(1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		relevant bool
		reason   string
		wantErr  bool
	}{
		{name: "relevant", response: `{"relevant": true, "reason": "About open models"}`, relevant: true, reason: "About open models"},
		{name: "not relevant", response: `{"relevant": false, "reason": "Sports"}`, reason: "Sports"},
		{name: "wrapped in code block", response: "```json\n{\"relevant\": true, \"reason\": \"ok\"}\n```", relevant: true, reason: "ok"},
		{name: "missing relevant", response: `{"reason": "ok"}`, wantErr: true},
		{name: "missing reason", response: `{"relevant": true}`, wantErr: true},
		{name: "wrong type", response: `{"relevant": "yes", "reason": "ok"}`, wantErr: true},
		{name: "not json", response: `I think it is relevant`, wantErr: true},
		{name: "service failure", err: errors.New("overloaded"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mockLLM)
			llm.On("CompleteWithJSON", RelevanceSystemPrompt, mock.Anything).Return(tt.response, tt.err)

			relevant, reason, err := NewClassifier(llm, 0).Classify(context.Background(), "article text", "AI research")
			if tt.wantErr {
				var clsErr *ClassificationError
				require.ErrorAs(t, err, &clsErr)
				assert.False(t, relevant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.relevant, relevant)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestClassifyTruncatesContent(t *testing.T) {
	llm := new(mockLLM)
	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)

	llm.On("CompleteWithJSON", RelevanceSystemPrompt, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, strings.Repeat("a", 50)) && !strings.Contains(msg, "b")
	})).Return(`{"relevant": false, "reason": "n/a"}`, nil)

	_, _, err := NewClassifier(llm, 50).Classify(context.Background(), long, "interest")
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestSummarize(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CompleteWithJSON", SummarySystemPrompt, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "two sentences") && strings.Contains(msg, "body text")
	})).Return(`{"title": " Models ship ", "summary": "Two models shipped."}`, nil)

	title, summary, err := NewSummarizer(llm, 0).Summarize(context.Background(), "body text", "two sentences")
	require.NoError(t, err)
	assert.Equal(t, "Models ship", title)
	assert.Equal(t, "Two models shipped.", summary)
}

func TestSummarizeRejectsIncompleteResponse(t *testing.T) {
	for _, response := range []string{`{"title": "Only title"}`, `{"summary": "no title"}`, `{"title": "", "summary": "x"}`, `nope`} {
		llm := new(mockLLM)
		llm.On("CompleteWithJSON", SummarySystemPrompt, mock.Anything).Return(response, nil)

		_, _, err := NewSummarizer(llm, 0).Summarize(context.Background(), "body", "brief")
		var sumErr *SummarizationError
		assert.ErrorAs(t, err, &sumErr, response)
	}
}

func TestWriteNewsletter(t *testing.T) {
	entries := []models.NewsletterEntry{
		{Title: "A", Summary: "sa", URL: "https://example.com/a"},
		{Title: "B", Summary: "sb", URL: "https://example.com/b"},
	}

	llm := new(mockLLM)
	llm.On("Complete", NewsletterSystemPrompt, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "# Daily") &&
			strings.Contains(msg, `"url": "https://example.com/a"`) &&
			strings.Contains(msg, `"title": "B"`)
	})).Return("  # Daily\n\n- A\n- B\n", nil)

	content, err := NewWriter(llm).WriteNewsletter(context.Background(), "# Daily", entries)
	require.NoError(t, err)
	assert.Equal(t, "# Daily\n\n- A\n- B", content)
}

func TestWriteNewsletterFailure(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Complete", NewsletterSystemPrompt, mock.Anything).Return("", errors.New("timeout")).Once()

	_, err := NewWriter(llm).WriteNewsletter(context.Background(), "tpl", nil)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "newsletter", genErr.Stage)
}

func TestWritePodcastScript(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CompleteWithJSON", PodcastSystemPrompt, mock.Anything).Return(
		`{"title": "Episode 1", "dialogue": [{"speaker": "Host", "text": "Welcome"}, {"speaker": "Guest", "text": "Thanks"}]}`, nil)

	script, err := NewWriter(llm).WritePodcastScript(context.Background(), "two hosts", []models.NewsletterEntry{{Title: "A"}})
	require.NoError(t, err)
	assert.Equal(t, "Episode 1", script.Title)
	assert.Equal(t, []models.DialogueLine{
		{Speaker: "Host", Text: "Welcome"},
		{Speaker: "Guest", Text: "Thanks"},
	}, script.Dialogue)
}

func TestWritePodcastScriptRejectsMalformed(t *testing.T) {
	for _, response := range []string{
		`{"title": "No dialogue"}`,
		`{"dialogue": [{"speaker": "Host", "text": "hi"}]}`,
		`{"title": "Bad line", "dialogue": [{"speaker": "Host"}]}`,
	} {
		llm := new(mockLLM)
		llm.On("CompleteWithJSON", PodcastSystemPrompt, mock.Anything).Return(response, nil)

		_, err := NewWriter(llm).WritePodcastScript(context.Background(), "p", nil)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr, response)
		assert.Equal(t, "podcast", genErr.Stage)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "short", truncate("short", 10))
}
