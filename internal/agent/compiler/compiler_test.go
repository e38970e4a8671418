package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newsletter-agent/internal/agent"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/pkg/logger"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteNewsletter(ctx context.Context, template string, entries []models.NewsletterEntry) (string, error) {
	args := m.Called(template, entries)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) WritePodcastScript(ctx context.Context, directive string, entries []models.NewsletterEntry) (*models.PodcastScript, error) {
	args := m.Called(directive, entries)
	script, _ := args.Get(0).(*models.PodcastScript)
	return script, args.Error(1)
}

func articles() []*models.Article {
	return []*models.Article{
		{URL: "https://example.com/a", Title: "X", Summary: "sx", Content: "long body A"},
		{URL: "https://example.com/news/c", Title: "Y", Summary: "sy", Content: "long body C"},
	}
}

var wantEntries = []models.NewsletterEntry{
	{Title: "X", Summary: "sx", URL: "https://example.com/a"},
	{Title: "Y", Summary: "sy", URL: "https://example.com/news/c"},
}

func TestCompile_ProjectsArticles(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteNewsletter", "# Daily", wantEntries).Return("newsletter body", nil).Once()

	c := New(w, logger.Nop())
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	nl, err := c.Compile(context.Background(), Request{Articles: articles(), Template: "# Daily"})
	require.NoError(t, err)

	assert.Equal(t, "newsletter body", nl.Content)
	assert.Equal(t, models.Entries(wantEntries), nl.Articles)
	assert.Equal(t, fixed, nl.Date)
	assert.Nil(t, nl.Podcast)
	w.AssertExpectations(t)
	w.AssertNotCalled(t, "WritePodcastScript", mock.Anything, mock.Anything)
}

func TestCompile_MissingInputsNeverCallWriter(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		expected []string
	}{
		{name: "no articles", req: Request{Template: "tpl"}, expected: []string{"articles"}},
		{name: "no template", req: Request{Articles: articles(), Template: "  "}, expected: []string{models.SettingNewsletterTemplate}},
		{name: "neither", req: Request{}, expected: []string{"articles", models.SettingNewsletterTemplate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(mockWriter)
			nl, err := New(w, logger.Nop()).Compile(context.Background(), tt.req)

			var cfgErr *agent.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.expected, cfgErr.Missing)
			assert.Nil(t, nl)
			w.AssertNotCalled(t, "WriteNewsletter", mock.Anything, mock.Anything)
		})
	}
}

func TestCompile_WithPodcast(t *testing.T) {
	script := &models.PodcastScript{Title: "Ep", Dialogue: []models.DialogueLine{{Speaker: "Host", Text: "Hi"}}}

	w := new(mockWriter)
	w.On("WriteNewsletter", "tpl", wantEntries).Return("body", nil)
	w.On("WritePodcastScript", "two hosts", wantEntries).Return(script, nil)

	nl, err := New(w, logger.Nop()).Compile(context.Background(), Request{
		Articles: articles(), Template: "tpl", CreatePodcast: true, PodcastDirective: "two hosts",
	})
	require.NoError(t, err)
	assert.Equal(t, script, nl.Podcast)
	assert.True(t, nl.HasPodcast())
}

func TestCompile_PodcastFailureKeepsNewsletter(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteNewsletter", "tpl", wantEntries).Return("body", nil)
	w.On("WritePodcastScript", "two hosts", wantEntries).Return(nil, errors.New("bad json"))

	var msgs []string
	nl, err := New(w, logger.Nop()).Compile(context.Background(), Request{
		Articles: articles(), Template: "tpl", CreatePodcast: true, PodcastDirective: "two hosts",
		Status: func(m string) { msgs = append(msgs, m) },
	})
	require.NoError(t, err)
	assert.Equal(t, "body", nl.Content)
	assert.Nil(t, nl.Podcast)
	assert.Contains(t, msgs, "Error generating podcast script: bad json")
}

func TestCompile_PodcastNeedsDirective(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteNewsletter", "tpl", wantEntries).Return("body", nil)

	nl, err := New(w, logger.Nop()).Compile(context.Background(), Request{
		Articles: articles(), Template: "tpl", CreatePodcast: true,
	})
	require.NoError(t, err)
	assert.Nil(t, nl.Podcast)
	w.AssertNotCalled(t, "WritePodcastScript", mock.Anything, mock.Anything)
}

func TestCompile_GenerationFailure(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteNewsletter", "tpl", wantEntries).Return("", errors.New("overloaded"))

	nl, err := New(w, logger.Nop()).Compile(context.Background(), Request{Articles: articles(), Template: "tpl"})
	assert.Error(t, err)
	assert.Nil(t, nl)
}
