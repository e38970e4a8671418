package ai

// Relevance prompts
const (
	RelevanceSystemPrompt = `You are an article relevance checker.
Determine if the article matches the given interests.

Respond in JSON format:
{
  "relevant": <true|false>,
  "reason": "<one or two sentences explaining the decision>"
}`

	RelevanceUserPrompt = `Interest criteria:
%s

Article content:
%s`
)

// Summary prompts
const (
	SummarySystemPrompt = `You are an article summarizer.
Summarize the article according to the given instructions.

Respond in JSON format:
{
  "title": "<article title>",
  "summary": "<the summary>"
}`

	SummaryUserPrompt = `Summary instructions:
%s

Article content:
%s`
)

// Newsletter prompts
const (
	NewsletterSystemPrompt = `You are a newsletter generator.
Create a newsletter using the provided template and articles.
The newsletter should be well-structured and engaging. Link every article you mention.`

	NewsletterUserPrompt = `Template:
%s

Articles:
%s`
)

// Podcast prompts
const (
	PodcastSystemPrompt = `You are a podcast script generator.
Create a podcast script using the provided articles and prompt.
The script should be engaging and follow the specified format.

Respond in JSON format:
{
  "title": "<episode title>",
  "dialogue": [
    {"speaker": "<speaker name>", "text": "<what the speaker says>"}
  ]
}`

	PodcastUserPrompt = `Prompt:
%s

Articles:
%s`
)
