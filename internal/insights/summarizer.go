// Package insights turns raw review text into short natural-language
// summaries via an OpenAI-compatible completion endpoint.
package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Summarizer condenses a batch of free-text documents into one summary
// following the given instruction.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string, instruction string) (string, error)
}

// OpenAISummarizer implements Summarizer on top of the OpenAI chat API.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// SummarizerOption configures optional summarizer behaviour.
type SummarizerOption func(*summarizerOptions)

type summarizerOptions struct {
	httpClient   *http.Client
	openaiClient *openai.Client
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) SummarizerOption {
	return func(opts *summarizerOptions) {
		opts.httpClient = client
	}
}

// WithOpenAIClient injects a pre-configured OpenAI client (primarily for testing).
func WithOpenAIClient(client *openai.Client) SummarizerOption {
	return func(opts *summarizerOptions) {
		opts.openaiClient = client
	}
}

func NewOpenAISummarizer(apiKey, baseURL, model string, opts ...SummarizerOption) (*OpenAISummarizer, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("insights: model is required")
	}

	optState := summarizerOptions{}
	for _, opt := range opts {
		opt(&optState)
	}

	client := optState.openaiClient
	if client == nil {
		oaOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if baseURL != "" {
			oaOpts = append(oaOpts, option.WithBaseURL(baseURL))
		}
		if optState.httpClient != nil {
			oaOpts = append(oaOpts, option.WithHTTPClient(optState.httpClient))
		}
		clientVal := openai.NewClient(oaOpts...)
		client = &clientVal
	}

	return &OpenAISummarizer{client: client, model: model}, nil
}

// Summarize sends all texts in a single completion request. Each input
// document is delimited so the model treats them as separate reviews rather
// than one running passage.
func (s *OpenAISummarizer) Summarize(ctx context.Context, texts []string, instruction string) (string, error) {
	if len(texts) == 0 {
		return "", errors.New("insights: no texts to summarize")
	}

	var b strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&b, "Review %d:\n%s\n\n", i+1, text)
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("insights: completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("insights: completion returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
