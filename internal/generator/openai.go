package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel      = "gemini-2.5-pro"
	DefaultMaxRetries = 2
	DefaultTimeout    = 60 * time.Second

	SystemPrompt = "You are a helpful article generator that takes a topic and related content, " +
		"then generates concise, informative information."
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries is the number of retries after the first attempt; backoff
	// between attempts is exponential with jitter.
	MaxRetries int
	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration
}

// OpenAIGenerator calls a Chat Completions compatible API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator with deterministic sampling.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIGenerator{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(max(cfg.MaxRetries, 0)),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}, nil
}

// Generate returns the model output verbatim.
func (g *OpenAIGenerator) Generate(
	ctx context.Context,
	contextText string,
	query string,
) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(UserPrompt(contextText, query)),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("choices are missing (model = %s)", g.model)
	}

	return resp.Choices[0].Message.Content, nil
}

// UserPrompt renders the user message sent along with SystemPrompt.
func UserPrompt(contextText string, query string) string {
	userPromptBuilder := strings.Builder{}
	userPromptBuilder.WriteString("Topic: ")
	userPromptBuilder.WriteString(query)
	userPromptBuilder.WriteString("\n\nContext: ")
	userPromptBuilder.WriteString(contextText)

	return userPromptBuilder.String()
}
