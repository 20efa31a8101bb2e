package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIBackend translates through the OpenAI chat completion API
type OpenAIBackend struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// NewOpenAIBackend creates an OpenAI backend
func NewOpenAIBackend(cfg Config) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: cfg.Logger,
	}
}

// Name returns the backend name
func (o *OpenAIBackend) Name() string { return BackendOpenAI }

// Translate translates one text
func (o *OpenAIBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return translateOne(ctx, o, text, sourceLang, targetLang)
}

// TranslateBatch sends texts as one JSON array and expects one back
func (o *OpenAIBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	prompt, err := llmUserPrompt(texts)
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"backend": BackendOpenAI,
		"model":   o.model,
		"texts":   len(texts),
	}).Debug("Sending translation request")

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llmSystemPrompt(sourceLang, targetLang),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseLLMTranslations(BackendOpenAI, resp.Choices[0].Message.Content, len(texts))
}

// openAIError turns API errors into *StatusError so the retry policy can
// classify them
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Backend: BackendOpenAI, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Backend: BackendOpenAI, StatusCode: reqErr.HTTPStatusCode, Body: truncate(reqErr.Error(), maxErrorBody)}
	}
	return fmt.Errorf("openai request failed: %w", err)
}
