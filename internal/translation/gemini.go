package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend translates through the Gemini API
type GeminiBackend struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

// NewGeminiBackend creates a Gemini backend
func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to create gemini client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiBackend{client: client, model: model, logger: cfg.Logger}, nil
}

// Name returns the backend name
func (g *GeminiBackend) Name() string { return BackendGemini }

// Translate translates one text
func (g *GeminiBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return translateOne(ctx, g, text, sourceLang, targetLang)
}

// TranslateBatch sends texts as one JSON array and expects one back
func (g *GeminiBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	prompt, err := llmUserPrompt(texts)
	if err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"backend": BackendGemini,
		"model":   g.model,
		"texts":   len(texts),
	}).Debug("Sending translation request")

	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llmSystemPrompt(sourceLang, targetLang), genai.RoleUser),
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, geminiError(err)
	}

	return parseLLMTranslations(BackendGemini, resp.Text(), len(texts))
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &StatusError{Backend: BackendGemini, StatusCode: apiErr.Code, Body: truncate(apiErr.Message, maxErrorBody)}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
