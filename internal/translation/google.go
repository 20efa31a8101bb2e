package translation

import (
	"context"
	"html"

	"github.com/sirupsen/logrus"
)

// DefaultGoogleURL is the Cloud Translation v2 endpoint
const DefaultGoogleURL = "https://translation.googleapis.com/language/translate/v2"

// GoogleBackend uses the Google Cloud Translation v2 REST API
type GoogleBackend struct {
	cfg    Config
	url    string
	logger *logrus.Logger
}

// NewGoogleBackend creates a Google backend
func NewGoogleBackend(cfg Config) *GoogleBackend {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultGoogleURL
	}
	return &GoogleBackend{cfg: cfg, url: url, logger: cfg.Logger}
}

type googleRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Source string   `json:"source,omitempty"`
	Format string   `json:"format"`
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

// Name returns the backend name
func (g *GoogleBackend) Name() string { return BackendGoogle }

// Translate translates one text
func (g *GoogleBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return translateOne(ctx, g, text, sourceLang, targetLang)
}

// TranslateBatch translates texts in one request
func (g *GoogleBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	req := googleRequest{
		Q:      texts,
		Target: googleLanguage(targetLang),
		Format: "text",
	}
	if !isAutoSource(sourceLang) {
		req.Source = googleLanguage(sourceLang)
	}

	g.logger.WithFields(logrus.Fields{
		"backend":     BackendGoogle,
		"target_lang": req.Target,
		"texts":       len(texts),
	}).Debug("Sending translation request")

	// The key travels in a header so it never appears in URLs or errors
	headers := map[string]string{"X-Goog-Api-Key": g.cfg.APIKey}

	var resp googleResponse
	if err := postJSON(ctx, g.cfg.HTTPClient, BackendGoogle, g.url, headers, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data.Translations) != len(texts) {
		return nil, &CountMismatchError{Backend: BackendGoogle, Expected: len(texts), Got: len(resp.Data.Translations)}
	}

	out := make([]string, len(texts))
	for i, t := range resp.Data.Translations {
		// v2 may return entities even in text mode
		out[i] = html.UnescapeString(t.TranslatedText)
	}
	return out, nil
}
