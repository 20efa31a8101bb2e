package translation

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// DeepL endpoints. Free-plan keys end in ":fx".
const (
	DeepLFreeURL = "https://api-free.deepl.com/v2/translate"
	DeepLProURL  = "https://api.deepl.com/v2/translate"
)

// DeepLBackend uses the DeepL v2 REST API
type DeepLBackend struct {
	cfg    Config
	url    string
	logger *logrus.Logger
}

// NewDeepLBackend creates a DeepL backend
func NewDeepLBackend(cfg Config) *DeepLBackend {
	url := cfg.BaseURL
	if url == "" {
		url = DeepLProURL
		if strings.HasSuffix(cfg.APIKey, ":fx") {
			url = DeepLFreeURL
		}
	}
	return &DeepLBackend{cfg: cfg, url: url, logger: cfg.Logger}
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Name returns the backend name
func (d *DeepLBackend) Name() string { return BackendDeepL }

// Translate translates one text
func (d *DeepLBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return translateOne(ctx, d, text, sourceLang, targetLang)
}

// TranslateBatch translates texts in one request
func (d *DeepLBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	req := deeplRequest{
		Text:       texts,
		TargetLang: deeplTarget(targetLang),
	}
	if !isAutoSource(sourceLang) {
		req.SourceLang = deeplSource(sourceLang)
	}

	d.logger.WithFields(logrus.Fields{
		"backend":     BackendDeepL,
		"target_lang": req.TargetLang,
		"texts":       len(texts),
	}).Debug("Sending translation request")

	headers := map[string]string{"Authorization": "DeepL-Auth-Key " + d.cfg.APIKey}

	var resp deeplResponse
	if err := postJSON(ctx, d.cfg.HTTPClient, BackendDeepL, d.url, headers, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Translations) != len(texts) {
		return nil, &CountMismatchError{Backend: BackendDeepL, Expected: len(texts), Got: len(resp.Translations)}
	}

	out := make([]string, len(texts))
	for i, t := range resp.Translations {
		out[i] = t.Text
	}
	return out, nil
}
