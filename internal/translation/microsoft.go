package translation

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"
)

// DefaultMicrosoftURL is the Translator v3 endpoint
const DefaultMicrosoftURL = "https://api.cognitive.microsofttranslator.com"

// MicrosoftBackend uses the Azure Translator v3 REST API
type MicrosoftBackend struct {
	cfg     Config
	baseURL string
	logger  *logrus.Logger
}

// NewMicrosoftBackend creates a Microsoft backend
func NewMicrosoftBackend(cfg Config) *MicrosoftBackend {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultMicrosoftURL
	}
	return &MicrosoftBackend{cfg: cfg, baseURL: base, logger: cfg.Logger}
}

type microsoftText struct {
	Text string `json:"Text"`
}

type microsoftResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// Name returns the backend name
func (m *MicrosoftBackend) Name() string { return BackendMicrosoft }

// Translate translates one text
func (m *MicrosoftBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return translateOne(ctx, m, text, sourceLang, targetLang)
}

// TranslateBatch translates texts in one request
func (m *MicrosoftBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	query := url.Values{}
	query.Set("api-version", "3.0")
	query.Set("to", microsoftLanguage(targetLang))
	if !isAutoSource(sourceLang) {
		query.Set("from", microsoftLanguage(sourceLang))
	}
	endpoint := m.baseURL + "/translate?" + query.Encode()

	body := make([]microsoftText, len(texts))
	for i, t := range texts {
		body[i] = microsoftText{Text: t}
	}

	m.logger.WithFields(logrus.Fields{
		"backend":     BackendMicrosoft,
		"target_lang": query.Get("to"),
		"texts":       len(texts),
	}).Debug("Sending translation request")

	headers := map[string]string{"Ocp-Apim-Subscription-Key": m.cfg.APIKey}
	if m.cfg.Region != "" {
		headers["Ocp-Apim-Subscription-Region"] = m.cfg.Region
	}

	var resp []microsoftResult
	if err := postJSON(ctx, m.cfg.HTTPClient, BackendMicrosoft, endpoint, headers, body, &resp); err != nil {
		return nil, err
	}

	if len(resp) != len(texts) {
		return nil, &CountMismatchError{Backend: BackendMicrosoft, Expected: len(texts), Got: len(resp)}
	}

	out := make([]string, len(texts))
	for i, r := range resp {
		if len(r.Translations) == 0 {
			return nil, &CountMismatchError{Backend: BackendMicrosoft, Expected: len(texts), Got: i}
		}
		out[i] = r.Translations[0].Text
	}
	return out, nil
}
